package cli

import (
	"context"
	"io"
	"os"

	"github.com/secmon-lab/devlink/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Version is set at build time.
var Version = "dev"

// ConfigureLogging is exported for testing purposes
var ConfigureLogging = logging.Configure

type CLI struct {
	out io.Writer
}

type Option func(*CLI)

// WithWriter redirects command output, which goes to stdout by default.
func WithWriter(w io.Writer) Option {
	return func(x *CLI) { x.out = w }
}

func New(opts ...Option) *CLI {
	x := &CLI{out: os.Stdout}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *CLI) Run(argv []string) error {
	var (
		logLevel  string
		logFormat string
		logOutput string
	)

	app := &cli.Command{
		Name:    "devlink",
		Usage:   "Cache GitHub repositories, pull requests and Azure DevOps pipelines, and link them to local clones",
		Version: Version,
		Writer:  x.out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Log level [debug|info|warn|error]",
				Aliases:     []string{"l"},
				Sources:     cli.EnvVars("DEVLINK_LOG_LEVEL"),
				Destination: &logLevel,
				Value:       "warn",
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "Log format [text|json]",
				Aliases:     []string{"f"},
				Sources:     cli.EnvVars("DEVLINK_LOG_FORMAT"),
				Destination: &logFormat,
				Value:       "text",
			},
			&cli.StringFlag{
				Name:        "log-output",
				Usage:       "Log output [-|stdout|stderr|<file>]",
				Aliases:     []string{"o"},
				Sources:     cli.EnvVars("DEVLINK_LOG_OUTPUT"),
				Destination: &logOutput,
				Value:       "stderr",
			},
		},
		Commands: []*cli.Command{
			reposCommand(x.out),
			pullRequestsCommand(x.out),
			pipelinesCommand(x.out),
			serveCommand(),
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := ConfigureLogging(logFormat, logLevel, logOutput); err != nil {
				return ctx, err
			}
			return ctx, nil
		},
	}

	if err := app.Run(context.Background(), argv); err != nil {
		logging.Default().Error("fatal error", "error", err)
		return err
	}

	return nil
}
