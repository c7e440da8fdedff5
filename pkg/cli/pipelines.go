package cli

import (
	"context"
	"io"

	"github.com/urfave/cli/v3"
)

func pipelinesCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "pipelines",
		Aliases: []string{"p"},
		Usage:   "Azure DevOps build pipelines of the configured project",
		Commands: []*cli.Command{
			pipelinesListCommand(out, false),
			pipelinesListCommand(out, true),
		},
	}
}

func pipelinesListCommand(out io.Writer, refresh bool) *cli.Command {
	var cfg appConfig
	name, usage := "list", "List cached pipelines, fetching them on first use"
	if refresh {
		name, usage = "refresh", "Fetch pipelines again and list them"
	}

	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: cfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, release, err := cfg.build(ctx)
			if err != nil {
				return err
			}
			defer release()

			scope := cfg.azureDevOps.Scope()
			if refresh {
				if err := uc.RefreshPipelines(ctx, scope); err != nil {
					return err
				}
			}

			result, err := uc.GetPipelines(ctx, scope)
			if err != nil {
				return err
			}
			return renderResult(out, cfg.json, result, pipelineRows(result.Views), "No pipelines found")
		},
	}
}
