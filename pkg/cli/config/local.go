package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Local holds the folder where repositories are cloned.
type Local struct {
	workFolder string
}

func (x *Local) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "work-folder",
			Usage:       "Folder holding local clones. A leading ~ is expanded",
			Category:    "Local",
			Destination: &x.workFolder,
			Sources:     cli.EnvVars("DEVLINK_WORK_FOLDER"),
		},
	}
}

// WorkFolder returns the absolute work folder, or "" when not configured.
func (x *Local) WorkFolder() (string, error) {
	if x.workFolder == "" {
		return "", nil
	}

	path := x.workFolder
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", goerr.Wrap(err, "failed to resolve home dir")
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve work folder", goerr.V("path", path))
	}
	return abs, nil
}

func (x Local) LogValue() slog.Value {
	return slog.GroupValue(slog.String("workFolder", x.workFolder))
}
