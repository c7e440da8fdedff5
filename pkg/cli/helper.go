package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gots/slice"
	"github.com/secmon-lab/devlink/pkg/cli/config"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/infra"
	"github.com/secmon-lab/devlink/pkg/infra/gitlocal"
	"github.com/secmon-lab/devlink/pkg/usecase"
	"github.com/secmon-lab/devlink/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// appConfig is the configuration shared by every command.
type appConfig struct {
	github      config.GitHub
	azureDevOps config.AzureDevOps
	store       config.Store
	local       config.Local
	sentry      config.Sentry
	json        bool
}

func (x *appConfig) Flags() []cli.Flag {
	return slice.Flatten(
		[]cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "Print results as JSON",
				Destination: &x.json,
			},
		},
		x.github.Flags(),
		x.azureDevOps.Flags(),
		x.store.Flags(),
		x.local.Flags(),
		x.sentry.Flags(),
	)
}

// build wires the configured clients into a UseCase. The returned function
// releases the store and flushes Sentry.
func (x *appConfig) build(ctx context.Context) (*usecase.UseCase, func(), error) {
	logging.From(ctx).Debug("configuration",
		slog.Any("GitHub", x.github),
		slog.Any("AzureDevOps", x.azureDevOps),
		slog.Any("Store", x.store),
		slog.Any("Local", x.local),
		slog.Any("Sentry", &x.sentry),
	)

	if err := x.sentry.Configure(ctx, Version); err != nil {
		return nil, nil, err
	}

	store, closeStore, err := x.store.New(ctx)
	if err != nil {
		return nil, nil, err
	}

	git := gitlocal.New(gitlocal.WithToken(x.github.Token()))
	options := []infra.Option{
		infra.WithEntityStore(store),
		infra.WithGitProbe(git),
		infra.WithCloneExecutor(git),
	}

	gh, err := x.github.New()
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	if gh != nil {
		options = append(options, infra.WithRepositoryFetcher(gh))
	}

	ado, err := x.azureDevOps.New()
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	if ado != nil {
		options = append(options, infra.WithPipelineFetcher(ado))
	}

	release := func() {
		closeStore()
		x.sentry.Flush()
	}
	return usecase.New(infra.New(options...)), release, nil
}

func (x *appConfig) requireWorkFolder() (string, error) {
	folder, err := x.local.WorkFolder()
	if err != nil {
		return "", err
	}
	if folder == "" {
		return "", goerr.Wrap(types.ErrInvalidOption, "work folder is not set, use --work-folder or DEVLINK_WORK_FOLDER")
	}
	return folder, nil
}
