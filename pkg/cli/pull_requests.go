package cli

import (
	"context"
	"io"

	"github.com/urfave/cli/v3"
)

func pullRequestsCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "prs",
		Usage: "Open pull requests across the owner's repositories",
		Commands: []*cli.Command{
			pullRequestsListCommand(out, false),
			pullRequestsListCommand(out, true),
		},
	}
}

func pullRequestsListCommand(out io.Writer, refresh bool) *cli.Command {
	var cfg appConfig
	name, usage := "list", "List cached pull requests, fetching them on first use"
	if refresh {
		name, usage = "refresh", "Fetch pull requests again and list them"
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

			scope, err := ownerScope(ctx, uc, &cfg)
			if err != nil {
				return err
			}
			if refresh {
				if err := uc.RefreshPullRequests(ctx, scope); err != nil {
					return err
				}
			}

			result, err := uc.GetPullRequests(ctx, scope)
			if err != nil {
				return err
			}
			return renderResult(out, cfg.json, result, pullRequestRows(result.Views), "No open pull requests")
		},
	}
}
