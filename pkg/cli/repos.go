package cli

import (
	"context"
	"io"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func reposCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "repos",
		Aliases: []string{"r"},
		Usage:   "GitHub repositories",
		Commands: []*cli.Command{
			reposListCommand(out, false),
			reposListCommand(out, true),
			reposLinkCommand(out),
			reposCloneCommand(out),
			reposPipelinesCommand(out),
			reposPullRequestsCommand(out),
		},
	}
}

// ownerScope resolves the cache owner from --github-owner or the token's user.
func ownerScope(ctx context.Context, uc *usecase.UseCase, cfg *appConfig) (model.OwnerScope, error) {
	owner, err := uc.ResolveOwner(ctx, cfg.github.Owner())
	if err != nil {
		return model.OwnerScope{}, err
	}
	return model.OwnerScope{Owner: owner}, nil
}

func reposListCommand(out io.Writer, refresh bool) *cli.Command {
	var cfg appConfig
	name, usage := "list", "List cached repositories, fetching them on first use"
	if refresh {
		name, usage = "refresh", "Fetch repositories again and list them"
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
				if err := uc.RefreshRepositories(ctx, scope); err != nil {
					return err
				}
			}

			result, err := uc.GetRepositories(ctx, scope)
			if err != nil {
				return err
			}
			return renderResult(out, cfg.json, result, repositoryRows(result.Views), "No repositories found")
		},
	}
}

func reposLinkCommand(out io.Writer) *cli.Command {
	var cfg appConfig

	return &cli.Command{
		Name:  "link",
		Usage: "Link cached repositories to clones in the work folder and drop stale links",
		Flags: cfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			workFolder, err := cfg.requireWorkFolder()
			if err != nil {
				return err
			}

			uc, release, err := cfg.build(ctx)
			if err != nil {
				return err
			}
			defer release()

			scope, err := ownerScope(ctx, uc, &cfg)
			if err != nil {
				return err
			}
			// the repository list must be cached before clones can be matched
			if _, err := uc.GetRepositories(ctx, scope); err != nil {
				return err
			}

			report, err := uc.ScanAndLink(ctx, workFolder, scope.Owner)
			if err != nil {
				return err
			}
			cleared, err := uc.CleanupInvalidLinks(ctx, scope.Owner)
			if err != nil {
				return err
			}
			return renderLinkReport(out, cfg.json, report, cleared)
		},
	}
}

func findRepository(repos []model.RemoteRepository, fullName string) *model.RemoteRepository {
	for i := range repos {
		if strings.EqualFold(repos[i].FullName, fullName) {
			return &repos[i]
		}
	}
	return nil
}

func reposCloneCommand(out io.Writer) *cli.Command {
	var cfg appConfig

	return &cli.Command{
		Name:      "clone",
		Usage:     "Clone a cached repository into the work folder and link it",
		ArgsUsage: "<owner/name>",
		Flags:     cfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			ref, err := ParseRepositoryRef(c.Args().First())
			if err != nil {
				return err
			}
			workFolder, err := cfg.requireWorkFolder()
			if err != nil {
				return err
			}

			uc, release, err := cfg.build(ctx)
			if err != nil {
				return err
			}
			defer release()

			scope, err := ownerScope(ctx, uc, &cfg)
			if err != nil {
				return err
			}
			result, err := uc.GetRepositories(ctx, scope)
			if err != nil {
				return err
			}

			repo := findRepository(result.Items, ref.FullName)
			if repo == nil {
				return goerr.Wrap(types.ErrInvalidOption, "repository is not in the cache, run `repos refresh` first",
					goerr.V("repository", ref.FullName), goerr.V("owner", scope.Owner))
			}
			if repo.Linked() {
				return goerr.Wrap(types.ErrInvalidOption, "repository is already linked",
					goerr.V("repository", repo.FullName), goerr.V("path", repo.LocalPath))
			}

			path, err := uc.CloneRepository(ctx, repo.HTMLURL+".git", workFolder, repo.Name, repo.ID)
			if err != nil {
				return err
			}

			if cfg.json {
				return writeJSON(out, map[string]any{
					"repository":    repo.FullName,
					"local_path":    path,
					"solution_file": usecase.HasSolutionFile(path),
				})
			}
			successColor.Fprintf(out, "Cloned %s to %s\n", repo.FullName, path)
			if usecase.HasSolutionFile(path) {
				subColor.Fprintln(out, "  Visual Studio solution found")
			}
			return nil
		},
	}
}

func reposPipelinesCommand(out io.Writer) *cli.Command {
	var cfg appConfig

	return &cli.Command{
		Name:      "pipelines",
		Usage:     "Show Azure DevOps pipelines building a repository",
		ArgsUsage: "[owner/name|url]",
		Flags:     cfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			ref, err := resolveRepositoryRef(ctx, c.Args().First())
			if err != nil {
				return err
			}

			uc, release, err := cfg.build(ctx)
			if err != nil {
				return err
			}
			defer release()

			if scope := cfg.azureDevOps.Scope(); scope.Validate() == nil {
				if _, err := uc.GetPipelines(ctx, scope); err != nil {
					return err
				}
			}

			pipelines, err := uc.PipelinesForRepository(ctx, ref.URL)
			if err != nil {
				return err
			}

			views := make([]model.PipelineView, 0, len(pipelines))
			for _, p := range pipelines {
				views = append(views, model.NewPipelineView(p))
			}
			if cfg.json {
				return writeJSON(out, views)
			}
			headerColor.Fprintf(out, "Pipelines for %s\n", ref.FullName)
			renderRows(out, pipelineRows(views), "No pipelines found")
			return nil
		},
	}
}

func reposPullRequestsCommand(out io.Writer) *cli.Command {
	var cfg appConfig

	return &cli.Command{
		Name:      "prs",
		Usage:     "Show cached open pull requests of a repository",
		ArgsUsage: "[owner/name|url]",
		Flags:     cfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			ref, err := resolveRepositoryRef(ctx, c.Args().First())
			if err != nil {
				return err
			}

			uc, release, err := cfg.build(ctx)
			if err != nil {
				return err
			}
			defer release()

			scope, err := ownerScope(ctx, uc, &cfg)
			if err != nil {
				return err
			}
			result, err := uc.GetPullRequests(ctx, scope)
			if err != nil {
				return err
			}

			prs, err := uc.PullRequestsForRepository(ctx, scope.Owner, ref.FullName)
			if err != nil {
				return err
			}

			views := make([]model.PullRequestView, 0, len(prs))
			for _, pr := range prs {
				views = append(views, uc.PullRequests().ConvertToView(ctx, pr))
			}
			if cfg.json {
				return writeJSON(out, views)
			}
			headerColor.Fprintf(out, "Pull requests for %s (%s)\n", ref.FullName,
				usecase.CacheInfo(result.FetchedAt, result.FromCache))
			renderRows(out, pullRequestRows(views), "No open pull requests")
			return nil
		},
	}
}
