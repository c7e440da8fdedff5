package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/interfaces"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/infra"
	"github.com/secmon-lab/devlink/pkg/utils/logging"
)

type (
	RepositoryCache  = CacheOrchestrator[model.OwnerScope, model.RemoteRepository, model.RepositoryView]
	PullRequestCache = CacheOrchestrator[model.OwnerScope, model.PullRequest, model.PullRequestView]
	PipelineCache    = CacheOrchestrator[model.ProjectScope, model.Pipeline, model.PipelineView]
)

type UseCase struct {
	clients *infra.Clients

	repositories *RepositoryCache
	pullRequests *PullRequestCache
	pipelines    *PipelineCache
}

var _ interfaces.UseCase = (*UseCase)(nil)

func New(clients *infra.Clients) *UseCase {
	uc := &UseCase{
		clients: clients,
		repositories: &RepositoryCache{
			kind: model.ScopeKindRepository,
			convert: func(_ context.Context, x model.RemoteRepository) model.RepositoryView {
				return model.NewRepositoryView(x)
			},
		},
		pullRequests: &PullRequestCache{
			kind: model.ScopeKindPullRequest,
			convert: func(ctx context.Context, x model.PullRequest) model.PullRequestView {
				return model.NewPullRequestView(x, logging.CtxTime(ctx))
			},
		},
		pipelines: &PipelineCache{
			kind: model.ScopeKindPipeline,
			convert: func(_ context.Context, x model.Pipeline) model.PipelineView {
				return model.NewPipelineView(x)
			},
		},
	}

	if store := clients.EntityStore(); store != nil {
		uc.repositories.upsert = store.UpsertRepositories
		uc.repositories.list = store.ListRepositories
		uc.repositories.clear = store.ClearRepositories
		uc.repositories.lastFetch = store.LastRepositoryFetch
		uc.repositories.marker = store.ScopeFetchedAt

		uc.pullRequests.upsert = store.UpsertPullRequests
		uc.pullRequests.list = store.ListPullRequests
		uc.pullRequests.clear = store.ClearPullRequests
		uc.pullRequests.lastFetch = store.LastPullRequestFetch
		uc.pullRequests.marker = store.ScopeFetchedAt

		uc.pipelines.upsert = store.UpsertPipelines
		uc.pipelines.list = store.ListPipelines
		uc.pipelines.clear = store.ClearPipelines
		uc.pipelines.lastFetch = store.LastPipelineFetch
		uc.pipelines.marker = store.ScopeFetchedAt
	}

	if fetcher := clients.RepositoryFetcher(); fetcher != nil {
		uc.repositories.fetch = func(ctx context.Context, scope model.OwnerScope) (*model.FetchBatch[model.RemoteRepository], error) {
			return fetcher.ListRepositories(ctx, scope.Owner)
		}
		uc.pullRequests.fetch = func(ctx context.Context, scope model.OwnerScope) (*model.FetchBatch[model.PullRequest], error) {
			return fetcher.ListPullRequests(ctx, scope.Owner)
		}
	}
	if fetcher := clients.PipelineFetcher(); fetcher != nil {
		uc.pipelines.fetch = func(ctx context.Context, scope model.ProjectScope) (*model.FetchBatch[model.Pipeline], error) {
			return fetcher.ListPipelines(ctx, scope.Organization, scope.Project)
		}
	}

	return uc
}

func (x *UseCase) Repositories() *RepositoryCache  { return x.repositories }
func (x *UseCase) PullRequests() *PullRequestCache { return x.pullRequests }
func (x *UseCase) Pipelines() *PipelineCache       { return x.pipelines }

func (x *UseCase) GetRepositories(ctx context.Context, scope model.OwnerScope) (*model.CacheResult[model.RemoteRepository, model.RepositoryView], error) {
	return x.repositories.GetOrFetch(ctx, scope)
}

func (x *UseCase) RefreshRepositories(ctx context.Context, scope model.OwnerScope) error {
	return x.repositories.Refresh(ctx, scope)
}

func (x *UseCase) GetPullRequests(ctx context.Context, scope model.OwnerScope) (*model.CacheResult[model.PullRequest, model.PullRequestView], error) {
	return x.pullRequests.GetOrFetch(ctx, scope)
}

func (x *UseCase) RefreshPullRequests(ctx context.Context, scope model.OwnerScope) error {
	return x.pullRequests.Refresh(ctx, scope)
}

func (x *UseCase) GetPipelines(ctx context.Context, scope model.ProjectScope) (*model.CacheResult[model.Pipeline, model.PipelineView], error) {
	return x.pipelines.GetOrFetch(ctx, scope)
}

func (x *UseCase) RefreshPipelines(ctx context.Context, scope model.ProjectScope) error {
	return x.pipelines.Refresh(ctx, scope)
}

// ResolveOwner returns owner, or the authenticated GitHub login when owner is empty.
func (x *UseCase) ResolveOwner(ctx context.Context, owner string) (string, error) {
	if owner != "" {
		return owner, nil
	}

	fetcher := x.clients.RepositoryFetcher()
	if fetcher == nil {
		return "", goerr.Wrap(types.ErrInvalidOption, "owner is empty and GitHub is not configured")
	}

	login, err := fetcher.CurrentUser(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve current GitHub user")
	}
	if login == "" {
		return "", goerr.Wrap(types.ErrInvalidOption, "GitHub returned an empty login")
	}
	return login, nil
}

// CacheInfo renders the "Last updated" line shown above cached lists.
func CacheInfo(fetchedAt *time.Time, fromCache bool) string {
	if fetchedAt == nil {
		return "Not fetched yet"
	}
	line := "Last updated: " + fetchedAt.Local().Format("15:04:05")
	if fromCache {
		line += " (from cache)"
	}
	return line
}
