package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
)

// EntityStore is the durable cache of remote entities. Storage failures are
// wrapped with types.ErrStorageUnavailable; an empty scope is not an error.
type EntityStore interface {
	// Repositories
	UpsertRepositories(ctx context.Context, scope model.OwnerScope, repos []model.RemoteRepository, fetchedAt time.Time) error
	ListRepositories(ctx context.Context, scope model.OwnerScope) ([]model.RemoteRepository, error)
	LastRepositoryFetch(ctx context.Context, scope model.OwnerScope) (*time.Time, error)
	ClearRepositories(ctx context.Context, scope model.OwnerScope) error
	ListAllRepositories(ctx context.Context) ([]model.RemoteRepository, error)
	FindRepositoriesByURLKey(ctx context.Context, key string) ([]model.RemoteRepository, error)
	SetLocalPath(ctx context.Context, repoID types.GitHubRepoID, path string) error

	// Pull requests
	UpsertPullRequests(ctx context.Context, scope model.OwnerScope, prs []model.PullRequest, fetchedAt time.Time) error
	ListPullRequests(ctx context.Context, scope model.OwnerScope) ([]model.PullRequest, error)
	LastPullRequestFetch(ctx context.Context, scope model.OwnerScope) (*time.Time, error)
	ClearPullRequests(ctx context.Context, scope model.OwnerScope) error
	// FindPullRequestsByRepository matches the full name case-insensitively across owners.
	FindPullRequestsByRepository(ctx context.Context, fullName string) ([]model.PullRequest, error)

	// Pipelines
	UpsertPipelines(ctx context.Context, scope model.ProjectScope, pipelines []model.Pipeline, fetchedAt time.Time) error
	ListPipelines(ctx context.Context, scope model.ProjectScope) ([]model.Pipeline, error)
	LastPipelineFetch(ctx context.Context, scope model.ProjectScope) (*time.Time, error)
	ClearPipelines(ctx context.Context, scope model.ProjectScope) error
	FindPipelinesByRepositoryKey(ctx context.Context, key string) ([]model.Pipeline, error)

	// ScopeFetchedAt returns the time the scope was last populated, including
	// populations that returned no rows. nil means the scope is cold.
	ScopeFetchedAt(ctx context.Context, kind model.ScopeKind, scopeKey string) (*time.Time, error)
}
