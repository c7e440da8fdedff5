package interfaces

import (
	"context"

	"github.com/secmon-lab/devlink/pkg/domain/model"
)

// UseCase is consumed by the HTTP controller.
type UseCase interface {
	GetRepositories(ctx context.Context, scope model.OwnerScope) (*model.CacheResult[model.RemoteRepository, model.RepositoryView], error)
	RefreshRepositories(ctx context.Context, scope model.OwnerScope) error
	GetPullRequests(ctx context.Context, scope model.OwnerScope) (*model.CacheResult[model.PullRequest, model.PullRequestView], error)
	RefreshPullRequests(ctx context.Context, scope model.OwnerScope) error
	GetPipelines(ctx context.Context, scope model.ProjectScope) (*model.CacheResult[model.Pipeline, model.PipelineView], error)
	RefreshPipelines(ctx context.Context, scope model.ProjectScope) error

	PipelinesForRepository(ctx context.Context, repositoryURL string) ([]model.Pipeline, error)
	PullRequestsForRepository(ctx context.Context, owner, fullName string) ([]model.PullRequest, error)

	ScanAndLink(ctx context.Context, workFolder, owner string) (*model.LinkReport, error)
	CleanupInvalidLinks(ctx context.Context, owner string) (int, error)

	ResolveOwner(ctx context.Context, owner string) (string, error)
}
