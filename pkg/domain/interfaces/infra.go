package interfaces

import (
	"context"
	"net/http"

	"github.com/secmon-lab/devlink/pkg/domain/model"
)

// RepositoryFetcher lists GitHub repositories and open pull requests visible to
// an owner. Per-organization, per-team and per-repository failures are
// reported in the batch; an error means nothing could be fetched.
type RepositoryFetcher interface {
	ListRepositories(ctx context.Context, owner string) (*model.FetchBatch[model.RemoteRepository], error)
	ListPullRequests(ctx context.Context, owner string) (*model.FetchBatch[model.PullRequest], error)
	CurrentUser(ctx context.Context) (string, error)
}

// PipelineFetcher lists build definitions of an Azure DevOps project together
// with their source repository and latest build.
type PipelineFetcher interface {
	ListPipelines(ctx context.Context, organization, project string) (*model.FetchBatch[model.Pipeline], error)
}

// CloneExecutor clones a remote repository into dest and returns the path of
// the working tree.
type CloneExecutor interface {
	Clone(ctx context.Context, url, dest string) (string, error)
}

// GitProbe inspects local directories.
type GitProbe interface {
	ListDirectories(path string) ([]string, error)
	IsWorkTree(path string) bool
	OriginURL(ctx context.Context, path string) (string, error)
}

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
