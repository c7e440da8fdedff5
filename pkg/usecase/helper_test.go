package usecase_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/utils/logging"
)

var baseTime = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func ctxAt(t time.Time) context.Context {
	return logging.CtxWithTime(context.Background(), func() time.Time { return t })
}

type repoFetcher struct {
	mu      sync.Mutex
	repos   []model.RemoteRepository
	prs     []model.PullRequest
	err     error
	login   string
	fails   []model.FetchFailure
	gate    chan struct{}
	repoHit atomic.Int32
	prHit   atomic.Int32
}

func (x *repoFetcher) ListRepositories(ctx context.Context, owner string) (*model.FetchBatch[model.RemoteRepository], error) {
	x.repoHit.Add(1)
	if x.gate != nil {
		<-x.gate
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err != nil {
		return nil, x.err
	}
	items := append([]model.RemoteRepository(nil), x.repos...)
	return &model.FetchBatch[model.RemoteRepository]{Items: items, Failures: x.fails}, nil
}

func (x *repoFetcher) ListPullRequests(ctx context.Context, owner string) (*model.FetchBatch[model.PullRequest], error) {
	x.prHit.Add(1)
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err != nil {
		return nil, x.err
	}
	items := append([]model.PullRequest(nil), x.prs...)
	return &model.FetchBatch[model.PullRequest]{Items: items}, nil
}

func (x *repoFetcher) CurrentUser(ctx context.Context) (string, error) {
	return x.login, x.err
}

func (x *repoFetcher) set(fn func(x *repoFetcher)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	fn(x)
}

type pipelineFetcher struct {
	mu        sync.Mutex
	pipelines []model.Pipeline
	err       error
	hit       atomic.Int32
}

func (x *pipelineFetcher) ListPipelines(ctx context.Context, organization, project string) (*model.FetchBatch[model.Pipeline], error) {
	x.hit.Add(1)
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.err != nil {
		return nil, x.err
	}
	items := append([]model.Pipeline(nil), x.pipelines...)
	return &model.FetchBatch[model.Pipeline]{Items: items}, nil
}

func (x *pipelineFetcher) set(pipelines []model.Pipeline) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.pipelines = pipelines
}

type cloneExecutor struct {
	err   error
	calls []string
}

func (x *cloneExecutor) Clone(ctx context.Context, url, dest string) (string, error) {
	x.calls = append(x.calls, url+" -> "+dest)
	if x.err != nil {
		return "", x.err
	}
	return dest, nil
}
