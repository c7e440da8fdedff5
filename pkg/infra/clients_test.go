package infra_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/infra"
	"github.com/secmon-lab/devlink/pkg/repository/memory"
)

func TestNew(t *testing.T) {
	t.Run("create new clients without options", func(t *testing.T) {
		clients := infra.New()
		// git probe and clone executor default to go-git
		gt.True(t, clients.GitProbe() != nil)
		gt.True(t, clients.CloneExecutor() != nil)
		// store and fetchers must be configured explicitly
		gt.True(t, clients.EntityStore() == nil)
		gt.True(t, clients.RepositoryFetcher() == nil)
		gt.True(t, clients.PipelineFetcher() == nil)
	})

	t.Run("multiple options can be combined", func(t *testing.T) {
		store := memory.New()
		fetcher := &mockPipelineFetcher{}
		probe := &mockGitProbe{}

		clients := infra.New(
			infra.WithEntityStore(store),
			infra.WithPipelineFetcher(fetcher),
			infra.WithGitProbe(probe),
		)

		gt.V(t, clients.EntityStore()).Equal(store)
		gt.V(t, clients.PipelineFetcher()).Equal(fetcher)
		gt.V(t, clients.GitProbe()).Equal(probe)
	})
}

type mockPipelineFetcher struct{}

func (m *mockPipelineFetcher) ListPipelines(ctx context.Context, organization, project string) (*model.FetchBatch[model.Pipeline], error) {
	return &model.FetchBatch[model.Pipeline]{}, nil
}

type mockGitProbe struct{}

func (m *mockGitProbe) ListDirectories(path string) ([]string, error) { return nil, nil }
func (m *mockGitProbe) IsWorkTree(path string) bool                   { return false }
func (m *mockGitProbe) OriginURL(ctx context.Context, path string) (string, error) {
	return "", nil
}
