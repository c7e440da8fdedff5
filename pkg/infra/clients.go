package infra

import (
	"github.com/secmon-lab/devlink/pkg/domain/interfaces"
	"github.com/secmon-lab/devlink/pkg/infra/gitlocal"
)

type Clients struct {
	entityStore       interfaces.EntityStore
	repositoryFetcher interfaces.RepositoryFetcher
	pipelineFetcher   interfaces.PipelineFetcher
	cloneExecutor     interfaces.CloneExecutor
	gitProbe          interfaces.GitProbe
}

type Option func(*Clients)

func New(options ...Option) *Clients {
	git := gitlocal.New()
	client := &Clients{
		cloneExecutor: git,
		gitProbe:      git,
	}

	for _, opt := range options {
		opt(client)
	}

	return client
}

func (x *Clients) EntityStore() interfaces.EntityStore {
	return x.entityStore
}
func (x *Clients) RepositoryFetcher() interfaces.RepositoryFetcher {
	return x.repositoryFetcher
}
func (x *Clients) PipelineFetcher() interfaces.PipelineFetcher {
	return x.pipelineFetcher
}
func (x *Clients) CloneExecutor() interfaces.CloneExecutor {
	return x.cloneExecutor
}
func (x *Clients) GitProbe() interfaces.GitProbe {
	return x.gitProbe
}

func WithEntityStore(store interfaces.EntityStore) Option {
	return func(x *Clients) {
		x.entityStore = store
	}
}

func WithRepositoryFetcher(fetcher interfaces.RepositoryFetcher) Option {
	return func(x *Clients) {
		x.repositoryFetcher = fetcher
	}
}

func WithPipelineFetcher(fetcher interfaces.PipelineFetcher) Option {
	return func(x *Clients) {
		x.pipelineFetcher = fetcher
	}
}

func WithCloneExecutor(executor interfaces.CloneExecutor) Option {
	return func(x *Clients) {
		x.cloneExecutor = executor
	}
}

func WithGitProbe(probe interfaces.GitProbe) Option {
	return func(x *Clients) {
		x.gitProbe = probe
	}
}
