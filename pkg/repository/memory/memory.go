// Package memory is an in-process EntityStore used by tests and by
// `--store memory`.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/interfaces"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/domain/urlkey"
	"github.com/secmon-lab/devlink/pkg/repository"
)

type store struct {
	mu sync.RWMutex

	repos     map[string]map[types.GitHubRepoID]model.RemoteRepository
	prs       map[string]map[types.PullRequestID]model.PullRequest
	pipelines map[model.ProjectScope]map[types.PipelineID]model.Pipeline
	fetches   map[model.ScopeKind]map[string]time.Time
}

// New creates a new in-memory entity store
func New() interfaces.EntityStore {
	return &store{
		repos:     make(map[string]map[types.GitHubRepoID]model.RemoteRepository),
		prs:       make(map[string]map[types.PullRequestID]model.PullRequest),
		pipelines: make(map[model.ProjectScope]map[types.PipelineID]model.Pipeline),
		fetches:   make(map[model.ScopeKind]map[string]time.Time),
	}
}

func (s *store) markFetched(kind model.ScopeKind, key string, at time.Time) {
	m, ok := s.fetches[kind]
	if !ok {
		m = make(map[string]time.Time)
		s.fetches[kind] = m
	}
	if prev, ok := m[key]; !ok || at.After(prev) {
		m[key] = at
	}
}

func laterOf(existing, incoming time.Time) time.Time {
	if existing.After(incoming) {
		return existing
	}
	return incoming
}

// Repositories

func (s *store) UpsertRepositories(ctx context.Context, scope model.OwnerScope, repos []model.RemoteRepository, fetchedAt time.Time) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	for i := range repos {
		if err := repos[i].Validate(); err != nil {
			return types.WrapAs(repository.ErrInvalidInput, err, "invalid repository", goerr.V("owner", scope.Owner))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.repos[scope.Owner]
	if !ok {
		rows = make(map[types.GitHubRepoID]model.RemoteRepository)
		s.repos[scope.Owner] = rows
	}

	for _, repo := range repos {
		repo.Owner = scope.Owner
		repo.LastFetchedAt = fetchedAt
		repo.LocalPath = ""
		if existing, ok := rows[repo.ID]; ok {
			repo.LocalPath = existing.LocalPath
			repo.LastFetchedAt = laterOf(existing.LastFetchedAt, fetchedAt)
		}
		rows[repo.ID] = repo
	}

	s.markFetched(model.ScopeKindRepository, scope.Key(), fetchedAt)
	return nil
}

func (s *store) ListRepositories(ctx context.Context, scope model.OwnerScope) ([]model.RemoteRepository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.RemoteRepository
	for _, repo := range s.repos[scope.Owner] {
		out = append(out, repo)
	}
	repository.SortRepositories(out)
	return out, nil
}

func (s *store) LastRepositoryFetch(ctx context.Context, scope model.OwnerScope) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *time.Time
	for _, repo := range s.repos[scope.Owner] {
		if latest == nil || repo.LastFetchedAt.After(*latest) {
			t := repo.LastFetchedAt
			latest = &t
		}
	}
	return latest, nil
}

func (s *store) ClearRepositories(ctx context.Context, scope model.OwnerScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.repos, scope.Owner)
	delete(s.fetches[model.ScopeKindRepository], scope.Key())
	return nil
}

func (s *store) ListAllRepositories(ctx context.Context) ([]model.RemoteRepository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.RemoteRepository
	for _, rows := range s.repos {
		for _, repo := range rows {
			out = append(out, repo)
		}
	}
	repository.SortRepositories(out)
	return out, nil
}

func (s *store) FindRepositoriesByURLKey(ctx context.Context, key string) ([]model.RemoteRepository, error) {
	if key == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.RemoteRepository
	for _, rows := range s.repos {
		for _, repo := range rows {
			if urlkey.Key(repo.HTMLURL) == key {
				out = append(out, repo)
			}
		}
	}
	repository.SortRepositories(out)
	return out, nil
}

func (s *store) SetLocalPath(ctx context.Context, repoID types.GitHubRepoID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, rows := range s.repos {
		if repo, ok := rows[repoID]; ok {
			repo.LocalPath = path
			rows[repoID] = repo
			found = true
		}
	}
	if !found {
		return goerr.Wrap(repository.ErrNotFound, "repository not found", goerr.V("repoID", repoID))
	}
	return nil
}

// Pull requests

func (s *store) UpsertPullRequests(ctx context.Context, scope model.OwnerScope, prs []model.PullRequest, fetchedAt time.Time) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	for i := range prs {
		if err := prs[i].Validate(); err != nil {
			return types.WrapAs(repository.ErrInvalidInput, err, "invalid pull request", goerr.V("owner", scope.Owner))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.prs[scope.Owner]
	if !ok {
		rows = make(map[types.PullRequestID]model.PullRequest)
		s.prs[scope.Owner] = rows
	}

	for _, pr := range prs {
		pr.Owner = scope.Owner
		pr.LastFetchedAt = fetchedAt
		if existing, ok := rows[pr.ID]; ok {
			pr.LastFetchedAt = laterOf(existing.LastFetchedAt, fetchedAt)
		}
		rows[pr.ID] = pr
	}

	s.markFetched(model.ScopeKindPullRequest, scope.Key(), fetchedAt)
	return nil
}

func (s *store) ListPullRequests(ctx context.Context, scope model.OwnerScope) ([]model.PullRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PullRequest
	for _, pr := range s.prs[scope.Owner] {
		out = append(out, pr)
	}
	repository.SortPullRequests(out)
	return out, nil
}

func (s *store) FindPullRequestsByRepository(ctx context.Context, fullName string) ([]model.PullRequest, error) {
	if fullName == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PullRequest
	for _, rows := range s.prs {
		for _, pr := range rows {
			if strings.EqualFold(pr.RepositoryFullName, fullName) {
				out = append(out, pr)
			}
		}
	}
	repository.SortPullRequests(out)
	return out, nil
}

func (s *store) LastPullRequestFetch(ctx context.Context, scope model.OwnerScope) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *time.Time
	for _, pr := range s.prs[scope.Owner] {
		if latest == nil || pr.LastFetchedAt.After(*latest) {
			t := pr.LastFetchedAt
			latest = &t
		}
	}
	return latest, nil
}

func (s *store) ClearPullRequests(ctx context.Context, scope model.OwnerScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.prs, scope.Owner)
	delete(s.fetches[model.ScopeKindPullRequest], scope.Key())
	return nil
}

// Pipelines

func (s *store) UpsertPipelines(ctx context.Context, scope model.ProjectScope, pipelines []model.Pipeline, fetchedAt time.Time) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	for i := range pipelines {
		if err := pipelines[i].Validate(); err != nil {
			return types.WrapAs(repository.ErrInvalidInput, err, "invalid pipeline", goerr.V("scope", scope.Key()))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.pipelines[scope]
	if !ok {
		rows = make(map[types.PipelineID]model.Pipeline)
		s.pipelines[scope] = rows
	}

	for _, p := range pipelines {
		p.Organization = scope.Organization
		p.Project = scope.Project
		p.LastFetchedAt = fetchedAt
		if p.LastBuildID != nil {
			id := *p.LastBuildID
			p.LastBuildID = &id
		}
		if existing, ok := rows[p.ID]; ok {
			p.LastFetchedAt = laterOf(existing.LastFetchedAt, fetchedAt)
		}
		rows[p.ID] = p
	}

	s.markFetched(model.ScopeKindPipeline, scope.Key(), fetchedAt)
	return nil
}

func (s *store) ListPipelines(ctx context.Context, scope model.ProjectScope) ([]model.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Pipeline
	for _, p := range s.pipelines[scope] {
		out = append(out, p)
	}
	repository.SortPipelines(out)
	return out, nil
}

func (s *store) LastPipelineFetch(ctx context.Context, scope model.ProjectScope) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *time.Time
	for _, p := range s.pipelines[scope] {
		if latest == nil || p.LastFetchedAt.After(*latest) {
			t := p.LastFetchedAt
			latest = &t
		}
	}
	return latest, nil
}

func (s *store) ClearPipelines(ctx context.Context, scope model.ProjectScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pipelines, scope)
	delete(s.fetches[model.ScopeKindPipeline], scope.Key())
	return nil
}

func (s *store) FindPipelinesByRepositoryKey(ctx context.Context, key string) ([]model.Pipeline, error) {
	if key == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Pipeline
	for _, rows := range s.pipelines {
		for _, p := range rows {
			if urlkey.Key(p.RepositoryURL) == key {
				out = append(out, p)
			}
		}
	}
	repository.SortPipelines(out)
	return out, nil
}

func (s *store) ScopeFetchedAt(ctx context.Context, kind model.ScopeKind, scopeKey string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	at, ok := s.fetches[kind][scopeKey]
	if !ok {
		return nil, nil
	}
	return &at, nil
}
