package testhelper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/devlink/pkg/domain/interfaces"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/domain/urlkey"
	"github.com/secmon-lab/devlink/pkg/repository"
)

// TestAll runs all test cases for EntityStore
// This is the main entry point for testing any EntityStore implementation
func TestAll(t *testing.T, store interfaces.EntityStore) {
	t.Run("RepositoryUpsertAndList", func(t *testing.T) {
		TestRepositoryUpsertAndList(t, store)
	})
	t.Run("RepositoryUpsertIdempotent", func(t *testing.T) {
		TestRepositoryUpsertIdempotent(t, store)
	})
	t.Run("RepositoryScopeIsolation", func(t *testing.T) {
		TestRepositoryScopeIsolation(t, store)
	})
	t.Run("LocalPathSurvivesUpsert", func(t *testing.T) {
		TestLocalPathSurvivesUpsert(t, store)
	})
	t.Run("FindRepositoriesByURLKey", func(t *testing.T) {
		TestFindRepositoriesByURLKey(t, store)
	})
	t.Run("PullRequestOrdering", func(t *testing.T) {
		TestPullRequestOrdering(t, store)
	})
	t.Run("PullRequestScopeIsolation", func(t *testing.T) {
		TestPullRequestScopeIsolation(t, store)
	})
	t.Run("FindPullRequestsByRepository", func(t *testing.T) {
		TestFindPullRequestsByRepository(t, store)
	})
	t.Run("PipelineMergeKeepsFetchTime", func(t *testing.T) {
		TestPipelineMergeKeepsFetchTime(t, store)
	})
	t.Run("PipelineScopeIsolation", func(t *testing.T) {
		TestPipelineScopeIsolation(t, store)
	})
	t.Run("FindPipelinesByRepositoryKey", func(t *testing.T) {
		TestFindPipelinesByRepositoryKey(t, store)
	})
	t.Run("FetchMarker", func(t *testing.T) {
		TestFetchMarker(t, store)
	})
	t.Run("LastFetchMonotonic", func(t *testing.T) {
		TestLastFetchMonotonic(t, store)
	})
	t.Run("InvalidInputRejectedAtomically", func(t *testing.T) {
		TestInvalidInputRejectedAtomically(t, store)
	})
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String()[:8])
}

// uniqueID keeps ids of parallel suites on a shared store apart.
func uniqueID() int64 {
	return int64(uuid.New().ID())
}

func baseTime() time.Time {
	return time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
}

func newRepo(id int64, owner, name string) model.RemoteRepository {
	return model.RemoteRepository{
		ID:        types.GitHubRepoID(id),
		Name:      name,
		FullName:  owner + "/" + name,
		HTMLURL:   "https://github.com/" + owner + "/" + name,
		Stars:     3,
		Language:  "Go",
		CreatedAt: baseTime().Add(-48 * time.Hour),
		UpdatedAt: baseTime().Add(-time.Hour),
	}
}

// TestRepositoryUpsertAndList tests insert, update in place and name ordering
func TestRepositoryUpsertAndList(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	owner := uniqueName("owner")
	scope := model.OwnerScope{Owner: owner}

	idA, idB := uniqueID(), uniqueID()
	repos := []model.RemoteRepository{
		newRepo(idB, owner, "zeta"),
		newRepo(idA, owner, "Alpha"),
	}
	repos[1].Description = "first"
	repos[1].Private = true

	gt.NoError(t, store.UpsertRepositories(ctx, scope, repos, baseTime()))

	listed, err := store.ListRepositories(ctx, scope)
	gt.NoError(t, err)
	gt.V(t, len(listed)).Equal(2)
	gt.V(t, listed[0].Name).Equal("Alpha")
	gt.V(t, listed[1].Name).Equal("zeta")
	gt.V(t, listed[0].Owner).Equal(owner)
	gt.V(t, listed[0].Description).Equal("first")
	gt.True(t, listed[0].Private)
	gt.V(t, listed[0].Language).Equal("Go")
	gt.True(t, listed[0].LastFetchedAt.Equal(baseTime()))
	gt.True(t, listed[0].CreatedAt.Equal(repos[1].CreatedAt))

	// Update in place
	updated := newRepo(idA, owner, "Alpha")
	updated.Stars = 99
	updated.Description = "second"
	gt.NoError(t, store.UpsertRepositories(ctx, scope, []model.RemoteRepository{updated}, baseTime().Add(time.Minute)))

	listed, err = store.ListRepositories(ctx, scope)
	gt.NoError(t, err)
	gt.V(t, len(listed)).Equal(2)
	gt.V(t, listed[0].Stars).Equal(99)
	gt.V(t, listed[0].Description).Equal("second")
	gt.False(t, listed[0].Private)
	gt.True(t, listed[0].LastFetchedAt.Equal(baseTime().Add(time.Minute)))
	// untouched row keeps its fetch time
	gt.True(t, listed[1].LastFetchedAt.Equal(baseTime()))
}

// TestRepositoryUpsertIdempotent tests that repeating an upsert changes nothing
func TestRepositoryUpsertIdempotent(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	owner := uniqueName("owner")
	scope := model.OwnerScope{Owner: owner}
	repos := []model.RemoteRepository{newRepo(uniqueID(), owner, "a"), newRepo(uniqueID(), owner, "b")}

	gt.NoError(t, store.UpsertRepositories(ctx, scope, repos, baseTime()))
	first, err := store.ListRepositories(ctx, scope)
	gt.NoError(t, err)

	gt.NoError(t, store.UpsertRepositories(ctx, scope, repos, baseTime()))
	second, err := store.ListRepositories(ctx, scope)
	gt.NoError(t, err)

	gt.V(t, second).Equal(first)
}

// TestRepositoryScopeIsolation tests that the same id in two owners are two rows
func TestRepositoryScopeIsolation(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	ownerA, ownerB := uniqueName("owner"), uniqueName("owner")
	id := uniqueID()

	gt.NoError(t, store.UpsertRepositories(ctx, model.OwnerScope{Owner: ownerA},
		[]model.RemoteRepository{newRepo(id, ownerA, "shared")}, baseTime()))
	gt.NoError(t, store.UpsertRepositories(ctx, model.OwnerScope{Owner: ownerB},
		[]model.RemoteRepository{newRepo(id, ownerB, "shared"), newRepo(uniqueID(), ownerB, "other")}, baseTime()))

	gt.NoError(t, store.ClearRepositories(ctx, model.OwnerScope{Owner: ownerB}))

	listedA, err := store.ListRepositories(ctx, model.OwnerScope{Owner: ownerA})
	gt.NoError(t, err)
	gt.V(t, len(listedA)).Equal(1)
	gt.V(t, listedA[0].FullName).Equal(ownerA + "/shared")

	listedB, err := store.ListRepositories(ctx, model.OwnerScope{Owner: ownerB})
	gt.NoError(t, err)
	gt.V(t, len(listedB)).Equal(0)

	// Clear is idempotent
	gt.NoError(t, store.ClearRepositories(ctx, model.OwnerScope{Owner: ownerB}))

	last, err := store.LastRepositoryFetch(ctx, model.OwnerScope{Owner: ownerB})
	gt.NoError(t, err)
	gt.True(t, last == nil)
}

// TestLocalPathSurvivesUpsert tests that re-fetching never touches the linker's field
func TestLocalPathSurvivesUpsert(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	owner := uniqueName("owner")
	scope := model.OwnerScope{Owner: owner}
	id := uniqueID()

	gt.NoError(t, store.UpsertRepositories(ctx, scope, []model.RemoteRepository{newRepo(id, owner, "app")}, baseTime()))
	gt.NoError(t, store.SetLocalPath(ctx, types.GitHubRepoID(id), "/work/app"))

	incoming := newRepo(id, owner, "app")
	incoming.LocalPath = "/somewhere/else"
	gt.NoError(t, store.UpsertRepositories(ctx, scope, []model.RemoteRepository{incoming}, baseTime().Add(time.Hour)))

	listed, err := store.ListRepositories(ctx, scope)
	gt.NoError(t, err)
	gt.V(t, listed[0].LocalPath).Equal("/work/app")

	gt.NoError(t, store.SetLocalPath(ctx, types.GitHubRepoID(id), ""))
	listed, err = store.ListRepositories(ctx, scope)
	gt.NoError(t, err)
	gt.V(t, listed[0].LocalPath).Equal("")

	err = store.SetLocalPath(ctx, types.GitHubRepoID(uniqueID()), "/nowhere")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, repository.ErrNotFound))
}

// TestFindRepositoriesByURLKey tests lookup across owners by normalized URL
func TestFindRepositoriesByURLKey(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	owner := uniqueName("Owner")
	repo := newRepo(uniqueID(), owner, "Service")
	repo.HTMLURL = "https://github.com/" + owner + "/Service/"

	gt.NoError(t, store.UpsertRepositories(ctx, model.OwnerScope{Owner: owner}, []model.RemoteRepository{repo}, baseTime()))

	found, err := store.FindRepositoriesByURLKey(ctx, urlkey.Key("git@github.com:"+owner+"/service.git"))
	gt.NoError(t, err)
	gt.V(t, len(found)).Equal(1)
	gt.V(t, found[0].ID).Equal(repo.ID)

	none, err := store.FindRepositoriesByURLKey(ctx, "")
	gt.NoError(t, err)
	gt.V(t, len(none)).Equal(0)

	all, err := store.ListAllRepositories(ctx)
	gt.NoError(t, err)
	gt.A(t, all).Longer(0)
}

// TestPullRequestOrdering tests updated-desc ordering and in-place update
func TestPullRequestOrdering(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	owner := uniqueName("owner")
	scope := model.OwnerScope{Owner: owner}
	idOld, idNew := uniqueID(), uniqueID()

	prs := []model.PullRequest{
		{ID: types.PullRequestID(idOld), Number: 1, Title: "old", RepositoryFullName: owner + "/api", Author: "alice", UpdatedAt: baseTime().Add(-2 * time.Hour)},
		{ID: types.PullRequestID(idNew), Number: 2, Title: "new", RepositoryFullName: owner + "/api", Author: "bob", Draft: true, UpdatedAt: baseTime().Add(-time.Hour)},
	}
	gt.NoError(t, store.UpsertPullRequests(ctx, scope, prs, baseTime()))

	listed, err := store.ListPullRequests(ctx, scope)
	gt.NoError(t, err)
	gt.V(t, len(listed)).Equal(2)
	gt.V(t, listed[0].Title).Equal("new")
	gt.True(t, listed[0].Draft)
	gt.V(t, listed[1].Title).Equal("old")
	gt.V(t, listed[1].Owner).Equal(owner)

	prs[0].UpdatedAt = baseTime()
	prs[0].Title = "old but touched"
	gt.NoError(t, store.UpsertPullRequests(ctx, scope, prs[:1], baseTime().Add(time.Minute)))

	listed, err = store.ListPullRequests(ctx, scope)
	gt.NoError(t, err)
	gt.V(t, len(listed)).Equal(2)
	gt.V(t, listed[0].Title).Equal("old but touched")

	last, err := store.LastPullRequestFetch(ctx, scope)
	gt.NoError(t, err)
	gt.True(t, last != nil && last.Equal(baseTime().Add(time.Minute)))
}

// TestPullRequestScopeIsolation tests that clearing one owner keeps the other
func TestPullRequestScopeIsolation(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	ownerA, ownerB := uniqueName("owner"), uniqueName("owner")
	id := types.PullRequestID(uniqueID())
	pr := model.PullRequest{ID: id, Number: 5, RepositoryFullName: "acme/api", UpdatedAt: baseTime()}

	gt.NoError(t, store.UpsertPullRequests(ctx, model.OwnerScope{Owner: ownerA}, []model.PullRequest{pr}, baseTime()))
	gt.NoError(t, store.UpsertPullRequests(ctx, model.OwnerScope{Owner: ownerB}, []model.PullRequest{pr}, baseTime()))
	gt.NoError(t, store.ClearPullRequests(ctx, model.OwnerScope{Owner: ownerA}))

	listedA, err := store.ListPullRequests(ctx, model.OwnerScope{Owner: ownerA})
	gt.NoError(t, err)
	gt.V(t, len(listedA)).Equal(0)

	listedB, err := store.ListPullRequests(ctx, model.OwnerScope{Owner: ownerB})
	gt.NoError(t, err)
	gt.V(t, len(listedB)).Equal(1)
}

// TestFindPullRequestsByRepository tests case-insensitive full name lookup across owners
func TestFindPullRequestsByRepository(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	ownerA, ownerB := uniqueName("owner"), uniqueName("owner")
	repoName := uniqueName("Org") + "/Service"

	gt.NoError(t, store.UpsertPullRequests(ctx, model.OwnerScope{Owner: ownerA}, []model.PullRequest{
		{ID: types.PullRequestID(uniqueID()), Number: 1, RepositoryFullName: repoName, UpdatedAt: baseTime().Add(-time.Hour)},
		{ID: types.PullRequestID(uniqueID()), Number: 2, RepositoryFullName: repoName + "-other", UpdatedAt: baseTime()},
	}, baseTime()))
	gt.NoError(t, store.UpsertPullRequests(ctx, model.OwnerScope{Owner: ownerB}, []model.PullRequest{
		{ID: types.PullRequestID(uniqueID()), Number: 3, RepositoryFullName: repoName, UpdatedAt: baseTime()},
	}, baseTime()))

	found, err := store.FindPullRequestsByRepository(ctx, strings.ToLower(repoName))
	gt.NoError(t, err)
	gt.V(t, len(found)).Equal(2)
	gt.V(t, found[0].Number).Equal(3)
	gt.V(t, found[1].Number).Equal(1)

	none, err := store.FindPullRequestsByRepository(ctx, "")
	gt.NoError(t, err)
	gt.V(t, len(none)).Equal(0)
}

func newPipeline(id int64, name, repoURL string) model.Pipeline {
	return model.Pipeline{
		ID:            types.PipelineID(id),
		Name:          name,
		Path:          `\team`,
		RepositoryURL: repoURL,
		QueueStatus:   "enabled",
	}
}

// TestPipelineMergeKeepsFetchTime tests the {1,2,3} then {2,3,4} merge: all four
// rows exist and row 1 keeps its original fetch time
func TestPipelineMergeKeepsFetchTime(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	scope := model.ProjectScope{Organization: "acme", Project: uniqueName("teamA")}
	t1 := baseTime()
	t2 := baseTime().Add(10 * time.Minute)

	gt.NoError(t, store.UpsertPipelines(ctx, scope, []model.Pipeline{
		newPipeline(1, "p1", ""), newPipeline(2, "p2", ""), newPipeline(3, "p3", ""),
	}, t1))
	gt.NoError(t, store.UpsertPipelines(ctx, scope, []model.Pipeline{
		newPipeline(2, "p2", ""), newPipeline(3, "p3", ""), newPipeline(4, "p4", ""),
	}, t2))

	listed, err := store.ListPipelines(ctx, scope)
	gt.NoError(t, err)
	gt.V(t, len(listed)).Equal(4)

	byID := map[types.PipelineID]model.Pipeline{}
	for _, p := range listed {
		byID[p.ID] = p
		gt.V(t, p.Organization).Equal("acme")
		gt.V(t, p.Project).Equal(scope.Project)
	}
	gt.True(t, byID[1].LastFetchedAt.Equal(t1))
	gt.True(t, byID[2].LastFetchedAt.Equal(t2))
	gt.True(t, byID[3].LastFetchedAt.Equal(t2))
	gt.True(t, byID[4].LastFetchedAt.Equal(t2))

	last, err := store.LastPipelineFetch(ctx, scope)
	gt.NoError(t, err)
	gt.True(t, last != nil && last.Equal(t2))
}

// TestPipelineScopeIsolation tests that pipeline ids are only unique per project
func TestPipelineScopeIsolation(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	org := uniqueName("org")
	scopeA := model.ProjectScope{Organization: org, Project: "teamA"}
	scopeB := model.ProjectScope{Organization: org, Project: "teamB"}
	buildID := types.BuildID(77)

	pa := newPipeline(7, "build", "")
	pa.LastBuildID = &buildID
	pa.LastBuildNumber = "20260110.1"
	pa.LastBuildStatus = "completed"
	pa.LastBuildResult = "succeeded"

	gt.NoError(t, store.UpsertPipelines(ctx, scopeA, []model.Pipeline{pa}, baseTime()))
	gt.NoError(t, store.UpsertPipelines(ctx, scopeB, []model.Pipeline{newPipeline(7, "deploy", "")}, baseTime()))

	listedA, err := store.ListPipelines(ctx, scopeA)
	gt.NoError(t, err)
	gt.V(t, len(listedA)).Equal(1)
	gt.V(t, listedA[0].Name).Equal("build")
	gt.True(t, listedA[0].LastBuildID != nil && *listedA[0].LastBuildID == buildID)
	gt.V(t, listedA[0].LastBuildResult).Equal("succeeded")

	listedB, err := store.ListPipelines(ctx, scopeB)
	gt.NoError(t, err)
	gt.V(t, len(listedB)).Equal(1)
	gt.V(t, listedB[0].Name).Equal("deploy")
	gt.True(t, listedB[0].LastBuildID == nil)

	gt.NoError(t, store.ClearPipelines(ctx, scopeA))
	listedA, err = store.ListPipelines(ctx, scopeA)
	gt.NoError(t, err)
	gt.V(t, len(listedA)).Equal(0)
	listedB, err = store.ListPipelines(ctx, scopeB)
	gt.NoError(t, err)
	gt.V(t, len(listedB)).Equal(1)
}

// TestFindPipelinesByRepositoryKey tests matching across projects with API-form URLs
func TestFindPipelinesByRepositoryKey(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	org := uniqueName("org")
	repoName := uniqueName("svc")

	gt.NoError(t, store.UpsertPipelines(ctx, model.ProjectScope{Organization: org, Project: "a"}, []model.Pipeline{
		newPipeline(1, "z-ci", "https://api.github.com/repos/org/"+repoName),
		newPipeline(2, "unrelated", "https://github.com/org/other"),
		newPipeline(3, "no-repo", ""),
	}, baseTime()))
	gt.NoError(t, store.UpsertPipelines(ctx, model.ProjectScope{Organization: org, Project: "b"}, []model.Pipeline{
		newPipeline(1, "a-release", "https://github.com/org/"+repoName+".git"),
	}, baseTime()))

	found, err := store.FindPipelinesByRepositoryKey(ctx, urlkey.Key("https://github.com/Org/"+repoName))
	gt.NoError(t, err)
	gt.V(t, len(found)).Equal(2)
	gt.V(t, found[0].Name).Equal("a-release")
	gt.V(t, found[1].Name).Equal("z-ci")

	none, err := store.FindPipelinesByRepositoryKey(ctx, "")
	gt.NoError(t, err)
	gt.V(t, len(none)).Equal(0)
}

// TestFetchMarker tests that an empty fetch still marks the scope as checked
func TestFetchMarker(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	owner := uniqueName("owner")
	scope := model.OwnerScope{Owner: owner}

	marker, err := store.ScopeFetchedAt(ctx, model.ScopeKindPullRequest, scope.Key())
	gt.NoError(t, err)
	gt.True(t, marker == nil)

	gt.NoError(t, store.UpsertPullRequests(ctx, scope, nil, baseTime()))

	marker, err = store.ScopeFetchedAt(ctx, model.ScopeKindPullRequest, scope.Key())
	gt.NoError(t, err)
	gt.True(t, marker != nil && marker.Equal(baseTime()))

	// markers are per kind
	other, err := store.ScopeFetchedAt(ctx, model.ScopeKindRepository, scope.Key())
	gt.NoError(t, err)
	gt.True(t, other == nil)

	last, err := store.LastPullRequestFetch(ctx, scope)
	gt.NoError(t, err)
	gt.True(t, last == nil)

	gt.NoError(t, store.ClearPullRequests(ctx, scope))
	marker, err = store.ScopeFetchedAt(ctx, model.ScopeKindPullRequest, scope.Key())
	gt.NoError(t, err)
	gt.True(t, marker == nil)
}

// TestLastFetchMonotonic tests that an older fetch time never moves a row backwards
func TestLastFetchMonotonic(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	owner := uniqueName("owner")
	scope := model.OwnerScope{Owner: owner}
	repo := newRepo(uniqueID(), owner, "clock")

	gt.NoError(t, store.UpsertRepositories(ctx, scope, []model.RemoteRepository{repo}, baseTime()))
	gt.NoError(t, store.UpsertRepositories(ctx, scope, []model.RemoteRepository{repo}, baseTime().Add(-time.Hour)))

	last, err := store.LastRepositoryFetch(ctx, scope)
	gt.NoError(t, err)
	gt.True(t, last != nil && last.Equal(baseTime()))

	marker, err := store.ScopeFetchedAt(ctx, model.ScopeKindRepository, scope.Key())
	gt.NoError(t, err)
	gt.True(t, marker != nil && marker.Equal(baseTime()))
}

// TestInvalidInputRejectedAtomically tests that one bad entity rejects the whole call
func TestInvalidInputRejectedAtomically(t *testing.T, store interfaces.EntityStore) {
	ctx := context.Background()
	owner := uniqueName("owner")
	scope := model.OwnerScope{Owner: owner}

	err := store.UpsertRepositories(ctx, scope, []model.RemoteRepository{
		newRepo(uniqueID(), owner, "good"),
		{ID: 0, FullName: owner + "/bad"},
	}, baseTime())
	gt.Error(t, err)
	gt.True(t, errors.Is(err, repository.ErrInvalidInput))

	listed, err := store.ListRepositories(ctx, scope)
	gt.NoError(t, err)
	gt.V(t, len(listed)).Equal(0)

	marker, err := store.ScopeFetchedAt(ctx, model.ScopeKindRepository, scope.Key())
	gt.NoError(t, err)
	gt.True(t, marker == nil)

	err = store.UpsertRepositories(ctx, model.OwnerScope{}, nil, baseTime())
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrInvalidOption))
}
