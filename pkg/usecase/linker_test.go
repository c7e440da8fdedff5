package usecase_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/infra"
	"github.com/secmon-lab/devlink/pkg/infra/gitlocal"
	"github.com/secmon-lab/devlink/pkg/repository/memory"
	"github.com/secmon-lab/devlink/pkg/usecase"
	"github.com/secmon-lab/devlink/pkg/utils/testutil"
)

func newLinkerUseCase(t *testing.T) (*usecase.UseCase, func(owner string) []model.RemoteRepository) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	gt.NoError(t, store.UpsertRepositories(ctx, model.OwnerScope{Owner: "alice"}, []model.RemoteRepository{
		{ID: 1, Name: "api", FullName: "acme/api", HTMLURL: "https://github.com/acme/api"},
		{ID: 2, Name: "web", FullName: "acme/web", HTMLURL: "https://github.com/acme/web"},
		{ID: 3, Name: "cli", FullName: "acme/cli", HTMLURL: "https://github.com/acme/cli"},
	}, baseTime))

	uc := usecase.New(infra.New(
		infra.WithEntityStore(store),
		infra.WithGitProbe(gitlocal.New()),
	))
	list := func(owner string) []model.RemoteRepository {
		repos, err := store.ListRepositories(ctx, model.OwnerScope{Owner: owner})
		gt.NoError(t, err)
		return repos
	}
	return uc, list
}

func localPaths(repos []model.RemoteRepository) map[string]string {
	paths := map[string]string{}
	for _, repo := range repos {
		paths[repo.FullName] = repo.LocalPath
	}
	return paths
}

func TestScanAndLink(t *testing.T) {
	ctx := context.Background()
	uc, list := newLinkerUseCase(t)
	root := t.TempDir()

	testutil.InitClone(t, filepath.Join(root, "api"), "git@github.com:acme/api.git")
	testutil.InitClone(t, filepath.Join(root, "web-a"), "https://github.com/acme/web.git")
	testutil.InitClone(t, filepath.Join(root, "web-b"), "ssh://git@github.com/ACME/web")
	testutil.InitClone(t, filepath.Join(root, "other"), "https://github.com/someone/else")
	testutil.InitClone(t, filepath.Join(root, "scratch"), "")
	gt.NoError(t, os.Mkdir(filepath.Join(root, "notes"), 0o755))

	report, err := uc.ScanAndLink(ctx, root, "alice")
	gt.NoError(t, err)
	gt.V(t, report.Scanned).Equal(5)
	gt.V(t, len(report.Linked)).Equal(2)
	gt.V(t, len(report.Skipped)).Equal(3)

	paths := localPaths(list("alice"))
	gt.V(t, paths["acme/api"]).Equal(filepath.Join(root, "api"))
	gt.V(t, paths["acme/web"]).Equal(filepath.Join(root, "web-b"))
	gt.V(t, paths["acme/cli"]).Equal("")

	superseded := false
	for _, s := range report.Skipped {
		if s.Path == filepath.Join(root, "web-a") {
			superseded = true
		}
	}
	gt.True(t, superseded)

	t.Run("rescan is stable", func(t *testing.T) {
		again, err := uc.ScanAndLink(ctx, root, "alice")
		gt.NoError(t, err)
		gt.V(t, len(again.Linked)).Equal(2)
		gt.V(t, localPaths(list("alice"))).Equal(paths)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := uc.ScanAndLink(ctx, "", "alice")
		gt.True(t, errors.Is(err, types.ErrInvalidOption))

		_, err = uc.ScanAndLink(ctx, root, "")
		gt.Error(t, err)
	})

	t.Run("missing work folder", func(t *testing.T) {
		_, err := uc.ScanAndLink(ctx, filepath.Join(root, "missing"), "alice")
		gt.Error(t, err)
	})
}

func TestCleanupInvalidLinks(t *testing.T) {
	ctx := context.Background()
	uc, list := newLinkerUseCase(t)
	root := t.TempDir()

	apiPath := filepath.Join(root, "api")
	webPath := filepath.Join(root, "web")
	cliPath := filepath.Join(root, "cli")
	testutil.InitClone(t, apiPath, "https://github.com/acme/api")
	testutil.InitClone(t, webPath, "https://github.com/acme/web")
	testutil.InitClone(t, cliPath, "https://github.com/acme/cli")

	report, err := uc.ScanAndLink(ctx, root, "alice")
	gt.NoError(t, err)
	gt.V(t, len(report.Linked)).Equal(3)

	// web is deleted, cli is repointed at another remote
	gt.NoError(t, os.RemoveAll(webPath))
	testutil.SetOrigin(t, cliPath, "https://github.com/acme/fork")

	cleared, err := uc.CleanupInvalidLinks(ctx, "alice")
	gt.NoError(t, err)
	gt.V(t, cleared).Equal(2)

	paths := localPaths(list("alice"))
	gt.V(t, paths["acme/api"]).Equal(apiPath)
	gt.V(t, paths["acme/web"]).Equal("")
	gt.V(t, paths["acme/cli"]).Equal("")

	cleared, err = uc.CleanupInvalidLinks(ctx, "alice")
	gt.NoError(t, err)
	gt.V(t, cleared).Equal(0)
}

func TestInvalidLinkReason(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	probe := gitlocal.New()

	good := filepath.Join(root, "good")
	testutil.InitClone(t, good, "git@github.com:acme/api.git")
	noOrigin := filepath.Join(root, "no-origin")
	testutil.InitClone(t, noOrigin, "")
	plain := filepath.Join(root, "plain")
	gt.NoError(t, os.Mkdir(plain, 0o755))

	testCases := map[string]struct {
		path   string
		reason string
	}{
		"valid":          {path: good, reason: ""},
		"missing":        {path: filepath.Join(root, "gone"), reason: "path does not exist"},
		"not a worktree": {path: plain, reason: "not a git working tree"},
		"no origin":      {path: noOrigin, reason: "origin is unreadable"},
	}

	for title, tc := range testCases {
		t.Run(title, func(t *testing.T) {
			repo := model.RemoteRepository{ID: 1, FullName: "acme/api", HTMLURL: "https://github.com/acme/api", LocalPath: tc.path}
			gt.V(t, usecase.InvalidLinkReasonForTest(ctx, probe, repo)).Equal(tc.reason)
		})
	}

	t.Run("origin mismatch", func(t *testing.T) {
		repo := model.RemoteRepository{ID: 1, FullName: "acme/web", HTMLURL: "https://github.com/acme/web", LocalPath: good}
		gt.V(t, usecase.InvalidLinkReasonForTest(ctx, probe, repo)).Equal("origin does not match")
	})
}

func TestCloneRepository(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, executor *cloneExecutor) (*usecase.UseCase, func() []model.RemoteRepository) {
		store := memory.New()
		gt.NoError(t, store.UpsertRepositories(ctx, model.OwnerScope{Owner: "alice"}, []model.RemoteRepository{
			{ID: 1, Name: "api", FullName: "acme/api", HTMLURL: "https://github.com/acme/api"},
		}, baseTime))
		uc := usecase.New(infra.New(
			infra.WithEntityStore(store),
			infra.WithCloneExecutor(executor),
		))
		return uc, func() []model.RemoteRepository {
			repos, err := store.ListRepositories(ctx, model.OwnerScope{Owner: "alice"})
			gt.NoError(t, err)
			return repos
		}
	}

	t.Run("success links the clone", func(t *testing.T) {
		executor := &cloneExecutor{}
		uc, list := setup(t, executor)
		root := t.TempDir()

		path, err := uc.CloneRepository(ctx, "https://github.com/acme/api.git", root, "api", 1)
		gt.NoError(t, err)
		gt.V(t, path).Equal(filepath.Join(root, "api"))
		gt.V(t, len(executor.calls)).Equal(1)
		gt.V(t, list()[0].LocalPath).Equal(path)
	})

	t.Run("executor failure leaves repository unlinked", func(t *testing.T) {
		executor := &cloneExecutor{err: goerr.New("authentication required")}
		uc, list := setup(t, executor)

		path, err := uc.CloneRepository(ctx, "https://github.com/acme/api.git", t.TempDir(), "api", 1)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, types.ErrCloneFailed))
		gt.V(t, path).Equal("")
		gt.V(t, list()[0].LocalPath).Equal("")
	})

	t.Run("existing destination", func(t *testing.T) {
		executor := &cloneExecutor{}
		uc, _ := setup(t, executor)
		root := t.TempDir()
		gt.NoError(t, os.Mkdir(filepath.Join(root, "api"), 0o755))

		_, err := uc.CloneRepository(ctx, "https://github.com/acme/api.git", root, "api", 1)
		gt.True(t, errors.Is(err, types.ErrCloneFailed))
		gt.V(t, len(executor.calls)).Equal(0)
	})

	t.Run("invalid name", func(t *testing.T) {
		uc, _ := setup(t, &cloneExecutor{})
		for _, name := range []string{"", "..", "a/b", `a\b`} {
			_, err := uc.CloneRepository(ctx, "https://github.com/acme/api.git", t.TempDir(), name, 1)
			gt.True(t, errors.Is(err, types.ErrInvalidOption))
		}
	})
}

func TestHasSolutionFile(t *testing.T) {
	root := t.TempDir()
	gt.False(t, usecase.HasSolutionFile(root))
	gt.False(t, usecase.HasSolutionFile(""))

	gt.NoError(t, os.WriteFile(filepath.Join(root, "App.sln"), []byte(""), 0o644))
	gt.True(t, usecase.HasSolutionFile(root))
}
