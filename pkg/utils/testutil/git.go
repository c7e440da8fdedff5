package testutil

import (
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/m-mizutani/gt"
)

// InitClone creates an empty working tree at path. When origin is not empty it
// is registered as the origin remote.
func InitClone(t *testing.T, path, origin string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInit(path, false)
	gt.NoError(t, err)
	if origin != "" {
		_, err = repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{origin}})
		gt.NoError(t, err)
	}
	return repo
}

// SetOrigin replaces the origin remote of the working tree at path.
func SetOrigin(t *testing.T, path, origin string) {
	t.Helper()
	repo, err := git.PlainOpen(path)
	gt.NoError(t, err)
	if _, err := repo.Remote("origin"); err == nil {
		gt.NoError(t, repo.DeleteRemote("origin"))
	}
	_, err = repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{origin}})
	gt.NoError(t, err)
}
