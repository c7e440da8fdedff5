// Package gitlocal inspects and creates local clones with go-git.
package gitlocal

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/interfaces"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/utils/logging"
	"github.com/secmon-lab/devlink/pkg/utils/safe"
)

// Git implements interfaces.GitProbe and interfaces.CloneExecutor.
type Git struct {
	token types.GitHubToken
}

var (
	_ interfaces.GitProbe      = (*Git)(nil)
	_ interfaces.CloneExecutor = (*Git)(nil)
)

type Option func(*Git)

// WithToken authenticates https clones with a GitHub token.
func WithToken(token types.GitHubToken) Option {
	return func(x *Git) { x.token = token }
}

func New(opts ...Option) *Git {
	g := &Git{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ListDirectories returns immediate subdirectories of path in lexicographic order.
func (x *Git) ListDirectories(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read directory", goerr.V("path", path))
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func open(path string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(path, &git.PlainOpenOptions{EnableDotGitCommonDir: true})
}

// IsWorkTree reports whether path is the root of a non-bare git working tree.
// A .git file (linked worktree or submodule) counts.
func (x *Git) IsWorkTree(path string) bool {
	if _, err := os.Stat(filepath.Join(path, ".git")); err != nil {
		return false
	}
	repo, err := open(path)
	if err != nil {
		return false
	}
	if _, err := repo.Worktree(); err != nil {
		return false
	}
	return true
}

// OriginURL returns the first URL of the "origin" remote.
func (x *Git) OriginURL(ctx context.Context, path string) (string, error) {
	repo, err := open(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open repository", goerr.V("path", path))
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return "", goerr.Wrap(err, "failed to get origin remote", goerr.V("path", path))
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", goerr.New("origin remote has no URL", goerr.V("path", path))
	}
	return urls[0], nil
}

// Clone clones url into dest. dest must not exist. A failed clone leaves no
// directory behind.
func (x *Git) Clone(ctx context.Context, url, dest string) (string, error) {
	if _, err := os.Stat(dest); err == nil {
		return "", goerr.Wrap(types.ErrCloneFailed, "destination already exists", goerr.V("dest", dest))
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", types.WrapAs(types.ErrCloneFailed, err, "failed to check destination",
			goerr.V("dest", dest))
	}

	opts := &git.CloneOptions{URL: url}
	if x.token != "" {
		if ep, err := transport.NewEndpoint(url); err == nil && (ep.Protocol == "https" || ep.Protocol == "http") {
			opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: string(x.token)}
		}
	}

	logging.From(ctx).Info("Cloning repository", slog.String("url", url), slog.String("dest", dest))

	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		safe.RemoveAll(ctx, dest)
		return "", types.WrapAs(types.ErrCloneFailed, err, "failed to clone repository",
			goerr.V("url", url), goerr.V("dest", dest))
	}

	return dest, nil
}
