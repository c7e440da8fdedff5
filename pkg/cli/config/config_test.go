package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/devlink/pkg/cli/config"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// parse runs a throwaway command so that flags are bound to their destinations.
func parse(t *testing.T, flags []cli.Flag, args ...string) {
	t.Helper()
	cmd := &cli.Command{
		Name:   "test",
		Flags:  flags,
		Action: func(ctx context.Context, c *cli.Command) error { return nil },
	}
	gt.NoError(t, cmd.Run(context.Background(), append([]string{"test"}, args...)))
}

func TestGitHub(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		var cfg config.GitHub
		parse(t, cfg.Flags())
		client, err := cfg.New()
		gt.NoError(t, err)
		gt.True(t, client == nil)
	})

	t.Run("token", func(t *testing.T) {
		var cfg config.GitHub
		parse(t, cfg.Flags(), "--github-token", "ghp_test", "--github-owner", "alice", "--github-team", "infra", "--github-team", "web")
		client, err := cfg.New()
		gt.NoError(t, err)
		gt.True(t, client != nil)
		gt.V(t, cfg.Owner()).Equal("alice")

		owner, err := client.CurrentUser(context.Background())
		gt.NoError(t, err)
		gt.V(t, owner).Equal("alice")
	})

	t.Run("app without owner", func(t *testing.T) {
		var cfg config.GitHub
		parse(t, cfg.Flags(), "--github-app-id", "1", "--github-app-install-id", "2", "--github-app-private-key", "pem")
		_, err := cfg.New()
		gt.True(t, errors.Is(err, types.ErrInvalidOption))
	})
}

func TestAzureDevOps(t *testing.T) {
	var cfg config.AzureDevOps
	parse(t, cfg.Flags(), "--azure-devops-organization", "acme", "--azure-devops-project", "teamA")
	gt.V(t, cfg.Scope()).Equal(model.ProjectScope{Organization: "acme", Project: "teamA"})

	client, err := cfg.New()
	gt.NoError(t, err)
	gt.True(t, client == nil)

	var withToken config.AzureDevOps
	parse(t, withToken.Flags(), "--azure-devops-token", "pat")
	client, err = withToken.New()
	gt.NoError(t, err)
	gt.True(t, client != nil)
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite at path", func(t *testing.T) {
		var cfg config.Store
		path := filepath.Join(t.TempDir(), "cache", "devlink.db")
		parse(t, cfg.Flags(), "--store-path", path)

		store, closer, err := cfg.New(ctx)
		gt.NoError(t, err)
		defer closer()
		gt.True(t, store != nil)

		_, err = os.Stat(path)
		gt.NoError(t, err)
	})

	t.Run("memory", func(t *testing.T) {
		var cfg config.Store
		parse(t, cfg.Flags(), "--store", "memory")
		store, closer, err := cfg.New(ctx)
		gt.NoError(t, err)
		defer closer()
		gt.True(t, store != nil)
	})

	t.Run("unknown backend", func(t *testing.T) {
		var cfg config.Store
		parse(t, cfg.Flags(), "--store", "redis")
		_, _, err := cfg.New(ctx)
		gt.True(t, errors.Is(err, types.ErrInvalidOption))
	})

	t.Run("firestore requires project", func(t *testing.T) {
		var cfg config.Store
		parse(t, cfg.Flags(), "--store", "firestore")
		_, _, err := cfg.New(ctx)
		gt.True(t, errors.Is(err, types.ErrInvalidOption))
	})
}

func TestLocal(t *testing.T) {
	var cfg config.Local
	parse(t, cfg.Flags())
	folder, err := cfg.WorkFolder()
	gt.NoError(t, err)
	gt.V(t, folder).Equal("")

	home, err := os.UserHomeDir()
	gt.NoError(t, err)
	parse(t, cfg.Flags(), "--work-folder", "~/src")
	folder, err = cfg.WorkFolder()
	gt.NoError(t, err)
	gt.V(t, folder).Equal(filepath.Join(home, "src"))
}
