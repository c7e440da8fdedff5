package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/interfaces"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/repository/memory"
	"github.com/secmon-lab/devlink/pkg/repository/sqlite"
	"github.com/urfave/cli/v3"
)

// Store selects the entity store backend.
type Store struct {
	backend   string
	path      string
	firestore Firestore
}

func (x *Store) Flags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:        "store",
			Usage:       "Entity store backend [sqlite|memory|firestore]",
			Category:    "Store",
			Value:       "sqlite",
			Destination: &x.backend,
			Sources:     cli.EnvVars("DEVLINK_STORE"),
		},
		&cli.StringFlag{
			Name:        "store-path",
			Usage:       "SQLite database path. Defaults to <user cache dir>/devlink/devlink.db",
			Category:    "Store",
			Destination: &x.path,
			Sources:     cli.EnvVars("DEVLINK_STORE_PATH"),
		},
	}, x.firestore.Flags()...)
}

// DefaultPath is the database location used when --store-path is not given.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve user cache dir")
	}
	return filepath.Join(dir, "devlink", "devlink.db"), nil
}

// New opens the store. The returned function releases it.
func (x *Store) New(ctx context.Context) (interfaces.EntityStore, func(), error) {
	switch x.backend {
	case "memory":
		return memory.New(), func() {}, nil

	case "sqlite", "":
		path := x.path
		if path == "" {
			p, err := DefaultPath()
			if err != nil {
				return nil, nil, err
			}
			path = p
		}

		store, err := sqlite.New(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case "firestore":
		store, err := x.firestore.New(ctx)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, goerr.Wrap(types.ErrInvalidOption, "unknown store backend", goerr.V("store", x.backend))
	}
}

func (x Store) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", x.backend),
		slog.String("path", x.path),
		slog.Any("firestore", x.firestore),
	)
}
