package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/repository/firestore"
	"github.com/urfave/cli/v3"
)

// Firestore configures the shared entity store used with `--store firestore`.
type Firestore struct {
	projectID  string
	databaseID string
}

func (x *Firestore) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Google Cloud project ID of the Firestore database",
			Category:    "Store",
			Destination: &x.projectID,
			Sources:     cli.EnvVars("DEVLINK_FIRESTORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Category:    "Store",
			Value:       "(default)",
			Destination: &x.databaseID,
			Sources:     cli.EnvVars("DEVLINK_FIRESTORE_DATABASE_ID"),
		},
	}
}

func (x *Firestore) New(ctx context.Context) (*firestore.Store, error) {
	if x.projectID == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "--firestore-project-id is required for firestore store")
	}
	return firestore.New(ctx, x.projectID, x.databaseID)
}

func (x Firestore) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("projectID", x.projectID),
		slog.String("databaseID", x.databaseID),
	)
}
