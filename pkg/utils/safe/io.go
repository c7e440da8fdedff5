package safe

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/secmon-lab/devlink/pkg/utils/logging"
)

// Close closes the resource and logs a failure. io.EOF is ignored.
func Close(closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil && !errors.Is(err, io.EOF) {
		logging.Default().Warn("Fail to close resource", slog.Any("error", err))
	}
}

// RemoveAll removes path and everything under it. A failure is logged with the
// context logger.
func RemoveAll(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		logging.From(ctx).Warn("Fail to remove directory", slog.String("path", path), slog.Any("error", err))
	}
}

// Rollback rolls back tx unless it was already committed.
func Rollback(tx *sql.Tx) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logging.Default().Warn("Fail to rollback transaction", slog.Any("error", err))
	}
}
