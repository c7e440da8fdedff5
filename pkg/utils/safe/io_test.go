package safe_test

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/devlink/pkg/utils/safe"
	_ "modernc.org/sqlite"
)

type eofCloser struct{ closed bool }

func (x *eofCloser) Close() error {
	x.closed = true
	return io.EOF
}

func TestClose(t *testing.T) {
	safe.Close(io.NopCloser(bytes.NewReader([]byte("test"))))
	safe.Close(nil)

	c := &eofCloser{}
	safe.Close(c)
	gt.True(t, c.closed)
}

func TestRemoveAll(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	dir := filepath.Join(root, "partial-clone")
	gt.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "objects"), 0o755))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o644))

	safe.RemoveAll(ctx, dir)
	_, err := os.Stat(dir)
	gt.True(t, os.IsNotExist(err))

	safe.RemoveAll(ctx, filepath.Join(root, "missing"))
	safe.RemoveAll(ctx, "")
}

func TestRollback(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "rollback.db"))
	gt.NoError(t, err)
	defer safe.Close(db)

	_, err = db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY)")
	gt.NoError(t, err)

	t.Run("uncommitted insert is discarded", func(t *testing.T) {
		tx, err := db.Begin()
		gt.NoError(t, err)
		_, err = tx.Exec("INSERT INTO items (id) VALUES (1)")
		gt.NoError(t, err)
		safe.Rollback(tx)

		var n int
		gt.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&n))
		gt.V(t, n).Equal(0)
	})

	t.Run("committed transaction is left alone", func(t *testing.T) {
		tx, err := db.Begin()
		gt.NoError(t, err)
		_, err = tx.Exec("INSERT INTO items (id) VALUES (2)")
		gt.NoError(t, err)
		gt.NoError(t, tx.Commit())
		safe.Rollback(tx)

		var n int
		gt.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&n))
		gt.V(t, n).Equal(1)
	})

	safe.Rollback(nil)
}
