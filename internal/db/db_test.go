package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: Postgres}
	assert.Equal(t, "SELECT * FROM posts WHERE id = $1 AND author_id = $2",
		pg.Rebind("SELECT * FROM posts WHERE id = ? AND author_id = ?"))

	lite := &DB{Dialect: SQLite}
	assert.Equal(t, "SELECT ? ", lite.Rebind("SELECT ? "))
}

func TestForUpdate(t *testing.T) {
	assert.Equal(t, " FOR UPDATE", (&DB{Dialect: Postgres}).ForUpdate())
	assert.Empty(t, (&DB{Dialect: SQLite}).ForUpdate())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "x")
	assert.Error(t, err)
}

func TestOpenSQLiteAppliesSchema(t *testing.T) {
	d, err := Open(string(SQLite), filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	defer d.Close()

	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'
		AND name IN ('users', 'posts', 'comments', 'post_likes')`).Scan(&n))
	assert.Equal(t, 4, n)

	// applying the schema twice is harmless
	require.NoError(t, d.migrate())
}

func TestInTxRollsBack(t *testing.T) {
	d, err := Open(string(SQLite), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer d.Close()

	boom := errors.New("boom")
	err = d.InTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
			VALUES ('u1', 'alice', 'a@x.com', '', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Zero(t, n)
}
