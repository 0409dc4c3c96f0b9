package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	sqldb, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })
	require.NoError(t, InitSchema(context.Background(), sqldb))
	return sqldb
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	sqldb := openTestDB(t)
	require.NoError(t, InitSchema(context.Background(), sqldb))
}

func TestWithTxCommits(t *testing.T) {
	sqldb := openTestDB(t)
	ctx := context.Background()

	err := WithTx(ctx, sqldb, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO contigs (name, length) VALUES ('chr1', 10)`)
		return err
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, sqldb.QueryRowContext(ctx, `SELECT COUNT(*) FROM contigs`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	sqldb := openTestDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := WithTx(ctx, sqldb, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO contigs (name, length) VALUES ('chr1', 10)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, sqldb.QueryRowContext(ctx, `SELECT COUNT(*) FROM contigs`).Scan(&n))
	assert.Equal(t, 0, n)
}
