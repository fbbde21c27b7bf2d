package postgres

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/doug-martin/goqu/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libraryapi/library-server/internal/store"
	"github.com/libraryapi/library-server/internal/store/storetest"
)

// dsnEnv names the database used by these tests. Every table in it is truncated.
const dsnEnv = "LIBRARY_TEST_POSTGRES_DSN"

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s, err := Open(ctx, dsn, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.pool.Exec(ctx, "TRUNCATE loans, books RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestBookConditions(t *testing.T) {
	ds := goqu.Dialect(dialectPostgres).From(tableBooks).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(bookConditions(store.BookFilter{Title: "100%", ISBN: "42"})...)

	query, args, err := toSQL(ds)
	require.NoError(t, err)

	assert.Contains(t, query, `"title" ILIKE $1`)
	assert.Contains(t, query, `"isbn" = $2`)
	assert.Equal(t, []any{`%100\%%`, "42"}, args)

	assert.Empty(t, bookConditions(store.BookFilter{}))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `\\`, escapeLike(`\`))
	assert.Equal(t, "plain", escapeLike("plain"))
}
