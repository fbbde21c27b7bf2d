package badger

import (
	"context"
	"log/slog"
	"os"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libraryapi/library-server/internal/domain"
	"github.com/libraryapi/library-server/internal/store"
	"github.com/libraryapi/library-server/internal/store/storetest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestStore_InMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := OpenInMemory(testLogger())
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestIDsSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, testLogger())
	require.NoError(t, err)
	first := storetest.MustCreateBook(t, s, "First", "A", "1")
	require.NoError(t, s.Close())

	s, err = Open(dir, testLogger())
	require.NoError(t, err)
	defer s.Close()

	second := storetest.MustCreateBook(t, s, "Second", "B", "2")
	assert.Greater(t, second.ID, first.ID)

	got, err := s.GetBook(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "First", got.Title)
}

func TestReturnedLoanDropsActiveIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := storetest.MustCreateBook(t, s, "Indexed", "A", "42")
	loan := &domain.Loan{BookID: b.ID, Customer: "ana"}
	require.NoError(t, s.CreateLoan(ctx, loan))

	activeKey := s.loans.uniqueKey("active", encodeID(b.ID))
	assertKey(t, s, activeKey, true)

	loan.Returned = true
	require.NoError(t, s.UpdateLoan(ctx, loan))
	assertKey(t, s, activeKey, false)

	// The book index keeps the returned loan reachable.
	page, err := s.FindLoansByBook(ctx, b.ID, store.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalElements)
}

func TestUpdateBookKeepsISBNIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := storetest.MustCreateBook(t, s, "Title", "A", "978")
	require.NoError(t, s.UpdateBook(ctx, &domain.Book{ID: b.ID, Title: "Renamed", Author: "A", ISBN: "ignored"}))

	got, err := s.GetBookByISBN(ctx, "978")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "978", got.ISBN)

	exists, err := s.BookExistsByISBN(ctx, "ignored")
	require.NoError(t, err)
	assert.False(t, exists)
}

func assertKey(t *testing.T, s *Store, key []byte, want bool) {
	t.Helper()
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if want {
		assert.NoError(t, err, "key %s should exist", key)
	} else {
		assert.ErrorIs(t, err, badgerdb.ErrKeyNotFound, "key %s should be gone", key)
	}
}
