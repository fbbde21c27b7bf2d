// Package badger implements store.Store on an embedded Badger key-value database.
//
// Uniqueness rules are kept as index keys written in the same transaction as the entity.
// Badger's optimistic transactions abort the loser of two concurrent writers with
// ErrConflict; the transaction is then replayed and sees the winner's index key.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/libraryapi/library-server/internal/domain"
	"github.com/libraryapi/library-server/internal/store"
)

const (
	bookPrefix = "book:"
	loanPrefix = "loan:"

	// Sequence leases are persisted, so a crash skips at most this many ids.
	sequenceBandwidth = 100

	maxTxnAttempts = 5
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badgerdb.DB
	logger *slog.Logger

	bookSeq *badgerdb.Sequence
	loanSeq *badgerdb.Sequence

	books *entity[domain.Book]
	loans *entity[domain.Loan]
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) a Badger database in dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	opts := badgerdb.DefaultOptions(dir)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	return open(opts, logger)
}

// OpenInMemory opens a Badger database that lives only in memory.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	opts := badgerdb.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badgerdb.Options, logger *slog.Logger) (*Store, error) {
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	bookSeq, err := db.GetSequence([]byte("seq:book"), sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("book sequence: %w", err)
	}
	loanSeq, err := db.GetSequence([]byte("seq:loan"), sequenceBandwidth)
	if err != nil {
		bookSeq.Release()
		db.Close()
		return nil, fmt.Errorf("loan sequence: %w", err)
	}

	s := &Store{
		db:      db,
		logger:  logger,
		bookSeq: bookSeq,
		loanSeq: loanSeq,
		books: newEntity(bookPrefix, func(b *domain.Book) int64 { return b.ID }).
			withUnique("isbn", func(b *domain.Book) (string, bool) {
				return b.ISBN, true
			}, store.ErrDuplicateISBN),
		loans: newEntity(loanPrefix, func(l *domain.Loan) int64 { return l.ID }).
			withUnique("active", func(l *domain.Loan) (string, bool) {
				return encodeID(l.BookID), l.IsActive()
			}, store.ErrActiveLoanExists).
			withIndex("book", func(l *domain.Loan) string {
				return encodeID(l.BookID)
			}),
	}

	logger.Info("badger store opened", "path", opts.Dir, "in_memory", opts.InMemory)

	return s, nil
}

// Ping reports an error once the database has been closed.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return nil
}

// Close releases the id sequences and closes the database.
func (s *Store) Close() error {
	s.logger.Info("closing badger store")
	return errors.Join(s.bookSeq.Release(), s.loanSeq.Release(), s.db.Close())
}

// update runs fn in a read-write transaction, replaying it when Badger reports a conflict
// with a concurrent transaction.
func (s *Store) update(ctx context.Context, fn func(txn *badgerdb.Txn) error) error {
	var err error
	for attempt := 1; attempt <= maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
		s.logger.Debug("badger transaction conflict, retrying", "attempt", attempt)
	}
	return err
}

func (s *Store) view(ctx context.Context, fn func(txn *badgerdb.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func nextID(seq *badgerdb.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	// Sequences start at zero; ids must be positive.
	return int64(n) + 1, nil
}
