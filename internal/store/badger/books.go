package badger

import (
	"context"
	"errors"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/libraryapi/library-server/internal/domain"
	"github.com/libraryapi/library-server/internal/store"
)

// CreateBook assigns the next book id and writes the book with its isbn index key.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	id, err := nextID(s.bookSeq)
	if err != nil {
		return err
	}
	book.ID = id
	book.InitTimestamps()

	err = s.update(ctx, func(txn *badgerdb.Txn) error {
		return s.books.insert(txn, book)
	})
	if err != nil {
		book.ID = 0
		return err
	}
	return nil
}

// GetBook returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	var book *domain.Book
	err := s.view(ctx, func(txn *badgerdb.Txn) error {
		var err error
		book, err = s.books.get(txn, id)
		return err
	})
	return book, err
}

// GetBookByISBN returns store.ErrNotFound if no book has the isbn.
func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	var book *domain.Book
	err := s.view(ctx, func(txn *badgerdb.Txn) error {
		id, err := s.books.lookup(txn, "isbn", isbn)
		if err != nil {
			return err
		}
		book, err = s.books.get(txn, id)
		return err
	})
	return book, err
}

// BookExistsByISBN checks the isbn index key.
func (s *Store) BookExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	var exists bool
	err := s.view(ctx, func(txn *badgerdb.Txn) error {
		var err error
		exists, err = s.books.exists(txn, "isbn", isbn)
		return err
	})
	return exists, err
}

// UpdateBook rewrites title and author; the stored isbn always wins.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	book.Touch()

	return s.update(ctx, func(txn *badgerdb.Txn) error {
		current, err := s.books.get(txn, book.ID)
		if err != nil {
			return err
		}
		current.ApplyEdit(book)
		current.UpdatedAt = book.UpdatedAt
		return s.books.replace(txn, current)
	})
}

// DeleteBook removes the book and its loan history unless a loan is still active.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	return s.update(ctx, func(txn *badgerdb.Txn) error {
		if _, err := s.books.get(txn, id); err != nil {
			return err
		}

		active, err := s.loans.exists(txn, "active", encodeID(id))
		if err != nil {
			return err
		}
		if active {
			return store.ErrActiveLoanExists
		}

		loanIDs, err := s.loans.idsByIndex(txn, "book", encodeID(id))
		if err != nil {
			return err
		}
		for _, loanID := range loanIDs {
			if err := s.loans.remove(txn, loanID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}

		return s.books.remove(txn, id)
	})
}

// FindBooks filters in memory, except for isbn lookups which use the index.
func (s *Store) FindBooks(ctx context.Context, filter store.BookFilter, page store.PageRequest) (*store.Page[*domain.Book], error) {
	var matched []*domain.Book

	err := s.view(ctx, func(txn *badgerdb.Txn) error {
		if filter.ISBN != "" {
			id, err := s.books.lookup(txn, "isbn", filter.ISBN)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			book, err := s.books.get(txn, id)
			if err != nil {
				return err
			}
			if filter.Matches(book) {
				matched = append(matched, book)
			}
			return nil
		}

		return s.books.scan(txn, func(b *domain.Book) bool {
			if filter.Matches(b) {
				matched = append(matched, b)
			}
			return true
		})
	})
	if err != nil {
		return nil, err
	}

	return store.SlicePage(matched, page), nil
}
