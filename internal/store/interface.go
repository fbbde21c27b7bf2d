// Package store defines the persistence contract for the library server.
//
// Backends live in sub-packages (sqlite, badger, postgres). Each one enforces isbn
// uniqueness and the single-active-loan rule itself, atomically with the write; the
// checks services perform beforehand are only a fast path.
package store

import (
	"context"
	"time"

	"github.com/libraryapi/library-server/internal/domain"
)

// BookRepository persists books.
type BookRepository interface {
	// CreateBook inserts the book and assigns its ID and timestamps.
	// Returns ErrDuplicateISBN if the isbn is taken.
	CreateBook(ctx context.Context, book *domain.Book) error

	// GetBook returns ErrNotFound if no book has the id.
	GetBook(ctx context.Context, id int64) (*domain.Book, error)

	// GetBookByISBN returns ErrNotFound if no book has the isbn.
	GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error)

	BookExistsByISBN(ctx context.Context, isbn string) (bool, error)

	// UpdateBook persists title and author. The stored isbn is never changed.
	// Returns ErrNotFound if the book does not exist.
	UpdateBook(ctx context.Context, book *domain.Book) error

	// DeleteBook removes the book together with its returned loans.
	// Returns ErrActiveLoanExists if the book is out on loan, ErrNotFound if it does not exist.
	DeleteBook(ctx context.Context, id int64) error

	FindBooks(ctx context.Context, filter BookFilter, page PageRequest) (*Page[*domain.Book], error)
}

// LoanRepository persists loans.
type LoanRepository interface {
	// CreateLoan inserts the loan and assigns its ID and timestamps.
	// Returns ErrActiveLoanExists if the book already has an active loan
	// and ErrBookMissing if the book does not exist.
	CreateLoan(ctx context.Context, loan *domain.Loan) error

	// GetLoan returns ErrNotFound if no loan has the id.
	GetLoan(ctx context.Context, id int64) (*domain.Loan, error)

	// UpdateLoan persists the returned flag. Returns ErrNotFound if the loan does not exist.
	UpdateLoan(ctx context.Context, loan *domain.Loan) error

	ActiveLoanExists(ctx context.Context, bookID int64) (bool, error)

	FindLoansByBook(ctx context.Context, bookID int64, page PageRequest) (*Page[*domain.Loan], error)

	FindLoans(ctx context.Context, filter LoanFilter, page PageRequest) (*Page[*domain.Loan], error)

	// FindLateLoans returns every active loan dated strictly before cutoff.
	FindLateLoans(ctx context.Context, cutoff time.Time) ([]*domain.Loan, error)
}

// Store is a complete storage backend.
type Store interface {
	BookRepository
	LoanRepository

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}
