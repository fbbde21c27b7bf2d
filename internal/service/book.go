// Package service holds the library's business rules: the book registry, the loan
// ledger and the overdue notifier. Services accept and return domain types and report
// failures as coded errors from internal/errors.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/libraryapi/library-server/internal/domain"
	domainerrors "github.com/libraryapi/library-server/internal/errors"
	"github.com/libraryapi/library-server/internal/normalize"
	"github.com/libraryapi/library-server/internal/store"
	"github.com/libraryapi/library-server/internal/validation"
)

// bookInput is what a caller must supply to register a book.
type bookInput struct {
	Title  string `json:"title" validate:"required,max=500"`
	Author string `json:"author" validate:"required,max=300"`
	ISBN   string `json:"isbn" validate:"required,max=32"`
}

// bookEdit is what a caller may change on a registered book.
type bookEdit struct {
	Title  string `json:"title" validate:"required,max=500"`
	Author string `json:"author" validate:"required,max=300"`
}

// BookService is the book registry. It owns book identity and isbn uniqueness.
type BookService struct {
	books     store.BookRepository
	validator *validation.Validator
	logger    *slog.Logger
}

// NewBookService creates a new book service.
func NewBookService(books store.BookRepository, validator *validation.Validator, logger *slog.Logger) *BookService {
	return &BookService{
		books:     books,
		validator: validator,
		logger:    logger,
	}
}

// Save registers a new book and returns it with its assigned id.
// Fails with DUPLICATE_ISBN if the isbn is already registered.
func (s *BookService) Save(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	in := bookInput{
		Title:  normalize.Text(book.Title),
		Author: normalize.Text(book.Author),
		ISBN:   normalize.ISBN(book.ISBN),
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	exists, err := s.books.BookExistsByISBN(ctx, in.ISBN)
	if err != nil {
		return nil, fmt.Errorf("check isbn: %w", err)
	}
	if exists {
		return nil, duplicateISBN(in.ISBN)
	}

	saved := &domain.Book{Title: in.Title, Author: in.Author, ISBN: in.ISBN}
	if err := s.books.CreateBook(ctx, saved); err != nil {
		// Lost a race with a concurrent save of the same isbn.
		if errors.Is(err, store.ErrDuplicateISBN) {
			return nil, duplicateISBN(in.ISBN)
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.logger.Info("book registered", "book_id", saved.ID, "isbn", saved.ISBN)

	return saved, nil
}

// GetByID looks a book up by id. A missing book is reported as found == false.
func (s *BookService) GetByID(ctx context.Context, id int64) (*domain.Book, bool, error) {
	return found(s.books.GetBook(ctx, id))
}

// GetByISBN looks a book up by exact (normalized) isbn.
func (s *BookService) GetByISBN(ctx context.Context, isbn string) (*domain.Book, bool, error) {
	return found(s.books.GetBookByISBN(ctx, normalize.ISBN(isbn)))
}

// Update persists the title and author of book. Its isbn is never changed.
func (s *BookService) Update(ctx context.Context, book *domain.Book) (*domain.Book, error) {
	if !book.HasID() {
		return nil, domainerrors.InvalidArgument("book id is required")
	}

	edit := bookEdit{
		Title:  normalize.Text(book.Title),
		Author: normalize.Text(book.Author),
	}
	if err := s.validator.Validate(edit); err != nil {
		return nil, err
	}

	updated := &domain.Book{ID: book.ID, Title: edit.Title, Author: edit.Author}
	if err := s.books.UpdateBook(ctx, updated); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("book %d not found", book.ID)
		}
		return nil, fmt.Errorf("update book: %w", err)
	}

	// Re-read so the caller sees the stored isbn and timestamps.
	saved, err := s.books.GetBook(ctx, book.ID)
	if err != nil {
		return nil, fmt.Errorf("reload book: %w", err)
	}
	return saved, nil
}

// Delete removes a book together with its returned loans.
// A book that is currently out on loan cannot be deleted.
func (s *BookService) Delete(ctx context.Context, book *domain.Book) error {
	if !book.HasID() {
		return domainerrors.InvalidArgument("book id is required")
	}

	err := s.books.DeleteBook(ctx, book.ID)
	switch {
	case errors.Is(err, store.ErrActiveLoanExists):
		return domainerrors.BusinessRule("book has an active loan")
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFoundf("book %d not found", book.ID)
	case err != nil:
		return fmt.Errorf("delete book: %w", err)
	}

	s.logger.Info("book deleted", "book_id", book.ID)
	return nil
}

// Find returns one page of books matching filter.
func (s *BookService) Find(ctx context.Context, filter store.BookFilter, page store.PageRequest) (*store.Page[*domain.Book], error) {
	filter = store.BookFilter{
		Title:  normalize.Text(filter.Title),
		Author: normalize.Text(filter.Author),
		ISBN:   normalize.ISBN(filter.ISBN),
	}
	return s.books.FindBooks(ctx, filter, page)
}

func duplicateISBN(isbn string) *domainerrors.Error {
	return domainerrors.DuplicateISBN("isbn already registered").
		WithDetails(map[string]string{"isbn": isbn})
}

// found converts the store's ErrNotFound into a found flag.
func found[T any](v T, err error) (T, bool, error) {
	var zero T
	if errors.Is(err, store.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}
