package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/libraryapi/library-server/internal/domain"
	domainerrors "github.com/libraryapi/library-server/internal/errors"
	"github.com/libraryapi/library-server/internal/normalize"
	"github.com/libraryapi/library-server/internal/store"
	"github.com/libraryapi/library-server/internal/validation"
)

// loanInput is what a caller must supply to lend a book.
type loanInput struct {
	Customer string `json:"customer" validate:"required,max=200"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
}

// LoanService is the loan ledger. It owns loan identity and the rule that a book has at
// most one active loan.
type LoanService struct {
	loans     store.LoanRepository
	books     store.BookRepository
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewLoanService creates a new loan service.
func NewLoanService(loans store.LoanRepository, books store.BookRepository, validator *validation.Validator, logger *slog.Logger) *LoanService {
	return &LoanService{
		loans:     loans,
		books:     books,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the clock used to date loans created without an explicit date.
func (s *LoanService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateLoan lends book to customer on date (today when date is zero).
// Fails with BUSINESS_RULE if the book already has an active loan.
func (s *LoanService) CreateLoan(ctx context.Context, book *domain.Book, customer, email string, date time.Time) (*domain.Loan, error) {
	if !book.HasID() {
		return nil, domainerrors.InvalidArgument("book id is required")
	}

	in := loanInput{
		Customer: normalize.Text(customer),
		Email:    normalize.Email(email),
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	active, err := s.loans.ActiveLoanExists(ctx, book.ID)
	if err != nil {
		return nil, fmt.Errorf("check active loan: %w", err)
	}
	if active {
		return nil, bookAlreadyLoaned(book.ID)
	}

	if date.IsZero() {
		date = s.now()
	}
	loan := &domain.Loan{
		BookID:        book.ID,
		Customer:      in.Customer,
		CustomerEmail: in.Email,
		LoanDate:      domain.CalendarDate(date),
	}

	err = s.loans.CreateLoan(ctx, loan)
	switch {
	case errors.Is(err, store.ErrActiveLoanExists):
		// Lost a race with a concurrent loan of the same book.
		return nil, bookAlreadyLoaned(book.ID)
	case errors.Is(err, store.ErrBookMissing):
		return nil, domainerrors.NotFoundf("book %d not found", book.ID)
	case err != nil:
		return nil, fmt.Errorf("create loan: %w", err)
	}

	s.logger.Info("book loaned",
		"loan_id", loan.ID,
		"book_id", loan.BookID,
		"customer", loan.Customer,
		"loan_date", domain.FormatDate(loan.LoanDate),
	)

	return loan, nil
}

// LoanByISBN resolves isbn to a book and lends it. An unknown isbn is the caller's
// mistake and is reported as INVALID_ARGUMENT.
func (s *LoanService) LoanByISBN(ctx context.Context, isbn, customer, email string, date time.Time) (*domain.Loan, error) {
	isbn = normalize.ISBN(isbn)
	if isbn == "" {
		return nil, domainerrors.InvalidArgumentWithDetails("isbn is required", map[string]string{"isbn": "is required"})
	}

	book, err := s.books.GetBookByISBN(ctx, isbn)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.InvalidArgumentWithDetails("book not found for isbn", map[string]string{"isbn": isbn})
	}
	if err != nil {
		return nil, fmt.Errorf("get book by isbn: %w", err)
	}

	return s.CreateLoan(ctx, book, customer, email, date)
}

// ReturnLoan marks the loan returned. Returning an already returned loan changes nothing.
func (s *LoanService) ReturnLoan(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	if !loan.HasID() {
		return nil, domainerrors.InvalidArgument("loan id is required")
	}

	current, err := s.loans.GetLoan(ctx, loan.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("loan %d not found", loan.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}

	if !current.MarkReturned() {
		return current, nil
	}

	if err := s.loans.UpdateLoan(ctx, current); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("loan %d not found", loan.ID)
		}
		return nil, fmt.Errorf("update loan: %w", err)
	}

	s.logger.Info("loan returned", "loan_id", current.ID, "book_id", current.BookID)

	return current, nil
}

// GetByID looks a loan up by id. A missing loan is reported as found == false.
func (s *LoanService) GetByID(ctx context.Context, id int64) (*domain.Loan, bool, error) {
	return found(s.loans.GetLoan(ctx, id))
}

// GetLoansByBook returns one page of the book's loans, returned or not.
func (s *LoanService) GetLoansByBook(ctx context.Context, book *domain.Book, page store.PageRequest) (*store.Page[*domain.Loan], error) {
	return s.loans.FindLoansByBook(ctx, book.ID, page)
}

// HasActiveLoan reports whether the book is out on loan.
func (s *LoanService) HasActiveLoan(ctx context.Context, book *domain.Book) (bool, error) {
	return s.loans.ActiveLoanExists(ctx, book.ID)
}

// Find returns one page of loans for the isbn or the customer.
func (s *LoanService) Find(ctx context.Context, filter store.LoanFilter, page store.PageRequest) (*store.Page[*domain.Loan], error) {
	filter = store.LoanFilter{
		ISBN:     normalize.ISBN(filter.ISBN),
		Customer: normalize.Text(filter.Customer),
	}
	return s.loans.FindLoans(ctx, filter, page)
}

// GetAllLateLoans returns every active loan more than overdueDays old on the given day.
func (s *LoanService) GetAllLateLoans(ctx context.Context, today time.Time, overdueDays int) ([]*domain.Loan, error) {
	return s.loans.FindLateLoans(ctx, domain.LateCutoff(today, overdueDays))
}

func bookAlreadyLoaned(bookID int64) *domainerrors.Error {
	return domainerrors.BusinessRule("book already loaned").
		WithDetails(map[string]int64{"book_id": bookID})
}
