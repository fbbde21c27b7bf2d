package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libraryapi/library-server/internal/domain"
	domainerrors "github.com/libraryapi/library-server/internal/errors"
	"github.com/libraryapi/library-server/internal/store"
)

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLoanService_CreateLoan(t *testing.T) {
	books, loans, _ := setupTestServices(t)
	ctx := context.Background()
	book := mustSaveBook(t, books, "T", "A", "1")

	loan, err := loans.CreateLoan(ctx, book, " Fulano ", "Fulano@Example.com", day("2024-03-01"))
	require.NoError(t, err)

	assert.NotZero(t, loan.ID)
	assert.Equal(t, book.ID, loan.BookID)
	assert.Equal(t, "Fulano", loan.Customer)
	assert.Equal(t, "Fulano@example.com", loan.CustomerEmail)
	assert.Equal(t, "2024-03-01", domain.FormatDate(loan.LoanDate))
	assert.False(t, loan.Returned)

	active, err := loans.HasActiveLoan(ctx, book)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestLoanService_CreateLoanDefaultsToToday(t *testing.T) {
	books, loans, _ := setupTestServices(t)
	loans.SetClock(func() time.Time { return time.Date(2024, 7, 15, 23, 59, 0, 0, time.UTC) })
	book := mustSaveBook(t, books, "T", "A", "1")

	loan, err := loans.CreateLoan(context.Background(), book, "ana", "", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "2024-07-15", domain.FormatDate(loan.LoanDate))
}

func TestLoanService_SecondLoanRejectedUntilReturned(t *testing.T) {
	books, loans, _ := setupTestServices(t)
	ctx := context.Background()
	book := mustSaveBook(t, books, "T", "A", "1")

	first, err := loans.CreateLoan(ctx, book, "ana", "", day("2024-01-01"))
	require.NoError(t, err)

	_, err = loans.CreateLoan(ctx, book, "bia", "", day("2024-01-02"))
	require.ErrorIs(t, err, domainerrors.ErrBusinessRule)
	assert.Contains(t, err.Error(), "book already loaned")

	returned, err := loans.ReturnLoan(ctx, first)
	require.NoError(t, err)
	assert.True(t, returned.Returned)

	second, err := loans.CreateLoan(ctx, book, "bia", "", day("2024-01-03"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestLoanService_CreateLoanValidation(t *testing.T) {
	books, loans, _ := setupTestServices(t)
	ctx := context.Background()
	book := mustSaveBook(t, books, "T", "A", "1")

	_, err := loans.CreateLoan(ctx, book, "  ", "", day("2024-01-01"))
	assert.ErrorIs(t, err, domainerrors.ErrInvalidArgument)

	_, err = loans.CreateLoan(ctx, book, "ana", "not-an-email", day("2024-01-01"))
	assert.ErrorIs(t, err, domainerrors.ErrInvalidArgument)

	_, err = loans.CreateLoan(ctx, &domain.Book{}, "ana", "", day("2024-01-01"))
	assert.ErrorIs(t, err, domainerrors.ErrInvalidArgument)

	_, err = loans.CreateLoan(ctx, &domain.Book{ID: 999}, "ana", "", day("2024-01-01"))
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestLoanService_LoanByISBN(t *testing.T) {
	books, loans, _ := setupTestServices(t)
	ctx := context.Background()
	book := mustSaveBook(t, books, "T", "A", "9788535902775")

	loan, err := loans.LoanByISBN(ctx, "978-85-359-0277-5", "ana", "ana@example.com", day("2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, book.ID, loan.BookID)

	_, err = loans.LoanByISBN(ctx, "000", "ana", "", day("2024-01-01"))
	assert.ErrorIs(t, err, domainerrors.ErrInvalidArgument)

	_, err = loans.LoanByISBN(ctx, "", "ana", "", day("2024-01-01"))
	assert.ErrorIs(t, err, domainerrors.ErrInvalidArgument)
}

func TestLoanService_ReturnLoan(t *testing.T) {
	books, loans, _ := setupTestServices(t)
	ctx := context.Background()
	book := mustSaveBook(t, books, "T", "A", "1")
	loan, err := loans.CreateLoan(ctx, book, "ana", "", day("2024-01-01"))
	require.NoError(t, err)

	_, err = loans.ReturnLoan(ctx, &domain.Loan{})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidArgument)

	_, err = loans.ReturnLoan(ctx, &domain.Loan{ID: 999})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	first, err := loans.ReturnLoan(ctx, &domain.Loan{ID: loan.ID})
	require.NoError(t, err)
	assert.True(t, first.Returned)

	// Returning twice is a no-op.
	second, err := loans.ReturnLoan(ctx, &domain.Loan{ID: loan.ID})
	require.NoError(t, err)
	assert.True(t, second.Returned)
	assert.Equal(t, first.UpdatedAt.Unix(), second.UpdatedAt.Unix())
}

func TestLoanService_GetByID(t *testing.T) {
	books, loans, _ := setupTestServices(t)
	ctx := context.Background()
	book := mustSaveBook(t, books, "T", "A", "1")
	loan, err := loans.CreateLoan(ctx, book, "ana", "", day("2024-01-01"))
	require.NoError(t, err)

	got, found, err := loans.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ana", got.Customer)

	_, found, err = loans.GetByID(ctx, loan.ID+1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoanService_FindAndGetLoansByBook(t *testing.T) {
	books, loans, _ := setupTestServices(t)
	ctx := context.Background()
	b1 := mustSaveBook(t, books, "One", "A", "101")
	b2 := mustSaveBook(t, books, "Two", "B", "102")

	l1, err := loans.CreateLoan(ctx, b1, "ana", "", day("2024-01-01"))
	require.NoError(t, err)
	_, err = loans.ReturnLoan(ctx, l1)
	require.NoError(t, err)
	_, err = loans.CreateLoan(ctx, b1, "bia", "", day("2024-01-05"))
	require.NoError(t, err)
	_, err = loans.CreateLoan(ctx, b2, "ana", "", day("2024-01-06"))
	require.NoError(t, err)

	page, err := loans.GetLoansByBook(ctx, b1, store.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalElements)

	page, err = loans.Find(ctx, store.LoanFilter{Customer: "ana"}, store.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalElements)

	page, err = loans.Find(ctx, store.LoanFilter{ISBN: "1-0-2"}, store.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalElements)
	assert.Equal(t, b2.ID, page.Content[0].BookID)
}

func TestLoanService_GetAllLateLoans(t *testing.T) {
	books, loans, _ := setupTestServices(t)
	ctx := context.Background()
	late := mustSaveBook(t, books, "Late", "A", "1")
	recent := mustSaveBook(t, books, "Recent", "B", "2")

	lateLoan, err := loans.CreateLoan(ctx, late, "ana", "", day("2024-06-01"))
	require.NoError(t, err)
	_, err = loans.CreateLoan(ctx, recent, "bia", "", day("2024-06-08"))
	require.NoError(t, err)

	got, err := loans.GetAllLateLoans(ctx, day("2024-06-10"), 4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, lateLoan.ID, got[0].ID)
}
