// Package storetest holds the behavioural checks every store.Store backend must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libraryapi/library-server/internal/domain"
	"github.com/libraryapi/library-server/internal/store"
)

// Factory returns an empty store. It should register its own cleanup.
type Factory func(t *testing.T) store.Store

// Run executes the full suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGetBook", func(t *testing.T) { testCreateAndGetBook(t, newStore(t)) })
	t.Run("DuplicateISBN", func(t *testing.T) { testDuplicateISBN(t, newStore(t)) })
	t.Run("GetBookNotFound", func(t *testing.T) { testGetBookNotFound(t, newStore(t)) })
	t.Run("UpdateBook", func(t *testing.T) { testUpdateBook(t, newStore(t)) })
	t.Run("DeleteBook", func(t *testing.T) { testDeleteBook(t, newStore(t)) })
	t.Run("FindBooks", func(t *testing.T) { testFindBooks(t, newStore(t)) })
	t.Run("LoanLifecycle", func(t *testing.T) { testLoanLifecycle(t, newStore(t)) })
	t.Run("LoanForMissingBook", func(t *testing.T) { testLoanForMissingBook(t, newStore(t)) })
	t.Run("ConcurrentLoans", func(t *testing.T) { testConcurrentLoans(t, newStore(t)) })
	t.Run("FindLoans", func(t *testing.T) { testFindLoans(t, newStore(t)) })
	t.Run("FindLateLoans", func(t *testing.T) { testFindLateLoans(t, newStore(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

// MustCreateBook stores a book with the given isbn and fails the test on error.
func MustCreateBook(t *testing.T, s store.BookRepository, title, author, isbn string) *domain.Book {
	t.Helper()
	b := &domain.Book{Title: title, Author: author, ISBN: isbn}
	require.NoError(t, s.CreateBook(context.Background(), b))
	return b
}

// MustCreateLoan stores an active loan and fails the test on error.
func MustCreateLoan(t *testing.T, s store.LoanRepository, bookID int64, customer string, date time.Time) *domain.Loan {
	t.Helper()
	l := &domain.Loan{BookID: bookID, Customer: customer, LoanDate: date}
	require.NoError(t, s.CreateLoan(context.Background(), l))
	return l
}

func day(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testCreateAndGetBook(t *testing.T, s store.Store) {
	ctx := context.Background()

	b := MustCreateBook(t, s, "As aventuras", "Artur", "001")
	assert.NotZero(t, b.ID)
	assert.False(t, b.CreatedAt.IsZero())

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, "As aventuras", got.Title)
	assert.Equal(t, "Artur", got.Author)
	assert.Equal(t, "001", got.ISBN)

	byISBN, err := s.GetBookByISBN(ctx, "001")
	require.NoError(t, err)
	assert.Equal(t, b.ID, byISBN.ID)

	exists, err := s.BookExistsByISBN(ctx, "001")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.BookExistsByISBN(ctx, "002")
	require.NoError(t, err)
	assert.False(t, exists)

	other := MustCreateBook(t, s, "Outro", "Ana", "002")
	assert.NotEqual(t, b.ID, other.ID)
}

func testDuplicateISBN(t *testing.T, s store.Store) {
	MustCreateBook(t, s, "First", "A", "123")

	err := s.CreateBook(context.Background(), &domain.Book{Title: "Second", Author: "B", ISBN: "123"})
	assert.ErrorIs(t, err, store.ErrDuplicateISBN)
}

func testGetBookNotFound(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetBook(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetBookByISBN(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetLoan(ctx, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUpdateBook(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := MustCreateBook(t, s, "Old", "Someone", "555")

	edit := &domain.Book{ID: b.ID, Title: "New", Author: "Someone Else", ISBN: "555"}
	require.NoError(t, s.UpdateBook(ctx, edit))

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, "Someone Else", got.Author)
	assert.Equal(t, "555", got.ISBN)

	err = s.UpdateBook(ctx, &domain.Book{ID: 4242, Title: "x", Author: "y"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDeleteBook(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := MustCreateBook(t, s, "Gone", "Author", "777")

	returned := MustCreateLoan(t, s, b.ID, "ana", day("2024-01-01"))
	returned.Returned = true
	require.NoError(t, s.UpdateLoan(ctx, returned))

	active := MustCreateLoan(t, s, b.ID, "bia", day("2024-02-01"))

	err := s.DeleteBook(ctx, b.ID)
	require.ErrorIs(t, err, store.ErrActiveLoanExists)

	_, err = s.GetBook(ctx, b.ID)
	require.NoError(t, err, "book must survive a restricted delete")

	active.Returned = true
	require.NoError(t, s.UpdateLoan(ctx, active))
	require.NoError(t, s.DeleteBook(ctx, b.ID))

	_, err = s.GetBook(ctx, b.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetLoan(ctx, returned.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "loan history is removed with the book")

	exists, err := s.BookExistsByISBN(ctx, "777")
	require.NoError(t, err)
	assert.False(t, exists, "isbn is free again")

	assert.ErrorIs(t, s.DeleteBook(ctx, b.ID), store.ErrNotFound)
}

func testFindBooks(t *testing.T, s store.Store) {
	ctx := context.Background()
	MustCreateBook(t, s, "Dom Casmurro", "Machado de Assis", "100")
	MustCreateBook(t, s, "Memórias Póstumas", "Machado de Assis", "101")
	MustCreateBook(t, s, "Grande Sertão", "Guimarães Rosa", "102")
	MustCreateBook(t, s, "100% Rosa", "Guimarães Rosa", "103")
	MustCreateBook(t, s, "Ávila e Évora", "Álvaro Óscar", "104")

	tests := []struct {
		name   string
		filter store.BookFilter
		want   []string
	}{
		{"empty filter", store.BookFilter{}, []string{"100", "101", "102", "103", "104"}},
		{"author substring ignores case", store.BookFilter{Author: "machado"}, []string{"100", "101"}},
		{"title and author", store.BookFilter{Title: "grande", Author: "rosa"}, []string{"102"}},
		{"exact isbn", store.BookFilter{ISBN: "101"}, []string{"101"}},
		{"isbn is not a substring match", store.BookFilter{ISBN: "10"}, nil},
		{"wildcards are literal", store.BookFilter{Title: "100%"}, []string{"103"}},
		{"no match", store.BookFilter{Title: "nothing"}, nil},
		{"accented title ignores case", store.BookFilter{Title: "ávila"}, []string{"104"}},
		{"accented author ignores case", store.BookFilter{Author: "ÁLVARO ÓS"}, []string{"104"}},
		{"accented title in the middle", store.BookFilter{Title: "É"}, []string{"104"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.FindBooks(ctx, tt.filter, store.PageRequest{PageSize: 10})
			require.NoError(t, err)

			var got []string
			for _, b := range page.Content {
				got = append(got, b.ISBN)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), page.TotalElements)
		})
	}

	page, err := s.FindBooks(ctx, store.BookFilter{}, store.PageRequest{PageNumber: 1, PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, page.Content, 2)
	assert.Equal(t, 5, page.TotalElements)
	assert.Equal(t, 1, page.PageNumber)
	assert.Equal(t, 3, page.PageSize)

	page, err = s.FindBooks(ctx, store.BookFilter{}, store.PageRequest{PageNumber: 5, PageSize: 3})
	require.NoError(t, err)
	assert.NotNil(t, page.Content)
	assert.Empty(t, page.Content)
	assert.Equal(t, 5, page.TotalElements)

	// A page number whose offset does not fit in an int is still just past the end.
	page, err = s.FindBooks(ctx, store.BookFilter{}, store.PageRequest{PageNumber: math.MaxInt / 10, PageSize: 20})
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.Equal(t, 5, page.TotalElements)
}

func testLoanLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := MustCreateBook(t, s, "Loaned", "Author", "200")

	first := &domain.Loan{BookID: b.ID, Customer: "fulano", CustomerEmail: "fulano@example.com", LoanDate: day("2024-03-10")}
	require.NoError(t, s.CreateLoan(ctx, first))
	assert.NotZero(t, first.ID)

	got, err := s.GetLoan(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.BookID)
	assert.Equal(t, "fulano", got.Customer)
	assert.Equal(t, "fulano@example.com", got.CustomerEmail)
	assert.Equal(t, "2024-03-10", domain.FormatDate(got.LoanDate))
	assert.False(t, got.Returned)

	active, err := s.ActiveLoanExists(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, active)

	err = s.CreateLoan(ctx, &domain.Loan{BookID: b.ID, Customer: "other", LoanDate: day("2024-03-11")})
	require.ErrorIs(t, err, store.ErrActiveLoanExists)

	got.Returned = true
	require.NoError(t, s.UpdateLoan(ctx, got))

	active, err = s.ActiveLoanExists(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, active)

	second := MustCreateLoan(t, s, b.ID, "other", day("2024-03-12"))
	assert.NotEqual(t, first.ID, second.ID)

	page, err := s.FindLoansByBook(ctx, b.ID, store.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalElements)
	require.Len(t, page.Content, 2)
	assert.True(t, page.Content[0].Returned)
	assert.False(t, page.Content[1].Returned)

	page, err = s.FindLoansByBook(ctx, b.ID, store.PageRequest{PageNumber: math.MaxInt / 10, PageSize: 20})
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.Equal(t, 2, page.TotalElements)

	assert.ErrorIs(t, s.UpdateLoan(ctx, &domain.Loan{ID: 31337, Returned: true}), store.ErrNotFound)
}

func testLoanForMissingBook(t *testing.T, s store.Store) {
	err := s.CreateLoan(context.Background(), &domain.Loan{BookID: 12345, Customer: "x", LoanDate: day("2024-01-01")})
	assert.ErrorIs(t, err, store.ErrBookMissing)
}

func testConcurrentLoans(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := MustCreateBook(t, s, "Popular", "Author", "300")

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateLoan(ctx, &domain.Loan{BookID: b.ID, Customer: fmt.Sprintf("c%d", i), LoanDate: day("2024-05-01")})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
				return
			}
			if !errors.Is(err, store.ErrActiveLoanExists) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created, "exactly one concurrent loan may win")
}

func testFindLoans(t *testing.T, s store.Store) {
	ctx := context.Background()
	b1 := MustCreateBook(t, s, "One", "A", "401")
	b2 := MustCreateBook(t, s, "Two", "B", "402")
	b3 := MustCreateBook(t, s, "Three", "C", "403")

	MustCreateLoan(t, s, b1.ID, "ana", day("2024-01-01"))
	MustCreateLoan(t, s, b2.ID, "bia", day("2024-01-02"))
	MustCreateLoan(t, s, b3.ID, "ana", day("2024-01-03"))

	tests := []struct {
		name   string
		filter store.LoanFilter
		want   []string
	}{
		{"empty filter", store.LoanFilter{}, []string{"ana", "bia", "ana"}},
		{"by isbn", store.LoanFilter{ISBN: "402"}, []string{"bia"}},
		{"by customer", store.LoanFilter{Customer: "ana"}, []string{"ana", "ana"}},
		{"isbn or customer", store.LoanFilter{ISBN: "402", Customer: "ana"}, []string{"ana", "bia", "ana"}},
		{"no match", store.LoanFilter{Customer: "zé"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.FindLoans(ctx, tt.filter, store.PageRequest{})
			require.NoError(t, err)

			var got []string
			for _, l := range page.Content {
				got = append(got, l.Customer)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), page.TotalElements)
		})
	}
}

func testFindLateLoans(t *testing.T, s store.Store) {
	ctx := context.Background()
	b1 := MustCreateBook(t, s, "Late", "A", "501")
	b2 := MustCreateBook(t, s, "Boundary", "B", "502")
	b3 := MustCreateBook(t, s, "Recent", "C", "503")
	b4 := MustCreateBook(t, s, "Returned", "D", "504")

	late := MustCreateLoan(t, s, b1.ID, "late", day("2024-06-01"))
	MustCreateLoan(t, s, b2.ID, "boundary", day("2024-06-06"))
	MustCreateLoan(t, s, b3.ID, "recent", day("2024-06-09"))
	done := MustCreateLoan(t, s, b4.ID, "done", day("2024-05-01"))
	done.Returned = true
	require.NoError(t, s.UpdateLoan(ctx, done))

	cutoff := domain.LateCutoff(day("2024-06-10"), 4)
	loans, err := s.FindLateLoans(ctx, cutoff)
	require.NoError(t, err)

	require.Len(t, loans, 1)
	assert.Equal(t, late.ID, loans[0].ID)
}
