package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoan_MarkReturned(t *testing.T) {
	loan := &Loan{ID: 1, BookID: 7, Customer: "Fulano"}
	require.True(t, loan.IsActive())

	assert.True(t, loan.MarkReturned())
	assert.True(t, loan.Returned)
	assert.False(t, loan.IsActive())

	// Second return is a no-op.
	assert.False(t, loan.MarkReturned())
	assert.True(t, loan.Returned)
}

func TestLoan_IsLate(t *testing.T) {
	today := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		loanDate time.Time
		returned bool
		want     bool
	}{
		{
			name:     "five days old",
			loanDate: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "exactly four days old",
			loanDate: time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "loaned today",
			loanDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "old but returned",
			loanDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			returned: true,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := &Loan{LoanDate: tt.loanDate, Returned: tt.returned}
			assert.Equal(t, tt.want, loan.IsLate(today, 4))
		})
	}
}

func TestLateCutoff(t *testing.T) {
	today := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 25, 0, 0, 0, 0, time.UTC), LateCutoff(today, 4))
}

func TestParseAndFormatDate(t *testing.T) {
	d, err := ParseDate("2024-12-31")
	require.NoError(t, err)
	assert.Equal(t, "2024-12-31", FormatDate(d))

	_, err = ParseDate("31/12/2024")
	assert.Error(t, err)
}

func TestBook_ApplyEditKeepsISBN(t *testing.T) {
	book := &Book{ID: 3, Title: "Old", Author: "Someone", ISBN: "001"}
	book.ApplyEdit(&Book{Title: "New", Author: "Other", ISBN: "999"})

	assert.Equal(t, "New", book.Title)
	assert.Equal(t, "Other", book.Author)
	assert.Equal(t, "001", book.ISBN)
	assert.True(t, book.HasID())
	assert.False(t, (&Book{}).HasID())
}
