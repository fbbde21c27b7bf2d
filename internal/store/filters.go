package store

import (
	"strings"

	"github.com/libraryapi/library-server/internal/domain"
)

// BookFilter narrows a book search. Empty fields are ignored; every non-empty field must match.
// Title and Author match case-insensitively anywhere in the value, ISBN matches exactly.
type BookFilter struct {
	Title  string
	Author string
	ISBN   string
}

// IsEmpty reports whether the filter matches every book.
func (f BookFilter) IsEmpty() bool {
	return f.Title == "" && f.Author == "" && f.ISBN == ""
}

// Matches evaluates the filter in memory, for backends that cannot push it down.
func (f BookFilter) Matches(b *domain.Book) bool {
	if f.ISBN != "" && b.ISBN != f.ISBN {
		return false
	}
	if f.Title != "" && !containsFold(b.Title, f.Title) {
		return false
	}
	if f.Author != "" && !containsFold(b.Author, f.Author) {
		return false
	}
	return true
}

// LoanFilter narrows a loan search to loans of the book with ISBN or loans made by Customer.
// Either match is enough; an empty filter matches every loan.
type LoanFilter struct {
	ISBN     string
	Customer string
}

// IsEmpty reports whether the filter matches every loan.
func (f LoanFilter) IsEmpty() bool {
	return f.ISBN == "" && f.Customer == ""
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
