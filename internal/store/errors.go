package store

import "errors"

// Sentinel errors returned by every storage backend.
// Services translate them into coded domain errors.
var (
	// ErrNotFound is returned when a lookup by id or isbn matches nothing.
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicateISBN is returned when a write would give two books the same isbn.
	ErrDuplicateISBN = errors.New("isbn already registered")

	// ErrActiveLoanExists is returned when a write would give a book a second active loan,
	// or when a book with an active loan is deleted.
	ErrActiveLoanExists = errors.New("book already has an active loan")

	// ErrBookMissing is returned when a loan references a book that does not exist.
	ErrBookMissing = errors.New("loaned book does not exist")
)
