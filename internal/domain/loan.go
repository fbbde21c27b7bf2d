package domain

import "time"

// DateLayout is the wire and storage format of a loan date.
const DateLayout = "2006-01-02"

// Loan records a customer borrowing one book.
//
// A loan is active while Returned is false; a book has at most one active loan.
// Once returned, a loan never becomes active again.
type Loan struct {
	Timestamps
	ID            int64     `json:"id"`
	BookID        int64     `json:"book_id"`
	Customer      string    `json:"customer"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	LoanDate      time.Time `json:"loan_date"`
	Returned      bool      `json:"returned"`
}

// HasID reports whether storage has assigned an identity to the loan.
func (l *Loan) HasID() bool {
	return l != nil && l.ID > 0
}

// IsActive reports whether the book is still out with the customer.
func (l *Loan) IsActive() bool {
	return !l.Returned
}

// MarkReturned moves the loan to its terminal state.
// It reports false when the loan was already returned, so callers can skip the write.
func (l *Loan) MarkReturned() bool {
	if l.Returned {
		return false
	}
	l.Returned = true
	return true
}

// IsLate reports whether an active loan is older than overdueDays on the given day.
func (l *Loan) IsLate(today time.Time, overdueDays int) bool {
	return l.IsActive() && l.LoanDate.Before(LateCutoff(today, overdueDays))
}

// LateCutoff returns the first loan date that is not yet overdue.
// Loans dated strictly before it are late.
func LateCutoff(today time.Time, overdueDays int) time.Time {
	return CalendarDate(today).AddDate(0, 0, -overdueDays)
}

// CalendarDate truncates t to midnight UTC of the same calendar day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD loan date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders a loan date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return CalendarDate(t).Format(DateLayout)
}
