package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/libraryapi/library-server/internal/domain"
	"github.com/libraryapi/library-server/internal/store"
)

// loanColumns is the ordered list of columns selected in loan queries.
// Must match the scan order in scanLoan.
const loanColumns = `l.id, l.book_id, l.customer, l.customer_email, l.loan_date, l.returned, l.created_at, l.updated_at`

func scanLoan(scanner interface{ Scan(dest ...any) error }) (*domain.Loan, error) {
	var (
		l         domain.Loan
		email     sql.NullString
		loanDate  string
		returned  int
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(&l.ID, &l.BookID, &l.Customer, &email, &loanDate, &returned, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	l.CustomerEmail = email.String
	l.Returned = returned != 0

	l.LoanDate, err = domain.ParseDate(loanDate)
	if err != nil {
		return nil, fmt.Errorf("parse loan_date: %w", err)
	}
	l.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	l.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanLoans(rows *sql.Rows) ([]*domain.Loan, error) {
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return loans, nil
}

// CreateLoan inserts a new loan and assigns its ID.
// The partial unique index on active loans rejects a second active loan for the same book.
func (s *Store) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	loan.InitTimestamps()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO loans (book_id, customer, customer_email, loan_date, returned, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		loan.BookID,
		loan.Customer,
		nullString(loan.CustomerEmail),
		domain.FormatDate(loan.LoanDate),
		boolToInt(loan.Returned),
		formatTime(loan.CreatedAt),
		formatTime(loan.UpdatedAt),
	)
	if err != nil {
		switch {
		case isUniqueViolation(err, "loans.book_id"):
			return store.ErrActiveLoanExists
		case isForeignKeyViolation(err):
			return store.ErrBookMissing
		}
		return fmt.Errorf("insert loan: %w", err)
	}

	loan.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("loan id: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by ID.
// Returns store.ErrNotFound if the loan does not exist.
func (s *Store) GetLoan(ctx context.Context, id int64) (*domain.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans l WHERE l.id = ?`, id)

	l, err := scanLoan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateLoan writes the returned flag of an existing loan.
// Returns store.ErrNotFound if the loan does not exist.
func (s *Store) UpdateLoan(ctx context.Context, loan *domain.Loan) error {
	loan.Touch()

	res, err := s.db.ExecContext(ctx, `
		UPDATE loans SET returned = ?, updated_at = ?
		WHERE id = ?`,
		boolToInt(loan.Returned),
		formatTime(loan.UpdatedAt),
		loan.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "loans.book_id") {
			return store.ErrActiveLoanExists
		}
		return fmt.Errorf("update loan: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ActiveLoanExists reports whether the book is currently out on loan.
func (s *Store) ActiveLoanExists(ctx context.Context, bookID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM loans WHERE book_id = ? AND returned = 0)`, bookID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// FindLoansByBook returns one page of the book's loans, ordered by id.
func (s *Store) FindLoansByBook(ctx context.Context, bookID int64, page store.PageRequest) (*store.Page[*domain.Loan], error) {
	return s.findLoans(ctx, []string{"l.book_id = ?"}, []any{bookID}, " AND ", page)
}

// FindLoans returns one page of loans whose book has filter.ISBN or whose customer is filter.Customer.
func (s *Store) FindLoans(ctx context.Context, filter store.LoanFilter, page store.PageRequest) (*store.Page[*domain.Loan], error) {
	var (
		conds []string
		args  []any
	)
	if filter.ISBN != "" {
		conds = append(conds, "b.isbn = ?")
		args = append(args, filter.ISBN)
	}
	if filter.Customer != "" {
		conds = append(conds, "l.customer = ?")
		args = append(args, filter.Customer)
	}
	return s.findLoans(ctx, conds, args, " OR ", page)
}

func (s *Store) findLoans(ctx context.Context, conds []string, args []any, sep string, page store.PageRequest) (*store.Page[*domain.Loan], error) {
	page = page.Normalize()
	from := ` FROM loans l JOIN books b ON b.id = l.book_id` + whereClause(conds, sep)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count loans: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+loanColumns+from+` ORDER BY l.id LIMIT ? OFFSET ?`,
		append(args, page.PageSize, page.Offset())...)
	if err != nil {
		return nil, err
	}
	loans, err := scanLoans(rows)
	if err != nil {
		return nil, err
	}

	return store.NewPage(loans, total, page), nil
}

// FindLateLoans returns every active loan dated strictly before cutoff, oldest first.
func (s *Store) FindLateLoans(ctx context.Context, cutoff time.Time) ([]*domain.Loan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+loanColumns+` FROM loans l
		WHERE l.returned = 0 AND l.loan_date < ?
		ORDER BY l.loan_date, l.id`,
		domain.FormatDate(cutoff))
	if err != nil {
		return nil, err
	}
	return scanLoans(rows)
}
