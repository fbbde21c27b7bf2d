package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"

	"github.com/libraryapi/library-server/internal/domain"
	"github.com/libraryapi/library-server/internal/store"
)

const (
	colBookID        = "book_id"
	colCustomer      = "customer"
	colCustomerEmail = "customer_email"
	colLoanDate      = "loan_date"
	colReturned      = "returned"
)

var loanColumns = []any{
	goqu.T("l").Col(colID),
	goqu.T("l").Col(colBookID),
	goqu.T("l").Col(colCustomer),
	goqu.T("l").Col(colCustomerEmail),
	goqu.T("l").Col(colLoanDate),
	goqu.T("l").Col(colReturned),
	goqu.T("l").Col(colCreatedAt),
	goqu.T("l").Col(colUpdatedAt),
}

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		l     domain.Loan
		email *string
	)
	err := row.Scan(&l.ID, &l.BookID, &l.Customer, &email, &l.LoanDate, &l.Returned, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if email != nil {
		l.CustomerEmail = *email
	}
	l.LoanDate = domain.CalendarDate(l.LoanDate)
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}

func collectLoans(rows pgx.Rows) ([]*domain.Loan, error) {
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

func (s *Store) loansFrom() *goqu.SelectDataset {
	return s.builder.From(goqu.T(tableLoans).As("l")).Prepared(true)
}

// CreateLoan inserts the loan. The partial unique index on active loans rejects a second
// active loan for the same book.
func (s *Store) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	loan.InitTimestamps()

	var email any
	if loan.CustomerEmail != "" {
		email = loan.CustomerEmail
	}

	query, args, err := toSQL(s.builder.Insert(tableLoans).Prepared(true).
		Rows(goqu.Record{
			colBookID:        loan.BookID,
			colCustomer:      loan.Customer,
			colCustomerEmail: email,
			colLoanDate:      domain.CalendarDate(loan.LoanDate),
			colReturned:      loan.Returned,
			colCreatedAt:     loan.CreatedAt,
			colUpdatedAt:     loan.UpdatedAt,
		}).
		Returning(colID))
	if err != nil {
		return err
	}

	if err := s.pool.QueryRow(ctx, query, args...).Scan(&loan.ID); err != nil {
		if constraintViolation(err, pgUniqueViolation) == constraintActiveLoan {
			return store.ErrActiveLoanExists
		}
		if constraintViolation(err, pgForeignKeyViolation) == constraintLoanBook {
			return store.ErrBookMissing
		}
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

// GetLoan returns store.ErrNotFound if the loan does not exist.
func (s *Store) GetLoan(ctx context.Context, id int64) (*domain.Loan, error) {
	query, args, err := toSQL(s.loansFrom().
		Select(loanColumns...).
		Where(goqu.T("l").Col(colID).Eq(id)))
	if err != nil {
		return nil, err
	}

	l, err := scanLoan(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateLoan writes the returned flag. Returns store.ErrNotFound if the loan does not exist.
func (s *Store) UpdateLoan(ctx context.Context, loan *domain.Loan) error {
	loan.Touch()

	query, args, err := toSQL(s.builder.Update(tableLoans).Prepared(true).
		Set(goqu.Record{
			colReturned:  loan.Returned,
			colUpdatedAt: loan.UpdatedAt,
		}).
		Where(goqu.Ex{colID: loan.ID}))
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		if constraintViolation(err, pgUniqueViolation) == constraintActiveLoan {
			return store.ErrActiveLoanExists
		}
		return fmt.Errorf("update loan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ActiveLoanExists reports whether the book is currently out on loan.
func (s *Store) ActiveLoanExists(ctx context.Context, bookID int64) (bool, error) {
	return activeLoanExists(ctx, s.pool, s.builder, bookID)
}

func activeLoanExists(ctx context.Context, q querier, builder goqu.DialectWrapper, bookID int64) (bool, error) {
	return exists(ctx, q, builder.From(tableLoans).Where(goqu.Ex{
		colBookID:   bookID,
		colReturned: false,
	}))
}

// FindLoansByBook returns one page of the book's loans, ordered by id.
func (s *Store) FindLoansByBook(ctx context.Context, bookID int64, page store.PageRequest) (*store.Page[*domain.Loan], error) {
	return s.findLoans(ctx, goqu.T("l").Col(colBookID).Eq(bookID), page)
}

// FindLoans returns one page of loans whose book has filter.ISBN or whose customer is filter.Customer.
func (s *Store) FindLoans(ctx context.Context, filter store.LoanFilter, page store.PageRequest) (*store.Page[*domain.Loan], error) {
	var conds []exp.Expression
	if filter.ISBN != "" {
		conds = append(conds, goqu.T("b").Col(colISBN).Eq(filter.ISBN))
	}
	if filter.Customer != "" {
		conds = append(conds, goqu.T("l").Col(colCustomer).Eq(filter.Customer))
	}
	return s.findLoans(ctx, goqu.Or(conds...), page)
}

func (s *Store) findLoans(ctx context.Context, where exp.Expression, page store.PageRequest) (*store.Page[*domain.Loan], error) {
	page = page.Normalize()

	base := s.loansFrom().
		Join(goqu.T(tableBooks).As("b"), goqu.On(goqu.T("b").Col(colID).Eq(goqu.T("l").Col(colBookID)))).
		Where(where)

	countQuery, countArgs, err := toSQL(base.Select(goqu.COUNT(goqu.Star())))
	if err != nil {
		return nil, err
	}
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count loans: %w", err)
	}

	query, args, err := toSQL(base.Select(loanColumns...).
		Order(goqu.T("l").Col(colID).Asc()).
		Limit(uint(page.PageSize)).
		Offset(uint(page.Offset())))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	loans, err := collectLoans(rows)
	if err != nil {
		return nil, err
	}

	return store.NewPage(loans, total, page), nil
}

// FindLateLoans returns every active loan dated strictly before cutoff, oldest first.
func (s *Store) FindLateLoans(ctx context.Context, cutoff time.Time) ([]*domain.Loan, error) {
	query, args, err := toSQL(s.loansFrom().
		Select(loanColumns...).
		Where(
			goqu.T("l").Col(colReturned).IsFalse(),
			goqu.T("l").Col(colLoanDate).Lt(domain.CalendarDate(cutoff)),
		).
		Order(goqu.T("l").Col(colLoanDate).Asc(), goqu.T("l").Col(colID).Asc()))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}
