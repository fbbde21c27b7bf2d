package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"

	"github.com/libraryapi/library-server/internal/domain"
	"github.com/libraryapi/library-server/internal/store"
)

const (
	colID        = "id"
	colTitle     = "title"
	colAuthor    = "author"
	colISBN      = "isbn"
	colCreatedAt = "created_at"
	colUpdatedAt = "updated_at"
)

var bookColumns = []any{colID, colTitle, colAuthor, colISBN, colCreatedAt, colUpdatedAt}

func scanBook(row pgx.Row) (*domain.Book, error) {
	var b domain.Book
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

// CreateBook inserts the book and reads back its generated id.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	book.InitTimestamps()

	query, args, err := toSQL(s.builder.Insert(tableBooks).Prepared(true).
		Rows(goqu.Record{
			colTitle:     book.Title,
			colAuthor:    book.Author,
			colISBN:      book.ISBN,
			colCreatedAt: book.CreatedAt,
			colUpdatedAt: book.UpdatedAt,
		}).
		Returning(colID))
	if err != nil {
		return err
	}

	if err := s.pool.QueryRow(ctx, query, args...).Scan(&book.ID); err != nil {
		if constraintViolation(err, pgUniqueViolation) == constraintISBN {
			return store.ErrDuplicateISBN
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// GetBook returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	return s.getBookWhere(ctx, goqu.Ex{colID: id})
}

// GetBookByISBN returns store.ErrNotFound if no book has the isbn.
func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	return s.getBookWhere(ctx, goqu.Ex{colISBN: isbn})
}

func (s *Store) getBookWhere(ctx context.Context, where goqu.Ex) (*domain.Book, error) {
	query, args, err := toSQL(s.builder.From(tableBooks).Prepared(true).
		Select(bookColumns...).
		Where(where))
	if err != nil {
		return nil, err
	}

	b, err := scanBook(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// BookExistsByISBN reports whether a book with the isbn is registered.
func (s *Store) BookExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	return exists(ctx, s.pool, s.builder.From(tableBooks).Where(goqu.Ex{colISBN: isbn}))
}

// UpdateBook writes title and author. Returns store.ErrNotFound if the book does not exist.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	book.Touch()

	query, args, err := toSQL(s.builder.Update(tableBooks).Prepared(true).
		Set(goqu.Record{
			colTitle:     book.Title,
			colAuthor:    book.Author,
			colUpdatedAt: book.UpdatedAt,
		}).
		Where(goqu.Ex{colID: book.ID}))
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteBook removes the book and its returned loans in one transaction.
// The book row is locked first so no loan can be created for it meanwhile.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	lockQuery, lockArgs, err := toSQL(s.builder.From(tableBooks).Prepared(true).
		Select(colID).
		Where(goqu.Ex{colID: id}).
		ForUpdate(exp.Wait))
	if err != nil {
		return err
	}
	var locked int64
	if err := tx.QueryRow(ctx, lockQuery, lockArgs...).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	active, err := activeLoanExists(ctx, tx, s.builder, id)
	if err != nil {
		return err
	}
	if active {
		return store.ErrActiveLoanExists
	}

	loansQuery, loansArgs, err := toSQL(s.builder.Delete(tableLoans).Prepared(true).Where(goqu.Ex{colBookID: id}))
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, loansQuery, loansArgs...); err != nil {
		return fmt.Errorf("delete loan history: %w", err)
	}

	bookQuery, bookArgs, err := toSQL(s.builder.Delete(tableBooks).Prepared(true).Where(goqu.Ex{colID: id}))
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, bookQuery, bookArgs...); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	return tx.Commit(ctx)
}

// FindBooks returns one page of books matching the filter, ordered by id.
func (s *Store) FindBooks(ctx context.Context, filter store.BookFilter, page store.PageRequest) (*store.Page[*domain.Book], error) {
	page = page.Normalize()

	base := s.builder.From(tableBooks).Prepared(true).Where(bookConditions(filter)...)

	countQuery, countArgs, err := toSQL(base.Select(goqu.COUNT(goqu.Star())))
	if err != nil {
		return nil, err
	}
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}

	query, args, err := toSQL(base.Select(bookColumns...).
		Order(goqu.C(colID).Asc()).
		Limit(uint(page.PageSize)).
		Offset(uint(page.Offset())))
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return store.NewPage(books, total, page), nil
}

func bookConditions(filter store.BookFilter) []exp.Expression {
	var conds []exp.Expression
	if filter.Title != "" {
		conds = append(conds, goqu.C(colTitle).ILike("%"+escapeLike(filter.Title)+"%"))
	}
	if filter.Author != "" {
		conds = append(conds, goqu.C(colAuthor).ILike("%"+escapeLike(filter.Author)+"%"))
	}
	if filter.ISBN != "" {
		conds = append(conds, goqu.C(colISBN).Eq(filter.ISBN))
	}
	return conds
}
