package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/libraryapi/library-server/internal/domain"
	"github.com/libraryapi/library-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, title, author, isbn, created_at, updated_at`

// scanBook scans a sql.Row (or sql.Rows via its Scan method) into a domain.Book.
func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var (
		b         domain.Book
		createdAt string
		updatedAt string
	)

	if err := scanner.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBook inserts a new book and assigns its ID.
// Returns store.ErrDuplicateISBN if the isbn is already registered.
func (s *Store) CreateBook(ctx context.Context, book *domain.Book) error {
	book.InitTimestamps()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO books (title, author, isbn, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		book.Title,
		book.Author,
		book.ISBN,
		formatTime(book.CreatedAt),
		formatTime(book.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "books.isbn") {
			return store.ErrDuplicateISBN
		}
		return fmt.Errorf("insert book: %w", err)
	}

	book.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("book id: %w", err)
	}
	return nil
}

// GetBook retrieves a book by ID.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetBookByISBN retrieves a book by its exact isbn.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE isbn = ?`, isbn)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// BookExistsByISBN reports whether a book with the isbn is registered.
func (s *Store) BookExistsByISBN(ctx context.Context, isbn string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM books WHERE isbn = ?)`, isbn).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// UpdateBook writes the title and author of an existing book.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) UpdateBook(ctx context.Context, book *domain.Book) error {
	book.Touch()

	res, err := s.db.ExecContext(ctx, `
		UPDATE books SET title = ?, author = ?, updated_at = ?
		WHERE id = ?`,
		book.Title,
		book.Author,
		formatTime(book.UpdatedAt),
		book.ID,
	)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
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

// DeleteBook removes a book and its returned loans in one transaction.
// A book with an active loan is left untouched and store.ErrActiveLoanExists is returned.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var active bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM loans WHERE book_id = ? AND returned = 0)`, id).Scan(&active)
	if err != nil {
		return err
	}
	if active {
		return store.ErrActiveLoanExists
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM loans WHERE book_id = ?`, id); err != nil {
		return fmt.Errorf("delete loan history: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

// FindBooks returns one page of books matching the filter, ordered by id.
func (s *Store) FindBooks(ctx context.Context, filter store.BookFilter, page store.PageRequest) (*store.Page[*domain.Book], error) {
	page = page.Normalize()

	var (
		conds []string
		args  []any
	)
	if filter.Title != "" {
		conds = append(conds, foldFunc+`(title) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(filter.Title))
	}
	if filter.Author != "" {
		conds = append(conds, foldFunc+`(author) LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(filter.Author))
	}
	if filter.ISBN != "" {
		conds = append(conds, `isbn = ?`)
		args = append(args, filter.ISBN)
	}
	where := whereClause(conds, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books`+where+` ORDER BY id LIMIT ? OFFSET ?`,
		append(args, page.PageSize, page.Offset())...)
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
