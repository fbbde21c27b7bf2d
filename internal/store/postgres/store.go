// Package postgres implements store.Store on PostgreSQL through a pgx connection pool.
// Queries are built with goqu's postgres dialect as prepared statements.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/libraryapi/library-server/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const (
	dialectPostgres = "postgres"

	tableBooks = "books"
	tableLoans = "loans"

	constraintISBN       = "books_isbn_unique"
	constraintActiveLoan = "loans_active_book_unique"
	constraintLoanBook   = "loans_book_fk"

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Pool settings applied on top of whatever the DSN specifies.
const (
	defaultMaxConnections    = int32(8)
	defaultMinConnections    = int32(1)
	defaultMaxConnLifetime   = time.Hour
	defaultMaxConnIdleTime   = time.Minute * 5
	defaultHealthCheckPeriod = time.Minute
	defaultConnectTimeout    = time.Second * 5
)

// Store provides PostgreSQL-backed persistence for books and loans.
type Store struct {
	pool    *pgxpool.Pool
	builder goqu.DialectWrapper
	logger  *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to the database at dsn and applies the schema.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = defaultMaxConnections
	cfg.MinConns = defaultMinConnections
	cfg.MaxConnLifetime = defaultMaxConnLifetime
	cfg.MaxConnIdleTime = defaultMaxConnIdleTime
	cfg.HealthCheckPeriod = defaultHealthCheckPeriod
	cfg.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres store opened", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)

	return &Store{
		pool:    pool,
		builder: goqu.Dialect(dialectPostgres),
		logger:  logger,
	}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
	}
	return nil
}

// Ping verifies a connection can be acquired.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes every pooled connection.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// toSQL renders a goqu statement as a prepared query plus its arguments.
func toSQL(stmt interface {
	ToSQL() (string, []any, error)
}) (string, []any, error) {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build query: %w", err)
	}
	return query, args, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// exists reports whether ds matches at least one row.
func exists(ctx context.Context, q querier, ds *goqu.SelectDataset) (bool, error) {
	query, args, err := toSQL(ds.Prepared(true).Select(goqu.L("1")).Limit(1))
	if err != nil {
		return false, err
	}

	var one int
	err = q.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// constraintViolation returns the name of the constraint err violated with the given
// SQLSTATE, or "" if err is something else.
func constraintViolation(err error, code string) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName
	}
	return ""
}

// escapeLike escapes LIKE wildcards so s matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
