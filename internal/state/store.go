// Package state persists the deployment entity graph with referential
// integrity and indexed lookups across six relational bookkeeping tables.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/oracleplane/oracleplane/internal/bootstrap"
)

// Store wraps a bookkeeping database connection. All entity repositories
// share one *sql.DB; the Store itself never opens a transaction across a
// suspension point — each status write is its own commit.
type Store struct {
	db      *sql.DB
	dialect string
}

// Open connects to the bookkeeping store identified by databaseURL,
// detecting the dialect by scheme/suffix, then runs the bootstrap DDL
// idempotently.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	driverName, dialect, dsn := detectDialect(databaseURL)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("state: open %s: %w", dialect, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: ping %s: %w", dialect, err)
	}

	if dialect == "sqlite" {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("state: enabling foreign keys: %w", err)
		}
	}

	if err := bootstrap.Run(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, dialect: dialect}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func detectDialect(databaseURL string) (driverName, dialect, dsn string) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres", "postgres", databaseURL
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return "sqlite", "sqlite", strings.TrimPrefix(databaseURL, "sqlite://")
	default:
		return "sqlite", "sqlite", databaseURL
	}
}

// rebind rewrites a query written with "?" placeholders into the
// dialect's native placeholder syntax ("$1", "$2", ... for postgres).
// Every repository writes queries with "?" and calls through the Store's
// query/exec helpers so the same SQL text works against either backend.
func (s *Store) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// insert runs an INSERT statement written with "?" placeholders and no
// trailing RETURNING clause, and returns the generated id — via
// RETURNING id on postgres, via sql.Result.LastInsertId on sqlite.
func (s *Store) insert(ctx context.Context, insertSQL string, args ...any) (int32, error) {
	if s.dialect == "postgres" {
		var id int32
		err := s.queryRow(ctx, insertSQL+" RETURNING id", args...).Scan(&id)
		return id, err
	}

	res, err := s.exec(ctx, insertSQL, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int32(id), nil
}
