// Package oracle implements the SQL Client Capability: a
// connection-scoped facade over Oracle exposing catalog enumeration, DDL
// extraction, and arbitrary statement execution.
package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/godror/godror"
)

// Client wraps a single Oracle connection. No implicit transactions are
// held open across calls; each Execute is autonomous.
type Client struct {
	db *sql.DB
}

// Connect opens a connection to dsn as user with password. dsn is an
// Oracle easy-connect string or TNS alias; godror composes it with the
// credentials into its own connection string.
func Connect(ctx context.Context, user, password, dsn string) (*Client, error) {
	connStr := fmt.Sprintf(`user="%s" password="%s" connectString="%s"`, user, password, dsn)
	db, err := sql.Open("godror", connStr)
	if err != nil {
		return nil, fmt.Errorf("oracle: connect: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("oracle: connect: %w", err)
	}
	return &Client{db: db}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping executes `select 1 from dual`.
func (c *Client) Ping(ctx context.Context) error {
	var one int
	if err := c.db.QueryRowContext(ctx, "select 1 from dual").Scan(&one); err != nil {
		return fmt.Errorf("oracle: ping: %w", err)
	}
	return nil
}

// ListUsers returns every schema name known to the database.
func (c *Client) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "select username from dba_users order by username")
	if err != nil {
		return nil, fmt.Errorf("oracle: list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("oracle: list users: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetDDL extracts the verbatim DDL text for one object via Oracle's
// metadata-extraction routine.
func (c *Client) GetDDL(ctx context.Context, objectType, name, schema string) (string, error) {
	var ddl string
	err := c.db.QueryRowContext(ctx,
		"select DBMS_METADATA.GET_DDL(:1, :2, :3) from dual",
		strings.ToUpper(objectType), name, schema,
	).Scan(&ddl)
	if err != nil {
		return "", fmt.Errorf("oracle: get ddl for %s.%s (%s): %w", schema, name, objectType, err)
	}
	return strings.TrimRight(ddl, "\n\t "), nil
}

// Execute runs sql with no implicit transaction.
func (c *Client) Execute(ctx context.Context, stmt string) error {
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("oracle: execute: %w", err)
	}
	return nil
}

// RecompileInvalidObjects runs Oracle's UTL_RECOMP parallel
// recompilation, an optional post-apply step plans opt into.
func (c *Client) RecompileInvalidObjects(ctx context.Context, parallelDegree int) error {
	_, err := c.db.ExecContext(ctx, "begin sys.UTL_RECOMP.recomp_parallel(:1); end;", parallelDegree)
	if err != nil {
		return fmt.Errorf("oracle: recompile invalid objects: %w", err)
	}
	return nil
}

// ListObjectsOptions controls the catalog scope of ListObjects.
type ListObjectsOptions struct {
	Schemas            []string
	Cutoff             *time.Time
	ExcludeObjectTypes []string
	ExcludeObjectNames []string
}
