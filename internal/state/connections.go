package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oracleplane/oracleplane/internal/model"
)

// ErrNotFound is returned by lookup methods when no row matches.
var ErrNotFound = errors.New("state: not found")

// CreateConnection inserts a new Connection row.
func (s *Store) CreateConnection(ctx context.Context, c model.Connection) (model.Connection, error) {
	c.CreatedAt = time.Now().UTC()
	id, err := s.insert(ctx,
		`INSERT INTO connections (name, username, password, connection_string, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Username, c.Password, c.ConnectionString, c.CreatedAt,
	)
	if err != nil {
		return model.Connection{}, fmt.Errorf("state: create connection %q: %w", c.Name, err)
	}
	c.ID = id
	return c, nil
}

// GetConnectionByID looks up a Connection by id.
func (s *Store) GetConnectionByID(ctx context.Context, id int32) (model.Connection, error) {
	row := s.queryRow(ctx,
		`SELECT id, name, username, password, connection_string, created_at FROM connections WHERE id = ?`, id)
	return scanConnection(row)
}

// FindConnectionByName looks up a Connection by case-insensitive name.
func (s *Store) FindConnectionByName(ctx context.Context, name string) (model.Connection, error) {
	row := s.queryRow(ctx,
		`SELECT id, name, username, password, connection_string, created_at FROM connections WHERE LOWER(name) = LOWER(?)`, name)
	return scanConnection(row)
}

// DeleteConnection removes a Connection, cascading to every Plan
// referencing it.
func (s *Store) DeleteConnection(ctx context.Context, id int32) error {
	_, err := s.exec(ctx, `DELETE FROM connections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("state: delete connection %d: %w", id, err)
	}
	return nil
}

// IsConnectionInUse reports whether id is the source or target of any Plan
// currently in RUNNING status — the concurrency precondition the
// deployment coordinator checks before apply.
func (s *Store) IsConnectionInUse(ctx context.Context, id int32) (bool, error) {
	var count int
	err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM plans WHERE (source_connection_id = ? OR target_connection_id = ?) AND status = ?`,
		id, id, string(model.StatusRunning),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("state: is connection in use %d: %w", id, err)
	}
	return count > 0, nil
}

// ListConnections returns every Connection row, ordered by id.
func (s *Store) ListConnections(ctx context.Context) ([]model.Connection, error) {
	rows, err := s.query(ctx,
		`SELECT id, name, username, password, connection_string, created_at FROM connections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("state: list connections: %w", err)
	}
	defer rows.Close()

	var conns []model.Connection
	for rows.Next() {
		var c model.Connection
		if err := rows.Scan(&c.ID, &c.Name, &c.Username, &c.Password, &c.ConnectionString, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("state: scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// PlansByConnection lists every Plan referencing id as source or target.
func (s *Store) PlansByConnection(ctx context.Context, id int32) ([]model.Plan, error) {
	rows, err := s.query(ctx,
		`SELECT `+planColumns+` FROM plans WHERE source_connection_id = ? OR target_connection_id = ? ORDER BY id`,
		id, id,
	)
	if err != nil {
		return nil, fmt.Errorf("state: plans by connection %d: %w", id, err)
	}
	defer rows.Close()
	return scanPlans(rows)
}

func scanConnection(row *sql.Row) (model.Connection, error) {
	var c model.Connection
	err := row.Scan(&c.ID, &c.Name, &c.Username, &c.Password, &c.ConnectionString, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Connection{}, ErrNotFound
	}
	if err != nil {
		return model.Connection{}, fmt.Errorf("state: scan connection: %w", err)
	}
	return c, nil
}
