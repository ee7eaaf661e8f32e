package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oracleplane/oracleplane/internal/model"
)

const changeColumns = `id, changeset_id, script, rollback_script, status, error,
	created_at, updated_at, started_at, ended_at`

// CreateChange inserts a Change row for one (forward_script,
// rollback_script) pair.
func (s *Store) CreateChange(ctx context.Context, changesetID int32, script, rollbackScript string) (model.Change, error) {
	if script == "" || rollbackScript == "" {
		return model.Change{}, fmt.Errorf("state: create change for changeset %d: script and rollback_script must be non-empty", changesetID)
	}
	now := time.Now().UTC()
	id, err := s.insert(ctx,
		`INSERT INTO changes (changeset_id, script, rollback_script, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		changesetID, script, rollbackScript, string(model.ChangeIdle), now,
	)
	if err != nil {
		return model.Change{}, fmt.Errorf("state: create change for changeset %d: %w", changesetID, err)
	}
	return s.GetChangeByID(ctx, id)
}

// GetChangeByID looks up a Change by id.
func (s *Store) GetChangeByID(ctx context.Context, id int32) (model.Change, error) {
	row := s.queryRow(ctx, `SELECT `+changeColumns+` FROM changes WHERE id = ?`, id)
	return scanChange(row)
}

// FindChangesByChangeset returns a Changeset's Changes in their stored
// (insertion) order — the order fixed at preparation time.
func (s *Store) FindChangesByChangeset(ctx context.Context, changesetID int32) ([]model.Change, error) {
	rows, err := s.query(ctx, `SELECT `+changeColumns+` FROM changes WHERE changeset_id = ? ORDER BY id`, changesetID)
	if err != nil {
		return nil, fmt.Errorf("state: changes for changeset %d: %w", changesetID, err)
	}
	defer rows.Close()

	var out []model.Change
	for rows.Next() {
		c, err := scanChangeRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountChangesByDeployment counts every Change across a Deployment's
// Changesets.
func (s *Store) CountChangesByDeployment(ctx context.Context, deploymentID int32) (int, error) {
	var count int
	err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM changes c JOIN changesets cs ON c.changeset_id = cs.id WHERE cs.deployment_id = ?`,
		deploymentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("state: count changes for deployment %d: %w", deploymentID, err)
	}
	return count, nil
}

// SetChangeStatus atomically updates status with the timestamp side
// effects: started_at on first RUNNING, ended_at on terminal states.
func (s *Store) SetChangeStatus(ctx context.Context, id int32, status model.ChangeStatus) error {
	now := time.Now().UTC()

	switch status {
	case model.ChangeRunning:
		_, err := s.exec(ctx,
			`UPDATE changes SET status = ?, updated_at = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`,
			string(status), now, now, id)
		return wrapErr(err, "set change %d status", id)
	case model.ChangeSuccess, model.ChangeError, model.ChangeRolledBack, model.ChangeRollbackError:
		_, err := s.exec(ctx,
			`UPDATE changes SET status = ?, updated_at = ?, ended_at = ? WHERE id = ?`,
			string(status), now, now, id)
		return wrapErr(err, "set change %d status", id)
	default:
		_, err := s.exec(ctx, `UPDATE changes SET status = ?, updated_at = ? WHERE id = ?`, string(status), now, id)
		return wrapErr(err, "set change %d status", id)
	}
}

// SetChangeError records the scalar error string on a failed Change.
func (s *Store) SetChangeError(ctx context.Context, id int32, message string) error {
	_, err := s.exec(ctx, `UPDATE changes SET error = ? WHERE id = ?`, message, id)
	return wrapErr(err, "set change %d error", id)
}

func scanChange(row *sql.Row) (model.Change, error) {
	var c model.Change
	var status string
	err := row.Scan(&c.ID, &c.ChangesetID, &c.Script, &c.RollbackScript, &status, &c.Error,
		&c.CreatedAt, &c.UpdatedAt, &c.StartedAt, &c.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Change{}, ErrNotFound
	}
	if err != nil {
		return model.Change{}, fmt.Errorf("state: scan change: %w", err)
	}
	c.Status = model.ChangeStatus(status)
	return c, nil
}

func scanChangeRows(rows *sql.Rows) (model.Change, error) {
	var c model.Change
	var status string
	if err := rows.Scan(&c.ID, &c.ChangesetID, &c.Script, &c.RollbackScript, &status, &c.Error,
		&c.CreatedAt, &c.UpdatedAt, &c.StartedAt, &c.EndedAt); err != nil {
		return model.Change{}, fmt.Errorf("state: scan change: %w", err)
	}
	c.Status = model.ChangeStatus(status)
	return c, nil
}
