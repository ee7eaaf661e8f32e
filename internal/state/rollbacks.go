package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oracleplane/oracleplane/internal/model"
)

const rollbackColumns = `id, change_id, script, status, error, created_at, updated_at`

// CreateRollback materializes one inverse operation for a Change.
func (s *Store) CreateRollback(ctx context.Context, changeID int32, script string) (model.Rollback, error) {
	now := time.Now().UTC()
	id, err := s.insert(ctx,
		`INSERT INTO rollbacks (change_id, script, status, created_at) VALUES (?, ?, ?, ?)`,
		changeID, script, string(model.RollbackIdle), now,
	)
	if err != nil {
		return model.Rollback{}, fmt.Errorf("state: create rollback for change %d: %w", changeID, err)
	}
	return s.GetRollbackByID(ctx, id)
}

// GetRollbackByID looks up a Rollback by id.
func (s *Store) GetRollbackByID(ctx context.Context, id int32) (model.Rollback, error) {
	row := s.queryRow(ctx, `SELECT `+rollbackColumns+` FROM rollbacks WHERE id = ?`, id)
	return scanRollback(row)
}

// ListRollbacksByDeployment returns the (Rollback, Change, Changeset)
// tuples materialized for a Deployment, in Rollback id order — which
// equals the reverse-of-apply order they were prepared in.
func (s *Store) ListRollbacksByDeployment(ctx context.Context, deploymentID int32) ([]model.RollbackWithChange, error) {
	rows, err := s.query(ctx,
		`SELECT r.id, r.change_id, r.script, r.status, r.error, r.created_at, r.updated_at,
			c.id, c.changeset_id, c.script, c.rollback_script, c.status, c.error, c.created_at, c.updated_at, c.started_at, c.ended_at,
			cs.id, cs.deployment_id, cs.object_type, cs.object_name, cs.object_owner,
			cs.source_ddl_time, cs.source_ddl, cs.target_ddl_time, cs.target_ddl,
			cs.status, cs.errors, cs.created_at, cs.updated_at, cs.started_at, cs.ended_at
		FROM rollbacks r
		JOIN changes c ON r.change_id = c.id
		JOIN changesets cs ON c.changeset_id = cs.id
		WHERE cs.deployment_id = ?
		ORDER BY r.id`,
		deploymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("state: list rollbacks for deployment %d: %w", deploymentID, err)
	}
	defer rows.Close()

	var out []model.RollbackWithChange
	for rows.Next() {
		var rc model.RollbackWithChange
		var rStatus, cStatus, csStatus string
		if err := rows.Scan(
			&rc.Rollback.ID, &rc.Rollback.ChangeID, &rc.Rollback.Script, &rStatus, &rc.Rollback.Error,
			&rc.Rollback.CreatedAt, &rc.Rollback.UpdatedAt,
			&rc.Change.ID, &rc.Change.ChangesetID, &rc.Change.Script, &rc.Change.RollbackScript, &cStatus, &rc.Change.Error,
			&rc.Change.CreatedAt, &rc.Change.UpdatedAt, &rc.Change.StartedAt, &rc.Change.EndedAt,
			&rc.Changeset.ID, &rc.Changeset.DeploymentID, &rc.Changeset.ObjectType, &rc.Changeset.ObjectName, &rc.Changeset.ObjectOwner,
			&rc.Changeset.SourceDDLTime, &rc.Changeset.SourceDDL, &rc.Changeset.TargetDDLTime, &rc.Changeset.TargetDDL,
			&csStatus, &rc.Changeset.Errors, &rc.Changeset.CreatedAt, &rc.Changeset.UpdatedAt, &rc.Changeset.StartedAt, &rc.Changeset.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("state: scan rollback tuple: %w", err)
		}
		rc.Rollback.Status = model.RollbackStatus(rStatus)
		rc.Change.Status = model.ChangeStatus(cStatus)
		rc.Changeset.Status = model.ChangesetStatus(csStatus)
		out = append(out, rc)
	}
	return out, rows.Err()
}

// SetRollbackStatus atomically updates a Rollback's status.
func (s *Store) SetRollbackStatus(ctx context.Context, id int32, status model.RollbackStatus) error {
	_, err := s.exec(ctx, `UPDATE rollbacks SET status = ?, updated_at = ? WHERE id = ?`, string(status), time.Now().UTC(), id)
	return wrapErr(err, "set rollback %d status", id)
}

// SetRollbackError records the error message on a failed Rollback.
func (s *Store) SetRollbackError(ctx context.Context, id int32, message string) error {
	_, err := s.exec(ctx, `UPDATE rollbacks SET error = ?, updated_at = ? WHERE id = ?`, message, time.Now().UTC(), id)
	return wrapErr(err, "set rollback %d error", id)
}

func scanRollback(row *sql.Row) (model.Rollback, error) {
	var r model.Rollback
	var status string
	err := row.Scan(&r.ID, &r.ChangeID, &r.Script, &status, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Rollback{}, ErrNotFound
	}
	if err != nil {
		return model.Rollback{}, fmt.Errorf("state: scan rollback: %w", err)
	}
	r.Status = model.RollbackStatus(status)
	return r, nil
}
