package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oracleplane/oracleplane/internal/model"
)

const changesetColumns = `id, deployment_id, object_type, object_name, object_owner,
	source_ddl_time, source_ddl, target_ddl_time, target_ddl,
	status, errors, created_at, updated_at, started_at, ended_at`

// compositeOrderExpr is the apply-order rule for composite fetches:
// object-type precedence, sign-flipped when a prior object exists so
// drops run last-first within type classes.
const compositeOrderExpr = `
	CASE LOWER(object_type)
		WHEN 'table' THEN 100
		WHEN 'sequence' THEN 200
		WHEN 'view' THEN 300
		WHEN 'package' THEN 400
		WHEN 'package body' THEN 500
		WHEN 'procedure' THEN 600
		WHEN 'function' THEN 700
		WHEN 'index' THEN 800
		WHEN 'trigger' THEN 900
		ELSE 1000
	END * CASE WHEN target_ddl IS NULL THEN 1 ELSE -1 END`

// CreateChangeset inserts a Changeset row for one non-empty Delta.
func (s *Store) CreateChangeset(ctx context.Context, c model.Changeset) (model.Changeset, error) {
	now := time.Now().UTC()
	id, err := s.insert(ctx,
		`INSERT INTO changesets (deployment_id, object_type, object_name, object_owner,
			source_ddl_time, source_ddl, target_ddl_time, target_ddl, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.DeploymentID, c.ObjectType, c.ObjectName, c.ObjectOwner,
		c.SourceDDLTime, c.SourceDDL, c.TargetDDLTime, c.TargetDDL, string(model.ChangesetIdle), now,
	)
	if err != nil {
		return model.Changeset{}, fmt.Errorf("state: create changeset for deployment %d: %w", c.DeploymentID, err)
	}
	return s.GetChangesetByID(ctx, id)
}

// GetChangesetByID looks up a Changeset by id.
func (s *Store) GetChangesetByID(ctx context.Context, id int32) (model.Changeset, error) {
	row := s.queryRow(ctx, `SELECT `+changesetColumns+` FROM changesets WHERE id = ?`, id)
	return scanChangeset(row)
}

// CountChangesetsByDeployment counts a Deployment's Changesets.
func (s *Store) CountChangesetsByDeployment(ctx context.Context, deploymentID int32) (int, error) {
	var count int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM changesets WHERE deployment_id = ?`, deploymentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("state: count changesets for deployment %d: %w", deploymentID, err)
	}
	return count, nil
}

// FindWithChangesByDeployment returns every Changeset of a Deployment
// paired with its ordered Changes, in apply order. Pass reverse=true for
// the rollback-prepare traversal.
func (s *Store) FindWithChangesByDeployment(ctx context.Context, deploymentID int32, reverse bool) ([]model.ChangesetWithChanges, error) {
	direction := "ASC"
	if reverse {
		direction = "DESC"
	}

	rows, err := s.query(ctx,
		`SELECT `+changesetColumns+` FROM changesets WHERE deployment_id = ? ORDER BY `+compositeOrderExpr+` `+direction,
		deploymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("state: composite fetch for deployment %d: %w", deploymentID, err)
	}
	defer rows.Close()

	var changesets []model.Changeset
	for rows.Next() {
		c, err := scanChangesetRows(rows)
		if err != nil {
			return nil, err
		}
		changesets = append(changesets, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.ChangesetWithChanges, 0, len(changesets))
	for _, c := range changesets {
		changes, err := s.FindChangesByChangeset(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, model.ChangesetWithChanges{Changeset: c, Changes: changes})
	}
	return out, nil
}

// ListChangesetsByStatus returns a Deployment's Changesets in the given
// status, served by the index on changesets(status).
func (s *Store) ListChangesetsByStatus(ctx context.Context, deploymentID int32, status model.ChangesetStatus) ([]model.Changeset, error) {
	rows, err := s.query(ctx,
		`SELECT `+changesetColumns+` FROM changesets WHERE deployment_id = ? AND status = ? ORDER BY id`,
		deploymentID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("state: changesets by status for deployment %d: %w", deploymentID, err)
	}
	defer rows.Close()

	var out []model.Changeset
	for rows.Next() {
		c, err := scanChangesetRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetChangesetStatus atomically updates status with the timestamp side
// effects: started_at on first RUNNING, ended_at on terminal states.
func (s *Store) SetChangesetStatus(ctx context.Context, id int32, status model.ChangesetStatus) error {
	now := time.Now().UTC()

	switch status {
	case model.ChangesetRunning:
		_, err := s.exec(ctx,
			`UPDATE changesets SET status = ?, updated_at = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`,
			string(status), now, now, id)
		return wrapErr(err, "set changeset %d status", id)
	case model.ChangesetSuccess, model.ChangesetError, model.ChangesetRolledBack, model.ChangesetRollbackError:
		_, err := s.exec(ctx,
			`UPDATE changesets SET status = ?, updated_at = ?, ended_at = ? WHERE id = ?`,
			string(status), now, now, id)
		return wrapErr(err, "set changeset %d status", id)
	default:
		_, err := s.exec(ctx, `UPDATE changesets SET status = ?, updated_at = ? WHERE id = ?`, string(status), now, id)
		return wrapErr(err, "set changeset %d status", id)
	}
}

// SetChangesetErrors records the per-Changeset error accumulator.
func (s *Store) SetChangesetErrors(ctx context.Context, id int32, errs []string) error {
	_, err := s.exec(ctx, `UPDATE changesets SET errors = ? WHERE id = ?`, model.StringList(errs), id)
	return wrapErr(err, "set changeset %d errors", id)
}

func wrapErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("state: "+format+": %w", append(args, err)...)
}

func scanChangeset(row *sql.Row) (model.Changeset, error) {
	var c model.Changeset
	var status string
	err := row.Scan(&c.ID, &c.DeploymentID, &c.ObjectType, &c.ObjectName, &c.ObjectOwner,
		&c.SourceDDLTime, &c.SourceDDL, &c.TargetDDLTime, &c.TargetDDL,
		&status, &c.Errors, &c.CreatedAt, &c.UpdatedAt, &c.StartedAt, &c.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Changeset{}, ErrNotFound
	}
	if err != nil {
		return model.Changeset{}, fmt.Errorf("state: scan changeset: %w", err)
	}
	c.Status = model.ChangesetStatus(status)
	return c, nil
}

func scanChangesetRows(rows *sql.Rows) (model.Changeset, error) {
	var c model.Changeset
	var status string
	if err := rows.Scan(&c.ID, &c.DeploymentID, &c.ObjectType, &c.ObjectName, &c.ObjectOwner,
		&c.SourceDDLTime, &c.SourceDDL, &c.TargetDDLTime, &c.TargetDDL,
		&status, &c.Errors, &c.CreatedAt, &c.UpdatedAt, &c.StartedAt, &c.EndedAt); err != nil {
		return model.Changeset{}, fmt.Errorf("state: scan changeset: %w", err)
	}
	c.Status = model.ChangesetStatus(status)
	return c, nil
}
