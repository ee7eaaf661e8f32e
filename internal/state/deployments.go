package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oracleplane/oracleplane/internal/model"
)

const deploymentColumns = `id, plan_id, cutoff_date, payload, status, errors,
	created_at, updated_at, started_at, ended_at`

// CreateDeployment inserts a Deployment row with the frozen plan payload.
func (s *Store) CreateDeployment(ctx context.Context, planID int32, cutoff *time.Time, payload string) (model.Deployment, error) {
	now := time.Now().UTC()
	id, err := s.insert(ctx,
		`INSERT INTO deployments (plan_id, cutoff_date, payload, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		planID, cutoff, payload, string(model.StatusIdle), now,
	)
	if err != nil {
		return model.Deployment{}, fmt.Errorf("state: create deployment for plan %d: %w", planID, err)
	}
	return s.GetDeploymentByID(ctx, id)
}

// GetDeploymentByID looks up a Deployment by id.
func (s *Store) GetDeploymentByID(ctx context.Context, id int32) (model.Deployment, error) {
	row := s.queryRow(ctx, `SELECT `+deploymentColumns+` FROM deployments WHERE id = ?`, id)
	return scanDeployment(row)
}

// FindLastSuccessfulByPlan returns the most recent SUCCESS Deployment of
// a Plan, ordered by created_at desc.
func (s *Store) FindLastSuccessfulByPlan(ctx context.Context, planID int32) (model.Deployment, error) {
	row := s.queryRow(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE plan_id = ? AND status = ? ORDER BY created_at DESC LIMIT 1`,
		planID, string(model.StatusSuccess),
	)
	return scanDeployment(row)
}

// FindLastDeploymentByPlan returns the most recent Deployment of a Plan
// regardless of status.
func (s *Store) FindLastDeploymentByPlan(ctx context.Context, planID int32) (model.Deployment, error) {
	row := s.queryRow(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE plan_id = ? ORDER BY created_at DESC LIMIT 1`,
		planID,
	)
	return scanDeployment(row)
}

// ListDeployments lists up to limit Deployments of a Plan, most recent
// first.
func (s *Store) ListDeployments(ctx context.Context, planID int32, limit int) ([]model.Deployment, error) {
	rows, err := s.query(ctx,
		`SELECT `+deploymentColumns+` FROM deployments WHERE plan_id = ? ORDER BY created_at DESC LIMIT ?`,
		planID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("state: list deployments for plan %d: %w", planID, err)
	}
	defer rows.Close()

	var out []model.Deployment
	for rows.Next() {
		d, err := scanDeploymentRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetDeploymentStatus atomically updates status and, as a side effect,
// stamps started_at on first transition into RUNNING and ended_at on
// transition into any terminal state.
func (s *Store) SetDeploymentStatus(ctx context.Context, id int32, status model.PlanStatus) error {
	now := time.Now().UTC()

	if status == model.StatusRunning {
		_, err := s.exec(ctx,
			`UPDATE deployments SET status = ?, updated_at = ?, started_at = COALESCE(started_at, ?) WHERE id = ?`,
			string(status), now, now, id)
		if err != nil {
			return fmt.Errorf("state: set deployment %d status: %w", id, err)
		}
		return nil
	}

	if status.IsTerminal() {
		_, err := s.exec(ctx,
			`UPDATE deployments SET status = ?, updated_at = ?, ended_at = ? WHERE id = ?`,
			string(status), now, now, id)
		if err != nil {
			return fmt.Errorf("state: set deployment %d status: %w", id, err)
		}
		return nil
	}

	_, err := s.exec(ctx, `UPDATE deployments SET status = ?, updated_at = ? WHERE id = ?`, string(status), now, id)
	if err != nil {
		return fmt.Errorf("state: set deployment %d status: %w", id, err)
	}
	return nil
}

// SetDeploymentErrors records the flat per-Deployment error list.
func (s *Store) SetDeploymentErrors(ctx context.Context, id int32, errs []string) error {
	_, err := s.exec(ctx, `UPDATE deployments SET errors = ? WHERE id = ?`, model.StringList(errs), id)
	if err != nil {
		return fmt.Errorf("state: set deployment %d errors: %w", id, err)
	}
	return nil
}

func scanDeployment(row *sql.Row) (model.Deployment, error) {
	var d model.Deployment
	var status string
	err := row.Scan(&d.ID, &d.PlanID, &d.CutoffDate, &d.Payload, &status, &d.Errors,
		&d.CreatedAt, &d.UpdatedAt, &d.StartedAt, &d.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Deployment{}, ErrNotFound
	}
	if err != nil {
		return model.Deployment{}, fmt.Errorf("state: scan deployment: %w", err)
	}
	d.Status = model.PlanStatus(status)
	return d, nil
}

func scanDeploymentRows(rows *sql.Rows) (model.Deployment, error) {
	var d model.Deployment
	var status string
	if err := rows.Scan(&d.ID, &d.PlanID, &d.CutoffDate, &d.Payload, &status, &d.Errors,
		&d.CreatedAt, &d.UpdatedAt, &d.StartedAt, &d.EndedAt); err != nil {
		return model.Deployment{}, fmt.Errorf("state: scan deployment: %w", err)
	}
	d.Status = model.PlanStatus(status)
	return d, nil
}
