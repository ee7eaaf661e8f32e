package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oracleplane/oracleplane/internal/model"
)

const planColumns = `id, name, source_connection_id, target_connection_id, schemas,
	exclude_object_types, exclude_object_names, disabled_drop_types,
	fail_fast, disable_all_drops, disable_hooks, recompile_after_apply,
	status, created_at`

// CreatePlan inserts a new Plan row. Status defaults to IDLE.
func (s *Store) CreatePlan(ctx context.Context, p model.Plan) (model.Plan, error) {
	if p.SourceConnectionID == p.TargetConnectionID {
		return model.Plan{}, fmt.Errorf("state: create plan %q: source and target connection must differ", p.Name)
	}
	if len(p.Schemas) == 0 {
		return model.Plan{}, fmt.Errorf("state: create plan %q: schemas must be non-empty", p.Name)
	}

	p.Status = model.StatusIdle
	p.CreatedAt = time.Now().UTC()

	id, err := s.insert(ctx,
		`INSERT INTO plans (name, source_connection_id, target_connection_id, schemas,
			exclude_object_types, exclude_object_names, disabled_drop_types,
			fail_fast, disable_all_drops, disable_hooks, recompile_after_apply,
			status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.SourceConnectionID, p.TargetConnectionID, p.Schemas,
		p.ExcludeObjectTypes, p.ExcludeObjectNames, p.DisabledDropTypes,
		p.FailFast, p.DisableAllDrops, p.DisableHooks, p.RecompileAfterApply,
		string(p.Status), p.CreatedAt,
	)
	if err != nil {
		return model.Plan{}, fmt.Errorf("state: create plan %q: %w", p.Name, err)
	}
	p.ID = id
	return p, nil
}

// GetPlanByID looks up a Plan by id.
func (s *Store) GetPlanByID(ctx context.Context, id int32) (model.Plan, error) {
	row := s.queryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id)
	return scanPlan(row)
}

// FindPlanByName looks up a Plan by case-insensitive name.
func (s *Store) FindPlanByName(ctx context.Context, name string) (model.Plan, error) {
	row := s.queryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE LOWER(name) = LOWER(?)`, name)
	return scanPlan(row)
}

// ListPlans returns every Plan, ordered by id.
func (s *Store) ListPlans(ctx context.Context) ([]model.Plan, error) {
	rows, err := s.query(ctx, `SELECT `+planColumns+` FROM plans ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("state: list plans: %w", err)
	}
	defer rows.Close()
	return scanPlans(rows)
}

// ListPlansByStatus returns every Plan in the given status, ordered by id.
func (s *Store) ListPlansByStatus(ctx context.Context, status model.PlanStatus) ([]model.Plan, error) {
	rows, err := s.query(ctx, `SELECT `+planColumns+` FROM plans WHERE status = ? ORDER BY id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("state: plans by status %s: %w", status, err)
	}
	defer rows.Close()
	return scanPlans(rows)
}

// IsRunning reports whether the given Plan is currently RUNNING.
func (s *Store) IsRunning(ctx context.Context, planID int32) (bool, error) {
	p, err := s.GetPlanByID(ctx, planID)
	if err != nil {
		return false, err
	}
	return p.Status == model.StatusRunning, nil
}

// SetPlanStatus atomically updates a Plan's status. Plan has no
// started_at/ended_at columns of its own; timestamp side effects
// live on Deployment.
func (s *Store) SetPlanStatus(ctx context.Context, id int32, status model.PlanStatus) error {
	_, err := s.exec(ctx, `UPDATE plans SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("state: set plan %d status: %w", id, err)
	}
	return nil
}

// DeletePlan removes a Plan, cascading to its Deployments.
func (s *Store) DeletePlan(ctx context.Context, id int32) error {
	_, err := s.exec(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("state: delete plan %d: %w", id, err)
	}
	return nil
}

func scanPlan(row *sql.Row) (model.Plan, error) {
	var p model.Plan
	var status string
	err := row.Scan(&p.ID, &p.Name, &p.SourceConnectionID, &p.TargetConnectionID, &p.Schemas,
		&p.ExcludeObjectTypes, &p.ExcludeObjectNames, &p.DisabledDropTypes,
		&p.FailFast, &p.DisableAllDrops, &p.DisableHooks, &p.RecompileAfterApply,
		&status, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	if err != nil {
		return model.Plan{}, fmt.Errorf("state: scan plan: %w", err)
	}
	p.Status = model.PlanStatus(status)
	return p, nil
}

func scanPlans(rows *sql.Rows) ([]model.Plan, error) {
	var out []model.Plan
	for rows.Next() {
		var p model.Plan
		var status string
		if err := rows.Scan(&p.ID, &p.Name, &p.SourceConnectionID, &p.TargetConnectionID, &p.Schemas,
			&p.ExcludeObjectTypes, &p.ExcludeObjectNames, &p.DisabledDropTypes,
			&p.FailFast, &p.DisableAllDrops, &p.DisableHooks, &p.RecompileAfterApply,
			&status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("state: scan plan: %w", err)
		}
		p.Status = model.PlanStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}
