package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oracleplane/oracleplane/internal/model"
	"github.com/oracleplane/oracleplane/internal/state"
)

// RollbackCoordinator undoes the last SUCCESS Deployment of a Plan
//, executing stored inverse scripts in reverse dependency order.
type RollbackCoordinator struct {
	Store    *state.Store
	Connect  Connector
	Progress chan<- ProgressEvent
	Logger   *zap.SugaredLogger
}

// NewRollbackCoordinator wires a RollbackCoordinator against store using
// the production Oracle connector. Progress and Logger may be left nil.
func NewRollbackCoordinator(store *state.Store, progress chan<- ProgressEvent, logger *zap.SugaredLogger) *RollbackCoordinator {
	return &RollbackCoordinator{Store: store, Connect: DefaultConnector, Progress: progress, Logger: logger}
}

// Rollback finds the plan's last SUCCESS Deployment, materializes
// Rollback rows in reverse apply order, then executes them in that
// order, stopping unconditionally at the first failure.
func (c *RollbackCoordinator) Rollback(ctx context.Context, planID int32) error {
	plan, err := c.Store.GetPlanByID(ctx, planID)
	if err != nil {
		return &StoreError{Cause: err}
	}

	deployment, err := c.Store.FindLastSuccessfulByPlan(ctx, planID)
	if err != nil {
		return fmt.Errorf("coordinator: no successful deployment to roll back for plan %d: %w", planID, err)
	}

	correlationID := uuid.NewString()
	c.log("rollback.prepare", correlationID, plan.ID, deployment.ID)

	// Prepare: materialize a Rollback row per Change, in reverse apply
	// order, before any destructive action.
	reversed, err := c.Store.FindWithChangesByDeployment(ctx, deployment.ID, true)
	if err != nil {
		return &StoreError{Cause: err}
	}

	for _, cs := range reversed {
		for _, ch := range cs.Changes {
			if _, err := c.Store.CreateRollback(ctx, ch.ID, ch.RollbackScript); err != nil {
				return &StoreError{Cause: err}
			}
		}
	}

	if err := c.Store.SetPlanStatus(ctx, plan.ID, model.StatusRollingBack); err != nil {
		return &StoreError{Cause: err}
	}
	if err := c.Store.SetDeploymentStatus(ctx, deployment.ID, model.StatusRollingBack); err != nil {
		return &StoreError{Cause: err}
	}

	targetConn, err := c.Store.GetConnectionByID(ctx, plan.TargetConnectionID)
	if err != nil {
		return &StoreError{Cause: err}
	}
	target, err := c.Connect(ctx, targetConn)
	if err != nil {
		return &ConnectError{Connection: targetConn.Name, Cause: err}
	}
	defer target.Close()

	c.log("rollback.execute", correlationID, plan.ID, deployment.ID)

	// Execute: Rollback id order equals the prepared reverse order
	// Rollback has no fail_fast knob — it always stops at
	// the first failure.
	rollbacks, err := c.Store.ListRollbacksByDeployment(ctx, deployment.ID)
	if err != nil {
		return &StoreError{Cause: err}
	}

	for _, rc := range rollbacks {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := c.Store.SetRollbackStatus(ctx, rc.Rollback.ID, model.RollbackRunning); err != nil {
			return &StoreError{Cause: err}
		}

		emit(c.Progress, ProgressEvent{
			DeploymentID: deployment.ID, ChangesetID: rc.Changeset.ID, ChangeID: rc.Change.ID,
			ObjectType: rc.Changeset.ObjectType, ObjectName: rc.Changeset.ObjectName,
			Message: "rolling back",
		})

		execErr := target.Execute(ctx, rc.Rollback.Script)
		if execErr == nil {
			if err := c.Store.SetChangeStatus(ctx, rc.Change.ID, model.ChangeRolledBack); err != nil {
				return &StoreError{Cause: err}
			}
			if err := c.Store.SetRollbackStatus(ctx, rc.Rollback.ID, model.RollbackSuccess); err != nil {
				return &StoreError{Cause: err}
			}
			continue
		}

		message := execErr.Error()
		if err := c.Store.SetChangeStatus(ctx, rc.Change.ID, model.ChangeRollbackError); err != nil {
			return &StoreError{Cause: err}
		}
		if err := c.Store.SetRollbackError(ctx, rc.Rollback.ID, message); err != nil {
			return &StoreError{Cause: err}
		}
		if err := c.Store.SetRollbackStatus(ctx, rc.Rollback.ID, model.RollbackError); err != nil {
			return &StoreError{Cause: err}
		}
		_ = c.Store.SetDeploymentStatus(ctx, deployment.ID, model.StatusRollbackError)
		_ = c.Store.SetPlanStatus(ctx, plan.ID, model.StatusRollbackError)
		c.log("rollback.error", correlationID, plan.ID, deployment.ID)

		return &ExecError{Script: rc.Rollback.Script, Message: fmt.Sprintf(
			"Change %d (%s): %s", rc.Change.ID, rc.Changeset.ObjectName, message)}
	}

	if err := c.Store.SetDeploymentStatus(ctx, deployment.ID, model.StatusRolledBack); err != nil {
		return &StoreError{Cause: err}
	}
	if err := c.Store.SetPlanStatus(ctx, plan.ID, model.StatusRolledBack); err != nil {
		return &StoreError{Cause: err}
	}
	c.log("rollback.success", correlationID, plan.ID, deployment.ID)

	return nil
}

func (c *RollbackCoordinator) log(event, correlationID string, planID, deploymentID int32) {
	if c.Logger == nil {
		return
	}
	c.Logger.Infow(event, "correlation_id", correlationID, "plan_id", planID, "deployment_id", deploymentID)
}
