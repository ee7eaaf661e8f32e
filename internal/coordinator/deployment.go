// Package coordinator implements the deployment and rollback
// coordinators, with explicit dependency passing and no global state.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oracleplane/oracleplane/database/oracle"
	"github.com/oracleplane/oracleplane/internal/diffengine"
	"github.com/oracleplane/oracleplane/internal/dto"
	"github.com/oracleplane/oracleplane/internal/executor"
	"github.com/oracleplane/oracleplane/internal/model"
	"github.com/oracleplane/oracleplane/internal/state"
)

// DeploymentCoordinator drives a Plan through prepare -> apply.
type DeploymentCoordinator struct {
	Store    *state.Store
	Connect  Connector
	Progress chan<- ProgressEvent
	Logger   *zap.SugaredLogger
}

// NewDeploymentCoordinator wires a Coordinator against store using the
// production Oracle connector. Progress and Logger may be left nil.
func NewDeploymentCoordinator(store *state.Store, progress chan<- ProgressEvent, logger *zap.SugaredLogger) *DeploymentCoordinator {
	return &DeploymentCoordinator{Store: store, Connect: DefaultConnector, Progress: progress, Logger: logger}
}

// PrepareInput is the input to the prepare phase.
type PrepareInput struct {
	PlanID     int32
	CutoffDate *time.Time
	// Dry, when true, computes Deltas and returns their scripts without
	// touching the State Store or the target database.
	Dry bool
	// Sink receives forward and rollback script text when Dry is true.
	// Ignored for a live prepare. May be nil even when
	// Dry is true, in which case only PrepareResult.Deltas is populated.
	Sink executor.ScriptSink
}

// PrepareResult is what Prepare returns.
type PrepareResult struct {
	// DeploymentID is set only when Dry is false.
	DeploymentID int32
	Deltas       []model.Delta
}

// Prepare connects to both databases, validates the plan's schemas,
// diffs the two catalogs, and either persists the result as a Deployment
// with Changesets and Changes or, when dry, emits the scripts to Sink.
func (c *DeploymentCoordinator) Prepare(ctx context.Context, in PrepareInput) (*PrepareResult, error) {
	plan, err := c.Store.GetPlanByID(ctx, in.PlanID)
	if err != nil {
		return nil, &StoreError{Cause: err}
	}

	sourceConn, err := c.Store.GetConnectionByID(ctx, plan.SourceConnectionID)
	if err != nil {
		return nil, &StoreError{Cause: err}
	}
	targetConn, err := c.Store.GetConnectionByID(ctx, plan.TargetConnectionID)
	if err != nil {
		return nil, &StoreError{Cause: err}
	}

	source, err := c.Connect(ctx, sourceConn)
	if err != nil {
		return nil, &ConnectError{Connection: sourceConn.Name, Cause: err}
	}
	defer source.Close()

	target, err := c.Connect(ctx, targetConn)
	if err != nil {
		return nil, &ConnectError{Connection: targetConn.Name, Cause: err}
	}
	defer target.Close()

	if err := validateSchemas(ctx, source, plan.Schemas); err != nil {
		return nil, err
	}
	if err := validateSchemas(ctx, target, plan.Schemas); err != nil {
		return nil, err
	}

	sourceObjects, err := source.ListObjects(ctx, oracle.ListObjectsOptions{
		Schemas:            plan.Schemas,
		Cutoff:             in.CutoffDate,
		ExcludeObjectTypes: plan.ExcludeObjectTypes,
		ExcludeObjectNames: plan.ExcludeObjectNames,
	})
	if err != nil {
		return nil, fmt.Errorf("coordinator: list source objects: %w", err)
	}

	targetObjects, err := target.ListObjects(ctx, oracle.ListObjectsOptions{
		Schemas:            plan.Schemas,
		ExcludeObjectTypes: plan.ExcludeObjectTypes,
		ExcludeObjectNames: plan.ExcludeObjectNames,
	})
	if err != nil {
		return nil, fmt.Errorf("coordinator: list target objects: %w", err)
	}

	deltas := diffengine.FindDeltas(sourceObjects, targetObjects, plan.DisableAllDrops)
	deltas = diffengine.WithDisabledDropTypesExcluded(deltas, plan.DisabledDropTypes)

	// Safety-net re-check: a Delta carrying equal source/target DDL (or
	// left with no scripts by filtering) never becomes a Changeset.
	nonEmpty := make([]model.Delta, 0, len(deltas))
	for _, d := range deltas {
		if !d.IsNoOp() {
			nonEmpty = append(nonEmpty, d)
		}
	}

	if in.Dry {
		if in.Sink != nil {
			for _, d := range nonEmpty {
				for _, script := range d.Scripts {
					if err := in.Sink.WriteForward(script); err != nil {
						return nil, fmt.Errorf("coordinator: writing forward script: %w", err)
					}
				}
				for _, script := range d.RollbackScripts {
					if err := in.Sink.WriteRollback(script); err != nil {
						return nil, fmt.Errorf("coordinator: writing rollback script: %w", err)
					}
				}
			}
		}
		return &PrepareResult{Deltas: nonEmpty}, nil
	}

	payload, err := buildPayload(plan, in.CutoffDate, nonEmpty)
	if err != nil {
		return nil, fmt.Errorf("coordinator: build payload: %w", err)
	}

	deployment, err := c.Store.CreateDeployment(ctx, plan.ID, in.CutoffDate, payload)
	if err != nil {
		return nil, &StoreError{Cause: err}
	}

	for _, d := range nonEmpty {
		changeset, err := c.Store.CreateChangeset(ctx, model.Changeset{
			DeploymentID:  deployment.ID,
			ObjectType:    d.ObjectType,
			ObjectName:    d.ObjectName,
			ObjectOwner:   d.ObjectOwner,
			SourceDDLTime: d.SourceDDLTime,
			SourceDDL:     d.SourceDDL,
			TargetDDLTime: d.TargetDDLTime,
			TargetDDL:     d.TargetDDL,
		})
		if err != nil {
			return nil, &StoreError{Cause: err}
		}

		for i, script := range d.Scripts {
			rollbackScript := script
			if i < len(d.RollbackScripts) {
				rollbackScript = d.RollbackScripts[i]
			}
			if _, err := c.Store.CreateChange(ctx, changeset.ID, script, rollbackScript); err != nil {
				return nil, &StoreError{Cause: err}
			}
		}
	}

	return &PrepareResult{DeploymentID: deployment.ID, Deltas: nonEmpty}, nil
}

// validateSchemas checks every declared schema against the catalog's
// user list, collecting all missing names before failing.
func validateSchemas(ctx context.Context, client OracleClient, schemas []string) error {
	users, err := client.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("coordinator: list users: %w", err)
	}
	present := make(map[string]struct{}, len(users))
	for _, u := range users {
		present[u] = struct{}{}
	}

	var missing []string
	for _, s := range schemas {
		if _, ok := present[s]; !ok {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return &SchemaValidationError{Missing: missing}
	}
	return nil
}

func buildPayload(plan model.Plan, cutoff *time.Time, deltas []model.Delta) (string, error) {
	snapshots := make([]dto.DeltaSnapshot, len(deltas))
	for i, d := range deltas {
		snapshots[i] = dto.DeltaSnapshot{
			ObjectType:      d.ObjectType,
			ObjectName:      d.ObjectName,
			ObjectOwner:     d.ObjectOwner,
			SourceDDLTime:   d.SourceDDLTime,
			SourceDDL:       d.SourceDDL,
			TargetDDLTime:   d.TargetDDLTime,
			TargetDDL:       d.TargetDDL,
			Scripts:         d.Scripts,
			RollbackScripts: d.RollbackScripts,
		}
	}
	payload := dto.DeploymentPayload{
		PlanID:     plan.ID,
		PlanName:   plan.Name,
		CutoffDate: cutoff,
		Schemas:    plan.Schemas,
		Deltas:     snapshots,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Apply executes a prepared Deployment's Changes against the plan's
// target connection, driving the Plan/Deployment status machine.
func (c *DeploymentCoordinator) Apply(ctx context.Context, deploymentID int32, failFast bool) error {
	deployment, err := c.Store.GetDeploymentByID(ctx, deploymentID)
	if err != nil {
		return &StoreError{Cause: err}
	}
	plan, err := c.Store.GetPlanByID(ctx, deployment.PlanID)
	if err != nil {
		return &StoreError{Cause: err}
	}

	if err := c.checkRunnable(ctx, plan); err != nil {
		return err
	}

	correlationID := uuid.NewString()
	c.log("deployment.apply.start", correlationID, plan.ID, deployment.ID)

	if err := c.Store.SetPlanStatus(ctx, plan.ID, model.StatusRunning); err != nil {
		return &StoreError{Cause: err}
	}
	if err := c.Store.SetDeploymentStatus(ctx, deployment.ID, model.StatusRunning); err != nil {
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

	changesets, err := c.Store.FindWithChangesByDeployment(ctx, deployment.ID, false)
	if err != nil {
		return &StoreError{Cause: err}
	}

	deployErr := c.runChangesets(ctx, target, changesets, failFast)

	if deployErr != nil {
		var de *DeployError
		if errors.As(deployErr, &de) {
			_ = c.Store.SetDeploymentErrors(ctx, deployment.ID, de.Errors)
		}
		_ = c.Store.SetDeploymentStatus(ctx, deployment.ID, model.StatusError)
		_ = c.Store.SetPlanStatus(ctx, plan.ID, model.StatusError)
		c.log("deployment.apply.error", correlationID, plan.ID, deployment.ID)
		return deployErr
	}

	if err := c.Store.SetDeploymentStatus(ctx, deployment.ID, model.StatusSuccess); err != nil {
		return &StoreError{Cause: err}
	}
	if err := c.Store.SetPlanStatus(ctx, plan.ID, model.StatusSuccess); err != nil {
		return &StoreError{Cause: err}
	}
	c.log("deployment.apply.success", correlationID, plan.ID, deployment.ID)

	if plan.RecompileAfterApply {
		if recompiler, ok := target.(recompiler); ok {
			if err := recompiler.RecompileInvalidObjects(ctx, 0); err != nil && c.Logger != nil {
				c.Logger.Warnw("recompile invalid objects failed", "plan_id", plan.ID, "error", err)
			}
		}
	}

	return nil
}

type recompiler interface {
	RecompileInvalidObjects(ctx context.Context, parallelDegree int) error
}

// runChangesets executes each Changeset's Changes in their stored
// order, accumulating errors per changeset and per deployment.
func (c *DeploymentCoordinator) runChangesets(ctx context.Context, target OracleClient, changesets []model.ChangesetWithChanges, failFast bool) error {
	var allErrors []string

	for _, cs := range changesets {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := c.Store.SetChangesetStatus(ctx, cs.Changeset.ID, model.ChangesetRunning); err != nil {
			return &StoreError{Cause: err}
		}

		var changesetErrors []string
		for _, ch := range cs.Changes {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if err := c.Store.SetChangeStatus(ctx, ch.ID, model.ChangeRunning); err != nil {
				return &StoreError{Cause: err}
			}

			emit(c.Progress, ProgressEvent{
				ChangesetID: cs.Changeset.ID, ChangeID: ch.ID,
				ObjectType: cs.Changeset.ObjectType, ObjectName: cs.Changeset.ObjectName,
				Message: "executing",
			})

			execErr := target.Execute(ctx, ch.Script)
			if execErr == nil {
				if err := c.Store.SetChangeStatus(ctx, ch.ID, model.ChangeSuccess); err != nil {
					return &StoreError{Cause: err}
				}
				continue
			}

			message := execErr.Error()
			if err := c.Store.SetChangeError(ctx, ch.ID, message); err != nil {
				return &StoreError{Cause: err}
			}
			if err := c.Store.SetChangeStatus(ctx, ch.ID, model.ChangeError); err != nil {
				return &StoreError{Cause: err}
			}

			formatted := fmt.Sprintf("Change %d (%s): %s", ch.ID, cs.Changeset.ObjectName, message)
			changesetErrors = append(changesetErrors, formatted)
			allErrors = append(allErrors, formatted)

			if failFast {
				return &DeployError{Count: 1, Errors: []string{formatted}}
			}
		}

		if len(changesetErrors) == 0 {
			if err := c.Store.SetChangesetStatus(ctx, cs.Changeset.ID, model.ChangesetSuccess); err != nil {
				return &StoreError{Cause: err}
			}
		} else {
			if err := c.Store.SetChangesetErrors(ctx, cs.Changeset.ID, changesetErrors); err != nil {
				return &StoreError{Cause: err}
			}
			if err := c.Store.SetChangesetStatus(ctx, cs.Changeset.ID, model.ChangesetError); err != nil {
				return &StoreError{Cause: err}
			}
		}
	}

	if len(allErrors) > 0 {
		return &DeployError{Count: len(allErrors), Errors: allErrors}
	}
	return nil
}

// checkRunnable enforces at most one RUNNING plan per connection.
func (c *DeploymentCoordinator) checkRunnable(ctx context.Context, plan model.Plan) error {
	running, err := c.Store.IsRunning(ctx, plan.ID)
	if err != nil {
		return &StoreError{Cause: err}
	}
	if running {
		return &PlanNotRunnableError{PlanID: plan.ID, Reason: ReasonAlreadyRunning}
	}

	sourceInUse, err := c.Store.IsConnectionInUse(ctx, plan.SourceConnectionID)
	if err != nil {
		return &StoreError{Cause: err}
	}
	if sourceInUse {
		return &PlanNotRunnableError{PlanID: plan.ID, Reason: ReasonSourceInUse}
	}

	targetInUse, err := c.Store.IsConnectionInUse(ctx, plan.TargetConnectionID)
	if err != nil {
		return &StoreError{Cause: err}
	}
	if targetInUse {
		return &PlanNotRunnableError{PlanID: plan.ID, Reason: ReasonTargetInUse}
	}

	return nil
}

// PrepareAndRun is a convenience wrapper over the canonical split
// prepare/apply pair.
func (c *DeploymentCoordinator) PrepareAndRun(ctx context.Context, in PrepareInput, failFast bool) (*PrepareResult, error) {
	result, err := c.Prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	if in.Dry {
		return result, nil
	}
	if err := c.Apply(ctx, result.DeploymentID, failFast); err != nil {
		return result, err
	}
	return result, nil
}

func (c *DeploymentCoordinator) log(event, correlationID string, planID, deploymentID int32) {
	if c.Logger == nil {
		return
	}
	c.Logger.Infow(event, "correlation_id", correlationID, "plan_id", planID, "deployment_id", deploymentID)
}
