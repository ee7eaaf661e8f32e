package coordinator

import (
	"fmt"
	"strings"
)

// ConnectError wraps a failure to reach or authenticate against an Oracle
// database.
type ConnectError struct {
	Connection string
	Cause      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %q: %s", e.Connection, e.Cause)
}

func (e *ConnectError) Unwrap() error { return e.Cause }

// SchemaValidationError reports schemas declared on a Plan that are
// absent from a catalog.
type SchemaValidationError struct {
	Missing []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("missing schemas: %s", strings.Join(e.Missing, ", "))
}

// PlanNotRunnableReason enumerates the violated concurrency
// preconditions of the runnability check.
type PlanNotRunnableReason string

const (
	ReasonAlreadyRunning PlanNotRunnableReason = "ALREADY_RUNNING"
	ReasonSourceInUse    PlanNotRunnableReason = "SOURCE_CONNECTION_IN_USE"
	ReasonTargetInUse    PlanNotRunnableReason = "TARGET_CONNECTION_IN_USE"
)

// PlanNotRunnableError reports a violated concurrency precondition.
type PlanNotRunnableError struct {
	PlanID int32
	Reason PlanNotRunnableReason
}

func (e *PlanNotRunnableError) Error() string {
	return fmt.Sprintf("plan %d is not runnable: %s", e.PlanID, e.Reason)
}

// ExecError reports a single Change or Rollback script failing at the
// database.
type ExecError struct {
	Script  string
	Message string
}

func (e *ExecError) Error() string {
	return e.Message
}

// DeployError is the aggregate error returned when at least one Change
// failed during apply.
type DeployError struct {
	Count  int
	Errors []string
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("%d change(s) failed: %s", e.Count, strings.Join(e.Errors, "; "))
}

// StoreError wraps any persisted-state invariant violation surfaced
// verbatim to the caller.
type StoreError struct {
	Cause error
}

func (e *StoreError) Error() string { return e.Cause.Error() }
func (e *StoreError) Unwrap() error { return e.Cause }
