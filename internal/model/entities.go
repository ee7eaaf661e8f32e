package model

import "time"

// Connection holds credentials for an Oracle target.
type Connection struct {
	ID               int32
	Name             string
	Username         string
	Password         string
	ConnectionString string
	CreatedAt        time.Time
}

// Plan is a named deployment configuration.
type Plan struct {
	ID                  int32
	Name                string
	SourceConnectionID  int32
	TargetConnectionID  int32
	Schemas             StringList
	ExcludeObjectTypes  StringList
	ExcludeObjectNames  StringList
	DisabledDropTypes   StringList
	DisableAllDrops     bool
	DisableHooks        bool
	FailFast            bool
	RecompileAfterApply bool
	Status              PlanStatus
	CreatedAt           time.Time
}

// Deployment is one execution attempt of a Plan.
type Deployment struct {
	ID         int32
	PlanID     int32
	CutoffDate *time.Time
	Payload    string
	Status     PlanStatus
	Errors     StringList
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	StartedAt  *time.Time
	EndedAt    *time.Time
}

// Changeset is one database object whose DDL differs between source and
// target.
type Changeset struct {
	ID            int32
	DeploymentID  int32
	ObjectType    string
	ObjectName    string
	ObjectOwner   string
	SourceDDLTime *time.Time
	SourceDDL     *string
	TargetDDLTime *time.Time
	TargetDDL     *string
	Status        ChangesetStatus
	Errors        StringList
	CreatedAt     time.Time
	UpdatedAt     *time.Time
	StartedAt     *time.Time
	EndedAt       *time.Time
}

// Change is one atomic forward SQL statement paired with its inverse.
type Change struct {
	ID             int32
	ChangesetID    int32
	Script         string
	RollbackScript string
	Status         ChangeStatus
	Error          *string
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	StartedAt      *time.Time
	EndedAt        *time.Time
}

// Rollback is one executed or pending inverse operation.
type Rollback struct {
	ID        int32
	ChangeID  int32
	Script    string
	Status    RollbackStatus
	Error     *string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// ChangesetWithChanges pairs a Changeset with its ordered Changes, the
// shape returned by the Store's composite fetch.
type ChangesetWithChanges struct {
	Changeset Changeset
	Changes   []Change
}

// RollbackWithChange joins a materialized Rollback row with the Change
// and Changeset it undoes, the shape the Rollback Coordinator executes
// against.
type RollbackWithChange struct {
	Rollback  Rollback
	Change    Change
	Changeset Changeset
}
