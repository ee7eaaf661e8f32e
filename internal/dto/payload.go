// Package dto holds the JSON-serialized snapshot types persisted at the
// state-store boundary: a Deployment's frozen payload, and the plan
// import document validated against internal/dto's JSON Schema.
package dto

import "time"

// DeltaSnapshot is one considered Delta, captured verbatim into a
// Deployment's payload at prepare time.
type DeltaSnapshot struct {
	ObjectType      string     `json:"object_type"`
	ObjectName      string     `json:"object_name"`
	ObjectOwner     string     `json:"object_owner"`
	SourceDDLTime   *time.Time `json:"source_ddl_time,omitempty"`
	SourceDDL       *string    `json:"source_ddl,omitempty"`
	TargetDDLTime   *time.Time `json:"target_ddl_time,omitempty"`
	TargetDDL       *string    `json:"target_ddl,omitempty"`
	Scripts         []string   `json:"scripts"`
	RollbackScripts []string   `json:"rollback_scripts"`
}

// DeploymentPayload is the JSON document stored in deployments.payload at
// creation time — a complete, auditable record of what prepare computed,
// independent of the Changeset/Change rows later derived from it.
type DeploymentPayload struct {
	PlanID     int32           `json:"plan_id"`
	PlanName   string          `json:"plan_name"`
	CutoffDate *time.Time      `json:"cutoff_date,omitempty"`
	Schemas    []string        `json:"schemas"`
	Deltas     []DeltaSnapshot `json:"deltas"`
}
