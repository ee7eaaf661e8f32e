package dto

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// PlanDefinition is an importable JSON document describing a Plan to
// create, used by `oracleplane plans import`. Validated against the
// schema below before decoding.
type PlanDefinition struct {
	Name                string   `json:"name"`
	SourceConnection    string   `json:"source_connection"`
	TargetConnection    string   `json:"target_connection"`
	Schemas             []string `json:"schemas"`
	ExcludeObjectTypes  []string `json:"exclude_object_types,omitempty"`
	ExcludeObjectNames  []string `json:"exclude_object_names,omitempty"`
	DisabledDropTypes   []string `json:"disabled_drop_types,omitempty"`
	DisableAllDrops     *bool    `json:"disable_all_drops,omitempty"`
	FailFast            bool     `json:"fail_fast,omitempty"`
	RecompileAfterApply bool     `json:"recompile_after_apply,omitempty"`
}

const planDefinitionSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["name", "source_connection", "target_connection", "schemas"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"source_connection": {"type": "string", "minLength": 1},
		"target_connection": {"type": "string", "minLength": 1},
		"schemas": {"type": "array", "items": {"type": "string"}, "minItems": 1},
		"exclude_object_types": {"type": "array", "items": {"type": "string"}},
		"exclude_object_names": {"type": "array", "items": {"type": "string"}},
		"disabled_drop_types": {"type": "array", "items": {"type": "string"}},
		"disable_all_drops": {"type": "boolean"},
		"fail_fast": {"type": "boolean"},
		"recompile_after_apply": {"type": "boolean"}
	}
}`

// ParsePlanDefinition validates raw against planDefinitionSchema and
// decodes it into a PlanDefinition.
func ParsePlanDefinition(raw []byte) (PlanDefinition, error) {
	schemaLoader := gojsonschema.NewStringLoader(planDefinitionSchema)
	docLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return PlanDefinition{}, fmt.Errorf("dto: validating plan definition: %w", err)
	}
	if !result.Valid() {
		msg := "dto: invalid plan definition:"
		for _, e := range result.Errors() {
			msg += " " + e.String() + ";"
		}
		return PlanDefinition{}, fmt.Errorf("%s", msg)
	}

	var def PlanDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return PlanDefinition{}, fmt.Errorf("dto: decoding plan definition: %w", err)
	}
	return def, nil
}
