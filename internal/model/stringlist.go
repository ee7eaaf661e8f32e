package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a []string persisted as a JSON array of strings in a
// single TEXT column — the shape every list-valued bookkeeping column
// (schemas, exclude lists, error accumulators) uses. A NULL column scans
// as a nil StringList.
type StringList []string

// Value implements driver.Valuer.
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *StringList) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}

	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("model: cannot scan %T into StringList", src)
	}

	if raw == "" {
		*s = nil
		return nil
	}

	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return fmt.Errorf("model: scanning StringList: %w", err)
	}
	*s = out
	return nil
}
