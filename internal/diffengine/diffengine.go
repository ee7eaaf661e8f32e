// Package diffengine produces ordered forward/rollback script pairs from
// two Oracle object catalogs.
package diffengine

import (
	"fmt"
	"strings"
	"time"

	"github.com/oracleplane/oracleplane/internal/model"
)

// FindDeltas performs the three-way match between source and
// target object sets, honoring disableAllDrops. Matching is by
// (owner, object_name, object_type) triple.
func FindDeltas(sources, targets []model.Object, disableAllDrops bool) []model.Delta {
	byKey := make(map[model.Key]model.Object, len(targets))
	for _, t := range targets {
		byKey[t.KeyOf()] = t
	}

	processed := make(map[model.Key]struct{}, len(sources))
	deltas := make([]model.Delta, 0, len(sources))

	for _, s := range sources {
		key := s.KeyOf()
		processed[key] = struct{}{}
		t, hasTarget := byKey[key]
		if hasTarget {
			deltas = append(deltas, buildDelta(&s, &t))
		} else {
			deltas = append(deltas, buildDelta(&s, nil))
		}
	}

	if !disableAllDrops {
		for _, t := range targets {
			key := t.KeyOf()
			if _, ok := processed[key]; ok {
				continue
			}
			deltas = append(deltas, buildDelta(nil, &t))
		}
	}

	return deltas
}

// buildDelta dispatches on which of source/target is present.
func buildDelta(source, target *model.Object) model.Delta {
	switch {
	case source != nil && target == nil:
		return createDelta(*source)
	case source != nil && target != nil:
		return updateDelta(*source, *target)
	case source == nil && target != nil:
		return dropDelta(*target)
	default:
		return model.Delta{}
	}
}

func createDelta(s model.Object) model.Delta {
	ddl := derefString(s.DDL)
	return model.Delta{
		ObjectType:    s.ObjectType,
		ObjectName:    s.ObjectName,
		ObjectOwner:   s.Owner,
		SourceDDLTime: timePtr(s.LastDDLTime),
		SourceDDL:     s.DDL,
		Scripts:       []string{ddl},
		RollbackScripts: []string{
			fmt.Sprintf("DROP %s %s.%s", s.ObjectType, s.Owner, s.ObjectName),
		},
	}
}

func dropDelta(t model.Object) model.Delta {
	ddl := derefString(t.DDL)
	return model.Delta{
		ObjectType:    t.ObjectType,
		ObjectName:    t.ObjectName,
		ObjectOwner:   t.Owner,
		TargetDDLTime: timePtr(t.LastDDLTime),
		TargetDDL:     t.DDL,
		Scripts: []string{
			fmt.Sprintf("DROP %s %s.%s", t.ObjectType, t.Owner, t.ObjectName),
		},
		RollbackScripts: []string{ddl},
	}
}

// updateDelta diffs two versions of the same object: replace-whole-DDL
// for non-tables, column-level ALTERs for tables.
func updateDelta(s, t model.Object) model.Delta {
	d := model.Delta{
		ObjectType:    s.ObjectType,
		ObjectName:    s.ObjectName,
		ObjectOwner:   s.Owner,
		SourceDDLTime: timePtr(s.LastDDLTime),
		SourceDDL:     s.DDL,
		TargetDDLTime: timePtr(t.LastDDLTime),
		TargetDDL:     t.DDL,
	}

	sourceDDL := derefString(s.DDL)
	targetDDL := derefString(t.DDL)
	if sourceDDL == targetDDL {
		return d
	}

	if !strings.EqualFold(s.ObjectType, "TABLE") {
		d.Scripts = []string{sourceDDL}
		d.RollbackScripts = []string{targetDDL}
		return d
	}

	owner, name := s.Owner, s.ObjectName
	d.Scripts = columnDiffScripts(owner, name, sourceDDL, targetDDL)
	d.RollbackScripts = columnDiffScripts(owner, name, targetDDL, sourceDDL)
	return d
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
