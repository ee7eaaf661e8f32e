package diffengine

import (
	"strings"

	"github.com/oracleplane/oracleplane/internal/model"
)

// WithDisabledDropTypesExcluded strips forward scripts
// containing "DROP {TYPE}" for any uppercased disabled type, discarding a
// Delta entirely if every forward script is removed. Rollback scripts are
// never filtered.
func WithDisabledDropTypesExcluded(deltas []model.Delta, disabledDropTypes []string) []model.Delta {
	if len(disabledDropTypes) == 0 {
		return deltas
	}

	tokens := make([]string, len(disabledDropTypes))
	for i, t := range disabledDropTypes {
		tokens[i] = strings.ToUpper(t)
	}

	out := make([]model.Delta, 0, len(deltas))
	for _, d := range deltas {
		var kept []string
		for _, script := range d.Scripts {
			upper := strings.ToUpper(script)
			drop := false
			for _, tok := range tokens {
				if strings.Contains(upper, "DROP "+tok) {
					drop = true
					break
				}
			}
			if !drop {
				kept = append(kept, script)
			}
		}
		if len(kept) == 0 {
			continue
		}
		d.Scripts = kept
		out = append(out, d)
	}
	return out
}
