package oracle

import (
	"strings"
	"testing"
	"time"
)

func TestBuildObjectsQueryWithoutCutoff(t *testing.T) {
	query, args := buildObjectsQuery(ListObjectsOptions{Schemas: []string{"HR"}})
	if strings.Contains(query, "last_ddl_time >") {
		t.Fatalf("expected no cutoff clause, got %q", query)
	}
	if len(args) != 1 || args[0] != "HR" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestBuildObjectsQueryWithCutoffAndExcludes(t *testing.T) {
	cutoff := time.Unix(0, 0)
	query, args := buildObjectsQuery(ListObjectsOptions{
		Schemas:            []string{"HR", "FIN"},
		Cutoff:             &cutoff,
		ExcludeObjectTypes: []string{"SYNONYM"},
		ExcludeObjectNames: []string{"SYS_TMP"},
	})

	for _, want := range []string{"owner in (", "last_ddl_time >", "object_type not in (", "object_name not in ("} {
		if !strings.Contains(query, want) {
			t.Fatalf("query %q missing clause %q", query, want)
		}
	}
	if len(args) != 5 {
		t.Fatalf("got %d args, want 5: %v", len(args), args)
	}
}
