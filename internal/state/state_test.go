package state

import (
	"context"
	"testing"

	"github.com/oracleplane/oracleplane/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, "file:"+t.TempDir()+"/state.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustConnection(t *testing.T, s *Store, name string) model.Connection {
	t.Helper()
	c, err := s.CreateConnection(context.Background(), model.Connection{
		Name: name, Username: "u", Password: "p", ConnectionString: "dsn",
	})
	if err != nil {
		t.Fatalf("CreateConnection(%q): %v", name, err)
	}
	return c
}

func TestCreateAndFindPlan(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	src := mustConnection(t, s, "src")
	dst := mustConnection(t, s, "dst")

	p, err := s.CreatePlan(ctx, model.Plan{
		Name:               "nightly",
		SourceConnectionID: src.ID,
		TargetConnectionID: dst.ID,
		Schemas:            model.StringList{"HR"},
		DisableAllDrops:    true,
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if p.Status != model.StatusIdle {
		t.Fatalf("new plan status = %q, want IDLE", p.Status)
	}

	found, err := s.FindPlanByName(ctx, "NIGHTLY")
	if err != nil {
		t.Fatalf("FindPlanByName (case-insensitive): %v", err)
	}
	if found.ID != p.ID {
		t.Fatalf("found plan id %d, want %d", found.ID, p.ID)
	}
}

func TestCreatePlanRejectsSameConnection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := mustConnection(t, s, "only")

	_, err := s.CreatePlan(ctx, model.Plan{
		Name: "bad", SourceConnectionID: c.ID, TargetConnectionID: c.ID, Schemas: model.StringList{"HR"},
	})
	if err == nil {
		t.Fatal("expected error when source == target connection")
	}
}

func TestDeploymentStatusTimestamps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	src := mustConnection(t, s, "src")
	dst := mustConnection(t, s, "dst")
	p, _ := s.CreatePlan(ctx, model.Plan{
		Name: "p", SourceConnectionID: src.ID, TargetConnectionID: dst.ID, Schemas: model.StringList{"HR"},
	})

	d, err := s.CreateDeployment(ctx, p.ID, nil, "{}")
	if err != nil {
		t.Fatalf("CreateDeployment: %v", err)
	}
	if d.StartedAt != nil {
		t.Fatalf("expected nil started_at before RUNNING")
	}

	if err := s.SetDeploymentStatus(ctx, d.ID, model.StatusRunning); err != nil {
		t.Fatalf("SetDeploymentStatus(RUNNING): %v", err)
	}
	d, _ = s.GetDeploymentByID(ctx, d.ID)
	if d.StartedAt == nil {
		t.Fatal("expected started_at set after RUNNING")
	}
	if d.EndedAt != nil {
		t.Fatal("expected ended_at still nil after RUNNING")
	}

	if err := s.SetDeploymentStatus(ctx, d.ID, model.StatusSuccess); err != nil {
		t.Fatalf("SetDeploymentStatus(SUCCESS): %v", err)
	}
	d, _ = s.GetDeploymentByID(ctx, d.ID)
	if d.EndedAt == nil {
		t.Fatal("expected ended_at set after terminal status")
	}
	if d.StartedAt.After(*d.EndedAt) {
		t.Fatal("expected started_at <= ended_at")
	}
}

func TestCompositeFetchOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	src := mustConnection(t, s, "src")
	dst := mustConnection(t, s, "dst")
	p, _ := s.CreatePlan(ctx, model.Plan{
		Name: "p", SourceConnectionID: src.ID, TargetConnectionID: dst.ID, Schemas: model.StringList{"HR"},
	})
	d, _ := s.CreateDeployment(ctx, p.ID, nil, "{}")

	// Insert in a scrambled order: trigger, table, view — all CREATEs
	// (target_ddl null), expecting TABLE, VIEW, TRIGGER apply order.
	for _, objType := range []string{"TRIGGER", "TABLE", "VIEW"} {
		_, err := s.CreateChangeset(ctx, model.Changeset{
			DeploymentID: d.ID, ObjectType: objType, ObjectName: "X", ObjectOwner: "HR",
		})
		if err != nil {
			t.Fatalf("CreateChangeset(%s): %v", objType, err)
		}
	}

	ordered, err := s.FindWithChangesByDeployment(ctx, d.ID, false)
	if err != nil {
		t.Fatalf("FindWithChangesByDeployment: %v", err)
	}
	if len(ordered) != 3 {
		t.Fatalf("got %d changesets, want 3", len(ordered))
	}
	got := []string{ordered[0].Changeset.ObjectType, ordered[1].Changeset.ObjectType, ordered[2].Changeset.ObjectType}
	want := []string{"TABLE", "VIEW", "TRIGGER"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("apply order = %v, want %v", got, want)
		}
	}

	reversed, err := s.FindWithChangesByDeployment(ctx, d.ID, true)
	if err != nil {
		t.Fatalf("FindWithChangesByDeployment (reverse): %v", err)
	}
	if reversed[0].Changeset.ObjectType != "TRIGGER" || reversed[2].Changeset.ObjectType != "TABLE" {
		t.Fatalf("reverse order wrong: %v", reversed)
	}
}

func TestIsConnectionInUse(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	src := mustConnection(t, s, "src")
	dst := mustConnection(t, s, "dst")
	p, _ := s.CreatePlan(ctx, model.Plan{
		Name: "p", SourceConnectionID: src.ID, TargetConnectionID: dst.ID, Schemas: model.StringList{"HR"},
	})

	inUse, err := s.IsConnectionInUse(ctx, src.ID)
	if err != nil {
		t.Fatalf("IsConnectionInUse: %v", err)
	}
	if inUse {
		t.Fatal("expected connection not in use before RUNNING")
	}

	if err := s.SetPlanStatus(ctx, p.ID, model.StatusRunning); err != nil {
		t.Fatalf("SetPlanStatus: %v", err)
	}
	inUse, err = s.IsConnectionInUse(ctx, src.ID)
	if err != nil {
		t.Fatalf("IsConnectionInUse: %v", err)
	}
	if !inUse {
		t.Fatal("expected connection in use while plan RUNNING")
	}
}
