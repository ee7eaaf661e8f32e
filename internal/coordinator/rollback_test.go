package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/oracleplane/oracleplane/database/oracle"
	"github.com/oracleplane/oracleplane/internal/model"
	"github.com/oracleplane/oracleplane/internal/state"
)

// fakeClient is an OracleClient double that records every Execute call in
// order and can be made to fail on a chosen script.
type fakeClient struct {
	users    []string
	objects  []model.Object
	executed []string
	failOn   string
	failErr  error
	closed   bool
}

func (f *fakeClient) ListUsers(ctx context.Context) ([]string, error) { return f.users, nil }

func (f *fakeClient) ListObjects(ctx context.Context, opts oracle.ListObjectsOptions) ([]model.Object, error) {
	return f.objects, nil
}

func (f *fakeClient) Execute(ctx context.Context, stmt string) error {
	f.executed = append(f.executed, stmt)
	if f.failOn != "" && stmt == f.failOn {
		return f.failErr
	}
	return nil
}

func (f *fakeClient) Ping(ctx context.Context) error { return nil }
func (f *fakeClient) Close() error                   { f.closed = true; return nil }

func newTestStoreCoordinator(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.Open(context.Background(), "file:"+t.TempDir()+"/state.db")
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedSuccessfulDeployment creates a Plan with one successful Deployment
// containing two Changesets of one Change each, in apply order.
func seedSuccessfulDeployment(t *testing.T, s *state.Store) (model.Plan, model.Deployment) {
	t.Helper()
	ctx := context.Background()

	src, err := s.CreateConnection(ctx, model.Connection{Name: "src", Username: "u", Password: "p", ConnectionString: "dsn1"})
	if err != nil {
		t.Fatalf("CreateConnection src: %v", err)
	}
	dst, err := s.CreateConnection(ctx, model.Connection{Name: "dst", Username: "u", Password: "p", ConnectionString: "dsn2"})
	if err != nil {
		t.Fatalf("CreateConnection dst: %v", err)
	}

	plan, err := s.CreatePlan(ctx, model.Plan{
		Name:               "nightly",
		SourceConnectionID: src.ID,
		TargetConnectionID: dst.ID,
		Schemas:            model.StringList{"HR"},
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	deployment, err := s.CreateDeployment(ctx, plan.ID, nil, "{}")
	if err != nil {
		t.Fatalf("CreateDeployment: %v", err)
	}

	// Distinct object types (TABLE=100, INDEX=800 per the apply-order
	// table) make the forward/reverse ordering deterministic regardless
	// of sqlite's tie-break behavior for equal ORDER BY keys.
	objectTypes := []string{"TABLE", "INDEX"}
	for i, name := range []string{"EMPLOYEES", "DEPT_IDX"} {
		cs, err := s.CreateChangeset(ctx, model.Changeset{
			DeploymentID: deployment.ID,
			ObjectType:   objectTypes[i],
			ObjectName:   name,
			ObjectOwner:  "HR",
		})
		if err != nil {
			t.Fatalf("CreateChangeset %d: %v", i, err)
		}
		ch, err := s.CreateChange(ctx, cs.ID, "CREATE "+objectTypes[i]+" "+name, "DROP "+objectTypes[i]+" "+name)
		if err != nil {
			t.Fatalf("CreateChange %d: %v", i, err)
		}
		if err := s.SetChangeStatus(ctx, ch.ID, model.ChangeSuccess); err != nil {
			t.Fatalf("SetChangeStatus %d: %v", i, err)
		}
		if err := s.SetChangesetStatus(ctx, cs.ID, model.ChangesetSuccess); err != nil {
			t.Fatalf("SetChangesetStatus %d: %v", i, err)
		}
	}

	if err := s.SetDeploymentStatus(ctx, deployment.ID, model.StatusSuccess); err != nil {
		t.Fatalf("SetDeploymentStatus: %v", err)
	}
	if err := s.SetPlanStatus(ctx, plan.ID, model.StatusSuccess); err != nil {
		t.Fatalf("SetPlanStatus: %v", err)
	}

	return plan, deployment
}

func TestRollbackExecutesInReverseApplyOrder(t *testing.T) {
	s := newTestStoreCoordinator(t)
	plan, _ := seedSuccessfulDeployment(t, s)

	client := &fakeClient{}
	rc := &RollbackCoordinator{
		Store:   s,
		Connect: func(ctx context.Context, conn model.Connection) (OracleClient, error) { return client, nil },
	}

	if err := rc.Rollback(context.Background(), plan.ID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	want := []string{
		"DROP INDEX DEPT_IDX",
		"DROP TABLE EMPLOYEES",
	}
	if len(client.executed) != len(want) {
		t.Fatalf("executed %v, want %v", client.executed, want)
	}
	for i, stmt := range want {
		if client.executed[i] != stmt {
			t.Fatalf("executed[%d] = %q, want %q", i, client.executed[i], stmt)
		}
	}

	updated, err := s.GetPlanByID(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("GetPlanByID: %v", err)
	}
	if updated.Status != model.StatusRolledBack {
		t.Fatalf("plan status = %q, want ROLLED_BACK", updated.Status)
	}
	if !client.closed {
		t.Fatalf("target connection was never closed")
	}
}

func TestRollbackStopsAtFirstFailure(t *testing.T) {
	s := newTestStoreCoordinator(t)
	plan, _ := seedSuccessfulDeployment(t, s)

	client := &fakeClient{
		failOn:  "DROP INDEX DEPT_IDX",
		failErr: errors.New("ORA-00904: invalid identifier"),
	}
	rc := &RollbackCoordinator{
		Store:   s,
		Connect: func(ctx context.Context, conn model.Connection) (OracleClient, error) { return client, nil },
	}

	err := rc.Rollback(context.Background(), plan.ID)
	if err == nil {
		t.Fatalf("Rollback: want error, got nil")
	}
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("Rollback error = %T, want *ExecError", err)
	}

	if len(client.executed) != 1 {
		t.Fatalf("executed %v, want exactly the failing statement", client.executed)
	}

	updated, err := s.GetPlanByID(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("GetPlanByID: %v", err)
	}
	if updated.Status != model.StatusRollbackError {
		t.Fatalf("plan status = %q, want ROLLBACK_ERROR", updated.Status)
	}
}
