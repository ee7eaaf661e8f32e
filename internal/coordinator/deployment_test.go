package coordinator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/oracleplane/oracleplane/internal/executor"
	"github.com/oracleplane/oracleplane/internal/model"
	"github.com/oracleplane/oracleplane/internal/state"
)

// connectByName routes Connect calls to per-connection fakes so source
// and target can serve different catalogs.
func connectByName(clients map[string]*fakeClient) Connector {
	return func(ctx context.Context, conn model.Connection) (OracleClient, error) {
		c, ok := clients[conn.Name]
		if !ok {
			return nil, errors.New("no fake for connection " + conn.Name)
		}
		return c, nil
	}
}

func seedPlan(t *testing.T, s *state.Store) model.Plan {
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
		DisableAllDrops:    true,
	})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	return plan
}

func TestPrepareCreatesDeploymentWithChanges(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreCoordinator(t)
	plan := seedPlan(t, s)

	empDDL := "CREATE TABLE HR.EMP (ID INT)"
	cc := &DeploymentCoordinator{
		Store: s,
		Connect: connectByName(map[string]*fakeClient{
			"src": {users: []string{"HR"}, objects: []model.Object{
				{Owner: "HR", ObjectName: "EMP", ObjectType: "TABLE", DDL: &empDDL},
			}},
			"dst": {users: []string{"HR"}},
		}),
	}

	result, err := cc.Prepare(ctx, PrepareInput{PlanID: plan.ID})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if result.DeploymentID == 0 {
		t.Fatal("expected a persisted deployment id")
	}
	if len(result.Deltas) != 1 {
		t.Fatalf("got %d deltas, want 1", len(result.Deltas))
	}

	composite, err := s.FindWithChangesByDeployment(ctx, result.DeploymentID, false)
	if err != nil {
		t.Fatalf("FindWithChangesByDeployment: %v", err)
	}
	if len(composite) != 1 {
		t.Fatalf("got %d changesets, want 1", len(composite))
	}
	cs := composite[0]
	if cs.Changeset.ObjectType != "TABLE" || cs.Changeset.ObjectName != "EMP" {
		t.Fatalf("unexpected changeset: %+v", cs.Changeset)
	}
	if cs.Changeset.TargetDDL != nil {
		t.Fatalf("pure CREATE should have nil target_ddl, got %v", *cs.Changeset.TargetDDL)
	}
	if len(cs.Changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(cs.Changes))
	}
	if cs.Changes[0].Script != empDDL || cs.Changes[0].RollbackScript != "DROP TABLE HR.EMP" {
		t.Fatalf("unexpected change scripts: %+v", cs.Changes[0])
	}

	deployment, err := s.GetDeploymentByID(ctx, result.DeploymentID)
	if err != nil {
		t.Fatalf("GetDeploymentByID: %v", err)
	}
	if !strings.Contains(deployment.Payload, `"plan_name":"nightly"`) {
		t.Fatalf("payload missing plan snapshot: %q", deployment.Payload)
	}
}

func TestPrepareSkipsEqualDDL(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreCoordinator(t)
	plan := seedPlan(t, s)

	ddl := "CREATE TABLE HR.EMP (ID INT)"
	same := []model.Object{{Owner: "HR", ObjectName: "EMP", ObjectType: "TABLE", DDL: &ddl}}
	cc := &DeploymentCoordinator{
		Store: s,
		Connect: connectByName(map[string]*fakeClient{
			"src": {users: []string{"HR"}, objects: same},
			"dst": {users: []string{"HR"}, objects: same},
		}),
	}

	result, err := cc.Prepare(ctx, PrepareInput{PlanID: plan.ID})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(result.Deltas) != 0 {
		t.Fatalf("equal DDLs must produce no deltas, got %d", len(result.Deltas))
	}
	count, err := s.CountChangesetsByDeployment(ctx, result.DeploymentID)
	if err != nil {
		t.Fatalf("CountChangesetsByDeployment: %v", err)
	}
	if count != 0 {
		t.Fatalf("equal DDLs must persist no changesets, got %d", count)
	}
}

func TestPrepareFailsOnMissingSchema(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreCoordinator(t)
	plan := seedPlan(t, s)

	cc := &DeploymentCoordinator{
		Store: s,
		Connect: connectByName(map[string]*fakeClient{
			"src": {users: []string{"HR"}},
			"dst": {users: []string{"SCOTT"}},
		}),
	}

	_, err := cc.Prepare(ctx, PrepareInput{PlanID: plan.ID})
	var sve *SchemaValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("Prepare error = %T (%v), want *SchemaValidationError", err, err)
	}
	if len(sve.Missing) != 1 || sve.Missing[0] != "HR" {
		t.Fatalf("missing schemas = %v, want [HR]", sve.Missing)
	}
}

func TestDryRunScriptsMatchLivePrepare(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreCoordinator(t)
	plan := seedPlan(t, s)

	empDDL := "CREATE TABLE HR.EMP (ID INT)"
	seqDDL := "CREATE SEQUENCE HR.EMP_SEQ"
	clients := func() map[string]*fakeClient {
		return map[string]*fakeClient{
			"src": {users: []string{"HR"}, objects: []model.Object{
				{Owner: "HR", ObjectName: "EMP", ObjectType: "TABLE", DDL: &empDDL},
				{Owner: "HR", ObjectName: "EMP_SEQ", ObjectType: "SEQUENCE", DDL: &seqDDL},
			}},
			"dst": {users: []string{"HR"}},
		}
	}

	sink := executor.NewBufferSink()
	dry := &DeploymentCoordinator{Store: s, Connect: connectByName(clients())}
	if _, err := dry.Prepare(ctx, PrepareInput{PlanID: plan.ID, Dry: true, Sink: sink}); err != nil {
		t.Fatalf("dry Prepare: %v", err)
	}

	live := &DeploymentCoordinator{Store: s, Connect: connectByName(clients())}
	result, err := live.Prepare(ctx, PrepareInput{PlanID: plan.ID})
	if err != nil {
		t.Fatalf("live Prepare: %v", err)
	}

	var stored []string
	for _, d := range result.Deltas {
		stored = append(stored, d.Scripts...)
	}
	want := strings.Join(stored, executor.DefaultSeparator)
	if got := sink.Forward(); got != want {
		t.Fatalf("dry forward scripts = %q, want %q", got, want)
	}
}

// seedPreparedDeployment persists a deployment with two changesets of one
// Change each, ready for Apply. Apply order is TABLE then INDEX.
func seedPreparedDeployment(t *testing.T, s *state.Store, plan model.Plan) model.Deployment {
	t.Helper()
	ctx := context.Background()

	deployment, err := s.CreateDeployment(ctx, plan.ID, nil, "{}")
	if err != nil {
		t.Fatalf("CreateDeployment: %v", err)
	}
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
		if _, err := s.CreateChange(ctx, cs.ID, "CREATE "+objectTypes[i]+" "+name, "DROP "+objectTypes[i]+" "+name); err != nil {
			t.Fatalf("CreateChange %d: %v", i, err)
		}
	}
	return deployment
}

func TestApplyExecutesInOrderAndSetsStatuses(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreCoordinator(t)
	plan := seedPlan(t, s)
	deployment := seedPreparedDeployment(t, s, plan)

	target := &fakeClient{}
	cc := &DeploymentCoordinator{Store: s, Connect: connectByName(map[string]*fakeClient{"dst": target})}

	if err := cc.Apply(ctx, deployment.ID, false); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := []string{"CREATE TABLE EMPLOYEES", "CREATE INDEX DEPT_IDX"}
	if len(target.executed) != len(want) {
		t.Fatalf("executed %v, want %v", target.executed, want)
	}
	for i := range want {
		if target.executed[i] != want[i] {
			t.Fatalf("executed[%d] = %q, want %q", i, target.executed[i], want[i])
		}
	}

	d, _ := s.GetDeploymentByID(ctx, deployment.ID)
	if d.Status != model.StatusSuccess {
		t.Fatalf("deployment status = %q, want SUCCESS", d.Status)
	}
	if d.StartedAt == nil || d.EndedAt == nil || d.StartedAt.After(*d.EndedAt) {
		t.Fatalf("deployment timestamps not stamped correctly: %+v", d)
	}
	p, _ := s.GetPlanByID(ctx, plan.ID)
	if p.Status != model.StatusSuccess {
		t.Fatalf("plan status = %q, want SUCCESS", p.Status)
	}
}

func TestApplyFailFastStopsImmediately(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreCoordinator(t)
	plan := seedPlan(t, s)
	deployment := seedPreparedDeployment(t, s, plan)

	target := &fakeClient{failOn: "CREATE TABLE EMPLOYEES", failErr: errors.New("ORA-00955: name is already used")}
	cc := &DeploymentCoordinator{Store: s, Connect: connectByName(map[string]*fakeClient{"dst": target})}

	err := cc.Apply(ctx, deployment.ID, true)
	var de *DeployError
	if !errors.As(err, &de) {
		t.Fatalf("Apply error = %T (%v), want *DeployError", err, err)
	}
	if de.Count != 1 {
		t.Fatalf("DeployError count = %d, want 1", de.Count)
	}
	if len(target.executed) != 1 {
		t.Fatalf("executed %v, want exactly the failing statement", target.executed)
	}

	// The interrupted changeset is left RUNNING as the visible stuck row.
	composite, _ := s.FindWithChangesByDeployment(ctx, deployment.ID, false)
	if composite[0].Changeset.Status != model.ChangesetRunning {
		t.Fatalf("changeset status = %q, want RUNNING", composite[0].Changeset.Status)
	}
	if composite[0].Changes[0].Status != model.ChangeError {
		t.Fatalf("change status = %q, want ERROR", composite[0].Changes[0].Status)
	}

	d, _ := s.GetDeploymentByID(ctx, deployment.ID)
	if d.Status != model.StatusError {
		t.Fatalf("deployment status = %q, want ERROR", d.Status)
	}
}

func TestApplyAccumulatesErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreCoordinator(t)
	plan := seedPlan(t, s)
	deployment := seedPreparedDeployment(t, s, plan)

	target := &fakeClient{failOn: "CREATE TABLE EMPLOYEES", failErr: errors.New("ORA-00955: name is already used")}
	cc := &DeploymentCoordinator{Store: s, Connect: connectByName(map[string]*fakeClient{"dst": target})}

	err := cc.Apply(ctx, deployment.ID, false)
	var de *DeployError
	if !errors.As(err, &de) {
		t.Fatalf("Apply error = %T (%v), want *DeployError", err, err)
	}
	if len(target.executed) != 2 {
		t.Fatalf("executed %v, want both statements attempted", target.executed)
	}

	composite, _ := s.FindWithChangesByDeployment(ctx, deployment.ID, false)
	if composite[0].Changeset.Status != model.ChangesetError {
		t.Fatalf("failed changeset status = %q, want ERROR", composite[0].Changeset.Status)
	}
	if len(composite[0].Changeset.Errors) != 1 {
		t.Fatalf("changeset errors = %v, want 1 entry", composite[0].Changeset.Errors)
	}
	if composite[1].Changeset.Status != model.ChangesetSuccess {
		t.Fatalf("surviving changeset status = %q, want SUCCESS", composite[1].Changeset.Status)
	}

	d, _ := s.GetDeploymentByID(ctx, deployment.ID)
	if d.Status != model.StatusError {
		t.Fatalf("deployment status = %q, want ERROR", d.Status)
	}
	if len(d.Errors) != 1 || !strings.Contains(d.Errors[0], "EMPLOYEES") {
		t.Fatalf("deployment errors = %v, want the failing change named", d.Errors)
	}
}

func TestApplyRejectsWhenSourceConnectionInUse(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreCoordinator(t)
	planA := seedPlan(t, s)

	// Plan B shares planA's source connection, with its own target.
	other, err := s.CreateConnection(ctx, model.Connection{Name: "dst2", Username: "u", Password: "p", ConnectionString: "dsn3"})
	if err != nil {
		t.Fatalf("CreateConnection dst2: %v", err)
	}
	planB, err := s.CreatePlan(ctx, model.Plan{
		Name:               "weekly",
		SourceConnectionID: planA.SourceConnectionID,
		TargetConnectionID: other.ID,
		Schemas:            model.StringList{"HR"},
	})
	if err != nil {
		t.Fatalf("CreatePlan B: %v", err)
	}
	deploymentB := seedPreparedDeployment(t, s, planB)

	if err := s.SetPlanStatus(ctx, planA.ID, model.StatusRunning); err != nil {
		t.Fatalf("SetPlanStatus: %v", err)
	}

	target := &fakeClient{}
	cc := &DeploymentCoordinator{Store: s, Connect: connectByName(map[string]*fakeClient{"dst2": target})}

	err = cc.Apply(ctx, deploymentB.ID, false)
	var pnr *PlanNotRunnableError
	if !errors.As(err, &pnr) {
		t.Fatalf("Apply error = %T (%v), want *PlanNotRunnableError", err, err)
	}
	if pnr.Reason != ReasonSourceInUse {
		t.Fatalf("reason = %q, want %q", pnr.Reason, ReasonSourceInUse)
	}
	if len(target.executed) != 0 {
		t.Fatalf("no statements may run on a rejected apply, got %v", target.executed)
	}

	p, _ := s.GetPlanByID(ctx, planB.ID)
	if p.Status != model.StatusIdle {
		t.Fatalf("rejected plan status = %q, want IDLE (unchanged)", p.Status)
	}
	d, _ := s.GetDeploymentByID(ctx, deploymentB.ID)
	if d.Status != model.StatusIdle {
		t.Fatalf("rejected deployment status = %q, want IDLE (unchanged)", d.Status)
	}
}
