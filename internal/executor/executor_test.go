package executor

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBufferSinkJoinsWithSeparator(t *testing.T) {
	b := NewBufferSink()

	if err := b.WriteForward("CREATE TABLE t (id NUMBER)"); err != nil {
		t.Fatalf("WriteForward: %v", err)
	}
	if err := b.WriteForward("CREATE INDEX t_idx ON t (id)"); err != nil {
		t.Fatalf("WriteForward: %v", err)
	}
	if err := b.WriteRollback("DROP INDEX t_idx"); err != nil {
		t.Fatalf("WriteRollback: %v", err)
	}
	if err := b.WriteRollback("DROP TABLE t"); err != nil {
		t.Fatalf("WriteRollback: %v", err)
	}

	wantForward := "CREATE TABLE t (id NUMBER)" + DefaultSeparator + "CREATE INDEX t_idx ON t (id)"
	if got := b.Forward(); got != wantForward {
		t.Fatalf("Forward() = %q, want %q", got, wantForward)
	}

	wantRollback := "DROP INDEX t_idx" + DefaultSeparator + "DROP TABLE t"
	if got := b.Rollback(); got != wantRollback {
		t.Fatalf("Rollback() = %q, want %q", got, wantRollback)
	}
}

func TestBufferSinkCustomSeparator(t *testing.T) {
	b := &BufferSink{Separator: ";\n"}
	_ = b.WriteForward("A")
	_ = b.WriteForward("B")

	want := "A;\nB"
	if got := b.Forward(); got != want {
		t.Fatalf("Forward() = %q, want %q", got, want)
	}
}

func TestFileSinkWritesBothScripts(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	sink, err := NewFileSink(dir, ts)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	if err := sink.WriteForward("CREATE TABLE t (id NUMBER)"); err != nil {
		t.Fatalf("WriteForward: %v", err)
	}
	if err := sink.WriteRollback("DROP TABLE t"); err != nil {
		t.Fatalf("WriteRollback: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fwdPath := filepath.Join(dir, "scripts-20260731T120000Z.sql")
	rbPath := filepath.Join(dir, "rollback_scripts-20260731T120000Z.sql")

	fwd, err := os.ReadFile(fwdPath)
	if err != nil {
		t.Fatalf("reading forward script: %v", err)
	}
	if string(fwd) != "CREATE TABLE t (id NUMBER)" {
		t.Fatalf("forward script = %q", fwd)
	}

	rb, err := os.ReadFile(rbPath)
	if err != nil {
		t.Fatalf("reading rollback script: %v", err)
	}
	if string(rb) != "DROP TABLE t" {
		t.Fatalf("rollback script = %q", rb)
	}
}
