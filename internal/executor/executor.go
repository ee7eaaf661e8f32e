// Package executor provides the dry-run script sink used by the
// deployment coordinator's prepare phase: forward and rollback scripts
// written to a caller-provided sink, separated by a configurable
// separator, instead of touching the state store or the target database.
package executor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultSeparator is the script separator used when none is configured.
const DefaultSeparator = "\n\n"

// ScriptSink receives the forward and rollback scripts emitted by a dry
// prepare, in the same order they would be persisted as Changes by a live
// prepare.
type ScriptSink interface {
	WriteForward(script string) error
	WriteRollback(script string) error
	Close() error
}

// BufferSink accumulates scripts in memory, joined by Separator — used
// when the caller wants the script text directly rather than files on
// disk.
type BufferSink struct {
	Separator string

	forward  bytes.Buffer
	rollback bytes.Buffer
	wroteFwd bool
	wroteRb  bool
}

// NewBufferSink constructs a BufferSink with DefaultSeparator.
func NewBufferSink() *BufferSink {
	return &BufferSink{Separator: DefaultSeparator}
}

func (b *BufferSink) WriteForward(script string) error {
	writeJoined(&b.forward, &b.wroteFwd, b.sep(), script)
	return nil
}

func (b *BufferSink) WriteRollback(script string) error {
	writeJoined(&b.rollback, &b.wroteRb, b.sep(), script)
	return nil
}

func (b *BufferSink) Close() error { return nil }

// Forward returns the accumulated forward script text.
func (b *BufferSink) Forward() string { return b.forward.String() }

// Rollback returns the accumulated rollback script text.
func (b *BufferSink) Rollback() string { return b.rollback.String() }

func (b *BufferSink) sep() string {
	if b.Separator == "" {
		return DefaultSeparator
	}
	return b.Separator
}

// FileSink writes forward scripts to scripts-{ts}.sql and rollback
// scripts to rollback_scripts-{ts}.sql in Dir.
type FileSink struct {
	Separator string

	forward  *os.File
	rollback *os.File
	wroteFwd bool
	wroteRb  bool
}

// NewFileSink creates scripts-{ts}.sql and rollback_scripts-{ts}.sql in
// dir, where ts is now formatted compactly (no colons or dashes) so the
// name is filesystem-safe.
func NewFileSink(dir string, now time.Time) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("executor: creating script output dir %s: %w", dir, err)
	}

	ts := now.UTC().Format("20060102T150405Z")
	fwdPath := filepath.Join(dir, fmt.Sprintf("scripts-%s.sql", ts))
	rbPath := filepath.Join(dir, fmt.Sprintf("rollback_scripts-%s.sql", ts))

	fwd, err := os.Create(fwdPath)
	if err != nil {
		return nil, fmt.Errorf("executor: creating %s: %w", fwdPath, err)
	}
	rb, err := os.Create(rbPath)
	if err != nil {
		fwd.Close()
		return nil, fmt.Errorf("executor: creating %s: %w", rbPath, err)
	}

	return &FileSink{forward: fwd, rollback: rb, Separator: DefaultSeparator}, nil
}

func (f *FileSink) WriteForward(script string) error {
	return writeJoinedFile(f.forward, &f.wroteFwd, f.sep(), script)
}

func (f *FileSink) WriteRollback(script string) error {
	return writeJoinedFile(f.rollback, &f.wroteRb, f.sep(), script)
}

func (f *FileSink) Close() error {
	err1 := f.forward.Close()
	err2 := f.rollback.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (f *FileSink) sep() string {
	if f.Separator == "" {
		return DefaultSeparator
	}
	return f.Separator
}

func writeJoined(buf *bytes.Buffer, wrote *bool, sep, script string) {
	if *wrote {
		buf.WriteString(sep)
	}
	buf.WriteString(script)
	*wrote = true
}

func writeJoinedFile(f *os.File, wrote *bool, sep, script string) error {
	if *wrote {
		if _, err := f.WriteString(sep); err != nil {
			return err
		}
	}
	if _, err := f.WriteString(script); err != nil {
		return err
	}
	*wrote = true
	return nil
}
