package update

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

type restartRecorder struct {
	execErr  error
	spawnErr error
	spawned  string
	exits    chan int
}

func newTestRestarter(t *testing.T, exe string, rec *restartRecorder) *ProcessRestarter {
	t.Helper()
	r := NewProcessRestarter(0)
	r.executable = func() (string, error) { return exe, nil }
	r.execve = func(string, []string, []string) error { return rec.execErr }
	r.spawn = func(path string, _ []string) error {
		rec.spawned = path
		return rec.spawnErr
	}
	r.exit = func(code int) { rec.exits <- code }
	return r
}

func executableFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoice-agent")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write executable: %v", err)
	}
	return path
}

func waitExit(t *testing.T, exits chan int) int {
	t.Helper()
	select {
	case code := <-exits:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("restarter never exited")
		return -1
	}
}

func TestRestartExitsCleanlyAfterSpawningReplacement(t *testing.T) {
	exe := executableFile(t)
	rec := &restartRecorder{execErr: errors.New("exec not supported"), exits: make(chan int, 1)}

	if err := newTestRestarter(t, exe, rec).Restart(); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if code := waitExit(t, rec.exits); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if rec.spawned != exe {
		t.Fatalf("expected %s to be spawned, got %q", exe, rec.spawned)
	}
}

func TestRestartExitsWithFailureWhenNothingStarts(t *testing.T) {
	exe := executableFile(t)
	rec := &restartRecorder{
		execErr:  errors.New("exec not supported"),
		spawnErr: errors.New("fork failed"),
		exits:    make(chan int, 1),
	}

	if err := newTestRestarter(t, exe, rec).Restart(); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if code := waitExit(t, rec.exits); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestRestartRejectsMissingExecutable(t *testing.T) {
	rec := &restartRecorder{exits: make(chan int, 1)}
	r := newTestRestarter(t, filepath.Join(t.TempDir(), "gone"), rec)

	if err := r.Restart(); err == nil {
		t.Fatal("expected error for missing executable")
	}
	select {
	case code := <-rec.exits:
		t.Fatalf("unexpected exit %d", code)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRestartRejectsNonExecutableFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no execute bits on windows")
	}
	path := filepath.Join(t.TempDir(), "invoice-agent")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	rec := &restartRecorder{exits: make(chan int, 1)}

	if err := newTestRestarter(t, path, rec).Restart(); err == nil {
		t.Fatal("expected error for non-executable file")
	}
}
