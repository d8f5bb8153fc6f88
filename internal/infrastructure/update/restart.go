package update

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"syscall"
	"time"
)

// ProcessRestarter re-executes the current binary after a short grace period,
// leaving time for the caller to answer whoever asked for the update. The
// process always ends: with the new image, with code 0 after spawning it, or
// with code 1 when neither worked.
type ProcessRestarter struct {
	grace time.Duration

	executable func() (string, error)
	execve     func(path string, argv, env []string) error
	spawn      func(path string, args []string) error
	exit       func(code int)
}

func NewProcessRestarter(grace time.Duration) *ProcessRestarter {
	if grace < 0 {
		grace = 0
	}
	return &ProcessRestarter{
		grace:      grace,
		executable: os.Executable,
		execve:     syscall.Exec,
		spawn:      startDetached,
		exit:       os.Exit,
	}
}

// Restart validates the executable synchronously and reports problems to the
// caller; the replacement itself happens in the background.
func (r *ProcessRestarter) Restart() error {
	exe, err := r.executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	info, err := os.Stat(exe)
	if err != nil {
		return fmt.Errorf("stat executable: %w", err)
	}
	// Windows reports no execute bits.
	if info.IsDir() || (runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0) {
		return fmt.Errorf("%s is not executable", exe)
	}

	go r.replace(exe)
	return nil
}

func (r *ProcessRestarter) replace(exe string) {
	time.Sleep(r.grace)
	slog.Info("update_restarting", "executable", exe)

	// Replaces the process image in place where the platform allows it.
	if err := r.execve(exe, os.Args, os.Environ()); err != nil {
		slog.Warn("update_exec_unavailable", "error", err)
	}

	if err := r.spawn(exe, os.Args[1:]); err != nil {
		slog.Error("update_restart_failed", "executable", exe, "error", err)
		r.exit(1)
		return
	}
	r.exit(0)
}

func startDetached(path string, args []string) error {
	cmd := exec.Command(path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Start()
}
