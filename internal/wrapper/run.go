package wrapper

// The workload runs in its own process group so that stopping it reaches
// every child podman or qemu forks.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/logging"
)

// DefaultStopTimeout is how long a workload gets between SIGTERM and SIGKILL
const DefaultStopTimeout = 30 * time.Second

// Options controls how a workload is spawned
type Options struct {
	Stdout      io.Writer
	Stderr      io.Writer
	StopTimeout time.Duration
	Logger      *logging.Logger
}

// Result records how a workload ran. Set once at exit.
type Result struct {
	Title     string        `json:"title"`
	PID       int           `json:"pid"`
	ExitCode  int           `json:"exit_code"`
	Signal    string        `json:"signal,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
}

// Run spawns argv and waits for it. Cancelling ctx sends SIGTERM to the
// process group, then SIGKILL after the stop timeout.
func Run(ctx context.Context, title string, argv []string, opts Options) (*Result, error) {
	if len(argv) == 0 {
		return nil, errs.New(errs.KindInvalid, "run", title, "empty command")
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	logger := opts.Logger.WithField("package", title)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true, // New process group
		Pgid:    0,    // Process becomes its own group leader
	}
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, errs.Wrap(errs.KindIOFailure, "run", title, fmt.Errorf("failed to start %s: %w", argv[0], err))
	}

	pid := cmd.Process.Pid
	logger.Info("Workload started", map[string]interface{}{"pid": pid, "command": argv[0]})

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-exited:
	case <-ctx.Done():
		logger.Info("Stopping workload", map[string]interface{}{"pid": pid})
		if err := Signal(pid, unix.SIGTERM); err != nil {
			logger.Warn("SIGTERM failed", map[string]interface{}{"error": err.Error()})
		}
		select {
		case waitErr = <-exited:
		case <-time.After(opts.StopTimeout):
			logger.Warn("Workload ignored SIGTERM, killing", map[string]interface{}{"pid": pid})
			Signal(pid, unix.SIGKILL)
			waitErr = <-exited
		}
	}

	end := time.Now()
	result := &Result{
		Title:     title,
		PID:       pid,
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			result.Signal = unix.SignalName(status.Signal())
		}
	default:
		return nil, errs.Wrap(errs.KindIOFailure, "run", title, waitErr)
	}

	logger.Info("Workload exited", map[string]interface{}{
		"pid":       pid,
		"exit_code": result.ExitCode,
		"signal":    result.Signal,
		"duration":  result.Duration.String(),
	})
	return result, nil
}
