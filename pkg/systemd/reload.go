package systemd

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Reloader asks the service manager to re-read unit files
type Reloader interface {
	Reload(ctx context.Context) error
}

// CommandRunner runs an external program
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs programs with os/exec
type ExecRunner struct{}

// Run runs the program and folds its output into any error
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// SystemctlReloader reloads systemd with "systemctl daemon-reload"
type SystemctlReloader struct {
	Runner CommandRunner
}

// NewSystemctlReloader creates a reloader that shells out to systemctl
func NewSystemctlReloader() *SystemctlReloader {
	return &SystemctlReloader{Runner: ExecRunner{}}
}

// Reload implements Reloader
func (r *SystemctlReloader) Reload(ctx context.Context) error {
	return r.Runner.Run(ctx, "systemctl", "daemon-reload")
}

// ReloaderFunc adapts a function to Reloader
type ReloaderFunc func(ctx context.Context) error

// Reload implements Reloader
func (f ReloaderFunc) Reload(ctx context.Context) error {
	return f(ctx)
}
