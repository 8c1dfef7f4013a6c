package systemd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/models"
	"github.com/psantana5/charon/pkg/registry"
)

const fixtureRegistry = "../registry/testdata/registry"

func load(t *testing.T, name, version string) *models.CompiledPackage {
	t.Helper()
	pkg, err := registry.New(fixtureRegistry).Compile(name, version)
	require.NoError(t, err)
	return pkg
}

type countingReloader struct {
	calls int
	err   error
}

func (r *countingReloader) Reload(ctx context.Context) error {
	r.calls++
	return r.err
}

type recordingRunner struct {
	calls [][]string
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	return nil
}

func TestUnitNames(t *testing.T) {
	unit := NewUnit(load(t, "podman-test", "0.0.2"), "")

	assert.Equal(t, "/etc/systemd/system/podman-test-0.0.2.service", unit.Filename())
	assert.Equal(t, "podman-test-0.0.2.service", unit.ServiceName())
}

func TestUnitRender(t *testing.T) {
	unit := NewUnit(load(t, "podman-test", "0.0.2"), "")
	root := t.TempDir()

	text, err := unit.Render("testdata/registry", root)
	require.NoError(t, err)

	want := fmt.Sprintf(`
[Unit]
Description=Charon launcher for podman-test, version 0.0.2

[Service]
ExecStart=/usr/bin/charon -r testdata/registry launch podman-test 0.0.2 %s
ExecStop=/usr/bin/charon -r testdata/registry stop podman-test 0.0.2 %s
Restart=always

[Install]
Alias=podman-test-0.0.2.service
`, root, root)
	assert.Equal(t, want, text)
}

func TestUnitRenderBadTokens(t *testing.T) {
	unit := NewUnit(load(t, "plex", "0.0.1"), "")

	tests := []struct {
		name string
		tmpl string
	}{
		{"unknown", "Description=@PACKAGE_COLOUR@"},
		{"unterminated", "Description=@PACKAGE_NAME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := unit.render(tt.tmpl, "/r", "/v")
			if !errors.Is(err, errs.ErrInvalid) {
				t.Errorf("render() error = %v, want invalid", err)
			}
			if out != "" {
				t.Errorf("render() = %q, want no output", out)
			}
		})
	}
}

func TestUnitCreateRemove(t *testing.T) {
	root := t.TempDir()
	reloader := &countingReloader{}
	unit := NewUnit(load(t, "plex", "0.0.2"), root)

	require.NoError(t, unit.Create(context.Background(), reloader, "/var/lib/charon/registry", "/srv/plex"))
	assert.Equal(t, 1, reloader.calls)

	data, err := os.ReadFile(filepath.Join(root, "plex-0.0.2.service"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "ExecStart=/usr/bin/charon -r /var/lib/charon/registry launch plex 0.0.2 /srv/plex")

	require.NoError(t, unit.Remove(context.Background(), reloader))
	assert.Equal(t, 2, reloader.calls)
	_, err = os.Stat(unit.Filename())
	assert.True(t, os.IsNotExist(err))

	err = unit.Remove(context.Background(), reloader)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Equal(t, 2, reloader.calls, "reload after failed remove")
}

func TestWriterDebugSkipsWrite(t *testing.T) {
	root := t.TempDir()
	reloader := &countingReloader{}
	w := NewWriter(root, reloader, true)

	unit, err := w.Write(context.Background(), load(t, "plex", "0.0.2"), "/r", "/v")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "plex-0.0.2.service"), unit.Filename())

	require.NoError(t, w.Remove(context.Background(), models.NewTitle("plex", "0.0.2")))
	assert.Equal(t, 0, reloader.calls)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriterReloadFailure(t *testing.T) {
	reloader := &countingReloader{err: errors.New("bus unavailable")}
	w := NewWriter(t.TempDir(), reloader, false)

	_, err := w.Write(context.Background(), load(t, "plex", "0.0.2"), "/r", "/v")
	assert.EqualError(t, err, "bus unavailable")
}

func TestSystemctlReloader(t *testing.T) {
	runner := &recordingRunner{}
	r := &SystemctlReloader{Runner: runner}

	require.NoError(t, r.Reload(context.Background()))
	assert.Equal(t, [][]string{{"systemctl", "daemon-reload"}}, runner.calls)
}
