package registry

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/logging"
	"github.com/psantana5/charon/pkg/models"
	"github.com/psantana5/charon/pkg/prompt"
)

const fixtureRoot = "testdata/registry"

// fixtureCopy copies the fixture registry somewhere writable
func fixtureCopy(t *testing.T) *Registry {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "registry")
	require.NoError(t, os.CopyFS(dir, os.DirFS(fixtureRoot)))
	return New(dir)
}

func TestWriteLoadRoundTrip(t *testing.T) {
	r := New(t.TempDir())

	mount := models.Str("/data")
	network := models.Str("backplane")
	p := models.NewPackage(models.NewTitle("roundtrip", "1.2.3"))
	p.Description = "every section set"
	p.Dependencies = []models.PackageTitle{models.NewTitle("plex", "0.0.1")}
	p.Source = models.URLSource("https://example.com/?flavour?.img")
	p.Networking = &models.Networking{
		ForwardPorts:    []models.PortPair{models.Ports("1234", "5678")},
		ExposePorts:     []models.PortPair{models.Ports("80", "?port?")},
		InternalNetwork: &network,
	}
	p.Storage = &models.Storage{Volumes: []models.Volume{{
		Name:       models.Str("data"),
		Size:       models.U64("10"),
		Mountpoint: &mount,
		Recreate:   models.Bool("false"),
		Private:    models.Bool("true"),
	}}}
	p.System = &models.System{
		HostPID:      models.Bool("false"),
		HostNet:      models.Bool("false"),
		Capabilities: []models.Value{models.Str("SYS_ADMIN")},
		Privileged:   models.Bool("false"),
	}
	p.Resources = &models.Resources{CPUs: models.U64("2"), Memory: models.U64("2048")}
	p.Prompts = prompt.Collection{
		{Template: "flavour", Question: "Which image?", InputType: prompt.InputType{Kind: prompt.TypeName}},
		{Template: "port", Question: "Which port?", InputType: prompt.InputType{Kind: prompt.TypeInteger}},
	}

	require.NoError(t, r.Write(p))

	got, err := r.Load("roundtrip", "1.2.3")
	require.NoError(t, err)
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	bare := models.NewPackage(models.NewTitle("bare", "0.1.0"))
	require.NoError(t, r.Write(bare))
	got, err = r.Load("bare", "0.1.0")
	require.NoError(t, err)
	if !reflect.DeepEqual(bare, got) {
		t.Errorf("Load() = %#v, want %#v", got, bare)
	}

	_, err = os.Stat(filepath.Join(r.Path(), "packages", "roundtrip", "1.2.3.json"+TempSuffix))
	assert.True(t, os.IsNotExist(err), "temp file left behind")
}

func TestLoadErrors(t *testing.T) {
	r := fixtureCopy(t)

	require.NoError(t, os.WriteFile(filepath.Join(r.Path(), "packages", "plex", "9.9.9.json"), []byte("{not json"), 0644))
	data, err := os.ReadFile(filepath.Join(r.Path(), "packages", "plex", "0.0.1.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(r.Path(), "packages", "plex", "0.0.3.json"), data, 0644))
	noRecreate := `{"title": {"name": "plex", "version": "0.0.4"}, "description": "", "dependencies": [],
		"source": {"container": "plex"}, "storage": {"volumes": [{"name": "data", "size": "1", "private": "true"}]}}`
	require.NoError(t, os.WriteFile(filepath.Join(r.Path(), "packages", "plex", "0.0.4.json"), []byte(noRecreate), 0644))

	tests := []struct {
		name    string
		pkg     string
		version string
		want    error
	}{
		{"missing package", "nope", "0.0.1", errs.ErrNotFound},
		{"missing version", "plex", "1.0.0", errs.ErrNotFound},
		{"malformed", "plex", "9.9.9", errs.ErrMalformed},
		{"missing required field", "plex", "0.0.4", errs.ErrMalformed},
		{"title mismatch", "plex", "0.0.3", errs.ErrInvalid},
		{"bad title", "../plex", "0.0.1", errs.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := r.Load(tt.pkg, tt.version)
			if !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want kind %v", err, errs.KindOf(tt.want))
			}
			if p != nil {
				t.Errorf("Load() returned package on error")
			}
		})
	}
}

func TestWriteReplacesAtomically(t *testing.T) {
	r := New(t.TempDir())
	p := models.NewPackage(models.NewTitle("plex", "0.0.1"))
	require.NoError(t, r.Write(p))

	p.Description = "second"
	require.NoError(t, r.Write(p))

	got, err := r.Load("plex", "0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Description)

	entries, err := os.ReadDir(filepath.Join(r.Path(), "packages", "plex"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestListAndVersions(t *testing.T) {
	r := New(fixtureRoot)

	titles, err := r.List()
	require.NoError(t, err)
	assert.Equal(t, []models.PackageTitle{
		models.NewTitle("plex", "0.0.1"),
		models.NewTitle("plex", "0.0.2"),
		models.NewTitle("plex-qemu", "0.0.1"),
		models.NewTitle("plex-qemu", "0.0.2"),
		models.NewTitle("podman-test", "0.0.1"),
		models.NewTitle("podman-test", "0.0.2"),
		models.NewTitle("with-prompts", "0.0.1"),
	}, titles)

	versions, err := r.Versions("plex-qemu")
	require.NoError(t, err)
	assert.Equal(t, []string{"0.0.1", "0.0.2"}, versions)

	_, err = r.Versions("nope")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	empty, err := New(t.TempDir()).List()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSearch(t *testing.T) {
	r := New(fixtureRoot)

	matches, err := r.Search("qemu")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "plex-qemu", matches[0].Name)
	assert.Equal(t, []string{"0.0.1", "0.0.2"}, matches[0].Versions)

	matches, err = r.Search("plx")
	require.NoError(t, err)
	var names []string
	for _, m := range matches {
		names = append(names, m.Name)
	}
	assert.Contains(t, names, "plex")
	assert.Contains(t, names, "plex-qemu")
	assert.NotContains(t, names, "with-prompts")
}

func TestRemove(t *testing.T) {
	r := fixtureCopy(t)

	require.NoError(t, r.Remove("plex"))
	assert.False(t, r.Exists("plex", "0.0.1"))
	assert.False(t, r.Exists("plex", "0.0.2"))

	// globals are a separate keyspace
	_, err := r.Globals().Get("plex")
	require.NoError(t, err)

	err = r.Remove("plex")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestPurge(t *testing.T) {
	r := fixtureCopy(t)

	g, err := r.Globals().Get("plex")
	require.NoError(t, err)
	g.Set("stale", "yes")
	require.NoError(t, r.Globals().Set(g))
	answers := prompt.Responses{{Template: "port", Input: prompt.IntegerInput(80)}}
	require.NoError(t, r.Responses().Set("plex", answers))

	require.NoError(t, r.Purge("plex"))
	assert.False(t, r.Exists("plex", "0.0.1"))
	_, err = r.Globals().Get("plex")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	kept, err := r.Responses().Get("plex")
	require.NoError(t, err)
	assert.Equal(t, answers, kept)

	_, err = r.Create("plex", "0.0.1")
	require.NoError(t, err)
	fresh, err := r.Globals().Get("plex")
	require.NoError(t, err)
	assert.Empty(t, fresh.Variables)

	// a package written without a global still purges
	require.NoError(t, r.Write(models.NewPackage(models.NewTitle("loose", "1"))))
	require.NoError(t, r.Purge("loose"))

	assert.True(t, errors.Is(r.Purge("loose"), errs.ErrNotFound))
}

func TestCreate(t *testing.T) {
	r := New(t.TempDir())

	p, err := r.Create("fresh", "0.1.0")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDescription, p.Description)
	assert.Equal(t, models.DefaultSource(), p.Source)

	g, err := r.Globals().Get("fresh")
	require.NoError(t, err)
	assert.Empty(t, g.Variables)

	_, err = r.Create("fresh", "0.1.0")
	assert.True(t, errors.Is(err, errs.ErrInvalid))

	g.Set("region", "eu")
	require.NoError(t, r.Globals().Set(g))
	_, err = r.Create("fresh", "0.2.0")
	require.NoError(t, err)

	g, err = r.Globals().Get("fresh")
	require.NoError(t, err)
	assert.Equal(t, "eu", g.Variables["region"], "existing global overwritten")
}

func TestValidate(t *testing.T) {
	r := New(fixtureRoot)

	for _, title := range []models.PackageTitle{
		models.NewTitle("plex", "0.0.2"),
		models.NewTitle("podman-test", "0.0.2"),
		models.NewTitle("plex-qemu", "0.0.1"),
		models.NewTitle("with-prompts", "0.0.1"),
	} {
		assert.NoError(t, r.Validate(title.Name, title.Version), title.String())
	}
}

func TestValidateFailures(t *testing.T) {
	r := New(t.TempDir())

	write := func(name, version string, deps ...models.PackageTitle) {
		p := models.NewPackage(models.NewTitle(name, version))
		p.Dependencies = deps
		require.NoError(t, r.Write(p))
		require.NoError(t, r.Globals().Set(models.NewGlobal(name)))
	}

	write("a", "1", models.NewTitle("b", "1"))
	write("b", "1", models.NewTitle("c", "1"))
	write("c", "1", models.NewTitle("a", "1"))
	err := r.Validate("a", "1")
	assert.True(t, errors.Is(err, errs.ErrInvalid), "cycle: %v", err)

	write("d", "1", models.NewTitle("missing", "1"))
	err = r.Validate("d", "1")
	assert.True(t, errors.Is(err, errs.ErrNotFound), "missing dependency: %v", err)

	require.NoError(t, r.Write(models.NewPackage(models.NewTitle("orphan", "1"))))
	err = r.Validate("orphan", "1")
	assert.True(t, errors.Is(err, errs.ErrNotFound), "missing global: %v", err)

	// diamonds are not cycles
	write("leaf", "1")
	write("left", "1", models.NewTitle("leaf", "1"))
	write("right", "1", models.NewTitle("leaf", "1"))
	write("top", "1", models.NewTitle("left", "1"), models.NewTitle("right", "1"))
	assert.NoError(t, r.Validate("top", "1"))
}

func TestGlobalsAndResponses(t *testing.T) {
	r := New(t.TempDir())

	_, err := r.Globals().Get("plex")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	g := models.NewGlobal("plex")
	g.Set("library", "/srv/media")
	require.NoError(t, r.Globals().Set(g))

	got, err := r.Globals().Get("plex")
	require.NoError(t, err)
	assert.Equal(t, g, got)

	_, err = r.Responses().Get("plex")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	empty, err := r.Responses().GetOrEmpty("plex")
	require.NoError(t, err)
	assert.Empty(t, empty)

	responses := prompt.Responses{{Template: "size", Input: prompt.IntegerInput(10)}}
	require.NoError(t, r.Responses().Set("plex", responses))
	stored, err := r.Responses().Get("plex")
	require.NoError(t, err)
	assert.Equal(t, responses, stored)

	require.NoError(t, r.Responses().Remove("plex"))
	require.NoError(t, r.Globals().Remove("plex"))
	assert.True(t, errors.Is(r.Globals().Remove("plex"), errs.ErrNotFound))
}

func TestCompile(t *testing.T) {
	r := fixtureCopy(t)

	_, err := r.Compile("with-prompts", "0.0.1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrUnresolvedPlaceholder))

	require.NoError(t, r.Responses().Set("with-prompts", prompt.Responses{
		{Template: "private_path", Input: prompt.StringInput("/private")},
		{Template: "private_size", Input: prompt.IntegerInput(100)},
		{Template: "private_recreate", Input: prompt.BooleanInput(true)},
	}))

	c, err := r.Compile("with-prompts", "0.0.1")
	require.NoError(t, err)
	require.Len(t, c.Storage.Volumes, 1)

	mount := "/private"
	assert.Equal(t, models.CompiledVolume{
		Name:       "private",
		Size:       100,
		Mountpoint: &mount,
		Recreate:   true,
		Private:    true,
	}, c.Storage.Volumes[0])

	require.NoError(t, r.Globals().Remove("with-prompts"))
	_, err = r.Compile("with-prompts", "0.0.1")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestValidateWarnsOnceForUndeclaredKeys(t *testing.T) {
	r := New(t.TempDir())
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.WARN, true)
	logger.SetOutput(&buf)
	r.SetLogger(logger)

	p, err := r.Create("loose", "1")
	require.NoError(t, err)
	p.Source = models.ContainerSource("?image?")
	require.NoError(t, r.Write(p))

	require.NoError(t, r.Validate("loose", "1"))
	assert.Equal(t, 1, strings.Count(buf.String(), "package references undeclared prompts"))
	assert.Contains(t, buf.String(), "image")
}
