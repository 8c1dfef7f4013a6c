package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/logging"
	"github.com/psantana5/charon/pkg/models"
)

const (
	packagesDir  = "packages"
	variablesDir = "variables"
	responsesDir = "responses"
)

// Registry is the file-backed store of packages, globals and responses
//
// Layout under the root:
//
//	packages/<name>/<version>.json
//	variables/<name>.json
//	responses/<name>.json
type Registry struct {
	root   string
	logger *logging.Logger
}

// New creates a registry rooted at root
func New(root string) *Registry {
	return &Registry{
		root:   root,
		logger: logging.Default().WithField("registry", root),
	}
}

// SetLogger replaces the registry's logger
func (r *Registry) SetLogger(l *logging.Logger) {
	r.logger = l
}

// Path returns the registry root
func (r *Registry) Path() string {
	return r.root
}

// Write stores a source package, replacing any existing version
func (r *Registry) Write(p *models.SourcePackage) error {
	if err := p.Title.Validate(); err != nil {
		return err
	}
	return r.writeJSON(p.Title.Path(), p)
}

// Load reads a source package. The title inside the file must match the
// requested name and version.
func (r *Registry) Load(name, version string) (*models.SourcePackage, error) {
	title := models.NewTitle(name, version)
	if err := title.Validate(); err != nil {
		return nil, err
	}

	var p models.SourcePackage
	if err := r.readJSON(title.Path(), &p); err != nil {
		return nil, err
	}

	if p.Title != title {
		return nil, errs.New(errs.KindInvalid, "load", title.String(),
			fmt.Sprintf("file declares title %s", p.Title))
	}
	return &p, nil
}

// Exists reports whether a package version is stored
func (r *Registry) Exists(name, version string) bool {
	title := models.NewTitle(name, version)
	if title.Validate() != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(r.root, title.Path()))
	return err == nil
}

// Create writes a new package skeleton and an empty global for it.
// An existing package version is left alone and reported as Invalid.
func (r *Registry) Create(name, version string) (*models.SourcePackage, error) {
	title := models.NewTitle(name, version)
	if err := title.Validate(); err != nil {
		return nil, err
	}
	if r.Exists(name, version) {
		return nil, errs.New(errs.KindInvalid, "create", title.String(), "package already exists")
	}

	p := models.NewPackage(title)
	if err := r.Write(p); err != nil {
		return nil, err
	}

	if _, err := r.Globals().Get(name); errs.KindOf(err) == errs.KindNotFound {
		if err := r.Globals().Set(models.NewGlobal(name)); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	r.logger.Info("package created", map[string]interface{}{"package": title.String()})
	return p, nil
}

// Remove deletes every version of a package in one step. Globals and
// responses are kept; remove them through their own stores.
func (r *Registry) Remove(name string) error {
	if err := models.ValidateName(name); err != nil {
		return err
	}

	dir := filepath.Join(packagesDir, name)
	path := filepath.Join(r.root, dir)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errs.Wrap(errs.KindNotFound, "remove", dir, err)
		}
		return errs.Wrap(errs.KindIOFailure, "remove", dir, err)
	}

	if err := os.RemoveAll(path); err != nil {
		return errs.Wrap(errs.KindIOFailure, "remove", dir, err)
	}

	r.logger.Info("package removed", map[string]interface{}{"package": name})
	return nil
}

// Purge removes every version of a package and its global. Responses are
// kept so a reinstalled package can reuse the operator's answers.
func (r *Registry) Purge(name string) error {
	if err := r.Remove(name); err != nil {
		return err
	}
	if err := r.Globals().Remove(name); err != nil && errs.KindOf(err) != errs.KindNotFound {
		return err
	}
	return nil
}

// Versions returns the stored versions of a package, sorted
func (r *Registry) Versions(name string) ([]string, error) {
	if err := models.ValidateName(name); err != nil {
		return nil, err
	}

	dir := filepath.Join(packagesDir, name)
	entries, err := os.ReadDir(filepath.Join(r.root, dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Wrap(errs.KindNotFound, "versions", dir, err)
		}
		return nil, errs.Wrap(errs.KindIOFailure, "versions", dir, err)
	}

	var versions []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		versions = append(versions, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(versions)
	return versions, nil
}

// Names returns the names of all stored packages, sorted
func (r *Registry) Names() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.root, packagesDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.KindIOFailure, "list", packagesDir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// List returns every stored package title, ordered by name then version
func (r *Registry) List() ([]models.PackageTitle, error) {
	names, err := r.Names()
	if err != nil {
		return nil, err
	}

	var titles []models.PackageTitle
	for _, name := range names {
		versions, err := r.Versions(name)
		if err != nil {
			return nil, err
		}
		for _, v := range versions {
			titles = append(titles, models.NewTitle(name, v))
		}
	}

	sort.Slice(titles, func(i, j int) bool { return titles[i].Less(titles[j]) })
	return titles, nil
}

// Match is a package name found by Search
type Match struct {
	Name     string   `json:"name"`
	Versions []string `json:"versions"`
	Score    int      `json:"score"`
}

// Search fuzzy-matches query against package names, best match first
func (r *Registry) Search(query string) ([]Match, error) {
	names, err := r.Names()
	if err != nil {
		return nil, err
	}

	var out []Match
	for _, m := range fuzzy.Find(query, names) {
		versions, err := r.Versions(m.Str)
		if err != nil {
			return nil, err
		}
		out = append(out, Match{Name: m.Str, Versions: versions, Score: m.Score})
	}
	return out, nil
}

// Validate checks a package and, recursively, its dependencies: each must
// load with a matching title and have a global. A dependency cycle is
// Invalid.
func (r *Registry) Validate(name, version string) error {
	return r.validate(models.NewTitle(name, version), map[models.PackageTitle]bool{}, map[models.PackageTitle]bool{})
}

func (r *Registry) validate(title models.PackageTitle, visiting, done map[models.PackageTitle]bool) error {
	if done[title] {
		return nil
	}
	if visiting[title] {
		return errs.New(errs.KindInvalid, "validate", title.String(), "dependency cycle")
	}
	visiting[title] = true
	defer delete(visiting, title)

	p, err := r.Load(title.Name, title.Version)
	if err != nil {
		return err
	}

	if _, err := r.Globals().Get(title.Name); err != nil {
		return err
	}

	if keys := p.UndeclaredKeys(); len(keys) > 0 {
		r.logger.Warn("package references undeclared prompts", map[string]interface{}{
			"package": title.String(),
			"keys":    strings.Join(keys, ","),
		})
	}

	for _, dep := range p.Dependencies {
		if err := r.validate(dep, visiting, done); err != nil {
			return err
		}
	}

	done[title] = true
	return nil
}

// Compile loads a package with its global and responses and compiles it.
// A package with no responses file compiles against no responses.
func (r *Registry) Compile(name, version string) (*models.CompiledPackage, error) {
	p, err := r.Load(name, version)
	if err != nil {
		return nil, err
	}

	global, err := r.Globals().Get(name)
	if err != nil {
		return nil, err
	}

	responses, err := r.Responses().GetOrEmpty(name)
	if err != nil {
		return nil, err
	}

	return p.Compile(global, responses)
}
