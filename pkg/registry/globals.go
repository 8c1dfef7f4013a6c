package registry

import (
	"fmt"
	"path/filepath"

	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/models"
	"github.com/psantana5/charon/pkg/prompt"
)

// GlobalStore reads and writes per-package globals
type GlobalStore struct {
	r *Registry
}

// Globals returns the global store
func (r *Registry) Globals() *GlobalStore {
	return &GlobalStore{r: r}
}

func globalPath(name string) string {
	return filepath.Join(variablesDir, jsonName(name))
}

// Get loads the global for a package
func (s *GlobalStore) Get(name string) (*models.Global, error) {
	if err := models.ValidateName(name); err != nil {
		return nil, err
	}

	var g models.Global
	if err := s.r.readJSON(globalPath(name), &g); err != nil {
		return nil, err
	}
	if g.Name != name {
		return nil, errs.New(errs.KindInvalid, "load", globalPath(name),
			fmt.Sprintf("file declares package %q", g.Name))
	}
	if g.Variables == nil {
		g.Variables = map[string]string{}
	}
	return &g, nil
}

// Set stores a global
func (s *GlobalStore) Set(g *models.Global) error {
	if err := models.ValidateName(g.Name); err != nil {
		return err
	}
	return s.r.writeJSON(globalPath(g.Name), g)
}

// Remove deletes a global
func (s *GlobalStore) Remove(name string) error {
	if err := models.ValidateName(name); err != nil {
		return err
	}
	return s.r.removeFile(globalPath(name))
}

// ResponseStore reads and writes the operator's prompt responses
type ResponseStore struct {
	r *Registry
}

// Responses returns the response store
func (r *Registry) Responses() *ResponseStore {
	return &ResponseStore{r: r}
}

func responsesPath(name string) string {
	return filepath.Join(responsesDir, jsonName(name))
}

// Get loads the responses for a package
func (s *ResponseStore) Get(name string) (prompt.Responses, error) {
	if err := models.ValidateName(name); err != nil {
		return nil, err
	}

	var out prompt.Responses
	if err := s.r.readJSON(responsesPath(name), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrEmpty loads the responses for a package, treating a missing file as
// no responses
func (s *ResponseStore) GetOrEmpty(name string) (prompt.Responses, error) {
	out, err := s.Get(name)
	if errs.KindOf(err) == errs.KindNotFound {
		return prompt.Responses{}, nil
	}
	return out, err
}

// Set replaces every response for a package
func (s *ResponseStore) Set(name string, responses prompt.Responses) error {
	if err := models.ValidateName(name); err != nil {
		return err
	}
	if responses == nil {
		responses = prompt.Responses{}
	}
	return s.r.writeJSON(responsesPath(name), responses)
}

// Remove deletes the responses for a package
func (s *ResponseStore) Remove(name string) error {
	if err := models.ValidateName(name); err != nil {
		return err
	}
	return s.r.removeFile(responsesPath(name))
}
