package models

import "sort"

// Global holds per-package variables set by the operator
type Global struct {
	Name      string            `json:"name"`
	Variables map[string]string `json:"variables"`
}

// NewGlobal creates an empty global for a package
func NewGlobal(name string) *Global {
	return &Global{Name: name, Variables: map[string]string{}}
}

// Get returns a variable
func (g *Global) Get(key string) (string, bool) {
	v, ok := g.Variables[key]
	return v, ok
}

// Set sets a variable
func (g *Global) Set(key, value string) {
	if g.Variables == nil {
		g.Variables = map[string]string{}
	}
	g.Variables[key] = value
}

// Keys returns the variable names in sorted order
func (g *Global) Keys() []string {
	keys := make([]string, 0, len(g.Variables))
	for k := range g.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
