package models

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/psantana5/charon/pkg/errs"
)

// PackageTitle identifies a package
type PackageTitle struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewTitle creates a new package title
func NewTitle(name, version string) PackageTitle {
	return PackageTitle{Name: name, Version: version}
}

// String returns "<name>-<version>"
func (t PackageTitle) String() string {
	return fmt.Sprintf("%s-%s", t.Name, t.Version)
}

// Less orders titles by name, then version
func (t PackageTitle) Less(o PackageTitle) bool {
	if t.Name != o.Name {
		return t.Name < o.Name
	}
	return t.Version < o.Version
}

// Path returns the package file location relative to a registry root
func (t PackageTitle) Path() string {
	return filepath.Join("packages", t.Name, t.Version+".json")
}

// Validate checks both parts are usable as single path segments
func (t PackageTitle) Validate() error {
	if err := ValidateName(t.Name); err != nil {
		return err
	}
	if err := validSegment(t.Version); err != nil {
		return errs.New(errs.KindInvalid, "title", "version", err.Error())
	}
	return nil
}

// ValidateName checks a package name is usable as a path segment
func ValidateName(name string) error {
	if err := validSegment(name); err != nil {
		return errs.New(errs.KindInvalid, "title", "name", err.Error())
	}
	return nil
}

// ValidateVolumeName checks a volume name is a single path segment, so
// joining it under a volume root cannot resolve anywhere else
func ValidateVolumeName(name string) error {
	if err := validSegment(name); err != nil {
		return errs.New(errs.KindInvalid, "volume", "name", err.Error())
	}
	return nil
}

func validSegment(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("must not be empty")
	case s == "." || s == "..":
		return fmt.Errorf("%q is not a valid path segment", s)
	case strings.ContainsAny(s, `/\`):
		return fmt.Errorf("%q must not contain path separators", s)
	}
	return nil
}
