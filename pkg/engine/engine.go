package engine

import (
	"fmt"

	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/models"
)

// Engine turns a compiled package into the argument vector of a backend
type Engine interface {
	// Name returns the engine name
	Name() string

	// Supports checks if this engine can run the package's source
	Supports(pkg *models.CompiledPackage) bool

	// BuildCommand generates the command line, program first, for running
	// the package with its volumes under volumeRoot
	BuildCommand(pkg *models.CompiledPackage, volumeRoot string) ([]string, error)
}

// EngineType names a backend
type EngineType string

const (
	EngineTypePodman EngineType = "podman"
	EngineTypeQemu   EngineType = "qemu"
)

// Selector picks the engine for a package by its source variant
type Selector struct {
	podman *PodmanEngine
	qemu   *QemuEngine
}

// NewSelector creates a new engine selector
func NewSelector() *Selector {
	return &Selector{
		podman: NewPodmanEngine(),
		qemu:   NewQemuEngine(),
	}
}

// Select returns the engine for pkg
func (s *Selector) Select(pkg *models.CompiledPackage) (Engine, error) {
	switch pkg.Source.Kind {
	case models.SourceContainer:
		return s.podman, nil
	case models.SourceURL:
		return s.qemu, nil
	default:
		return nil, errs.New(errs.KindBackendMismatch, "select", pkg.Title.String(),
			fmt.Sprintf("no engine for source %q", pkg.Source.Kind))
	}
}

// Generate builds the command for pkg on the engine its source selects
func Generate(pkg *models.CompiledPackage, volumeRoot string) ([]string, error) {
	e, err := NewSelector().Select(pkg)
	if err != nil {
		return nil, err
	}
	return e.BuildCommand(pkg, volumeRoot)
}

// checkVolumes rejects volume names that would not stay a direct child of
// the volume root once joined to it
func checkVolumes(e Engine, pkg *models.CompiledPackage) error {
	for i, v := range pkg.Storage.Volumes {
		if err := models.ValidateVolumeName(v.Name); err != nil {
			return errs.Wrap(errs.KindInvalid, e.Name(), fmt.Sprintf("storage.volumes[%d]", i), err)
		}
	}
	return nil
}

func mismatch(e Engine, pkg *models.CompiledPackage) error {
	return errs.New(errs.KindBackendMismatch, e.Name(), pkg.Title.String(),
		fmt.Sprintf("cannot run %s source", pkg.Source.Kind))
}
