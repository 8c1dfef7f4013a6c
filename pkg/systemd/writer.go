package systemd

import (
	"context"

	"github.com/psantana5/charon/pkg/logging"
	"github.com/psantana5/charon/pkg/models"
)

// Writer installs and removes units. In debug mode it only logs what it
// would have done.
type Writer struct {
	ServiceRoot string
	Reloader    Reloader
	Debug       bool
	logger      *logging.Logger
}

// NewWriter creates a new unit writer
func NewWriter(serviceRoot string, reloader Reloader, debug bool) *Writer {
	if serviceRoot == "" {
		serviceRoot = DefaultServiceRoot
	}
	return &Writer{
		ServiceRoot: serviceRoot,
		Reloader:    reloader,
		Debug:       debug,
		logger:      logging.Default().WithField("component", "systemd"),
	}
}

// SetLogger replaces the writer's logger
func (w *Writer) SetLogger(l *logging.Logger) {
	w.logger = l
}

// Write installs the unit for pkg. The unit is rendered even in debug mode
// so template errors still surface.
func (w *Writer) Write(ctx context.Context, pkg *models.CompiledPackage, registryPath, volumeRoot string) (*Unit, error) {
	unit := NewUnit(pkg, w.ServiceRoot)

	if w.Debug {
		if _, err := unit.Render(registryPath, volumeRoot); err != nil {
			return nil, err
		}
		w.logger.Warn("debug mode: not writing unit", map[string]interface{}{"unit": unit.Filename()})
		return unit, nil
	}

	if err := unit.Create(ctx, w.Reloader, registryPath, volumeRoot); err != nil {
		return nil, err
	}
	w.logger.Info("unit written", map[string]interface{}{"unit": unit.Filename()})
	return unit, nil
}

// Remove deletes the unit for title
func (w *Writer) Remove(ctx context.Context, title models.PackageTitle) error {
	unit := &Unit{Title: title, ServiceRoot: w.ServiceRoot}

	if w.Debug {
		w.logger.Warn("debug mode: not removing unit", map[string]interface{}{"unit": unit.Filename()})
		return nil
	}

	if err := unit.Remove(ctx, w.Reloader); err != nil {
		return err
	}
	w.logger.Info("unit removed", map[string]interface{}{"unit": unit.Filename()})
	return nil
}
