package systemd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/models"
)

// DefaultServiceRoot is where unit files are installed
const DefaultServiceRoot = "/etc/systemd/system"

// tokenDelimiter brackets a template token: @NAME@
const tokenDelimiter = '@'

// UnitTemplate launches and stops a package by calling back into the charon CLI
const UnitTemplate = `
[Unit]
Description=Charon launcher for @PACKAGE_NAME@, version @PACKAGE_VERSION@

[Service]
ExecStart=/usr/bin/charon -r @REGISTRY_PATH@ launch @PACKAGE_NAME@ @PACKAGE_VERSION@ @VOLUME_ROOT@
ExecStop=/usr/bin/charon -r @REGISTRY_PATH@ stop @PACKAGE_NAME@ @PACKAGE_VERSION@ @VOLUME_ROOT@
Restart=always

[Install]
Alias=@PACKAGE_FILENAME@.service
`

// Unit is the systemd service for one package version
type Unit struct {
	Title       models.PackageTitle
	ServiceRoot string
}

// NewUnit creates a unit for pkg. An empty serviceRoot means DefaultServiceRoot.
func NewUnit(pkg *models.CompiledPackage, serviceRoot string) *Unit {
	if serviceRoot == "" {
		serviceRoot = DefaultServiceRoot
	}
	return &Unit{Title: pkg.Title, ServiceRoot: serviceRoot}
}

// ServiceName returns "<name>-<version>.service"
func (u *Unit) ServiceName() string {
	return u.Title.String() + ".service"
}

// Filename returns the unit file path
func (u *Unit) Filename() string {
	return filepath.Join(u.ServiceRoot, u.ServiceName())
}

// Render fills the unit template
func (u *Unit) Render(registryPath, volumeRoot string) (string, error) {
	return u.render(UnitTemplate, registryPath, volumeRoot)
}

func (u *Unit) render(tmpl, registryPath, volumeRoot string) (string, error) {
	values := map[string]string{
		"PACKAGE_NAME":     u.Title.Name,
		"PACKAGE_VERSION":  u.Title.Version,
		"PACKAGE_FILENAME": u.Title.String(),
		"REGISTRY_PATH":    registryPath,
		"VOLUME_ROOT":      volumeRoot,
	}

	var out, token strings.Builder
	inside := false

	for _, ch := range tmpl {
		switch {
		case ch == tokenDelimiter && !inside:
			inside = true
			token.Reset()
		case ch == tokenDelimiter && inside:
			inside = false
			v, ok := values[token.String()]
			if !ok {
				return "", errs.New(errs.KindInvalid, "render", u.ServiceName(),
					fmt.Sprintf("invalid template variable '%s'", token.String()))
			}
			out.WriteString(v)
		case inside:
			token.WriteRune(ch)
		default:
			out.WriteRune(ch)
		}
	}

	if inside {
		return "", errs.New(errs.KindInvalid, "render", u.ServiceName(),
			fmt.Sprintf("unterminated template variable '%s'", token.String()))
	}
	return out.String(), nil
}

// Create renders and writes the unit file, then reloads the service manager
func (u *Unit) Create(ctx context.Context, reloader Reloader, registryPath, volumeRoot string) error {
	text, err := u.Render(registryPath, volumeRoot)
	if err != nil {
		return err
	}

	if err := writeFile(u.Filename(), []byte(text)); err != nil {
		return err
	}
	return reloader.Reload(ctx)
}

// Remove deletes the unit file, then reloads the service manager
func (u *Unit) Remove(ctx context.Context, reloader Reloader) error {
	if err := os.Remove(u.Filename()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errs.Wrap(errs.KindNotFound, "remove", u.Filename(), err)
		}
		return errs.Wrap(errs.KindIOFailure, "remove", u.Filename(), err)
	}
	return reloader.Reload(ctx)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.Wrap(errs.KindIOFailure, "write", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindIOFailure, "write", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindIOFailure, "write", path, err)
	}
	return nil
}
