package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/psantana5/charon/pkg/errs"
)

// TempSuffix is appended to a file's path while it is being written
const TempSuffix = ".tmp"

// writeJSON serializes v to <root>/<rel>.tmp and renames it over
// <root>/<rel>. Readers see the old file or the new one, never a partial
// write. Concurrent writers to one key race at the rename; last one wins.
func (r *Registry) writeJSON(rel string, v interface{}) error {
	path := filepath.Join(r.root, rel)

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindMalformed, "encode", rel, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.Wrap(errs.KindIOFailure, "write", rel, err)
	}

	tmp := path + TempSuffix
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindIOFailure, "write", rel, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindIOFailure, "write", rel, err)
	}

	r.logger.Debug("registry write", map[string]interface{}{"path": rel})
	return nil
}

// readJSON decodes <root>/<rel> into v
func (r *Registry) readJSON(rel string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(r.root, rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errs.Wrap(errs.KindNotFound, "load", rel, err)
		}
		return errs.Wrap(errs.KindIOFailure, "load", rel, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return errs.Wrap(errs.KindMalformed, "load", rel, err)
	}
	return nil
}

// removeFile deletes <root>/<rel>; a missing file is NotFound
func (r *Registry) removeFile(rel string) error {
	if err := os.Remove(filepath.Join(r.root, rel)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errs.Wrap(errs.KindNotFound, "remove", rel, err)
		}
		return errs.Wrap(errs.KindIOFailure, "remove", rel, err)
	}
	return nil
}

func jsonName(name string) string {
	return fmt.Sprintf("%s.json", name)
}
