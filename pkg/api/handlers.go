package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"

	"github.com/psantana5/charon/pkg/engine"
	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/models"
	"github.com/psantana5/charon/pkg/prompt"
	"github.com/psantana5/charon/pkg/systemd"
	"github.com/psantana5/charon/pkg/tracing"
)

// Version is reported by the ping endpoint
var Version = "dev"

// PingResponse is returned by GET /status/ping
type PingResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Debug   bool   `json:"debug"`
}

// UnitRequest asks the daemon to write the unit for a package
type UnitRequest struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	VolumeRoot string `json:"volume_root"`
}

// UnitResponse describes a written or removed unit
type UnitResponse struct {
	Service string `json:"service"`
	Path    string `json:"path"`
	Written bool   `json:"written"`
}

// CommandResponse carries a synthesized command line
type CommandResponse struct {
	Backend string   `json:"backend"`
	Argv    []string `json:"argv"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatusFor maps an error kind to an HTTP status code
func StatusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindMalformed, errs.KindUnresolvedPlaceholder, errs.KindTypeMismatch,
		errs.KindReservedName, errs.KindBackendMismatch, errs.KindInvalid:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= 500 {
		s.logger.Error("Request error", map[string]interface{}{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
	}
	tracing.SetError(r.Context(), err)
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: errs.KindOf(err).String()})
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Wrap(errs.KindMalformed, "decode", r.URL.Path, err)
	}
	return nil
}

// compile loads and compiles a package, recording a span and metrics
func (s *Server) compile(ctx context.Context, name, version string) (*models.CompiledPackage, error) {
	ctx, span := s.tracer.StartSpan(ctx, "compile",
		attribute.String("package.name", name),
		attribute.String("package.version", version),
	)
	defer span.End()

	start := time.Now()
	pkg, err := s.registry.Compile(name, version)
	s.metrics.RecordCompile(time.Since(start), err)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	return pkg, nil
}

// Ping reports that the daemon is alive
func (s *Server) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PingResponse{Status: "ok", Version: Version, Debug: s.debug})
}

// WriteUnit compiles a package and installs its systemd unit
func (s *Server) WriteUnit(w http.ResponseWriter, r *http.Request) {
	var req UnitRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.VolumeRoot == "" {
		s.writeError(w, r, errs.New(errs.KindInvalid, "unit", req.Name, "volume_root is required"))
		return
	}

	pkg, err := s.compile(r.Context(), req.Name, req.Version)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	unit, err := s.units.Write(r.Context(), pkg, s.registry.Path(), req.VolumeRoot)
	s.metrics.RecordUnit("write", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, UnitResponse{
		Service: unit.ServiceName(),
		Path:    unit.Filename(),
		Written: !s.units.Debug,
	})
}

// RemoveUnit deletes the systemd unit for a package version
func (s *Server) RemoveUnit(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	title := models.NewTitle(vars["name"], vars["version"])
	if err := title.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	err := s.units.Remove(r.Context(), title)
	s.metrics.RecordUnit("remove", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	unit := &systemd.Unit{Title: title, ServiceRoot: s.units.ServiceRoot}
	writeJSON(w, http.StatusOK, UnitResponse{
		Service: unit.ServiceName(),
		Path:    unit.Filename(),
		Written: false,
	})
}

// GetPrompts returns the prompts a package declares
func (s *Server) GetPrompts(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	pkg, err := s.registry.Load(vars["name"], vars["version"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prompts := pkg.Prompts
	if prompts == nil {
		prompts = prompt.Collection{}
	}
	writeJSON(w, http.StatusOK, prompts)
}

// SetResponses stores the prompt responses for a package
func (s *Server) SetResponses(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var responses prompt.Responses
	if err := decode(r, &responses); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.registry.Versions(name); err != nil {
		s.writeError(w, r, err)
		return
	}

	seen := make(map[string]bool, len(responses))
	for _, resp := range responses {
		if seen[resp.Template] {
			s.writeError(w, r, errs.New(errs.KindInvalid, "responses", name,
				fmt.Sprintf("more than one response for prompt `%s`", resp.Template)))
			return
		}
		seen[resp.Template] = true
	}

	if s.debug {
		s.logger.Warn("debug mode: not writing responses", map[string]interface{}{"package": name})
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.registry.Responses().Set(name, responses); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Command returns the backend command line for a package
func (s *Server) Command(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	volumeRoot := r.URL.Query().Get("volume_root")
	if volumeRoot == "" {
		s.writeError(w, r, errs.New(errs.KindInvalid, "command", vars["name"], "volume_root is required"))
		return
	}

	pkg, err := s.compile(r.Context(), vars["name"], vars["version"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	e, err := engine.NewSelector().Select(pkg)
	if err != nil {
		s.metrics.RecordCommand("none", err)
		s.writeError(w, r, err)
		return
	}

	argv, err := e.BuildCommand(pkg, volumeRoot)
	s.metrics.RecordCommand(e.Name(), err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tracing.AddEvent(r.Context(), "command generated",
		attribute.String("backend", e.Name()),
		attribute.Int("argc", len(argv)),
	)

	writeJSON(w, http.StatusOK, CommandResponse{Backend: e.Name(), Argv: argv})
}
