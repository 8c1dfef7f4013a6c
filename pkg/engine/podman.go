package engine

import (
	"fmt"
	"path/filepath"

	"github.com/psantana5/charon/pkg/models"
)

// PodmanCommand is the container runtime binary
const PodmanCommand = "podman"

// PodmanEngine runs container-sourced packages
type PodmanEngine struct{}

// NewPodmanEngine creates a new podman engine
func NewPodmanEngine() *PodmanEngine {
	return &PodmanEngine{}
}

// Name returns the engine name
func (e *PodmanEngine) Name() string {
	return string(EngineTypePodman)
}

// Supports checks if the package has a container source
func (e *PodmanEngine) Supports(pkg *models.CompiledPackage) bool {
	return pkg.Source.Kind == models.SourceContainer
}

// BuildCommand generates the podman command line.
//
// Flag order: --name, --hostname, --network <internal>, forward then
// expose ports, volumes, --pid host, --network host, --privileged,
// --cap-add, then -d and the image. host_net is ignored when an internal
// network is set; the combination is not rejected.
func (e *PodmanEngine) BuildCommand(pkg *models.CompiledPackage, volumeRoot string) ([]string, error) {
	if !e.Supports(pkg) {
		return nil, mismatch(e, pkg)
	}
	if err := checkVolumes(e, pkg); err != nil {
		return nil, err
	}

	net := pkg.Networking
	cmd := []string{PodmanCommand, "--name", pkg.Title.String()}

	if net.Hostname != nil {
		cmd = append(cmd, "--hostname", *net.Hostname)
	}

	if net.InternalNetwork != nil {
		cmd = append(cmd, "--network", *net.InternalNetwork)
	}

	for _, p := range net.ForwardPorts {
		cmd = append(cmd, "-p", p.String())
	}
	for _, p := range net.ExposePorts {
		cmd = append(cmd, "-p", p.String())
	}

	for _, v := range pkg.Storage.Volumes {
		// block devices without a mountpoint are not passed to containers
		if v.Mountpoint == nil {
			continue
		}
		mode := "rshared"
		if v.Private {
			mode = "rprivate"
		}
		cmd = append(cmd, "-v", fmt.Sprintf("%s:%s:%s", filepath.Join(volumeRoot, v.Name), *v.Mountpoint, mode))
	}

	sys := pkg.System
	if sys.HostPID {
		cmd = append(cmd, "--pid", "host")
	}
	if sys.HostNet && net.InternalNetwork == nil {
		cmd = append(cmd, "--network", "host")
	}
	if sys.Privileged {
		cmd = append(cmd, "--privileged")
	}
	for _, c := range sys.Capabilities {
		cmd = append(cmd, "--cap-add", c)
	}

	return append(cmd, "-d", pkg.Source.Location), nil
}

// StopCommand generates the command that stops a running container
func (e *PodmanEngine) StopCommand(pkg *models.CompiledPackage) ([]string, error) {
	if !e.Supports(pkg) {
		return nil, mismatch(e, pkg)
	}
	return []string{PodmanCommand, "stop", pkg.Title.String()}, nil
}
