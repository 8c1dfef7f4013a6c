package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/models"
)

const (
	// QemuCommand is the hypervisor binary
	QemuCommand = "qemu-system-x86_64"
	// ImageFilename is the VM disk image under the volume root
	ImageFilename = "image"
	// MonitorFilename is the QMP control socket under the volume root
	MonitorFilename = "qemu-monitor"
)

// ReservedFilenames may not be used as VM volume names
var ReservedFilenames = []string{ImageFilename, MonitorFilename}

// ImagePath returns the VM disk image location
func ImagePath(volumeRoot string) string {
	return filepath.Join(volumeRoot, ImageFilename)
}

// MonitorPath returns the QMP socket location
func MonitorPath(volumeRoot string) string {
	return filepath.Join(volumeRoot, MonitorFilename)
}

// QemuEngine runs URL-sourced packages as KVM guests
type QemuEngine struct{}

// NewQemuEngine creates a new qemu engine
func NewQemuEngine() *QemuEngine {
	return &QemuEngine{}
}

// Name returns the engine name
func (e *QemuEngine) Name() string {
	return string(EngineTypeQemu)
}

// Supports checks if the package has a URL source
func (e *QemuEngine) Supports(pkg *models.CompiledPackage) bool {
	return pkg.Source.Kind == models.SourceURL
}

// BuildCommand generates the qemu command line. The image fetched from the
// source URL is drive 0; declared volumes follow at index 1 onwards.
func (e *QemuEngine) BuildCommand(pkg *models.CompiledPackage, volumeRoot string) ([]string, error) {
	if !e.Supports(pkg) {
		return nil, mismatch(e, pkg)
	}
	if err := checkVolumes(e, pkg); err != nil {
		return nil, err
	}

	for i, v := range pkg.Storage.Volumes {
		if isReserved(v.Name) {
			return nil, errs.New(errs.KindReservedName, "qemu", fmt.Sprintf("storage.volumes[%d]", i),
				fmt.Sprintf("VM volumes cannot be named '%s'", strings.Join(ReservedFilenames, "', or '")))
		}
	}

	var nic strings.Builder
	nic.WriteString("user")
	for _, p := range pkg.Networking.ForwardPorts {
		fmt.Fprintf(&nic, ",hostfwd=tcp:0.0.0.0:%d-:%d", p.Host, p.Guest)
	}
	for _, p := range pkg.Networking.ExposePorts {
		fmt.Fprintf(&nic, ",hostfwd=tcp:0.0.0.0:%d-:%d", p.Host, p.Guest)
	}

	cpus := pkg.Resources.CPUs
	cmd := []string{
		QemuCommand,
		"-nodefaults",
		"-chardev", fmt.Sprintf("socket,server=on,wait=off,id=char0,path=%s", MonitorPath(volumeRoot)),
		"-mon", "chardev=char0,mode=control,pretty=on",
		"-machine", "accel=kvm",
		"-vga", "none",
		"-m", fmt.Sprintf("%dM", pkg.Resources.Memory),
		"-cpu", "max",
		"-smp", fmt.Sprintf("cpus=%d,cores=%d,maxcpus=%d", cpus, cpus, cpus),
		"-nic", nic.String(),
		"-drive", drive(ImagePath(volumeRoot), 0),
	}

	for i, v := range pkg.Storage.Volumes {
		cmd = append(cmd, "-drive", drive(filepath.Join(volumeRoot, v.Name), i+1))
	}

	return cmd, nil
}

func drive(file string, index int) string {
	return fmt.Sprintf("driver=raw,if=virtio,file=%s,cache=none,media=disk,index=%d", file, index)
}

func isReserved(name string) bool {
	for _, r := range ReservedFilenames {
		if name == r {
			return true
		}
	}
	return false
}
