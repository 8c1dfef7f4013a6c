package hostinfo

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/psantana5/charon/pkg/models"
)

// mebibyte is the unit of CompiledResources.Memory
const mebibyte = 1024 * 1024

// Host is a snapshot of the machine's capacity
type Host struct {
	CPUs        int    `json:"cpus"`
	MemoryTotal uint64 `json:"memory_total"`
	MemoryFree  uint64 `json:"memory_available"`
	DiskTotal   uint64 `json:"disk_total,omitempty"`
	DiskFree    uint64 `json:"disk_free,omitempty"`
}

// Probe reads capacity from the running host. volumeRoot, when set, is
// the filesystem whose free space is reported.
func Probe(volumeRoot string) (*Host, error) {
	cpus, err := cpu.Counts(true)
	if err != nil {
		return nil, fmt.Errorf("failed to count cpus: %w", err)
	}

	vmem, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory: %w", err)
	}

	h := &Host{
		CPUs:        cpus,
		MemoryTotal: vmem.Total,
		MemoryFree:  vmem.Available,
	}

	if volumeRoot != "" {
		usage, err := disk.Usage(volumeRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to read disk usage of %s: %w", volumeRoot, err)
		}
		h.DiskTotal = usage.Total
		h.DiskFree = usage.Free
	}
	return h, nil
}

// Check compares a package's requested resources with the host and
// returns a warning for each request the host cannot satisfy. Zero
// requests are never flagged.
func (h *Host) Check(pkg *models.CompiledPackage) []string {
	var warnings []string
	res := pkg.Resources

	if res.CPUs > uint64(h.CPUs) {
		warnings = append(warnings, fmt.Sprintf("%s requests %d cpus, host has %d", pkg.Title, res.CPUs, h.CPUs))
	}

	want := res.Memory * mebibyte
	switch {
	case want > h.MemoryTotal:
		warnings = append(warnings, fmt.Sprintf("%s requests %d MiB memory, host has %d MiB",
			pkg.Title, res.Memory, h.MemoryTotal/mebibyte))
	case want > h.MemoryFree:
		warnings = append(warnings, fmt.Sprintf("%s requests %d MiB memory, only %d MiB available",
			pkg.Title, res.Memory, h.MemoryFree/mebibyte))
	}

	return warnings
}
