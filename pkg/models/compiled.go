package models

import (
	"encoding/json"
	"fmt"
)

// CompiledSource is a resolved Source
type CompiledSource struct {
	Kind     SourceKind
	Location string
}

// MarshalJSON implements json.Marshaler
func (s CompiledSource) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{string(s.Kind): s.Location})
}

// UnmarshalJSON implements json.Unmarshaler
func (s *CompiledSource) UnmarshalJSON(data []byte) error {
	var src Source
	if err := json.Unmarshal(data, &src); err != nil {
		return err
	}
	*s = CompiledSource{Kind: src.Kind, Location: src.Location.Raw}
	return nil
}

// PortMapping is a resolved host:guest port pair
type PortMapping struct {
	Host  uint16 `json:"host"`
	Guest uint16 `json:"guest"`
}

// String returns "host:guest"
func (m PortMapping) String() string {
	return fmt.Sprintf("%d:%d", m.Host, m.Guest)
}

// CompiledNetworking is resolved Networking
type CompiledNetworking struct {
	ForwardPorts    []PortMapping `json:"forward_ports"`
	ExposePorts     []PortMapping `json:"expose_ports"`
	InternalNetwork *string       `json:"internal_network,omitempty"`
	Hostname        *string       `json:"hostname,omitempty"`
}

// CompiledVolume is a resolved Volume
type CompiledVolume struct {
	Name       string  `json:"name"`
	Size       uint64  `json:"size"`
	Mountpoint *string `json:"mountpoint,omitempty"`
	Recreate   bool    `json:"recreate"`
	Private    bool    `json:"private"`
}

// CompiledStorage is resolved Storage
type CompiledStorage struct {
	Volumes []CompiledVolume `json:"volumes"`
}

// CompiledSystem is resolved System
type CompiledSystem struct {
	HostPID      bool     `json:"host_pid"`
	HostNet      bool     `json:"host_net"`
	Capabilities []string `json:"capabilities"`
	Privileged   bool     `json:"privileged"`
}

// CompiledResources is resolved Resources
type CompiledResources struct {
	CPUs   uint64 `json:"cpus"`
	Memory uint64 `json:"memory"`
}

// CompiledPackage is a package with every placeholder resolved. Every
// section is present; sections the source omitted hold zero values.
type CompiledPackage struct {
	Title        PackageTitle       `json:"title"`
	Description  string             `json:"description"`
	Dependencies []PackageTitle     `json:"dependencies"`
	Source       CompiledSource     `json:"source"`
	Networking   CompiledNetworking `json:"networking"`
	Storage      CompiledStorage    `json:"storage"`
	System       CompiledSystem     `json:"system"`
	Resources    CompiledResources  `json:"resources"`
}

// IsVM reports whether the package runs under the hypervisor
func (p *CompiledPackage) IsVM() bool {
	return p.Source.Kind == SourceURL
}
