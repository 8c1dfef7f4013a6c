package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/psantana5/charon/pkg/prompt"
)

// DefaultDescription is written into freshly created packages
const DefaultDescription = "Please modify this description"

// SourceKind selects the backend a package runs on
type SourceKind string

const (
	SourceURL       SourceKind = "url"
	SourceContainer SourceKind = "container"
)

// Source is where the workload comes from: a VM image URL or a container image reference
type Source struct {
	Kind     SourceKind
	Location Value
}

// URLSource creates a VM image source
func URLSource(raw string) Source {
	return Source{Kind: SourceURL, Location: Str(raw)}
}

// ContainerSource creates a container image source
func ContainerSource(raw string) Source {
	return Source{Kind: SourceContainer, Location: Str(raw)}
}

// DefaultSource is the source of a package that does not declare one
func DefaultSource() Source {
	return ContainerSource("scratch")
}

// MarshalJSON implements json.Marshaler
func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]Value{string(s.Kind): s.Location})
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Source) UnmarshalJSON(data []byte) error {
	var tagged map[string]Value
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("source must be an object: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("source must have exactly one of %q or %q", SourceURL, SourceContainer)
	}
	for key, loc := range tagged {
		switch SourceKind(key) {
		case SourceURL, SourceContainer:
			*s = Source{Kind: SourceKind(key), Location: loc.As(KindString)}
		default:
			return fmt.Errorf("unknown source %q", key)
		}
	}
	return nil
}

// PortPair maps a host port to a guest port
type PortPair [2]Value

// Ports creates a port pair
func Ports(host, guest string) PortPair {
	return PortPair{U16(host), U16(guest)}
}

// Networking configures ports, the network and the hostname
type Networking struct {
	ForwardPorts    []PortPair `json:"forward_ports"`
	ExposePorts     []PortPair `json:"expose_ports"`
	InternalNetwork *Value     `json:"internal_network,omitempty"`
	Hostname        *Value     `json:"hostname,omitempty"`
}

// Volume is a named piece of storage under the volume root
type Volume struct {
	Name       Value  `json:"name"`
	Size       Value  `json:"size"`
	Mountpoint *Value `json:"mountpoint,omitempty"`
	Recreate   Value  `json:"recreate"`
	Private    Value  `json:"private"`
}

// Storage lists the volumes a package uses
type Storage struct {
	Volumes []Volume `json:"volumes"`
}

// System holds host-level privileges
type System struct {
	HostPID      Value   `json:"host_pid"`
	HostNet      Value   `json:"host_net"`
	Capabilities []Value `json:"capabilities"`
	Privileged   Value   `json:"privileged"`
}

// Resources sizes a VM
type Resources struct {
	CPUs   Value `json:"cpus"`
	Memory Value `json:"memory"`
}

// SourcePackage is a package as authored, with templated fields
type SourcePackage struct {
	Title        PackageTitle      `json:"title"`
	Description  string            `json:"description"`
	Dependencies []PackageTitle    `json:"dependencies"`
	Source       Source            `json:"source"`
	Networking   *Networking       `json:"networking,omitempty"`
	Storage      *Storage          `json:"storage,omitempty"`
	System       *System           `json:"system,omitempty"`
	Resources    *Resources        `json:"resources,omitempty"`
	Prompts      prompt.Collection `json:"prompts,omitempty"`
}

// NewPackage creates the skeleton written by "package new"
func NewPackage(title PackageTitle) *SourcePackage {
	return &SourcePackage{
		Title:        title,
		Description:  DefaultDescription,
		Dependencies: []PackageTitle{},
		Source:       DefaultSource(),
		Prompts:      prompt.Collection{},
	}
}

// UnmarshalJSON implements json.Unmarshaler and declares field kinds
func (p *SourcePackage) UnmarshalJSON(data []byte) error {
	type plain SourcePackage
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*p = SourcePackage(out)
	if p.Source.Kind == "" {
		p.Source = DefaultSource()
	}
	if p.Dependencies == nil {
		p.Dependencies = []PackageTitle{}
	}
	if p.Prompts == nil {
		p.Prompts = prompt.Collection{}
	}
	return p.declare()
}

// Parser returns a template parser over the package's prompts
func (p *SourcePackage) Parser() *prompt.Parser {
	return prompt.NewParser(p.Prompts)
}

// walk visits every templated value with its field path and declared kind
func (p *SourcePackage) walk(fn func(field string, k Kind, v *Value)) {
	fn("source", KindString, &p.Source.Location)

	if n := p.Networking; n != nil {
		for i := range n.ForwardPorts {
			fn(fmt.Sprintf("networking.forward_ports[%d].host", i), KindU16, &n.ForwardPorts[i][0])
			fn(fmt.Sprintf("networking.forward_ports[%d].guest", i), KindU16, &n.ForwardPorts[i][1])
		}
		for i := range n.ExposePorts {
			fn(fmt.Sprintf("networking.expose_ports[%d].host", i), KindU16, &n.ExposePorts[i][0])
			fn(fmt.Sprintf("networking.expose_ports[%d].guest", i), KindU16, &n.ExposePorts[i][1])
		}
		if n.InternalNetwork != nil {
			fn("networking.internal_network", KindString, n.InternalNetwork)
		}
		if n.Hostname != nil {
			fn("networking.hostname", KindString, n.Hostname)
		}
	}

	if s := p.Storage; s != nil {
		for i := range s.Volumes {
			v := &s.Volumes[i]
			prefix := fmt.Sprintf("storage.volumes[%d]", i)
			fn(prefix+".name", KindString, &v.Name)
			fn(prefix+".size", KindU64, &v.Size)
			if v.Mountpoint != nil {
				fn(prefix+".mountpoint", KindString, v.Mountpoint)
			}
			fn(prefix+".recreate", KindBool, &v.Recreate)
			fn(prefix+".private", KindBool, &v.Private)
		}
	}

	if s := p.System; s != nil {
		fn("system.host_pid", KindBool, &s.HostPID)
		fn("system.host_net", KindBool, &s.HostNet)
		for i := range s.Capabilities {
			fn(fmt.Sprintf("system.capabilities[%d]", i), KindString, &s.Capabilities[i])
		}
		fn("system.privileged", KindBool, &s.Privileged)
	}

	if r := p.Resources; r != nil {
		fn("resources.cpus", KindU64, &r.CPUs)
		fn("resources.memory", KindU64, &r.Memory)
	}
}

// declare stamps each value with its field's kind. Every walked field is
// required, so an empty raw value means the field was left out.
func (p *SourcePackage) declare() error {
	var missing []string
	p.walk(func(field string, k Kind, v *Value) {
		v.Kind = k
		if v.Raw == "" {
			missing = append(missing, field)
		}
	})
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// TemplateKeys returns every placeholder key referenced by the package,
// sorted and deduplicated
func (p *SourcePackage) TemplateKeys() []string {
	seen := make(map[string]bool)
	p.walk(func(_ string, _ Kind, v *Value) {
		for _, key := range prompt.Keys(v.Raw) {
			seen[key] = true
		}
	})

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// UndeclaredKeys returns referenced placeholder keys with no matching prompt
func (p *SourcePackage) UndeclaredKeys() []string {
	var out []string
	for _, key := range p.TemplateKeys() {
		if _, ok := p.Prompts.Get(key); !ok {
			out = append(out, key)
		}
	}
	return out
}
