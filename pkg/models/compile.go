package models

import (
	"fmt"

	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/prompt"
)

// Compile resolves every templated field against the package's prompts and
// the operator's responses. It stops at the first error and returns no
// partial package.
//
// global may be nil. When given it must belong to this package; its
// variables are not substituted into fields.
func (p *SourcePackage) Compile(global *Global, responses prompt.Responses) (*CompiledPackage, error) {
	if global != nil && global.Name != p.Title.Name {
		return nil, errs.New(errs.KindInvalid, "compile", p.Title.String(),
			fmt.Sprintf("global belongs to package %q", global.Name))
	}

	r := Resolver{Parser: p.Parser(), Responses: responses}

	source, err := r.String("source", p.Source.Location)
	if err != nil {
		return nil, err
	}

	out := &CompiledPackage{
		Title:        p.Title,
		Description:  p.Description,
		Dependencies: append([]PackageTitle{}, p.Dependencies...),
		Source:       CompiledSource{Kind: p.Source.Kind, Location: source},
	}

	if out.Networking, err = compileNetworking(r, p.Networking); err != nil {
		return nil, err
	}
	if out.Storage, err = compileStorage(r, p.Storage); err != nil {
		return nil, err
	}
	if out.System, err = compileSystem(r, p.System); err != nil {
		return nil, err
	}
	if out.Resources, err = compileResources(r, p.Resources); err != nil {
		return nil, err
	}

	return out, nil
}

// Each section compiler is the one place an absent section becomes its
// zero value.

func compileNetworking(r Resolver, n *Networking) (CompiledNetworking, error) {
	out := CompiledNetworking{
		ForwardPorts: []PortMapping{},
		ExposePorts:  []PortMapping{},
	}
	if n == nil {
		return out, nil
	}

	var err error
	if out.ForwardPorts, err = compilePorts(r, "networking.forward_ports", n.ForwardPorts); err != nil {
		return CompiledNetworking{}, err
	}
	if out.ExposePorts, err = compilePorts(r, "networking.expose_ports", n.ExposePorts); err != nil {
		return CompiledNetworking{}, err
	}
	if out.InternalNetwork, err = r.OptionalString("networking.internal_network", n.InternalNetwork); err != nil {
		return CompiledNetworking{}, err
	}
	if out.Hostname, err = r.OptionalString("networking.hostname", n.Hostname); err != nil {
		return CompiledNetworking{}, err
	}
	return out, nil
}

func compilePorts(r Resolver, field string, pairs []PortPair) ([]PortMapping, error) {
	out := make([]PortMapping, 0, len(pairs))
	for i, pair := range pairs {
		host, err := r.U16(fmt.Sprintf("%s[%d].host", field, i), pair[0])
		if err != nil {
			return nil, err
		}
		guest, err := r.U16(fmt.Sprintf("%s[%d].guest", field, i), pair[1])
		if err != nil {
			return nil, err
		}
		out = append(out, PortMapping{Host: host, Guest: guest})
	}
	return out, nil
}

func compileStorage(r Resolver, s *Storage) (CompiledStorage, error) {
	out := CompiledStorage{Volumes: []CompiledVolume{}}
	if s == nil {
		return out, nil
	}

	for i, v := range s.Volumes {
		prefix := fmt.Sprintf("storage.volumes[%d]", i)
		var vol CompiledVolume
		var err error

		if vol.Name, err = r.String(prefix+".name", v.Name); err != nil {
			return CompiledStorage{}, err
		}
		if err := validSegment(vol.Name); err != nil {
			return CompiledStorage{}, errs.New(errs.KindInvalid, "compile", prefix+".name", err.Error())
		}
		if vol.Size, err = r.U64(prefix+".size", v.Size); err != nil {
			return CompiledStorage{}, err
		}
		if vol.Mountpoint, err = r.OptionalString(prefix+".mountpoint", v.Mountpoint); err != nil {
			return CompiledStorage{}, err
		}
		if vol.Recreate, err = r.Bool(prefix+".recreate", v.Recreate); err != nil {
			return CompiledStorage{}, err
		}
		if vol.Private, err = r.Bool(prefix+".private", v.Private); err != nil {
			return CompiledStorage{}, err
		}
		out.Volumes = append(out.Volumes, vol)
	}
	return out, nil
}

func compileSystem(r Resolver, s *System) (CompiledSystem, error) {
	out := CompiledSystem{Capabilities: []string{}}
	if s == nil {
		return out, nil
	}

	var err error
	if out.HostPID, err = r.Bool("system.host_pid", s.HostPID); err != nil {
		return CompiledSystem{}, err
	}
	if out.HostNet, err = r.Bool("system.host_net", s.HostNet); err != nil {
		return CompiledSystem{}, err
	}
	if out.Capabilities, err = r.Strings("system.capabilities", s.Capabilities); err != nil {
		return CompiledSystem{}, err
	}
	if out.Privileged, err = r.Bool("system.privileged", s.Privileged); err != nil {
		return CompiledSystem{}, err
	}
	return out, nil
}

func compileResources(r Resolver, res *Resources) (CompiledResources, error) {
	var out CompiledResources
	if res == nil {
		return out, nil
	}

	var err error
	if out.CPUs, err = r.U64("resources.cpus", res.CPUs); err != nil {
		return CompiledResources{}, err
	}
	if out.Memory, err = r.U64("resources.memory", res.Memory); err != nil {
		return CompiledResources{}, err
	}
	return out, nil
}
