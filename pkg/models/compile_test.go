package models

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/prompt"
)

func valPtr(v Value) *Value { return &v }

func promptedPackage() *SourcePackage {
	p := NewPackage(NewTitle("with-prompts", "0.0.1"))
	p.Source = ContainerSource("debian")
	p.Storage = &Storage{Volumes: []Volume{{
		Name:       Str("private"),
		Size:       U64("?private_size?"),
		Mountpoint: valPtr(Str("/srv/?private_path?")),
		Recreate:   Bool("?private_recreate?"),
		Private:    Bool("true"),
	}}}
	p.Prompts = prompt.Collection{
		{Template: "private_path", Question: "Where do you want this mounted?", InputType: prompt.InputType{Kind: prompt.TypeName}},
		{Template: "private_size", Question: "How big should it be?", InputType: prompt.InputType{Kind: prompt.TypeInteger}},
		{Template: "private_recreate", Question: "Should we recreate this volume if it already exists?", InputType: prompt.InputType{Kind: prompt.TypeBoolean}},
	}
	return p
}

func promptedResponses() prompt.Responses {
	return prompt.Responses{
		{Template: "private_path", Input: prompt.StringInput("data")},
		{Template: "private_size", Input: prompt.IntegerInput(100)},
		{Template: "private_recreate", Input: prompt.BooleanInput(false)},
	}
}

func TestCompileDefaultsAbsentSections(t *testing.T) {
	p := NewPackage(NewTitle("plex", "0.0.2"))

	got, err := p.Compile(NewGlobal("plex"), nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	want := &CompiledPackage{
		Title:        NewTitle("plex", "0.0.2"),
		Description:  DefaultDescription,
		Dependencies: []PackageTitle{},
		Source:       CompiledSource{Kind: SourceContainer, Location: "scratch"},
		Networking:   CompiledNetworking{ForwardPorts: []PortMapping{}, ExposePorts: []PortMapping{}},
		Storage:      CompiledStorage{Volumes: []CompiledVolume{}},
		System:       CompiledSystem{Capabilities: []string{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Compile() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileResolvesTemplates(t *testing.T) {
	p := promptedPackage()
	p.Dependencies = []PackageTitle{NewTitle("plex", "0.0.1")}
	p.Networking = &Networking{
		ForwardPorts: []PortPair{Ports("8080", "80")},
		Hostname:     valPtr(Str("box-?private_path?")),
	}
	p.System = &System{
		HostPID:      Bool("false"),
		HostNet:      Bool("true"),
		Capabilities: []Value{Str("NET_ADMIN")},
		Privileged:   Bool("false"),
	}
	p.Resources = &Resources{CPUs: U64("2"), Memory: U64("?private_size?0")}

	got, err := p.Compile(nil, promptedResponses())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if got.Storage.Volumes[0].Size != 100 {
		t.Errorf("volume size = %d, want 100", got.Storage.Volumes[0].Size)
	}
	if got.Storage.Volumes[0].Mountpoint == nil || *got.Storage.Volumes[0].Mountpoint != "/srv/data" {
		t.Errorf("volume mountpoint = %v, want /srv/data", got.Storage.Volumes[0].Mountpoint)
	}
	if got.Storage.Volumes[0].Recreate {
		t.Errorf("volume recreate = true, want false")
	}
	if got.Networking.Hostname == nil || *got.Networking.Hostname != "box-data" {
		t.Errorf("hostname = %v, want box-data", got.Networking.Hostname)
	}
	if got.Networking.InternalNetwork != nil {
		t.Errorf("internal network = %v, want nil", *got.Networking.InternalNetwork)
	}
	if got.Resources.Memory != 1000 {
		t.Errorf("memory = %d, want 1000", got.Resources.Memory)
	}
	if diff := cmp.Diff([]PortMapping{{Host: 8080, Guest: 80}}, got.Networking.ForwardPorts); diff != "" {
		t.Errorf("forward ports mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(p.Dependencies, got.Dependencies); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileIdempotent(t *testing.T) {
	p := promptedPackage()

	first, err := p.Compile(NewGlobal("with-prompts"), promptedResponses())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	second, err := p.Compile(NewGlobal("with-prompts"), promptedResponses())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Compile() not idempotent (-first +second):\n%s", diff)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(p *SourcePackage)
		responses prompt.Responses
		global    *Global
		wantKind  error
		wantMsg   string
	}{
		{
			name:     "missing response",
			modify:   func(p *SourcePackage) {},
			wantKind: errs.ErrUnresolvedPlaceholder,
			wantMsg:  "compile storage.volumes[0].size: no response for prompt `private_size`",
		},
		{
			name: "type mismatch names substituted text",
			modify: func(p *SourcePackage) {
				p.Resources = &Resources{CPUs: U64("?private_path?"), Memory: U64("1")}
			},
			responses: promptedResponses(),
			wantKind:  errs.ErrTypeMismatch,
			wantMsg:   `compile resources.cpus: "data" is not an unsigned integer`,
		},
		{
			name: "port out of range",
			modify: func(p *SourcePackage) {
				p.Networking = &Networking{ExposePorts: []PortPair{Ports("70000", "80")}}
			},
			responses: promptedResponses(),
			wantKind:  errs.ErrTypeMismatch,
			wantMsg:   `compile networking.expose_ports[0].host: "70000" is not an unsigned 16-bit integer`,
		},
		{
			name: "boolean is strict",
			modify: func(p *SourcePackage) {
				p.System = &System{HostPID: Bool("yes"), HostNet: Bool("false"), Privileged: Bool("false")}
			},
			responses: promptedResponses(),
			wantKind:  errs.ErrTypeMismatch,
			wantMsg:   `compile system.host_pid: "yes" is not a boolean`,
		},
		{
			name:      "foreign global",
			modify:    func(p *SourcePackage) {},
			responses: promptedResponses(),
			global:    NewGlobal("plex"),
			wantKind:  errs.ErrInvalid,
			wantMsg:   `compile with-prompts-0.0.1: global belongs to package "plex"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := promptedPackage()
			tt.modify(p)

			got, err := p.Compile(tt.global, tt.responses)
			if err == nil {
				t.Fatal("Compile() expected error")
			}
			if got != nil {
				t.Errorf("Compile() returned partial package %+v", got)
			}
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("Compile() error kind = %v, want %v", errs.KindOf(err), tt.wantKind)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("Compile() error = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestCompileRejectsVolumeNamesOutsideRoot(t *testing.T) {
	for _, name := range []string{"./image", "a/../image", "..", "../../etc", "?vol?"} {
		t.Run(name, func(t *testing.T) {
			p := promptedPackage()
			p.Storage.Volumes[0].Name = Str(name)
			p.Prompts = append(p.Prompts, prompt.Prompt{
				Template: "vol", Question: "Volume name?", InputType: prompt.InputType{Kind: prompt.TypeName},
			})
			responses := append(promptedResponses(), prompt.Response{Template: "vol", Input: prompt.StringInput("x/../qemu-monitor")})

			got, err := p.Compile(NewGlobal("with-prompts"), responses)
			if !errors.Is(err, errs.ErrInvalid) {
				t.Fatalf("Compile() error = %v, want invalid", err)
			}
			if got != nil {
				t.Errorf("Compile() = %v, want no output", got)
			}
		})
	}
}
