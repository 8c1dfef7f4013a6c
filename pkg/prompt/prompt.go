package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// InputTypeKind is the kind of answer a prompt expects
type InputTypeKind string

const (
	TypeInteger       InputTypeKind = "integer"
	TypeSignedInteger InputTypeKind = "signed_integer"
	TypeSelect        InputTypeKind = "select"
	TypeName          InputTypeKind = "name"
	TypePath          InputTypeKind = "path"
	TypeBoolean       InputTypeKind = "boolean"
)

// SelectOption is one choice offered by a select prompt
type SelectOption struct {
	Name  string `json:"name"`
	Value Input  `json:"value"`
}

// InputType describes the expected answer. Options is only set for select.
//
// JSON form is the bare kind string, except select which is
// {"select": [options...]}.
type InputType struct {
	Kind    InputTypeKind
	Options []SelectOption
}

// MarshalJSON implements json.Marshaler
func (t InputType) MarshalJSON() ([]byte, error) {
	if t.Kind == TypeSelect {
		opts := t.Options
		if opts == nil {
			opts = []SelectOption{}
		}
		return json.Marshal(map[string][]SelectOption{string(TypeSelect): opts})
	}
	return json.Marshal(string(t.Kind))
}

// UnmarshalJSON implements json.Unmarshaler
func (t *InputType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	var kind string
	if err := json.Unmarshal(data, &kind); err == nil {
		switch InputTypeKind(kind) {
		case TypeInteger, TypeSignedInteger, TypeName, TypePath, TypeBoolean:
			*t = InputType{Kind: InputTypeKind(kind)}
			return nil
		case TypeSelect:
			return fmt.Errorf("input type select requires options")
		default:
			return fmt.Errorf("unknown input type %q", kind)
		}
	}

	var tagged map[string][]SelectOption
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("input type must be a string or a select object: %w", err)
	}
	opts, ok := tagged[string(TypeSelect)]
	if !ok || len(tagged) != 1 {
		return fmt.Errorf("input type object must have exactly the key %q", TypeSelect)
	}
	*t = InputType{Kind: TypeSelect, Options: opts}
	return nil
}

// Coerce converts operator-entered text into an Input of the expected type
func (t InputType) Coerce(text string) (Input, error) {
	text = strings.TrimSpace(text)
	switch t.Kind {
	case TypeInteger:
		v, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return Input{}, fmt.Errorf("%q is not an unsigned integer", text)
		}
		return IntegerInput(v), nil
	case TypeSignedInteger:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Input{}, fmt.Errorf("%q is not a signed integer", text)
		}
		return SignedIntegerInput(v), nil
	case TypeBoolean:
		switch text {
		case "true":
			return BooleanInput(true), nil
		case "false":
			return BooleanInput(false), nil
		}
		return Input{}, fmt.Errorf("%q is not a boolean", text)
	case TypeSelect:
		for _, opt := range t.Options {
			if opt.Name == text {
				return opt.Value, nil
			}
		}
		return Input{}, fmt.Errorf("%q is not one of the offered options", text)
	default:
		return StringInput(text), nil
	}
}

// Prompt is a question a package author poses to whoever installs the package
type Prompt struct {
	Template  string    `json:"template"`
	Question  string    `json:"question"`
	InputType InputType `json:"input_type"`
}

// Collection is the ordered set of prompts a package declares
type Collection []Prompt

// Get returns the prompt for a template key
func (c Collection) Get(key string) (Prompt, bool) {
	for _, p := range c {
		if p.Template == key {
			return p, true
		}
	}
	return Prompt{}, false
}

// Response binds an answer to a prompt's template key
type Response struct {
	Template string `json:"template"`
	Input    Input  `json:"input"`
}

// String returns the stringified answer
func (r Response) String() string {
	return r.Input.String()
}

// Responses is every answer recorded for one installation of a package
type Responses []Response

// Lookup returns all responses bound to key, in stored order
func (r Responses) Lookup(key string) []Response {
	var out []Response
	for _, resp := range r {
		if resp.Template == key {
			out = append(out, resp)
		}
	}
	return out
}

// Set replaces any response bound to the same key, or appends
func (r Responses) Set(resp Response) Responses {
	out := make(Responses, 0, len(r)+1)
	replaced := false
	for _, existing := range r {
		if existing.Template == resp.Template {
			if !replaced {
				out = append(out, resp)
				replaced = true
			}
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, resp)
	}
	return out
}
