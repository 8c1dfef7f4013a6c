package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/prompt"
)

// Kind is the declared scalar type of a templated field
type Kind string

const (
	KindU16    Kind = "u16"
	KindU64    Kind = "u64"
	KindI64    Kind = "i64"
	KindBool   Kind = "bool"
	KindString Kind = "string"
)

// parsers turns substituted text into the declared type
var parsers = map[Kind]func(string) (interface{}, error){
	KindU16: func(s string) (interface{}, error) {
		v, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%q is not an unsigned 16-bit integer", s)
		}
		return uint16(v), nil
	},
	KindU64: func(s string) (interface{}, error) {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an unsigned integer", s)
		}
		return v, nil
	},
	KindI64: func(s string) (interface{}, error) {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a signed integer", s)
		}
		return v, nil
	},
	KindBool: func(s string) (interface{}, error) {
		switch s {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean", s)
	},
	KindString: func(s string) (interface{}, error) {
		return s, nil
	},
}

// Value is a templated field: the raw text as authored plus the type it
// must parse into once every placeholder is substituted.
//
// On disk a Value is its raw text. The kind is not stored; it is stamped by
// the enclosing schema after decoding.
type Value struct {
	Kind Kind
	Raw  string
}

// U16 creates a templated unsigned 16-bit value
func U16(raw string) Value { return Value{Kind: KindU16, Raw: raw} }

// U64 creates a templated unsigned 64-bit value
func U64(raw string) Value { return Value{Kind: KindU64, Raw: raw} }

// I64 creates a templated signed 64-bit value
func I64(raw string) Value { return Value{Kind: KindI64, Raw: raw} }

// Bool creates a templated boolean value
func Bool(raw string) Value { return Value{Kind: KindBool, Raw: raw} }

// Str creates a templated string value
func Str(raw string) Value { return Value{Kind: KindString, Raw: raw} }

// As returns v declared as kind k
func (v Value) As(k Kind) Value {
	v.Kind = k
	return v
}

// Prompts returns the prompts referenced by the raw text
func (v Value) Prompts(parser *prompt.Parser) []prompt.Prompt {
	return parser.Prompts(v.Raw)
}

// Output substitutes placeholders in the raw text and parses the result
// into the declared kind. field names the value in errors.
func (v Value) Output(field string, parser *prompt.Parser, responses prompt.Responses) (interface{}, error) {
	parse, ok := parsers[v.Kind]
	if !ok {
		return nil, errs.New(errs.KindInvalid, "compile", field, fmt.Sprintf("undeclared value kind %q", v.Kind))
	}

	text, err := parser.Template(v.Raw, responses)
	if err != nil {
		return nil, errs.Wrap(errs.KindOf(err), "compile", field, err)
	}

	out, err := parse(text)
	if err != nil {
		return nil, errs.New(errs.KindTypeMismatch, "compile", field, err.Error())
	}
	return out, nil
}

func (v Value) expect(k Kind, field string) error {
	if v.Kind != k {
		return errs.New(errs.KindTypeMismatch, "compile", field, fmt.Sprintf("declared %s, read as %s", v.Kind, k))
	}
	return nil
}

// Resolver resolves templated values against one set of responses
type Resolver struct {
	Parser    *prompt.Parser
	Responses prompt.Responses
}

// U16 resolves a u16 value
func (r Resolver) U16(field string, v Value) (uint16, error) {
	if err := v.expect(KindU16, field); err != nil {
		return 0, err
	}
	out, err := v.Output(field, r.Parser, r.Responses)
	if err != nil {
		return 0, err
	}
	return out.(uint16), nil
}

// U64 resolves a u64 value
func (r Resolver) U64(field string, v Value) (uint64, error) {
	if err := v.expect(KindU64, field); err != nil {
		return 0, err
	}
	out, err := v.Output(field, r.Parser, r.Responses)
	if err != nil {
		return 0, err
	}
	return out.(uint64), nil
}

// I64 resolves an i64 value
func (r Resolver) I64(field string, v Value) (int64, error) {
	if err := v.expect(KindI64, field); err != nil {
		return 0, err
	}
	out, err := v.Output(field, r.Parser, r.Responses)
	if err != nil {
		return 0, err
	}
	return out.(int64), nil
}

// Bool resolves a bool value
func (r Resolver) Bool(field string, v Value) (bool, error) {
	if err := v.expect(KindBool, field); err != nil {
		return false, err
	}
	out, err := v.Output(field, r.Parser, r.Responses)
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

// String resolves a string value
func (r Resolver) String(field string, v Value) (string, error) {
	if err := v.expect(KindString, field); err != nil {
		return "", err
	}
	out, err := v.Output(field, r.Parser, r.Responses)
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// OptionalString resolves a string value that may be absent
func (r Resolver) OptionalString(field string, v *Value) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s, err := r.String(field, *v)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Strings resolves a list of string values
func (r Resolver) Strings(field string, vs []Value) ([]string, error) {
	out := make([]string, 0, len(vs))
	for i, v := range vs {
		s, err := r.String(fmt.Sprintf("%s[%d]", field, i), v)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw)
}

// UnmarshalJSON implements json.Unmarshaler. Numbers and booleans are
// accepted and kept as their literal text.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &v.Raw)
	}

	var scalar interface{}
	if err := json.Unmarshal(data, &scalar); err != nil {
		return err
	}
	switch scalar.(type) {
	case float64, bool:
		v.Raw = string(data)
		return nil
	}
	return fmt.Errorf("templated value must be a string, number or boolean, got %s", data)
}
