package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// InputKind identifies the concrete type carried by an Input
type InputKind string

const (
	InputInteger       InputKind = "integer"
	InputSignedInteger InputKind = "signed_integer"
	InputString        InputKind = "string"
	InputBoolean       InputKind = "boolean"
	InputNull          InputKind = "null"
)

// Input is a typed answer value. Only the field matching Kind is meaningful.
//
// JSON form is externally tagged: {"integer": 5}, {"string": "x"},
// {"boolean": true}, {"signed_integer": -3}, or the bare string "null".
type Input struct {
	Kind          InputKind
	Integer       uint64
	SignedInteger int64
	Str           string
	Boolean       bool
}

// IntegerInput creates an unsigned integer input
func IntegerInput(v uint64) Input {
	return Input{Kind: InputInteger, Integer: v}
}

// SignedIntegerInput creates a signed integer input
func SignedIntegerInput(v int64) Input {
	return Input{Kind: InputSignedInteger, SignedInteger: v}
}

// StringInput creates a string input
func StringInput(v string) Input {
	return Input{Kind: InputString, Str: v}
}

// BooleanInput creates a boolean input
func BooleanInput(v bool) Input {
	return Input{Kind: InputBoolean, Boolean: v}
}

// NullInput creates an empty input
func NullInput() Input {
	return Input{Kind: InputNull}
}

// String returns the text substituted into templates
func (i Input) String() string {
	switch i.Kind {
	case InputInteger:
		return strconv.FormatUint(i.Integer, 10)
	case InputSignedInteger:
		return strconv.FormatInt(i.SignedInteger, 10)
	case InputString:
		return i.Str
	case InputBoolean:
		return strconv.FormatBool(i.Boolean)
	default:
		return "null"
	}
}

// MarshalJSON implements json.Marshaler
func (i Input) MarshalJSON() ([]byte, error) {
	switch i.Kind {
	case InputInteger:
		return json.Marshal(map[string]uint64{string(InputInteger): i.Integer})
	case InputSignedInteger:
		return json.Marshal(map[string]int64{string(InputSignedInteger): i.SignedInteger})
	case InputString:
		return json.Marshal(map[string]string{string(InputString): i.Str})
	case InputBoolean:
		return json.Marshal(map[string]bool{string(InputBoolean): i.Boolean})
	case InputNull, "":
		return json.Marshal(string(InputNull))
	default:
		return nil, fmt.Errorf("unknown input kind %q", i.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (i *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*i = NullInput()
		return nil
	}

	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if InputKind(tag) != InputNull {
			return fmt.Errorf("input %q must carry a value", tag)
		}
		*i = NullInput()
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("input must be an object with one typed key: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("input must have exactly one typed key, got %d", len(tagged))
	}

	for key, raw := range tagged {
		out := Input{Kind: InputKind(key)}
		var err error
		switch out.Kind {
		case InputInteger:
			err = json.Unmarshal(raw, &out.Integer)
		case InputSignedInteger:
			err = json.Unmarshal(raw, &out.SignedInteger)
		case InputString:
			err = json.Unmarshal(raw, &out.Str)
		case InputBoolean:
			err = json.Unmarshal(raw, &out.Boolean)
		default:
			return fmt.Errorf("unknown input kind %q", key)
		}
		if err != nil {
			return fmt.Errorf("input %s: %w", key, err)
		}
		*i = out
	}
	return nil
}
