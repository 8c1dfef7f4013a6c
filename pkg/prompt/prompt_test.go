package prompt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputJSON(t *testing.T) {
	tests := []struct {
		name  string
		input Input
		json  string
	}{
		{"integer", IntegerInput(5), `{"integer":5}`},
		{"signed", SignedIntegerInput(-1), `{"signed_integer":-1}`},
		{"string", StringInput("x"), `{"string":"x"}`},
		{"boolean", BooleanInput(true), `{"boolean":true}`},
		{"null", NullInput(), `"null"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.input)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(data))

			var got Input
			require.NoError(t, json.Unmarshal([]byte(tt.json), &got))
			assert.Equal(t, tt.input, got)
		})
	}
}

func TestInputUnmarshalRejects(t *testing.T) {
	for _, raw := range []string{`{"float":1.5}`, `{"integer":-3}`, `{"integer":1,"string":"a"}`, `"integer"`, `[]`} {
		var in Input
		assert.Error(t, json.Unmarshal([]byte(raw), &in), raw)
	}
}

func TestInputString(t *testing.T) {
	assert.Equal(t, "18446744073709551615", IntegerInput(^uint64(0)).String())
	assert.Equal(t, "-7", SignedIntegerInput(-7).String())
	assert.Equal(t, "false", BooleanInput(false).String())
	assert.Equal(t, "null", NullInput().String())
}

func TestInputTypeJSON(t *testing.T) {
	raw := `[
		{"template": "private_path", "question": "Where do you want this mounted?", "input_type": "name"},
		{"template": "flavour", "question": "Which one?", "input_type": {"select": [
			{"name": "small", "value": {"integer": 1}},
			{"name": "large", "value": {"integer": 4}}
		]}}
	]`

	var c Collection
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	require.Len(t, c, 2)
	assert.Equal(t, TypeName, c[0].InputType.Kind)
	assert.Equal(t, TypeSelect, c[1].InputType.Kind)
	assert.Equal(t, IntegerInput(4), c[1].InputType.Options[1].Value)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	var again Collection
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, c, again)

	var bad InputType
	assert.Error(t, json.Unmarshal([]byte(`"float"`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`"select"`), &bad))
}

func TestInputTypeCoerce(t *testing.T) {
	selectType := InputType{Kind: TypeSelect, Options: []SelectOption{
		{Name: "small", Value: IntegerInput(1)},
	}}

	tests := []struct {
		name    string
		typ     InputType
		text    string
		want    Input
		wantErr bool
	}{
		{"integer", InputType{Kind: TypeInteger}, " 42 ", IntegerInput(42), false},
		{"negative integer", InputType{Kind: TypeInteger}, "-1", Input{}, true},
		{"signed", InputType{Kind: TypeSignedInteger}, "-1", SignedIntegerInput(-1), false},
		{"boolean", InputType{Kind: TypeBoolean}, "true", BooleanInput(true), false},
		{"boolean yes", InputType{Kind: TypeBoolean}, "yes", Input{}, true},
		{"path", InputType{Kind: TypePath}, "/srv/data", StringInput("/srv/data"), false},
		{"select", selectType, "small", IntegerInput(1), false},
		{"select unknown", selectType, "huge", Input{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Coerce(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Coerce() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Coerce() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResponsesSet(t *testing.T) {
	r := Responses{
		{Template: "a", Input: IntegerInput(1)},
		{Template: "b", Input: IntegerInput(2)},
		{Template: "a", Input: IntegerInput(3)},
	}

	r = r.Set(Response{Template: "a", Input: IntegerInput(9)})
	assert.Equal(t, Responses{
		{Template: "a", Input: IntegerInput(9)},
		{Template: "b", Input: IntegerInput(2)},
	}, r)

	r = r.Set(Response{Template: "c", Input: BooleanInput(true)})
	assert.Len(t, r, 3)
	assert.Len(t, r.Lookup("c"), 1)
}
