package ask

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psantana5/charon/pkg/prompt"
)

// scripted answers prompts from a queue and records the defaults offered
type scripted struct {
	answers  []string
	defaults []string
	err      error
}

func (s *scripted) next(def string) (string, error) {
	s.defaults = append(s.defaults, def)
	if s.err != nil {
		return "", s.err
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *scripted) Input(message, def string, validate func(string) error) (string, error) {
	a, err := s.next(def)
	if err != nil {
		return "", err
	}
	return a, validate(a)
}

func (s *scripted) Confirm(message string, def bool) (bool, error) {
	d := "false"
	if def {
		d = "true"
	}
	a, err := s.next(d)
	return a == "true", err
}

func (s *scripted) Select(message string, options []string, def string) (string, error) {
	return s.next(def)
}

var prompts = prompt.Collection{
	{Template: "private_path", Question: "Where?", InputType: prompt.InputType{Kind: prompt.TypeName}},
	{Template: "private_size", Question: "How big?", InputType: prompt.InputType{Kind: prompt.TypeInteger}},
	{Template: "private_recreate", Question: "Recreate?", InputType: prompt.InputType{Kind: prompt.TypeBoolean}},
	{Template: "tier", Question: "Tier?", InputType: prompt.InputType{
		Kind: prompt.TypeSelect,
		Options: []prompt.SelectOption{
			{Name: "small", Value: prompt.IntegerInput(1)},
			{Name: "large", Value: prompt.IntegerInput(8)},
		},
	}},
}

func TestAnswer(t *testing.T) {
	a := &scripted{answers: []string{"/data", "10", "true", "large"}}

	got, err := Answer(a, prompts, nil)
	require.NoError(t, err)

	want := prompt.Responses{
		{Template: "private_path", Input: prompt.StringInput("/data")},
		{Template: "private_size", Input: prompt.IntegerInput(10)},
		{Template: "private_recreate", Input: prompt.BooleanInput(true)},
		{Template: "tier", Input: prompt.IntegerInput(8)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Answer() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"", "", "false", ""}, a.defaults)
}

func TestAnswerOffersPreviousAnswers(t *testing.T) {
	existing := prompt.Responses{
		{Template: "unrelated", Input: prompt.StringInput("kept")},
		{Template: "private_size", Input: prompt.IntegerInput(5)},
		{Template: "private_recreate", Input: prompt.BooleanInput(true)},
		{Template: "tier", Input: prompt.IntegerInput(1)},
	}
	a := &scripted{answers: []string{"/srv", "20", "false", "small"}}

	got, err := Answer(a, prompts, existing)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "5", "true", "small"}, a.defaults)

	assert.Len(t, got, 5)
	assert.Equal(t, prompt.StringInput("kept"), got.Lookup("unrelated")[0].Input)
	assert.Equal(t, prompt.IntegerInput(20), got.Lookup("private_size")[0].Input)
}

func TestAnswerErrors(t *testing.T) {
	_, err := Answer(&scripted{answers: []string{"/data", "ten"}}, prompts, nil)
	assert.ErrorContains(t, err, `"ten" is not an unsigned integer`)

	_, err = Answer(&scripted{err: ErrInterrupted}, prompts, nil)
	assert.True(t, errors.Is(err, ErrInterrupted))
}

func TestAnswerNoPrompts(t *testing.T) {
	got, err := Answer(&scripted{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, prompt.Responses{}, got)
}
