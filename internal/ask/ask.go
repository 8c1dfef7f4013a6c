// Package ask collects prompt responses from an operator.
package ask

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/psantana5/charon/pkg/prompt"
)

// ErrInterrupted is returned when the operator aborts with Ctrl-C
var ErrInterrupted = errors.New("prompt interrupted")

// Asker abstracts the terminal so answering can be tested without one
type Asker interface {
	Input(message, def string, validate func(string) error) (string, error)
	Confirm(message string, def bool) (bool, error)
	Select(message string, options []string, def string) (string, error)
}

// Survey asks on the controlling terminal
type Survey struct{}

func (Survey) Input(message, def string, validate func(string) error) (string, error) {
	var out string
	q := &survey.Input{Message: message, Default: def}
	opt := survey.WithValidator(func(ans interface{}) error {
		s, _ := ans.(string)
		return validate(s)
	})
	if err := survey.AskOne(q, &out, opt); err != nil {
		return "", translate(err)
	}
	return out, nil
}

func (Survey) Confirm(message string, def bool) (bool, error) {
	var out bool
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &out); err != nil {
		return false, translate(err)
	}
	return out, nil
}

func (Survey) Select(message string, options []string, def string) (string, error) {
	var out string
	q := &survey.Select{Message: message, Options: options}
	if def != "" {
		q.Default = def
	}
	if err := survey.AskOne(q, &out); err != nil {
		return "", translate(err)
	}
	return out, nil
}

func translate(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrInterrupted
	}
	return err
}

// Answer asks every prompt in order and returns existing updated with the
// answers. Previous answers are offered as defaults.
func Answer(a Asker, prompts prompt.Collection, existing prompt.Responses) (prompt.Responses, error) {
	out := existing
	for _, p := range prompts {
		input, err := askOne(a, p, previous(existing, p.Template))
		if err != nil {
			return nil, fmt.Errorf("answering %s: %w", p.Template, err)
		}
		out = out.Set(prompt.Response{Template: p.Template, Input: input})
	}
	if out == nil {
		out = prompt.Responses{}
	}
	return out, nil
}

func previous(responses prompt.Responses, key string) *prompt.Input {
	if found := responses.Lookup(key); len(found) > 0 {
		return &found[0].Input
	}
	return nil
}

func askOne(a Asker, p prompt.Prompt, prev *prompt.Input) (prompt.Input, error) {
	switch p.InputType.Kind {
	case prompt.TypeBoolean:
		def := prev != nil && prev.Kind == prompt.InputBoolean && prev.Boolean
		v, err := a.Confirm(p.Question, def)
		if err != nil {
			return prompt.Input{}, err
		}
		return prompt.BooleanInput(v), nil

	case prompt.TypeSelect:
		names := make([]string, len(p.InputType.Options))
		def := ""
		for i, opt := range p.InputType.Options {
			names[i] = opt.Name
			if prev != nil && opt.Value == *prev {
				def = opt.Name
			}
		}
		choice, err := a.Select(p.Question, names, def)
		if err != nil {
			return prompt.Input{}, err
		}
		return p.InputType.Coerce(choice)

	default:
		def := ""
		if prev != nil {
			def = prev.String()
		}
		text, err := a.Input(p.Question, def, func(s string) error {
			_, err := p.InputType.Coerce(s)
			return err
		})
		if err != nil {
			return prompt.Input{}, err
		}
		return p.InputType.Coerce(text)
	}
}
