package prompt

import (
	"fmt"
	"strings"

	"github.com/psantana5/charon/pkg/errs"
)

// Delimiter opens and closes a placeholder. Two in a row emit one literal.
const Delimiter = '?'

// Parser scans strings for placeholders and resolves them against responses
type Parser struct {
	collection Collection
}

// NewParser creates a parser for a package's prompts
func NewParser(c Collection) *Parser {
	return &Parser{collection: c}
}

// Collection returns the prompts the parser matches against
func (p *Parser) Collection() Collection {
	return p.collection
}

// scan walks s and calls literal for text outside placeholders and
// placeholder for every closed placeholder body. An unterminated placeholder
// is handed back to literal verbatim, opening delimiter included. The
// delimiter is ASCII, so s is split on bytes and passed through unchanged.
func scan(s string, literal func(string), placeholder func(string) error) error {
	for {
		open := strings.IndexByte(s, Delimiter)
		if open < 0 {
			if s != "" {
				literal(s)
			}
			return nil
		}
		if open > 0 {
			literal(s[:open])
		}

		rest := s[open+1:]
		end := strings.IndexByte(rest, Delimiter)
		if end < 0 {
			literal(s[open:])
			return nil
		}
		if err := placeholder(rest[:end]); err != nil {
			return err
		}
		s = rest[end+1:]
	}
}

// Prompts returns every prompt referenced by s, in scan order, repeats kept.
// Keys with no matching prompt in the collection are skipped.
func (p *Parser) Prompts(s string) []Prompt {
	var out []Prompt
	_ = scan(s, func(string) {}, func(key string) error {
		if key == "" {
			return nil
		}
		for _, pr := range p.collection {
			if pr.Template == key {
				out = append(out, pr)
			}
		}
		return nil
	})
	return out
}

// Keys returns every non-empty placeholder key in s, in scan order
func Keys(s string) []string {
	var out []string
	_ = scan(s, func(string) {}, func(key string) error {
		if key != "" {
			out = append(out, key)
		}
		return nil
	})
	return out
}

// Template substitutes every placeholder in s with its response
func (p *Parser) Template(s string, responses Responses) (string, error) {
	var out strings.Builder

	err := scan(s, func(lit string) {
		out.WriteString(lit)
	}, func(key string) error {
		if key == "" {
			out.WriteRune(Delimiter)
			return nil
		}

		matches := responses.Lookup(key)
		switch len(matches) {
		case 0:
			return errs.New(errs.KindUnresolvedPlaceholder, "", "", fmt.Sprintf("no response for prompt `%s`", key))
		case 1:
			out.WriteString(matches[0].String())
			return nil
		default:
			return errs.New(errs.KindInvalid, "", "", fmt.Sprintf("%d responses for prompt `%s`, expected one", len(matches), key))
		}
	})
	if err != nil {
		return "", err
	}

	return out.String(), nil
}
