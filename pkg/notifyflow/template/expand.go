// Package template expands ${name} placeholders in notification copy.
//
// Payload values are formatted with fmt's %v verb. Missing variables are
// handled according to the expander's MissingAction:
//
//	exp := template.NewExpander(template.WithMissingAction(template.MissingEmpty))
//	text, _ := exp.Expand("Order ${order_number} shipped", payload)
package template

import (
	"fmt"
	"regexp"
	"strings"
)

// bracePattern matches ${varname}.
var bracePattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// MissingAction specifies how to handle missing variables.
type MissingAction int

const (
	// MissingKeep keeps the placeholder as-is. This is the default.
	MissingKeep MissingAction = iota

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty

	// MissingError returns an UndefinedVariableError.
	MissingError
)

// Option configures an Expander.
type Option func(*Expander)

// WithMissingAction sets how missing variables are handled.
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) {
		e.missingAction = action
	}
}

// Expander expands variable patterns in strings.
// It is safe for concurrent use after construction.
type Expander struct {
	missingAction MissingAction
}

// NewExpander creates a new Expander with the given options.
func NewExpander(opts ...Option) *Expander {
	e := &Expander{missingAction: MissingKeep}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UndefinedVariableError lists variables that had no value.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	return "undefined variable: " + strings.Join(e.Names, ", ")
}

// Expand replaces ${name} placeholders in s with values from vars.
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	result := bracePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := vars[name]; ok && val != nil {
			return fmt.Sprintf("%v", val)
		}
		switch e.missingAction {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, name)
			return match
		default:
			return match
		}
	})

	if len(missing) > 0 {
		return result, &UndefinedVariableError{Names: missing}
	}
	return result, nil
}

// Variables returns the placeholder names in s, in order of appearance.
func Variables(s string) []string {
	matches := bracePattern.FindAllStringSubmatch(s, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}
