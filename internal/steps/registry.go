package steps

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"

	"github.com/cucumber/godog"
)

// ErrDuplicatePattern is returned by NewRegistry when two definitions share
// a pattern.
var ErrDuplicatePattern = errors.New("duplicate step pattern")

// Definition binds a sentence pattern to a handler. Handler returns the
// step function bound to one scenario's State, typically a method value.
type Definition struct {
	Pattern string
	Handler func(*State) any
}

type compiled struct {
	Definition
	re *regexp.Regexp
}

// Registry is the compiled, read-only set of step definitions.
type Registry struct {
	defs []compiled
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// NewRegistry compiles defs. Invalid or duplicate patterns and handlers
// that are not step functions are reported together.
func NewRegistry(defs ...[]Definition) (*Registry, error) {
	r := &Registry{}
	seen := map[string]bool{}
	var errs []error
	for _, group := range defs {
		for _, d := range group {
			if seen[d.Pattern] {
				errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicatePattern, d.Pattern))
				continue
			}
			seen[d.Pattern] = true
			re, err := regexp.Compile(d.Pattern)
			if err != nil {
				errs = append(errs, fmt.Errorf("step %q: %w", d.Pattern, err))
				continue
			}
			if err := checkHandler(d); err != nil {
				errs = append(errs, err)
				continue
			}
			r.defs = append(r.defs, compiled{Definition: d, re: re})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// checkHandler binds the handler to a nil State; method values do not
// dereference their receiver until called.
func checkHandler(d Definition) error {
	if d.Handler == nil {
		return fmt.Errorf("step %q: nil handler", d.Pattern)
	}
	t := reflect.TypeOf(d.Handler(nil))
	if t == nil || t.Kind() != reflect.Func {
		return fmt.Errorf("step %q: handler is %v, not a function", d.Pattern, t)
	}
	if t.NumOut() == 0 || !t.Out(t.NumOut()-1).Implements(errorType) {
		return fmt.Errorf("step %q: handler must return an error", d.Pattern)
	}
	return nil
}

// Default is the registry of every built-in step.
func Default() (*Registry, error) {
	return NewRegistry(commonSteps, postSteps, reqresSteps, authSteps)
}

// Bind registers every definition on sc, bound to st.
func (r *Registry) Bind(sc *godog.ScenarioContext, st *State) {
	for _, d := range r.defs {
		sc.Step(d.Pattern, d.Handler(st))
	}
}

// Match returns the patterns matching text.
func (r *Registry) Match(text string) []string {
	var out []string
	for _, d := range r.defs {
		if d.re.MatchString(text) {
			out = append(out, d.Pattern)
		}
	}
	return out
}

// Patterns lists every registered pattern in sorted order.
func (r *Registry) Patterns() []string {
	out := make([]string, len(r.defs))
	for i, d := range r.defs {
		out[i] = d.Pattern
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int { return len(r.defs) }
