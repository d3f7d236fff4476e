package parser

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"restqa/internal/assert"
	"restqa/internal/endpoints"
	"restqa/internal/ir"
)

var ErrValidation = errors.New("validation error")

type Parser struct{}

func New() *Parser { return &Parser{} }

// ParseFile reads and parses one suite file.
func (p *Parser) ParseFile(path string) (*ir.TestSuite, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	suite, err := p.ParseBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return suite, nil
}

// ParseBytes parses YAML (or JSON) into IR and validates it.
func (p *Parser) ParseBytes(b []byte) (*ir.TestSuite, error) {
	var suite ir.TestSuite

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true) // fail on unknown fields

	if err := dec.Decode(&suite); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := validateSuite(&suite); err != nil {
		return nil, err
	}

	// Normalize HTTP methods and assertion modes
	for i := range suite.Scenarios {
		sc := &suite.Scenarios[i]
		sc.AssertMode = strings.ToLower(strings.TrimSpace(sc.AssertMode))
		for j := range sc.Steps {
			sc.Steps[j].Request.Method = strings.ToUpper(sc.Steps[j].Request.Method)
		}
		for _, acts := range [][]ir.Action{sc.Setup, sc.Teardown} {
			for k := range acts {
				acts[k].Request.Method = strings.ToUpper(acts[k].Request.Method)
			}
		}
	}
	return &suite, nil
}

// --- validation helpers ---

func validateSuite(s *ir.TestSuite) error {
	if s.Name == "" {
		return wrapValidation("suite.name must not be empty")
	}
	if len(s.Scenarios) == 0 {
		return wrapValidation("suite.scenarios must not be empty")
	}
	for i := range s.Scenarios {
		if err := validateScenario(&s.Scenarios[i], i); err != nil {
			return err
		}
	}
	return nil
}

func validateScenario(sc *ir.Scenario, idx int) error {
	if sc.Name == "" {
		return wrapValidation(fmt.Sprintf("scenario[%d].name must not be empty", idx))
	}
	if _, err := assert.ParseMode(sc.AssertMode); err != nil {
		return wrapValidation(fmt.Sprintf("scenario[%d].assert_mode: %v", idx, err))
	}
	if len(sc.Steps) == 0 {
		return wrapValidation(fmt.Sprintf("scenario[%d].steps must not be empty", idx))
	}
	for j := range sc.Steps {
		where := fmt.Sprintf("scenario[%d].step[%d]", idx, j)
		if err := validateRequest(&sc.Steps[j].Request, where); err != nil {
			return err
		}
		for k, e := range sc.Steps[j].Expect {
			if err := validateExpectation(e, fmt.Sprintf("%s.expect[%d]", where, k)); err != nil {
				return err
			}
		}
		if err := validateCapture(sc.Steps[j].Capture, where); err != nil {
			return err
		}
	}
	for phase, acts := range map[string][]ir.Action{"setup": sc.Setup, "teardown": sc.Teardown} {
		for k, a := range acts {
			where := fmt.Sprintf("scenario[%d].%s[%d]", idx, phase, k)
			if a.Request == nil {
				return wrapValidation(where + ".request must be set")
			}
			if err := validateRequest(a.Request, where); err != nil {
				return err
			}
			if err := validateCapture(a.Capture, where); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateRequest(r *ir.Request, where string) error {
	if r.Method == "" {
		return wrapValidation(where + ".request.method must not be empty")
	}
	switch {
	case r.Endpoint == "" && r.Path == "":
		return wrapValidation(where + ".request needs an endpoint or a path")
	case r.Endpoint != "" && r.Path != "":
		return wrapValidation(where + ".request takes an endpoint or a path, not both")
	}
	if r.Endpoint != "" {
		if _, ok := endpoints.Lookup(r.Endpoint); !ok {
			return wrapValidation(fmt.Sprintf("%s.request.endpoint %q is not in the catalog", where, r.Endpoint))
		}
	}
	if r.Body != nil && r.RawBody != "" {
		return wrapValidation(where + ".request takes body or raw_body, not both")
	}
	switch r.Auth {
	case ir.AuthDefault, ir.AuthAccount, ir.AuthNone:
	default:
		return wrapValidation(fmt.Sprintf("%s.request.auth %q must be account or none", where, r.Auth))
	}
	if r.TimeoutMs < 0 {
		return wrapValidation(where + ".request.timeout_ms must not be negative")
	}
	return nil
}

func validateExpectation(e ir.Expectation, where string) error {
	if !slices.Contains(ir.ExpectationTypes, e.Type) {
		return wrapValidation(fmt.Sprintf("%s.type %q is not one of %s", where, e.Type, strings.Join(ir.ExpectationTypes, ", ")))
	}
	switch e.Type {
	case ir.ExpectJSONPath, ir.ExpectPresent, ir.ExpectGreaterThan, ir.ExpectHeader, ir.ExpectHeaderContains:
		if e.Target == "" {
			return wrapValidation(where + ".target must not be empty")
		}
	}
	switch e.Type {
	case ir.ExpectStatus, ir.ExpectLatency, ir.ExpectGreaterThan:
		if _, ok := Number(e.Value); !ok {
			return wrapValidation(fmt.Sprintf("%s.value must be a number, got %v", where, e.Value))
		}
	case ir.ExpectStatusIn:
		if _, err := StatusSet(e.Value); err != nil {
			return wrapValidation(fmt.Sprintf("%s.value: %v", where, err))
		}
	case ir.ExpectSchema:
		if s, _ := e.Value.(string); s == "" && e.Target == "" {
			return wrapValidation(where + " needs a schema name or file")
		}
	}
	return nil
}

func validateCapture(c map[string]string, where string) error {
	for name, path := range c {
		if name == "" || path == "" {
			return wrapValidation(where + ".capture entries need a name and a path")
		}
	}
	return nil
}

func wrapValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// StatusSet reads a statusIn value: a list of codes or a string such as
// "201, 400 or 422".
func StatusSet(v any) (assert.StatusSet, error) {
	switch x := v.(type) {
	case string:
		return assert.ParseStatusSet(x)
	case []any:
		set := make(assert.StatusSet, 0, len(x))
		for _, el := range x {
			n, ok := Number(el)
			if !ok {
				return nil, fmt.Errorf("status %v is not a number", el)
			}
			set = append(set, int(n))
		}
		if len(set) == 0 {
			return nil, errors.New("empty status set")
		}
		return set, nil
	}
	return nil, fmt.Errorf("want a list of status codes, got %T", v)
}

// Number converts a decoded YAML scalar to float64.
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
