// Package ir is the in-memory form of a declarative YAML suite.
package ir

// Expectation types.
const (
	ExpectStatus         = "status"
	ExpectStatusIn       = "statusIn"
	ExpectJSONPath       = "jsonPath"
	ExpectPresent        = "present"
	ExpectGreaterThan    = "greaterThan"
	ExpectNotEmpty       = "notEmpty"
	ExpectHeader         = "header"
	ExpectHeaderContains = "headerContains"
	ExpectLatency        = "latency"
	ExpectSchema         = "schema"
	ExpectContract       = "contract"
)

// ExpectationTypes lists every supported expectation type.
var ExpectationTypes = []string{
	ExpectStatus, ExpectStatusIn, ExpectJSONPath, ExpectPresent, ExpectGreaterThan,
	ExpectNotEmpty, ExpectHeader, ExpectHeaderContains, ExpectLatency, ExpectSchema,
	ExpectContract,
}

type TestSuite struct {
	Name      string     `json:"name" yaml:"name"`
	OpenAPI   string     `json:"openapi,omitempty" yaml:"openapi,omitempty"`
	Scenarios []Scenario `json:"scenarios" yaml:"scenarios"`
}

type Scenario struct {
	Name string   `json:"name" yaml:"name"`
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	// AssertMode is "hard" (default) or "soft".
	AssertMode string   `json:"assert_mode,omitempty" yaml:"assert_mode,omitempty"`
	Setup      []Action `json:"setup,omitempty" yaml:"setup,omitempty"`
	Steps      []Step   `json:"steps" yaml:"steps"`
	Teardown   []Action `json:"teardown,omitempty" yaml:"teardown,omitempty"`
}

type Action struct {
	Name    string            `json:"name,omitempty" yaml:"name,omitempty"`
	Request *Request          `json:"request,omitempty" yaml:"request,omitempty"`
	Capture map[string]string `json:"capture,omitempty" yaml:"capture,omitempty"`
}

type Step struct {
	Name    string        `json:"name,omitempty" yaml:"name,omitempty"`
	Request Request       `json:"request" yaml:"request"`
	Expect  []Expectation `json:"expect,omitempty" yaml:"expect,omitempty"`
	// Capture maps a variable name to a response path; later steps read it
	// as ${name}.
	Capture map[string]string `json:"capture,omitempty" yaml:"capture,omitempty"`
}

// Request names a catalog Endpoint or a literal Path relative to the base
// path. Params fill {placeholder} segments of either.
type Request struct {
	Method    string            `yaml:"method" json:"method"`
	Endpoint  string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Path      string            `yaml:"path,omitempty" json:"path,omitempty"`
	Params    map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	Query     map[string]string `yaml:"query,omitempty" json:"query,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body      any               `yaml:"body,omitempty" json:"body,omitempty"`
	RawBody   string            `yaml:"raw_body,omitempty" json:"raw_body,omitempty"`
	Auth      string            `yaml:"auth,omitempty" json:"auth,omitempty"`
	TimeoutMs int               `yaml:"timeout_ms,omitempty" json:"timeout_ms,omitempty"`
}

// Auth modes of a Request.
const (
	AuthDefault = ""
	AuthAccount = "account"
	AuthNone    = "none"
)

// Target is the endpoint name or literal path the request addresses.
func (r Request) Target() string {
	if r.Endpoint != "" {
		return r.Endpoint
	}
	return r.Path
}

type Expectation struct {
	Type   string `json:"type" yaml:"type"`
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	Value  any    `json:"value,omitempty" yaml:"value,omitempty"`
}
