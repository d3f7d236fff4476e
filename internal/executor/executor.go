// Package executor runs declarative suites: per scenario it performs setup,
// every step and teardown through the shared client baseline, evaluating
// expectations in the scenario's assertion mode.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"restqa/internal/assert"
	"restqa/internal/client"
	"restqa/internal/contract"
	"restqa/internal/endpoints"
	"restqa/internal/ir"
	"restqa/internal/metrics"
	"restqa/internal/parser"
)

const runnerName = "suite"

// ---- Results model ----

type SuiteResult struct {
	Name       string
	Passed     bool
	Scenarios  []ScenarioResult
	DurationMs float64
}

type ScenarioResult struct {
	Name        string
	Tags        []string
	AssertMode  string
	Passed      bool
	TeardownRan bool
	// Errors holds setup and teardown failures.
	Errors     []string
	Steps      []StepResult
	DurationMs float64
}

type StepResult struct {
	Name       string
	Passed     bool
	Skipped    bool
	StatusCode int
	Attempts   int
	Errors     []string
	DurationMs float64

	Method      string
	URL         string
	ReqHeaders  map[string]string
	ReqBody     string
	RespHeaders map[string][]string
	RespBody    string
}

// Failures counts failed steps.
func (s ScenarioResult) Failures() int {
	n := 0
	for _, st := range s.Steps {
		if !st.Passed && !st.Skipped {
			n++
		}
	}
	return n
}

// ---- Runner ----

type Runner struct {
	base     *client.Baseline
	baseVars map[string]string

	contractV *contract.Validator
	coverage  *contract.Coverage

	parallel int
	failFast bool

	log     zerolog.Logger
	metrics *metrics.Metrics
}

func New(base *client.Baseline) *Runner {
	return &Runner{base: base, log: zerolog.Nop()}
}

// WithVars seeds every scenario's variables.
func (r *Runner) WithVars(vars map[string]string) *Runner {
	r.baseVars = clone(vars)
	return r
}

func (r *Runner) WithContract(v *contract.Validator) *Runner {
	if r.coverage == nil {
		r.coverage = contract.NewCoverage()
	}
	r.contractV = v
	return r
}

func (r *Runner) WithParallel(n int) *Runner {
	if n < 1 {
		n = 1
	}
	r.parallel = n
	return r
}

func (r *Runner) WithFailFast(b bool) *Runner            { r.failFast = b; return r }
func (r *Runner) WithLogger(l zerolog.Logger) *Runner    { r.log = l; return r }
func (r *Runner) WithMetrics(m *metrics.Metrics) *Runner { r.metrics = m; return r }
func (r *Runner) Coverage() *contract.Coverage           { return r.coverage }
func (r *Runner) Contract() *contract.Validator          { return r.contractV }

// ---- Suite execution ----

func clone(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (r *Runner) RunSuite(ctx context.Context, suite *ir.TestSuite) (*SuiteResult, error) {
	if suite == nil {
		return nil, errors.New("nil suite")
	}
	if r.base == nil {
		return nil, errors.New("runner has no client baseline")
	}

	startSuite := time.Now()
	res := &SuiteResult{Name: suite.Name, Passed: true, Scenarios: make([]ScenarioResult, len(suite.Scenarios))}
	log := r.log.With().Str("suite", suite.Name).Logger()

	parallel := r.parallel
	if r.failFast {
		parallel = 1
	}
	if parallel < 1 {
		parallel = 1
	}

	if parallel == 1 {
		for i, sc := range suite.Scenarios {
			scRes := r.runScenario(ctx, sc, log)
			if !scRes.Passed {
				res.Passed = false
			}
			res.Scenarios[i] = scRes
			if r.failFast && !scRes.Passed {
				res.Scenarios = res.Scenarios[:i+1]
				break
			}
		}
		res.DurationMs = float64(time.Since(startSuite).Milliseconds())
		return res, nil
	}

	type job struct {
		idx int
		sc  ir.Scenario
	}
	type result struct {
		idx int
		sc  ScenarioResult
	}

	jobs := make(chan job)
	results := make(chan result)

	for w := 0; w < parallel; w++ {
		go func() {
			for j := range jobs {
				results <- result{idx: j.idx, sc: r.runScenario(ctx, j.sc, log)}
			}
		}()
	}
	go func() {
		for i, sc := range suite.Scenarios {
			jobs <- job{idx: i, sc: sc}
		}
		close(jobs)
	}()

	for collected := 0; collected < len(suite.Scenarios); collected++ {
		rx := <-results
		if !rx.sc.Passed {
			res.Passed = false
		}
		res.Scenarios[rx.idx] = rx.sc
	}

	res.DurationMs = float64(time.Since(startSuite).Milliseconds())
	return res, nil
}

// runScenario owns vars for the scenario's whole lifetime; nothing else
// reads or writes them.
func (r *Runner) runScenario(ctx context.Context, sc ir.Scenario, log zerolog.Logger) ScenarioResult {
	mode, err := assert.ParseMode(sc.AssertMode)
	startSc := time.Now()
	scRes := ScenarioResult{Name: sc.Name, Tags: sc.Tags, AssertMode: mode.String(), Passed: true}
	log = log.With().Str("scenario", sc.Name).Str("assert_mode", mode.String()).Logger()
	if err != nil {
		scRes.Passed = false
		scRes.Errors = append(scRes.Errors, err.Error())
		return scRes
	}

	vars := clone(r.baseVars)
	if vars == nil {
		vars = map[string]string{}
	}
	vars["uuid"] = uuid.NewString()
	vars["now"] = time.Now().UTC().Format(time.RFC3339)

	// A failed setup leaves nothing to test against in hard mode.
	stop := false
	if err := r.runActions(ctx, sc.Setup, vars); err != nil {
		scRes.Passed = false
		scRes.Errors = append(scRes.Errors, fmt.Sprintf("setup: %v", err))
		stop = mode == assert.Hard
	}

	failures := 0
	for i, st := range sc.Steps {
		if stop {
			scRes.Steps = append(scRes.Steps, StepResult{Name: stepName(st, i), Skipped: true})
			continue
		}
		stepRes := r.runStep(ctx, st, i, vars, mode)
		if !stepRes.Passed {
			scRes.Passed = false
			failures += len(stepRes.Errors)
			stop = mode == assert.Hard
			log.Warn().Str("step", stepRes.Name).Strs("errors", stepRes.Errors).Msg("step failed")
		}
		scRes.Steps = append(scRes.Steps, stepRes)
	}

	if err := r.runActions(ctx, sc.Teardown, vars); err != nil {
		log.Warn().Err(err).Msg("teardown failed")
		scRes.Errors = append(scRes.Errors, fmt.Sprintf("teardown: %v", err))
	}
	scRes.TeardownRan = true
	scRes.DurationMs = float64(time.Since(startSc).Milliseconds())

	r.metrics.ObserveAssertionFailures(mode.String(), failures)
	r.metrics.ObserveScenario(runnerName, scRes.Passed)
	log.Info().Bool("passed", scRes.Passed).Float64("duration_ms", scRes.DurationMs).Msg("scenario finished")
	return scRes
}

func stepName(st ir.Step, i int) string {
	if st.Name != "" {
		return st.Name
	}
	return fmt.Sprintf("step-%d", i+1)
}

func (r *Runner) runStep(ctx context.Context, st ir.Step, i int, vars map[string]string, mode assert.Mode) (stepRes StepResult) {
	stepRes = StepResult{Name: stepName(st, i), Passed: true}
	a := assert.New(mode)
	defer func() {
		for _, err := range a.Failures() {
			stepRes.Errors = append(stepRes.Errors, err.Error())
		}
		stepRes.Passed = len(stepRes.Errors) == 0
	}()

	req, err := r.buildRequest(st.Request, vars)
	if err != nil {
		a.Fail(err)
		return stepRes
	}

	// Capture request details for report
	stepRes.Method = req.Method
	stepRes.URL = r.base.Target(req)
	stepRes.ReqHeaders = flatten(req.Header)
	stepRes.ReqBody = string(req.Body())

	startStep := time.Now()
	resp, err := r.base.Do(ctx, req)
	stepRes.DurationMs = float64(time.Since(startStep).Milliseconds())
	if err != nil {
		a.Fail(fmt.Errorf("request error: %w", err))
		return stepRes
	}

	// Capture response
	stepRes.StatusCode = resp.StatusCode
	stepRes.Attempts = resp.Attempts
	stepRes.RespHeaders = resp.Header
	stepRes.RespBody = limitBody(resp.Body, 64<<10) // 64KB cap in report

	for _, exp := range st.Expect {
		r.evalExpectation(ctx, a, exp, resp, vars)
	}
	capture(a, resp, st.Capture, vars)
	return stepRes
}

func (r *Runner) runActions(ctx context.Context, acts []ir.Action, vars map[string]string) error {
	for i, act := range acts {
		if act.Request == nil {
			continue
		}
		name := act.Name
		if name == "" {
			name = fmt.Sprintf("action-%d", i+1)
		}
		req, err := r.buildRequest(*act.Request, vars)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		resp, err := r.base.Do(ctx, req)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%s: %s %s returned %d", name, resp.Method, resp.URL, resp.StatusCode)
		}
		a := assert.New(assert.Soft)
		capture(a, resp, act.Capture, vars)
		if err := a.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// capture stores response values under their variable names.
func capture(a *assert.Asserter, resp *client.Response, c map[string]string, vars map[string]string) {
	for name, path := range c {
		v := assert.Lookup(resp.Body, path)
		if !v.Exists() {
			a.Failf("capture %s: %s not found in response", name, path)
			continue
		}
		vars[name] = v.String()
	}
}

// ---- Requests ----

func (r *Runner) buildRequest(rq ir.Request, vars map[string]string) (*client.Request, error) {
	rq = expandRequest(rq, vars)

	// Guard unresolved vars (clear error instead of a bad URL)
	if unresolved := requestUnresolved(rq); len(unresolved) > 0 {
		return nil, fmt.Errorf("unresolved variables: %s (define via --var or use ${VAR|default})",
			strings.Join(unresolved, ", "))
	}

	path, err := endpoints.Resolve(rq.Target(), rq.Params)
	if err != nil {
		return nil, err
	}

	base := r.base
	if rq.Auth == ir.AuthAccount {
		base = base.Authenticated()
	}
	req := base.NewRequest(rq.Method, path)
	if rq.Auth == ir.AuthNone {
		req.WithoutAuth()
	}
	for k, v := range rq.Headers {
		req.WithHeader(k, v)
	}
	for k, v := range rq.Query {
		req.WithQuery(k, v)
	}
	switch {
	case rq.RawBody != "":
		req.WithRawBody([]byte(rq.RawBody))
	case rq.Body != nil:
		req.WithBody(rq.Body)
	}
	if rq.TimeoutMs > 0 {
		req.WithTimeout(time.Duration(rq.TimeoutMs) * time.Millisecond)
	}
	return req, nil
}

// ---- Expectations ----

func (r *Runner) evalExpectation(ctx context.Context, a *assert.Asserter, exp ir.Expectation, resp *client.Response, vars map[string]string) {
	switch exp.Type {
	case ir.ExpectStatus:
		n, ok := parser.Number(exp.Value)
		if !ok {
			a.Failf("status expectation has non-integer value %v", exp.Value)
			return
		}
		a.Status(resp, int(n))

	case ir.ExpectStatusIn:
		set, err := parser.StatusSet(exp.Value)
		if err != nil {
			a.Failf("statusIn: %v", err)
			return
		}
		a.StatusIn(resp, set)

	case ir.ExpectJSONPath:
		want := exp.Value
		if ws, ok := want.(string); ok {
			want = interpolate(ws, vars)
		}
		a.Equal(resp, exp.Target, want)

	case ir.ExpectPresent:
		a.Present(resp, exp.Target)

	case ir.ExpectGreaterThan:
		n, ok := parser.Number(exp.Value)
		if !ok {
			a.Failf("greaterThan %s: value %v is not a number", exp.Target, exp.Value)
			return
		}
		a.Greater(resp, exp.Target, n)

	case ir.ExpectNotEmpty:
		a.NotEmpty(resp, exp.Target)

	case ir.ExpectHeader:
		a.Header(resp, exp.Target, interpolate(fmt.Sprint(exp.Value), vars))

	case ir.ExpectHeaderContains:
		a.HeaderContains(resp, exp.Target, interpolate(fmt.Sprint(exp.Value), vars))

	case ir.ExpectLatency:
		n, ok := parser.Number(exp.Value)
		if !ok {
			a.Failf("latency expectation has non-numeric value %v", exp.Value)
			return
		}
		a.Latency(resp, time.Duration(n)*time.Millisecond)

	case ir.ExpectSchema:
		ref, _ := exp.Value.(string)
		if ref == "" {
			ref = exp.Target
		}
		s, err := assert.ResolveSchema(ref)
		if err != nil {
			a.Failf("schema: %v", err)
			return
		}
		a.Schema(resp, s)

	case ir.ExpectContract:
		if r.contractV == nil {
			a.Failf("contract: requested but no OpenAPI document configured")
			return
		}
		if !a.Response(resp) {
			return
		}
		path, method, err := r.contractV.ValidateResponse(ctx, resp)
		r.coverage.Add(method, path)
		a.Check(err == nil, "contract: %v", err)

	default:
		a.Failf("unknown expectation type: %s", exp.Type)
	}
}

// ---- Interpolation (with defaults + unresolved guard) ----

var varPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandRequest(rq ir.Request, vars map[string]string) ir.Request {
	rq.Method = strings.ToUpper(rq.Method)
	rq.Endpoint = interpolate(rq.Endpoint, vars)
	rq.Path = interpolate(rq.Path, vars)
	rq.Params = expandMap(rq.Params, vars)
	rq.Query = expandMap(rq.Query, vars)
	rq.Headers = expandMap(rq.Headers, vars)
	rq.RawBody = interpolate(rq.RawBody, vars)
	rq.Body = walkInterpolate(rq.Body, vars)
	return rq
}

// expandMap returns a copy; suite maps are shared by parallel scenarios.
func expandMap(m map[string]string, vars map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = interpolate(v, vars)
	}
	return out
}

func walkInterpolate(v any, vars map[string]string) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return interpolate(x, vars)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = walkInterpolate(vv, vars)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = walkInterpolate(x[i], vars)
		}
		return out
	default:
		return v
	}
}

// ${KEY|default} supported. A defined variable wins even when empty; an
// undefined one takes its default (possibly empty). Without a default the
// reference is left intact so the guard can report it.
func interpolate(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		inner := m[2 : len(m)-1]
		key, def, hasDef := inner, "", false
		if i := strings.Index(inner, "|"); i >= 0 {
			key, def, hasDef = inner[:i], inner[i+1:], true
		}
		if v, ok := vars[key]; ok {
			return v
		}
		if hasDef {
			return def
		}
		return m
	})
}

// findUnresolved runs on interpolated text, so every remaining reference
// lacked both a value and a default.
func findUnresolved(s string) []string {
	var out []string
	for _, m := range varPattern.FindAllStringSubmatch(s, -1) {
		out = append(out, "${"+m[1]+"}")
	}
	return out
}

func requestUnresolved(rq ir.Request) []string {
	out := findUnresolved(rq.Target())
	for _, m := range []map[string]string{rq.Params, rq.Query, rq.Headers} {
		for _, v := range m {
			out = append(out, findUnresolved(v)...)
		}
	}
	out = append(out, findUnresolved(rq.RawBody)...)
	return append(out, bodyUnresolved(rq.Body)...)
}

func bodyUnresolved(v any) []string {
	switch x := v.(type) {
	case string:
		return findUnresolved(x)
	case map[string]any:
		var out []string
		for _, vv := range x {
			out = append(out, bodyUnresolved(vv)...)
		}
		return out
	case []any:
		var out []string
		for _, vv := range x {
			out = append(out, bodyUnresolved(vv)...)
		}
		return out
	}
	return nil
}

// ---- small helpers ----

func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

func limitBody(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "\n...[truncated]..."
}
