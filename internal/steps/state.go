// Package steps binds Given/When/Then sentences to HTTP calls and
// assertions. Process-wide dependencies live in a read-only Suite; every
// scenario gets its own State.
package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"
	messages "github.com/cucumber/messages/go/v21"
	"github.com/rs/zerolog"

	"restqa/internal/assert"
	"restqa/internal/client"
	"restqa/internal/config"
	"restqa/internal/endpoints"
	"restqa/internal/metrics"
	"restqa/internal/model"
)

// ErrNoResponse is reported by assertion steps that run before a dispatch.
var ErrNoResponse = assert.ErrNoResponse

// SoftTag selects soft assertions for a scenario.
const SoftTag = "@soft"

const runnerName = "bdd"

// Suite carries the dependencies shared by every scenario.
type Suite struct {
	Config   *config.Config
	Baseline *client.Baseline
	Registry *Registry
	Log      zerolog.Logger
	Metrics  *metrics.Metrics
}

// NewSuite builds the shared baseline from cfg with logging and metrics
// hooks attached. A nil reg selects the built-in steps.
func NewSuite(cfg *config.Config, log zerolog.Logger, m *metrics.Metrics, reg *Registry, opts ...client.Option) (*Suite, error) {
	if reg == nil {
		var err error
		if reg, err = Default(); err != nil {
			return nil, err
		}
	}
	opts = append([]client.Option{
		client.WithHook(client.LogHook{Log: log, Secrets: []string{cfg.AuthKey()}}),
		client.WithHook(client.MetricsHook{M: m}),
	}, opts...)
	base, err := client.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Suite{Config: cfg, Baseline: base, Registry: reg, Log: log, Metrics: m}, nil
}

// InitializeScenario is a godog ScenarioInitializer. godog calls it once per
// scenario, so each scenario is bound to a fresh State.
func (s *Suite) InitializeScenario(sc *godog.ScenarioContext) {
	st := s.NewState()
	sc.Before(func(ctx context.Context, p *godog.Scenario) (context.Context, error) {
		st.begin(p.Name, tagNames(p.Tags))
		return ctx, nil
	})
	sc.After(func(ctx context.Context, p *godog.Scenario, err error) (context.Context, error) {
		ferr := st.settle()
		s.Metrics.ObserveScenario(runnerName, err == nil && ferr == nil)
		if err == nil && ferr != nil {
			return ctx, ferr
		}
		return ctx, err
	})
	s.Registry.Bind(sc, st)
}

// NewState returns an empty hard-mode state.
func (s *Suite) NewState() *State {
	return &State{
		suite:    s,
		base:     s.Baseline,
		asserter: assert.New(assert.Hard),
		log:      s.Log,
	}
}

func tagNames(tags []*messages.PickleTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Name
	}
	return out
}

// State is the mutable bag of one scenario. It is never shared.
type State struct {
	suite    *Suite
	base     *client.Baseline
	asserter *assert.Asserter
	log      zerolog.Logger

	resp *client.Response

	post     *model.Post
	invalid  bool
	storedID *int

	userID string
	creds  *model.Credentials
	bookID *int
}

func (st *State) begin(name string, tags []string) {
	mode := assert.Hard
	for _, t := range tags {
		if strings.EqualFold(t, SoftTag) {
			mode = assert.Soft
		}
	}
	st.asserter = assert.New(mode)
	st.log = st.suite.Log.With().Str("scenario", name).Str("assert_mode", mode.String()).Logger()
}

// Mode is the scenario's assertion mode.
func (st *State) Mode() assert.Mode { return st.asserter.Mode() }

// Response is the last recorded response, nil before the first dispatch.
func (st *State) Response() *client.Response { return st.resp }

// settle counts and clears outstanding failures.
func (st *State) settle() error {
	st.suite.Metrics.ObserveAssertionFailures(st.asserter.Mode().String(), len(st.asserter.Failures()))
	return st.asserter.Flush()
}

// verdict is what an assertion step returns: the failure in hard mode,
// nothing in soft mode where failures wait for settle.
func (st *State) verdict() error {
	if st.asserter.Mode() == assert.Soft {
		return nil
	}
	return st.asserter.Err()
}

// check runs fn against the last response in the scenario's mode.
func (st *State) check(fn func(a *assert.Asserter, r *client.Response)) error {
	if st.asserter.Response(st.resp) {
		fn(st.asserter, st.resp)
	}
	return st.verdict()
}

func (st *State) request(method, endpoint string, params map[string]string) (*client.Request, error) {
	path, err := endpoints.Resolve(endpoint, params)
	if err != nil {
		return nil, err
	}
	return st.base.NewRequest(method, path), nil
}

// send dispatches req and records the response. A transport error is an
// assertion failure of the step.
func (st *State) send(ctx context.Context, req *client.Request) error {
	st.resp = nil
	resp, err := st.base.Do(ctx, req)
	if err != nil {
		st.log.Warn().Err(err).Str("method", req.Method).Str("path", req.Path).Msg("dispatch failed")
		st.asserter.Fail(fmt.Errorf("dispatch %s %s: %w", req.Method, req.Path, err))
		return st.verdict()
	}
	st.resp = resp
	st.log.Debug().
		Str("method", resp.Method).
		Str("url", resp.URL).
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Elapsed).
		Msg("step response")
	return nil
}

func (st *State) call(ctx context.Context, method, endpoint string, params map[string]string, body any) error {
	req, err := st.request(method, endpoint, params)
	if err != nil {
		return err
	}
	if body != nil {
		req.WithBody(body)
	}
	return st.send(ctx, req)
}

// Common steps.

var errNoStoredID = errors.New("no identifier stored by an earlier step")

func (st *State) baseURLConfigured() error {
	if st.base == nil || st.base.BaseURI() == "" {
		return fmt.Errorf("%s is not configured", config.KeyBaseURL)
	}
	return nil
}

func (st *State) clientInitialized() error {
	if st.base == nil {
		return errors.New("API client is not initialized")
	}
	return nil
}

// setBaseURL overrides the base URI for this scenario only. ${key}
// references are resolved against configuration.
func (st *State) setBaseURL(raw string) error {
	b, err := st.suite.Baseline.WithBaseURI(st.suite.Config.Expand(raw))
	if err != nil {
		return err
	}
	st.base = b
	return nil
}

func (st *State) statusShouldBe(code int) error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.Status(r, code) })
}

func (st *State) statusShouldBeOneOf(list string) error {
	set, err := assert.ParseStatusSet(list)
	if err != nil {
		return err
	}
	return st.check(func(a *assert.Asserter, r *client.Response) { a.StatusIn(r, set) })
}

func (st *State) latencyBelow(ms int64) error {
	return st.check(func(a *assert.Asserter, r *client.Response) {
		a.Latency(r, time.Duration(ms)*time.Millisecond)
	})
}

func (st *State) fieldShouldBe(path, want string) error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.Equal(r, path, want) })
}

func (st *State) fieldShouldBePresent(path string) error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.Present(r, path) })
}

func (st *State) headerShouldBe(name, want string) error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.Header(r, name, want) })
}

func (st *State) headerShouldContain(name, part string) error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.HeaderContains(r, name, part) })
}

func (st *State) headerShouldStartWith(name, prefix string) error {
	return st.check(func(a *assert.Asserter, r *client.Response) { a.HeaderPrefix(r, name, prefix) })
}

func (st *State) shouldMatchSchema(ref string) error {
	s, err := assert.ResolveSchema(ref)
	if err != nil {
		return err
	}
	return st.check(func(a *assert.Asserter, r *client.Response) { a.Schema(r, s) })
}

func (st *State) softAssertionsPass() error { return st.settle() }

var commonSteps = []Definition{
	{`^the API base URL is configured$`, func(s *State) any { return s.baseURLConfigured }},
	{`^the API client is initialized$`, func(s *State) any { return s.clientInitialized }},
	{`^I set the base URL to "([^"]*)"$`, func(s *State) any { return s.setBaseURL }},
	{`^the response status code should be (\d+)$`, func(s *State) any { return s.statusShouldBe }},
	{`^I should receive a response with status code (\d+)$`, func(s *State) any { return s.statusShouldBe }},
	{`^the response status code should be one of "([^"]*)"$`, func(s *State) any { return s.statusShouldBeOneOf }},
	{`^the response time should be less than (\d+) milliseconds$`, func(s *State) any { return s.latencyBelow }},
	{`^the response time should be less than (\d+) ms$`, func(s *State) any { return s.latencyBelow }},
	{`^the response field "([^"]*)" should be "([^"]*)"$`, func(s *State) any { return s.fieldShouldBe }},
	{`^the response field "([^"]*)" should be present$`, func(s *State) any { return s.fieldShouldBePresent }},
	{`^the response header "([^"]*)" should be "([^"]*)"$`, func(s *State) any { return s.headerShouldBe }},
	{`^the response header "([^"]*)" should contain "([^"]*)"$`, func(s *State) any { return s.headerShouldContain }},
	{`^the response header "([^"]*)" should start with "([^"]*)"$`, func(s *State) any { return s.headerShouldStartWith }},
	{`^the response should match the "([^"]*)" schema$`, func(s *State) any { return s.shouldMatchSchema }},
	{`^all soft assertions should pass$`, func(s *State) any { return s.softAssertionsPass }},
}
