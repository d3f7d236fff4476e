package steps_test

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restqa/internal/config"
	"restqa/internal/metrics"
	"restqa/internal/mockapi"
	"restqa/internal/steps"
)

const featureDir = "../../features"

// newSuite starts a mock API mounted at basePath and points a suite at it.
func newSuite(t *testing.T, basePath string) (*steps.Suite, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(mockapi.New(mockapi.NewStore(), mockapi.Options{BasePath: basePath, Log: zerolog.Nop()}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	props := "api.base.url=" + srv.URL + "\napi.base.path=" + basePath + "\napi.timeout=5000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config-test.properties"), []byte(props), 0o644))
	cfg, err := config.Load(config.Options{Dir: dir, Overrides: map[string]string{config.KeyEnv: "test"}})
	require.NoError(t, err)

	m := metrics.New()
	s, err := steps.NewSuite(cfg, zerolog.Nop(), m, nil)
	require.NoError(t, err)
	return s, m
}

func run(t *testing.T, s *steps.Suite, concurrency int, paths ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	status := godog.TestSuite{
		Name:                t.Name(),
		ScenarioInitializer: s.InitializeScenario,
		Options: &godog.Options{
			Format:      "progress",
			Output:      &out,
			Paths:       paths,
			Concurrency: concurrency,
			Strict:      true,
			NoColors:    true,
		},
	}.Run()
	return status, out.String()
}

func TestFeatures_Posts(t *testing.T) {
	s, m := newSuite(t, "")
	status, out := run(t, s, 4, filepath.Join(featureDir, "posts.feature"))
	require.Zero(t, status, out)
	assert.Equal(t, 11.0, testutil.ToFloat64(m.ScenariosTotal.WithLabelValues("bdd", "passed")))
}

func TestFeatures_Auth(t *testing.T) {
	s, _ := newSuite(t, "")
	status, out := run(t, s, 4, filepath.Join(featureDir, "auth.feature"))
	require.Zero(t, status, out)
}

func TestFeatures_ReqresUsers(t *testing.T) {
	s, _ := newSuite(t, "/api")
	status, out := run(t, s, 4, filepath.Join(featureDir, "reqres_users.feature"))
	require.Zero(t, status, out)
}

func writeFeature(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adhoc.feature")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestFeatures_UndefinedStepFailsStrictRun(t *testing.T) {
	s, _ := newSuite(t, "")
	path := writeFeature(t, `Feature: undefined
  Scenario: unknown sentence
    When I send a GET request for post ID 1
    Then the response should sparkle
`)
	status, _ := run(t, s, 1, path)
	assert.NotZero(t, status)
}

func TestFeatures_SoftScenarioReportsEveryFailure(t *testing.T) {
	s, m := newSuite(t, "")
	path := writeFeature(t, `Feature: soft
  @soft
  Scenario: collect failures
    When I send a GET request for post ID 1
    Then the response status code should be 418
    And the response field "title" should be "not the title"
    And the response field "id" should be present
    And all soft assertions should pass
`)
	status, out := run(t, s, 1, path)
	assert.NotZero(t, status)
	assert.Contains(t, out, "expected status 418")
	assert.Contains(t, out, "not the title")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AssertionFailures.WithLabelValues("soft")))
}

func TestFeatures_SoftFailuresSettleAtScenarioEnd(t *testing.T) {
	s, _ := newSuite(t, "")
	path := writeFeature(t, `Feature: soft
  @soft
  Scenario: no explicit settle step
    When I send a GET request for post ID 99999
    Then the response status code should be 200
`)
	status, _ := run(t, s, 1, path)
	assert.NotZero(t, status)
}

func TestFeatures_AssertionBeforeDispatchFails(t *testing.T) {
	s, _ := newSuite(t, "")
	path := writeFeature(t, `Feature: guard
  Scenario: nothing sent
    Then the response status code should be 200
`)
	status, out := run(t, s, 1, path)
	assert.NotZero(t, status)
	assert.Contains(t, out, "no response recorded")
}
