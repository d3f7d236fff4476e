package reporter_test

import (
	"bytes"
	"testing"

	"github.com/tidwall/gjson"

	"restqa/internal/executor"
	"restqa/internal/reporter"
)

func TestWriteJSON_KeepsRequestAndResponseDetail(t *testing.T) {
	res := &executor.SuiteResult{
		Name:   "posts",
		Passed: false,
		Scenarios: []executor.ScenarioResult{{
			Name:       "read unknown post",
			AssertMode: "soft",
			Steps: []executor.StepResult{{
				Name:       "get",
				StatusCode: 404,
				Attempts:   2,
				Method:     "GET",
				URL:        "http://api.test/posts/99999",
				RespBody:   "{}",
				Errors:     []string{"status: expected 200, got 404", "title: missing"},
			}},
		}},
	}

	var buf bytes.Buffer
	if err := reporter.WriteJSON(&buf, res); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	out := buf.String()
	if !gjson.Valid(out) {
		t.Fatalf("invalid json: %s", out)
	}
	checks := map[string]string{
		"Name":                         "posts",
		"Scenarios.0.AssertMode":       "soft",
		"Scenarios.0.Steps.0.URL":      "http://api.test/posts/99999",
		"Scenarios.0.Steps.0.Attempts": "2",
		"Scenarios.0.Steps.0.Errors.#": "2",
	}
	for path, want := range checks {
		if got := gjson.Get(out, path).String(); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
}
