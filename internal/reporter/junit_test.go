package reporter_test

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"

	"restqa/internal/executor"
	"restqa/internal/reporter"
)

func TestWriteJUnit_Basic(t *testing.T) {
	res := &executor.SuiteResult{
		Passed: false,
		Scenarios: []executor.ScenarioResult{
			{
				Name:   "Scenario A",
				Passed: true,
				Steps: []executor.StepResult{
					{Name: "create", Passed: true, StatusCode: 201},
				},
			},
			{
				Name:   "Scenario B",
				Passed: false,
				Errors: []string{"teardown: cleanup: DELETE returned 500"},
				Steps: []executor.StepResult{
					{Passed: false, StatusCode: 200, Errors: []string{"expected status 418, got 200"}},
					{Skipped: true},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := reporter.WriteJUnit(&buf, "Posts API", res); err != nil {
		t.Fatalf("WriteJUnit error: %v", err)
	}

	// sanity: XML starts with <testsuite ...>
	out := buf.String()
	if !strings.HasPrefix(out, "<testsuite") {
		t.Fatalf("expected testsuite root, got: %s", out[:min(200, len(out))])
	}

	// well-formed XML
	var v struct{}
	if err := xml.Unmarshal(buf.Bytes(), &v); err != nil {
		t.Fatalf("invalid xml: %v", err)
	}

	for _, want := range []string{
		`tests="3"`,
		`failures="1"`,
		`skipped="1"`,
		`name="create"`,
		`name="step-1"`,
		`<skipped message="previous step failed">`,
		"Scenario B: teardown: cleanup",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestWriteJUnit_TimesInSeconds(t *testing.T) {
	res := &executor.SuiteResult{
		Passed:     true,
		DurationMs: 1250,
		Scenarios: []executor.ScenarioResult{{
			Name:   "latency",
			Passed: true,
			Steps: []executor.StepResult{
				{Name: "list", Passed: true, DurationMs: 812},
				{Name: "read", Passed: true, DurationMs: 38},
			},
		}},
	}
	var buf bytes.Buffer
	if err := reporter.WriteJUnit(&buf, "timed", res); err != nil {
		t.Fatalf("WriteJUnit: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`name="timed"`, `time="1.250"`, `time="0.812"`, `time="0.038"`, `failures="0"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}
