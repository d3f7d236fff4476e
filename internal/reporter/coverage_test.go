package reporter_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"restqa/internal/contract"
	"restqa/internal/reporter"
)

func loadDoc(t *testing.T) *openapi3.T {
	t.Helper()
	spec := `
openapi: 3.0.3
info: {title: X, version: "1"}
paths:
  /posts:
    post: { responses: { "201": { description: ok } } }
    get:  { responses: { "200": { description: ok } } }
  /posts/{id}:
    get: { responses: { "200": { description: ok } } }
`
	loader := &openapi3.Loader{}
	doc, err := loader.LoadFromData([]byte(spec))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return doc
}

func TestWriteCoverage(t *testing.T) {
	cov := contract.NewCoverage()
	cov.Add("POST", "/posts")
	rep := reporter.ComputeCoverage(loadDoc(t), cov)

	var buf bytes.Buffer
	if err := reporter.WriteCoverage(&buf, rep); err != nil {
		t.Fatalf("WriteCoverage: %v", err)
	}

	var got reporter.CoverageReport
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Total != 3 {
		t.Fatalf("total=%d", got.Total)
	}
	if got.Covered != 1 || got.CoveredSet[0] != "POST /posts" {
		t.Fatalf("covered=%d %v", got.Covered, got.CoveredSet)
	}
	if got.Percent <= 30 || got.Percent >= 40 {
		t.Fatalf("percent=%v", got.Percent)
	}
	if len(got.UncoveredSet) != 2 {
		t.Fatalf("uncovered=%v", got.UncoveredSet)
	}
}

func TestCoverageCheck(t *testing.T) {
	cov := contract.NewCoverage()
	cov.Add("GET", "/posts")
	cov.Add("GET", "/posts/{id}")
	rep := reporter.ComputeCoverage(loadDoc(t), cov)

	if err := rep.Check(60); err != nil {
		t.Fatalf("66%% should satisfy 60%%: %v", err)
	}
	err := rep.Check(80)
	if err == nil || !strings.Contains(err.Error(), "2 of 3") {
		t.Fatalf("80%% gate: %v", err)
	}
	if err := reporter.ComputeCoverage(nil, nil).Check(100); err != nil {
		t.Fatalf("empty document counts as fully covered: %v", err)
	}
}
