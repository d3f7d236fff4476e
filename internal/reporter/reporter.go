// Package reporter renders suite results as JSON, JUnit XML and HTML, plus
// the OpenAPI coverage summary.
package reporter

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"restqa/internal/executor"
)

// Output file names inside the report directory.
const (
	ResultsFile  = "results.json"
	JUnitFile    = "junit.xml"
	HTMLFile     = "report.html"
	CoverageFile = "coverage.json"
)

// -------- JSON --------

func WriteJSON(w io.Writer, res *executor.SuiteResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// -------- JUnit XML --------

// testsuite -> testcase (+failure|skipped), scenario errors in system-out
type junitTestsuite struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Testcase []junitTestcase `xml:"testcase"`
	Out      string          `xml:"system-out,omitempty"`
}

type junitTestcase struct {
	Classname string        `xml:"classname,attr"`
	Name      string        `xml:"name,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Text    string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr"`
}

func WriteJUnit(w io.Writer, suiteName string, res *executor.SuiteResult) error {
	var total, failures, skipped int
	var cases []junitTestcase
	var out []string

	for _, sc := range res.Scenarios {
		for _, e := range sc.Errors {
			out = append(out, sc.Name+": "+e)
		}
		for i, st := range sc.Steps {
			total++
			name := st.Name
			if name == "" {
				name = fmt.Sprintf("step-%d", i+1)
			}
			tc := junitTestcase{
				Classname: sc.Name,
				Name:      name,
				Time:      fmt.Sprintf("%.3f", st.DurationMs/1000.0),
			}
			switch {
			case st.Skipped:
				skipped++
				tc.Skipped = &junitSkipped{Message: "previous step failed"}
			case !st.Passed:
				failures++
				msg := "assertion failed"
				if len(st.Errors) > 0 {
					msg = st.Errors[0]
				}
				tc.Failure = &junitFailure{
					Message: msg,
					Type:    "AssertionError",
					Text:    strings.Join(st.Errors, "\n"),
				}
			}
			cases = append(cases, tc)
		}
	}

	ts := junitTestsuite{
		Name:     suiteName,
		Tests:    total,
		Failures: failures,
		Skipped:  skipped,
		Time:     fmt.Sprintf("%.3f", res.DurationMs/1000.0),
		Testcase: cases,
		Out:      strings.Join(out, "\n"),
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return enc.Encode(ts)
}

// WriteAll writes results.json, junit.xml and report.html into dir, and
// coverage.json when cov is non-nil. It returns the written paths.
func WriteAll(dir string, res *executor.SuiteResult, cov *CoverageReport) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	type output struct {
		name  string
		write func(io.Writer) error
	}
	outs := []output{
		{ResultsFile, func(w io.Writer) error { return WriteJSON(w, res) }},
		{JUnitFile, func(w io.Writer) error { return WriteJUnit(w, res.Name, res) }},
		{HTMLFile, func(w io.Writer) error { return WriteHTML(w, res.Name, res, cov) }},
	}
	if cov != nil {
		outs = append(outs, output{CoverageFile, func(w io.Writer) error { return WriteCoverage(w, *cov) }})
	}

	var written []string
	for _, o := range outs {
		path := filepath.Join(dir, o.name)
		if err := writeFile(path, o.write); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
