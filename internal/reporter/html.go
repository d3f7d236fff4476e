package reporter

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"sort"
	"strings"

	"restqa/internal/executor"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTmpl = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
	"status":  statusClass,
	"ms":      ms,
	"inc":     func(i int) int { return i + 1 },
	"kv":      kvBlock,
	"headers": hdrBlock,
	"pretty":  prettyJSON,
}).ParseFS(templateFS, "templates/report.html.tmpl"))

type htmlView struct {
	Name     string
	Result   *executor.SuiteResult
	Coverage *CoverageReport
}

// WriteHTML renders a self-contained report. cov may be nil.
func WriteHTML(w io.Writer, suiteName string, res *executor.SuiteResult, cov *CoverageReport) error {
	return reportTmpl.Execute(w, htmlView{Name: suiteName, Result: res, Coverage: cov})
}

// WriteHTMLFromJSONPath renders the report from a results.json on disk.
func WriteHTMLFromJSONPath(w io.Writer, suiteName, resultsJSONPath string) error {
	data, err := os.ReadFile(resultsJSONPath)
	if err != nil {
		return fmt.Errorf("read results.json: %w", err)
	}
	var res executor.SuiteResult
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("decode results.json: %w", err)
	}
	return WriteHTML(w, suiteName, &res, nil)
}

func statusClass(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}

func ms(v float64) string { return fmt.Sprintf("%.0f ms", v) }

func kvBlock(h map[string]string) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(h[k])
		b.WriteByte('\n')
	}
	return b.String()
}

func hdrBlock(h map[string][]string) string {
	flat := make(map[string]string, len(h))
	for k, v := range h {
		flat[k] = strings.Join(v, ", ")
	}
	return kvBlock(flat)
}

func prettyJSON(s string) string {
	var buf bytes.Buffer
	var raw any
	if json.Unmarshal([]byte(s), &raw) == nil {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		_ = enc.Encode(raw)
		return strings.TrimRight(buf.String(), "\n")
	}
	return s
}
