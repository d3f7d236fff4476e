package steps

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gherkin "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"
)

// Issue is a scenario step that no definition, or more than one, matches.
type Issue struct {
	File     string
	Scenario string
	Step     string
	Matches  []string
}

func (i Issue) String() string {
	if len(i.Matches) == 0 {
		return fmt.Sprintf("%s: %s: undefined step %q", i.File, i.Scenario, i.Step)
	}
	return fmt.Sprintf("%s: %s: ambiguous step %q matches %s", i.File, i.Scenario, i.Step, strings.Join(i.Matches, " | "))
}

// LintError lists every unmatched or ambiguous step found by Lint.
type LintError struct {
	Issues []Issue
}

func (e *LintError) Error() string {
	lines := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		lines[i] = is.String()
	}
	return fmt.Sprintf("%d step(s) do not resolve to exactly one definition:\n  %s", len(e.Issues), strings.Join(lines, "\n  "))
}

// FeatureFiles expands paths (files or directories) to .feature files.
func FeatureFiles(paths ...string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".feature") {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(out)
	return out, nil
}

// Lint compiles every feature under paths to pickles and resolves each step
// against r. A *LintError is returned when any step is undefined or
// ambiguous.
func (r *Registry) Lint(paths ...string) error {
	files, err := FeatureFiles(paths...)
	if err != nil {
		return err
	}
	var issues []Issue
	for _, file := range files {
		pickles, err := compile(file)
		if err != nil {
			return err
		}
		for _, p := range pickles {
			for _, st := range p.Steps {
				if m := r.Match(st.Text); len(m) != 1 {
					issues = append(issues, Issue{File: file, Scenario: p.Name, Step: st.Text, Matches: m})
				}
			}
		}
	}
	if len(issues) > 0 {
		return &LintError{Issues: issues}
	}
	return nil
}

func compile(file string) ([]*messages.Pickle, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	newID := (&messages.Incrementing{}).NewId
	doc, err := gherkin.ParseGherkinDocument(f, newID)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	return gherkin.Pickles(*doc, file, newID), nil
}
