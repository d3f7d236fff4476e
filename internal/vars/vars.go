// Package vars loads the variables suites interpolate as ${name}.
package vars

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadFiles merges variable files in order; later files win. The format
// follows the extension: .json, .yaml/.yml or .env. Nested objects are
// flattened with dotted keys.
func LoadFiles(paths []string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range paths {
		if p == "" {
			continue
		}
		m, err := loadFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range m {
			out[k] = v
		}
	}
	return out, nil
}

func loadFile(p string) (map[string]string, error) {
	if ext := strings.ToLower(filepath.Ext(p)); ext == ".env" {
		m, err := godotenv.Read(p)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		return m, nil
	}

	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}

	var m map[string]any
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &m)
	default:
		err = json.Unmarshal(b, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p, err)
	}
	out := map[string]string{}
	flatten("", m, out)
	return out, nil
}

func flatten(prefix string, m map[string]any, out map[string]string) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch x := v.(type) {
		case map[string]any:
			flatten(key, x, out)
		case string:
			out[key] = x
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(x) // coerce numbers/bools to string
		}
	}
}

// Parse reads name=value definitions as given on the command line.
func Parse(defs []string) (map[string]string, error) {
	out := make(map[string]string, len(defs))
	for _, d := range defs {
		k, v, ok := strings.Cut(d, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("variable %q: want name=value", d)
		}
		out[k] = v
	}
	return out, nil
}

// Merge layers maps left to right.
func Merge(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}

// Names returns the keys of m in sorted order.
func Names(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
