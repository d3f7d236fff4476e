package assert

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"restqa/internal/client"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema is a compiled JSON schema.
type Schema struct {
	Name   string
	schema *gojsonschema.Schema
}

// SchemaNames lists the built-in schemas.
func SchemaNames() []string {
	entries, _ := fs.ReadDir(schemaFS, "schemas")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}

// LoadSchema compiles a built-in schema by name ("post", "post-list",
// "user-page").
func LoadSchema(name string) (*Schema, error) {
	data, err := schemaFS.ReadFile(path.Join("schemas", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("schema %q: unknown (have %s)", name, strings.Join(SchemaNames(), ", "))
	}
	return compile(name, data)
}

// SchemaFromFile compiles a schema document from disk.
func SchemaFromFile(file string) (*Schema, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return compile(file, data)
}

// ResolveSchema treats ref as a built-in name unless it looks like a file.
func ResolveSchema(ref string) (*Schema, error) {
	if strings.HasSuffix(ref, ".json") || strings.ContainsRune(ref, os.PathSeparator) {
		return SchemaFromFile(ref)
	}
	return LoadSchema(ref)
}

func compile(name string, data []byte) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{Name: name, schema: s}, nil
}

// Validate returns one message per violation.
func (s *Schema) Validate(body []byte) ([]string, error) {
	res, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range res.Errors() {
		out = append(out, e.String())
	}
	return out, nil
}

func (a *Asserter) Schema(resp *client.Response, s *Schema) bool {
	if !a.ready(resp) {
		return false
	}
	violations, err := s.Validate(resp.Body)
	if err != nil {
		return a.Failf("schema %s: %v", s.Name, err)
	}
	return a.Check(len(violations) == 0, "schema %s: %s", s.Name, strings.Join(violations, "; "))
}
