package contract

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

// Operation is one documented method and path template.
type Operation struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

func (o Operation) String() string { return fmt.Sprintf("%s %s", o.Method, o.Path) }

// Operations lists every operation of doc, sorted by path then method.
func Operations(doc *openapi3.T) []Operation {
	var out []Operation
	if doc == nil || doc.Paths == nil {
		return out
	}
	for p, pi := range doc.Paths.Map() {
		if pi == nil {
			continue
		}
		for m := range pi.Operations() {
			out = append(out, Operation{Method: strings.ToUpper(m), Path: p})
		}
	}
	sortOps(out)
	return out
}

// Coverage records routed operations. It is safe for concurrent use.
type Coverage struct {
	mu   sync.Mutex
	seen map[Operation]bool
}

func NewCoverage() *Coverage { return &Coverage{seen: map[Operation]bool{}} }

func (c *Coverage) Add(method, path string) {
	if c == nil || path == "" {
		return
	}
	c.mu.Lock()
	c.seen[Operation{Method: strings.ToUpper(method), Path: path}] = true
	c.mu.Unlock()
}

// Covered returns the recorded operations in sorted order.
func (c *Coverage) Covered() []Operation {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	out := make([]Operation, 0, len(c.seen))
	for op := range c.seen {
		out = append(out, op)
	}
	c.mu.Unlock()
	sortOps(out)
	return out
}

func (c *Coverage) Has(op Operation) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[op]
}

func sortOps(ops []Operation) {
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Path == ops[j].Path {
			return ops[i].Method < ops[j].Method
		}
		return ops[i].Path < ops[j].Path
	})
}
