package assert

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"restqa/internal/client"
)

// Lookup resolves a gjson path against body. The empty path and "$" select
// the whole document; a leading "$." is ignored.
func Lookup(body []byte, path string) gjson.Result {
	path = strings.TrimSpace(path)
	if path == "" || path == "$" {
		return gjson.ParseBytes(body)
	}
	return gjson.GetBytes(body, strings.TrimPrefix(path, "$."))
}

func (a *Asserter) field(resp *client.Response, path string) (gjson.Result, bool) {
	if !a.ready(resp) {
		return gjson.Result{}, false
	}
	if !gjson.ValidBytes(resp.Body) {
		return gjson.Result{}, a.Failf("%s: response body is not JSON: %s", label(path), snippet(resp.Body))
	}
	r := Lookup(resp.Body, path)
	if !r.Exists() {
		return r, a.Failf("%s: not found in response", label(path))
	}
	return r, true
}

// Equal compares the value at path with want. Strings compare by text,
// numbers by value, nil matches JSON null and anything else compares
// structurally after a JSON round trip.
func (a *Asserter) Equal(resp *client.Response, path string, want any) bool {
	r, ok := a.field(resp, path)
	if !ok {
		return false
	}
	return a.Check(Matches(r, want), "%s: expected %s, got %s", path, render(want), r.Raw)
}

// Present passes when path exists and is not null.
func (a *Asserter) Present(resp *client.Response, path string) bool {
	r, ok := a.field(resp, path)
	if !ok {
		return false
	}
	return a.Check(r.Type != gjson.Null, "%s: expected a value, got null", path)
}

func (a *Asserter) Greater(resp *client.Response, path string, n float64) bool {
	return a.compare(resp, path, n, ">", func(v float64) bool { return v > n })
}

func (a *Asserter) AtLeast(resp *client.Response, path string, n float64) bool {
	return a.compare(resp, path, n, ">=", func(v float64) bool { return v >= n })
}

func (a *Asserter) compare(resp *client.Response, path string, n float64, op string, ok func(float64) bool) bool {
	r, found := a.field(resp, path)
	if !found {
		return false
	}
	if r.Type != gjson.Number {
		return a.Failf("%s: expected a number, got %s", path, r.Raw)
	}
	return a.Check(ok(r.Num), "%s: expected %s %s, got %s", path, op, strconv.FormatFloat(n, 'f', -1, 64), r.Raw)
}

// NotEmpty passes for a non-empty array, object or string.
func (a *Asserter) NotEmpty(resp *client.Response, path string) bool {
	r, ok := a.field(resp, path)
	if !ok {
		return false
	}
	var empty bool
	switch {
	case r.IsArray():
		empty = len(r.Array()) == 0
	case r.IsObject():
		empty = len(r.Map()) == 0
	case r.Type == gjson.String:
		empty = r.Str == ""
	default:
		empty = r.Type == gjson.Null
	}
	return a.Check(!empty, "%s: expected a non-empty value, got %s", path, r.Raw)
}

// EachHas passes when path is an array whose every element carries every
// field with a non-null value.
func (a *Asserter) EachHas(resp *client.Response, path string, fields ...string) bool {
	r, ok := a.field(resp, path)
	if !ok {
		return false
	}
	if !r.IsArray() {
		return a.Failf("%s: expected an array, got %s", label(path), snippet([]byte(r.Raw)))
	}
	passed := true
	for i, el := range r.Array() {
		for _, f := range fields {
			v := el.Get(f)
			if v.Exists() && v.Type != gjson.Null {
				continue
			}
			passed = false
			a.Failf("%s[%d]: %s is missing or null", label(path), i, f)
			if !a.Active() {
				return false
			}
		}
	}
	return passed
}

// Matches reports whether r holds want.
func Matches(r gjson.Result, want any) bool {
	switch w := want.(type) {
	case nil:
		return r.Type == gjson.Null
	case string:
		return r.Type != gjson.JSON && r.String() == w
	case bool:
		return (r.Type == gjson.True || r.Type == gjson.False) && r.Bool() == w
	case int:
		return r.Type == gjson.Number && r.Num == float64(w)
	case int64:
		return r.Type == gjson.Number && r.Num == float64(w)
	case float64:
		return r.Type == gjson.Number && r.Num == w
	case json.Number:
		f, err := w.Float64()
		return err == nil && r.Type == gjson.Number && r.Num == f
	}
	raw, err := json.Marshal(want)
	if err != nil {
		return false
	}
	var got, exp any
	if json.Unmarshal([]byte(r.Raw), &got) != nil || json.Unmarshal(raw, &exp) != nil {
		return false
	}
	return reflect.DeepEqual(got, exp)
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func label(path string) string {
	if path == "" {
		return "$"
	}
	return path
}

func snippet(b []byte) string {
	const max = 200
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
