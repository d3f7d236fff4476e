package assert

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusSet is a set of acceptable outcomes for calls whose upstream
// validation behaviour varies.
type StatusSet []int

// NegativeCreate covers APIs that accept, reject or refuse to process an
// invalid create payload.
var NegativeCreate = StatusSet{201, 400, 422}

func (s StatusSet) Contains(code int) bool {
	for _, c := range s {
		if c == code {
			return true
		}
	}
	return false
}

func (s StatusSet) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = strconv.Itoa(c)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ParseStatusSet reads lists such as "201, 400 or 422".
func ParseStatusSet(s string) (StatusSet, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '|' || r == '{' || r == '}'
	})
	var out StatusSet
	for _, f := range fields {
		if f == "or" || f == "and" {
			continue
		}
		code, err := strconv.Atoi(f)
		if err != nil || code < 100 || code > 599 {
			return nil, fmt.Errorf("invalid status code %q in %q", f, s)
		}
		out = append(out, code)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty status set %q", s)
	}
	return out, nil
}
