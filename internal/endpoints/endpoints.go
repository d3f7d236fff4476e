// Package endpoints is the static catalog of logical operation names and
// their URL path templates, relative to the configured base path.
package endpoints

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

const (
	SignUp             = "sign-up"
	LogIn              = "log-in"
	AddNewBook         = "add-new-book"
	BookByID           = "book-by-id"
	UserList           = "user-list"
	SingleUser         = "single-user"
	SingleUserNotFound = "single-user-not-found"
	CreateUser         = "create-user"
	UpdateUser         = "update-user"
	DeleteUser         = "delete-user"
	RegisterSuccess    = "register-success"
	RegisterUnsuccess  = "register-unsuccess"
	Posts              = "posts"
	PostByID           = "post-by-id"
)

var catalog = map[string]string{
	SignUp:             "signup",
	LogIn:              "login",
	AddNewBook:         "books",
	BookByID:           "books/{book_id}",
	UserList:           "users?page=2",
	SingleUser:         "users/2",
	SingleUserNotFound: "users/23",
	CreateUser:         "users",
	UpdateUser:         "users/2",
	DeleteUser:         "users/2",
	RegisterSuccess:    "register",
	RegisterUnsuccess:  "register",
	Posts:              "posts",
	PostByID:           "posts/{id}",
}

var (
	ErrUnknown    = errors.New("unknown endpoint")
	ErrUnresolved = errors.New("unresolved path placeholder")
)

var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Lookup returns the path template registered under name.
func Lookup(name string) (string, bool) {
	t, ok := catalog[name]
	return t, ok
}

// Names lists every catalog entry in sorted order.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for k := range catalog {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Expand fills the template registered under name with params.
func Expand(name string, params map[string]string) (string, error) {
	t, ok := catalog[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return Fill(t, params)
}

// Resolve accepts a catalog name or a literal path template.
func Resolve(nameOrPath string, params map[string]string) (string, error) {
	if t, ok := catalog[nameOrPath]; ok {
		return Fill(t, params)
	}
	return Fill(nameOrPath, params)
}

// Fill substitutes {name} segments. Values are path-escaped; a placeholder
// without a value is an error listing every missing name.
func Fill(template string, params map[string]string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := params[key]
		if !ok || v == "" {
			missing = append(missing, key)
			return m
		}
		return url.PathEscape(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w in %q: %s", ErrUnresolved, template, strings.Join(missing, ", "))
	}
	return out, nil
}
