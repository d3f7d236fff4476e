package vars_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restqa/internal/vars"
)

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	fp := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(fp, []byte(body), 0o644))
	return fp
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	js := write(t, dir, "env.json", `{"BASE_URL":"http://x","NUM":42,"BOOL":true,"auth":{"user":"u"}}`)
	ym := write(t, dir, "env.yaml", "NUM: 7\npost:\n  title: hello\n")
	env := write(t, dir, "local.env", "TOKEN=abc\n")

	m, err := vars.LoadFiles([]string{js, "", ym, env})
	require.NoError(t, err)

	assert.Equal(t, "http://x", m["BASE_URL"])
	assert.Equal(t, "7", m["NUM"], "later files win")
	assert.Equal(t, "true", m["BOOL"])
	assert.Equal(t, "u", m["auth.user"])
	assert.Equal(t, "hello", m["post.title"])
	assert.Equal(t, "abc", m["TOKEN"])
}

func TestLoadFiles_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := vars.LoadFiles([]string{filepath.Join(dir, "missing.json")})
	assert.ErrorContains(t, err, "missing.json")

	bad := write(t, dir, "bad.json", `{"a":`)
	_, err = vars.LoadFiles([]string{bad})
	assert.ErrorContains(t, err, "parse")
}

func TestParseAndMerge(t *testing.T) {
	m, err := vars.Parse([]string{"a=1", "b=x=y", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y", "empty": ""}, m)

	_, err = vars.Parse([]string{"novalue"})
	assert.Error(t, err)

	merged := vars.Merge(map[string]string{"a": "file", "c": "3"}, m)
	assert.Equal(t, "1", merged["a"])
	assert.Equal(t, []string{"a", "b", "c", "empty"}, vars.Names(merged))
}
