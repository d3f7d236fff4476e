package executor_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restqa/internal/client"
	"restqa/internal/config"
	"restqa/internal/contract"
	"restqa/internal/executor"
	"restqa/internal/mockapi"
	"restqa/internal/parser"
)

// The suites shipped in ./suites run green against the mock API.

func mockBaseline(t *testing.T, basePath string) *client.Baseline {
	t.Helper()
	srv := httptest.NewServer(mockapi.New(mockapi.NewStore(), mockapi.Options{BasePath: basePath, Log: zerolog.Nop()}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	props := "api.base.url=" + srv.URL + "\napi.base.path=" + basePath + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config-test.properties"), []byte(props), 0o644))
	cfg, err := config.Load(config.Options{Dir: dir, Overrides: map[string]string{config.KeyEnv: "test"}})
	require.NoError(t, err)
	b, err := client.New(cfg)
	require.NoError(t, err)
	return b
}

func TestBundledPostsSuite(t *testing.T) {
	suite, err := parser.New().ParseFile("../../suites/posts.yaml")
	require.NoError(t, err)
	v, err := contract.LoadFromFile(filepath.Join("../../suites", suite.OpenAPI))
	require.NoError(t, err)

	r := executor.New(mockBaseline(t, "")).WithContract(v)
	res, err := r.RunSuite(context.Background(), suite)
	require.NoError(t, err)
	for _, sc := range res.Scenarios {
		for _, st := range sc.Steps {
			assert.Empty(t, st.Errors, "%s / %s", sc.Name, st.Name)
		}
	}
	require.True(t, res.Passed)

	covered := r.Coverage().Covered()
	assert.Contains(t, covered, contract.Operation{Method: "POST", Path: "/posts"})
	assert.Contains(t, covered, contract.Operation{Method: "PUT", Path: "/posts/{id}"})
}

func TestBundledReqresSuite(t *testing.T) {
	suite, err := parser.New().ParseFile("../../suites/reqres.yaml")
	require.NoError(t, err)

	res, err := executor.New(mockBaseline(t, "/api")).WithParallel(3).RunSuite(context.Background(), suite)
	require.NoError(t, err)
	for _, sc := range res.Scenarios {
		for _, st := range sc.Steps {
			assert.Empty(t, st.Errors, "%s / %s", sc.Name, st.Name)
		}
	}
	require.True(t, res.Passed)
}
