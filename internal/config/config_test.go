package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestDefaults(t *testing.T) {
	cfg, err := load(nil, noEnv)
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, 600*time.Millisecond, cfg.Debounce.Duration)
	assert.Equal(t, "created_at", cfg.SortBy)
	assert.Equal(t, "desc", cfg.Order)
	assert.Empty(t, cfg.Files)
}

func TestFilesOverrideInOrder(t *testing.T) {
	dir := t.TempDir()
	user := writeFile(t, dir, "user.toml", `
api_url = "http://user:9000"
page_size = 50
theme = "neon"
`)
	project := writeFile(t, dir, "project.toml", `
api_url = "http://project:9001"
debounce = "250ms"
`)

	cfg, err := load([]string{user, project}, noEnv)
	require.NoError(t, err)

	assert.Equal(t, "http://project:9001", cfg.APIURL)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, "neon", cfg.Theme)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce.Duration)
	assert.Equal(t, []string{user, project}, cfg.Files)
}

func TestEnvOverridesFiles(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "c.toml", `page_size = 50`)

	cfg, err := load([]string{file}, envMap(map[string]string{
		"TADA_PAGE_SIZE": "5",
		"TADA_API_URL":   "https://todo.example.com",
		"TADA_TIMEOUT":   "3s",
		"TADA_LOG_LEVEL": "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.PageSize)
	assert.Equal(t, "https://todo.example.com", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout.Duration)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad page size", map[string]string{"TADA_PAGE_SIZE": "abc"}},
		{"zero page size", map[string]string{"TADA_PAGE_SIZE": "0"}},
		{"bad duration", map[string]string{"TADA_DEBOUNCE": "soon"}},
		{"relative url", map[string]string{"TADA_API_URL": "localhost"}},
		{"bad order", map[string]string{"TADA_ORDER": "up"}},
		{"bad sort", map[string]string{"TADA_SORT_BY": "priority"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(nil, envMap(tc.env))
			assert.Error(t, err)
		})
	}
}

func TestBrokenFile(t *testing.T) {
	file := writeFile(t, t.TempDir(), "bad.toml", `page_size = "many"`)
	_, err := load([]string{file}, noEnv)
	assert.Error(t, err)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
