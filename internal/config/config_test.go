package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWithEnv("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "EUR", cfg.Currency)
	assert.Equal(t, 4, cfg.MaxParallel)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.True(t, cfg.Tolerance().Equal(decimal.New(1, -2)))
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, "opcost.cue", `
port: 9000
currency: "CHF"
log: format: "json"
`)
	cfg, err := LoadWithEnv(path, env(map[string]string{
		"PORT":      "9100",
		"LOG_LEVEL": "debug",
	}))
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "CHF", cfg.Currency)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "debug", cfg.Logger().Level)
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeFile(t, "opcost.json", `{"direct_tolerance": "0.05", "max_parallel": 8}`)
	cfg, err := LoadWithEnv(path, env(nil))
	require.NoError(t, err)
	assert.True(t, cfg.Tolerance().Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, 8, cfg.MaxParallel)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "bad currency", env: map[string]string{"CURRENCY": "euro"}},
		{name: "bad level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "port not a number", env: map[string]string{"PORT": "http"}},
		{name: "port out of range", file: `port: 70000`},
		{name: "tolerance not decimal", file: `direct_tolerance: "1e-2"`},
		{name: "unknown field", file: `colour: "blue"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeFile(t, "c.cue", tt.file)
			}
			_, err := LoadWithEnv(path, env(tt.env))
			assert.Error(t, err)
		})
	}
}
