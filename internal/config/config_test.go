package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	opts, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", opts.URL)
	assert.Equal(t, "session.json", opts.TokenFile)
	assert.Equal(t, 10*time.Second, opts.Timeout)
	assert.Equal(t, "warn", opts.LogLevel)
	assert.Equal(t, time.Hour, opts.CleanupInterval)
	assert.Equal(t, 30*24*time.Hour, opts.CredentialRetention)
	assert.Empty(t, opts.DatabaseDSN)
	assert.False(t, opts.ShowVersion)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, `{
		"url": "http://file.example:8000/",
		"timeout": "3s",
		"database_dsn": "postgres://file",
		"log_level": "debug"
	}`)

	opts, err := Load([]string{"-c", path})
	require.NoError(t, err)
	assert.Equal(t, "http://file.example:8000", opts.URL, "trailing slash trimmed")
	assert.Equal(t, 3*time.Second, opts.Timeout)
	assert.Equal(t, "postgres://file", opts.DatabaseDSN)
	assert.Equal(t, path, opts.Config)

	t.Setenv("GOPHSHOP_URL", "http://env.example")
	t.Setenv("GOPHSHOP_LOG_LEVEL", "error")
	opts, err = Load([]string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, "http://env.example", opts.URL)
	assert.Equal(t, "error", opts.LogLevel)
	assert.Equal(t, 3*time.Second, opts.Timeout)

	opts, err = Load([]string{"-c", path, "-url", "http://flag.example", "-timeout", "250ms", "-d", "postgres://flag"})
	require.NoError(t, err)
	assert.Equal(t, "http://flag.example", opts.URL)
	assert.Equal(t, 250*time.Millisecond, opts.Timeout)
	assert.Equal(t, "postgres://flag", opts.DatabaseDSN)
	assert.Equal(t, "error", opts.LogLevel)
}

func TestLoad_ConfigFromEnv(t *testing.T) {
	path := writeConfig(t, `{"token_file": "/tmp/shop-session.json"}`)
	t.Setenv("GOPHSHOP_CONFIG", path)

	opts, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/shop-session.json", opts.TokenFile)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing explicit config", []string{"-c", filepath.Join(t.TempDir(), "nope.json")}},
		{"bad timeout", []string{"-timeout", "soon"}},
		{"negative timeout", []string{"-timeout", "-1s"}},
		{"empty url", []string{"-url", ""}},
		{"unknown flag", []string{"-frobnicate"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoad_CleanerSettings(t *testing.T) {
	for name, env := range map[string][2]string{
		"zero interval":      {"GOPHSHOP_CLEANUP_INTERVAL", "0s"},
		"negative interval":  {"GOPHSHOP_CLEANUP_INTERVAL", "-5m"},
		"zero retention":     {"GOPHSHOP_CREDENTIAL_RETENTION", "0s"},
		"negative retention": {"GOPHSHOP_CREDENTIAL_RETENTION", "-1h"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := Load(nil)
			assert.ErrorContains(t, err, "must be positive")
		})
	}

	path := writeConfig(t, `{"cleanup_interval": "0s"}`)
	_, err := Load([]string{"-c", path})
	assert.ErrorContains(t, err, "cleanup interval must be positive")

	t.Setenv("GOPHSHOP_CLEANUP_INTERVAL", "15m")
	opts, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, opts.CleanupInterval)
}

func TestLoad_BrokenConfig(t *testing.T) {
	path := writeConfig(t, `{not json`)
	_, err := Load([]string{"-c", path})
	assert.ErrorContains(t, err, "error while reading config file")
}

func TestLoad_Version(t *testing.T) {
	opts, err := Load([]string{"-version"})
	require.NoError(t, err)
	assert.True(t, opts.ShowVersion)
}
