package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RepoConfig(t *testing.T) {
	dev, err := Load("dev", "../../config.toml")
	require.NoError(t, err)
	assert.Equal(t, "dev", dev.Environment)
	assert.Equal(t, StoreDriverSQLite, dev.StoreDriver)
	assert.Equal(t, "anonymous", dev.AnonymousUserID)
	assert.Equal(t, 30*time.Second, dev.PRCacheTTL.Duration)
	assert.Equal(t, 3, dev.TxMaxAttempts)
	assert.Len(t, dev.AllowedOrigins, 2)

	prod, err := Load("production", "../../config.toml")
	require.NoError(t, err)
	assert.Equal(t, StoreDriverPostgres, prod.StoreDriver)
	assert.Empty(t, prod.AnonymousUserID)
	assert.True(t, prod.LogFormatJSON)
}

func TestLoad_Errors(t *testing.T) {
	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	testCases := []struct {
		name    string
		env     string
		content string
	}{
		{
			name:    "unknown env",
			env:     "staging",
			content: "[development]\nport = 1\nstore_driver = \"memory\"\nwrite_rate_limit_per_min = 1\n",
		},
		{
			name:    "missing section",
			env:     "prod",
			content: "[development]\nport = 1\nstore_driver = \"memory\"\nwrite_rate_limit_per_min = 1\n",
		},
		{
			name:    "unknown driver",
			env:     "dev",
			content: "[development]\nport = 1\nstore_driver = \"mongo\"\nwrite_rate_limit_per_min = 1\n",
		},
		{
			name:    "sqlite without path",
			env:     "dev",
			content: "[development]\nport = 1\nstore_driver = \"sqlite\"\nwrite_rate_limit_per_min = 1\n",
		},
		{
			name:    "bad duration",
			env:     "dev",
			content: "[development]\nport = 1\nstore_driver = \"memory\"\npr_cache_ttl = \"soon\"\n",
		},
		{
			name:    "no rate limit",
			env:     "dev",
			content: "[development]\nport = 1\nstore_driver = \"memory\"\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(tc.env, writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}

	_, err := Load("dev", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
