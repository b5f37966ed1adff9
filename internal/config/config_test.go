package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/txmerkle/pkg/crypto"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, crypto.SHA256, cfg.Algorithm)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Attachments.Dir)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txmerkle.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
algorithm: SHA3-256
logging:
  level: debug
attachments:
  dir: /var/lib/txmerkle
  cache_life_window: 1m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, crypto.SHA3_256, cfg.Algorithm)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Console, "unset fields keep defaults")
	assert.Equal(t, "/var/lib/txmerkle", cfg.Attachments.Dir)
	assert.Equal(t, time.Minute, cfg.Attachments.CacheLifeWindow)
	assert.Equal(t, 64, cfg.Attachments.ClassLoaderCacheSize)
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":     "colour: red\n",
		"unknown algorithm": "algorithm: MD5\n",
		"bad level":         "logging:\n  level: loud\n",
		"bad blacklist":     "attachments:\n  blacklist: [zz]\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "txmerkle.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txmerkle.yaml")
	cfg := Default()
	cfg.Algorithm = crypto.BLAKE3_256
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
