package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tagcache:
  musicRoot: /srv/music
  devicePrefix: /MicroSD/Music/
  outputDir: /srv/db
  workers: 6
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/music", cfg.Tagcache.MusicRoot)
	assert.Equal(t, "/MicroSD/Music/", cfg.Tagcache.DevicePrefix)
	assert.Equal(t, "/srv/db", cfg.Tagcache.OutputDir)
	assert.Equal(t, 6, cfg.Tagcache.Workers)

	// Unset values fall back to defaults.
	assert.NotEmpty(t, cfg.Tagcache.CacheDSN)
}
