package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, dir string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.Set("config_dir", dir)
	return v
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(newViper(t, dir))
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, dir, cfg.StorageDir())
	assert.Equal(t, 10, cfg.Tasks.PageSize)
	assert.False(t, cfg.Tasks.RefetchAfterMutation)
	assert.Equal(t, "last-write-wins", cfg.Async.Policy)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api_url: https://tasks.example.com/api
timeout: 3s
log:
  level: debug
  format: json
tasks:
  page_size: 25
  refetch_after_mutation: true
async:
  policy: reject
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yaml), 0600))

	cfg, err := Load(newViper(t, dir))
	require.NoError(t, err)
	assert.Equal(t, "https://tasks.example.com/api", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 25, cfg.Tasks.PageSize)
	assert.True(t, cfg.Tasks.RefetchAfterMutation)
	assert.Equal(t, "reject", cfg.Async.Policy)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("api_url: https://file.example.com\n"), 0600))
	t.Setenv("TASKDECK_API_URL", "https://env.example.com")
	t.Setenv("TASKDECK_TASKS_PAGE_SIZE", "50")

	cfg, err := Load(newViper(t, dir))
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.APIURL)
	assert.Equal(t, 50, cfg.Tasks.PageSize)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"api_url":         "not a url",
		"log.level":       "verbose",
		"storage.backend": "redis",
		"tasks.page_size": "0",
		"async.policy":    "queue",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			v := newViper(t, t.TempDir())
			v.Set(key, value)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(newViper(t, dir))
	require.NoError(t, err)
	cfg.APIURL = "https://tasks.example.com/api"
	cfg.Timeout = 5 * time.Second
	cfg.Tasks.PageSize = 20

	path, err := WriteFile(cfg, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)

	_, err = WriteFile(cfg, false)
	assert.Error(t, err, "existing file must not be replaced without overwrite")

	reloaded, err := Load(newViper(t, dir))
	require.NoError(t, err)
	assert.Equal(t, cfg.APIURL, reloaded.APIURL)
	assert.Equal(t, cfg.Timeout, reloaded.Timeout)
	assert.Equal(t, 20, reloaded.Tasks.PageSize)
}
