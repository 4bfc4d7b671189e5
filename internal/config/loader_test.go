package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/nodeshell/pkg/hooks"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.configPath)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "local", cfg.DefaultProfile)
		assert.NotEmpty(t, cfg.DataDir)
		assert.Equal(t, filepath.Join(cfg.DataDir, "nodeshell.log"), cfg.Logging.File)
	})

	t.Run("load config from file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")

		testConfig := `{
			"default_profile": "prod",
			"profiles": [
				{"name": "prod", "transport": "redis", "dsn": "redis://db:6379/1", "user_id": "ops", "read_only": true}
			],
			"shell": {
				"auto_save": true,
				"aliases": {"l": "ls -l"},
				"hooks": {
					"enabled": true,
					"entries": [{"id": "s", "event": "command.post", "command": "save", "script": "true", "timeout": "5s", "enabled": true}]
				}
			},
			"data_dir": "/var/lib/nodeshell"
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "prod", cfg.DefaultProfile)
		require.Len(t, cfg.Profiles, 1)
		assert.Equal(t, ProfileConfig{Name: "prod", Transport: "redis", DSN: "redis://db:6379/1", UserID: "ops", ReadOnly: true}, cfg.Profiles[0])
		assert.True(t, cfg.Shell.AutoSave)
		assert.Equal(t, map[string]string{"l": "ls -l"}, cfg.Shell.Aliases)
		require.Len(t, cfg.Shell.Hooks.Entries, 1)
		assert.Equal(t, 5*time.Second, cfg.Shell.Hooks.Entries[0].Timeout)
		assert.Equal(t, "/var/lib/nodeshell/nodeshell.log", cfg.Logging.File)

		// Defaults survive for sections the file leaves out
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, 1000, cfg.Shell.HistorySize)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid.json")
		require.NoError(t, os.WriteFile(configPath, []byte("invalid json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})

	t.Run("schema violation", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"profiles": [{"name": "x"}]}`), 0644))

		_, err := NewLoader(configPath).Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "transport")
	})

	t.Run("environment override", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"logging": {"level": "info"}}`), 0644))
		t.Setenv("NODESHELL_LOGGING_LEVEL", "debug")

		cfg, err := NewLoader(configPath).Load()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

func TestLoaderSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.json")
	loader := NewLoader(configPath)

	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.UpsertProfile(ProfileConfig{Name: "disk", Transport: "sqlite", DSN: filepath.Join(cfg.DataDir, "disk.db")})
	cfg.Shell.Hooks = HooksConfig{
		Enabled: true,
		Entries: []hooks.Hook{{ID: "h", Event: "cwd.changed", Script: "true", Timeout: time.Second, Enabled: true}},
	}

	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"disk", "local"}, loaded.ProfileNames())
	assert.Equal(t, cfg.DataDir, loaded.DataDir)
	require.Len(t, loaded.Shell.Hooks.Entries, 1)
	assert.Equal(t, time.Second, loaded.Shell.Hooks.Entries[0].Timeout)
}

func TestLoaderSave_RoundTrip(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "config.json"))
		require.NoError(t, loader.Save(DefaultConfig()))

		loaded, err := loader.Load()
		require.NoError(t, err)
		assert.Equal(t, []string{"local"}, loaded.ProfileNames())
		assert.Equal(t, "ls", loaded.Shell.Aliases["ll"])
		assert.Empty(t, loaded.Shell.Hooks.Entries)
	})

	t.Run("nil lists and maps", func(t *testing.T) {
		loader := NewLoader(filepath.Join(t.TempDir(), "config.json"))
		cfg := DefaultConfig()
		cfg.Shell.Aliases = nil
		cfg.Shell.Hooks.Entries = nil

		require.NoError(t, loader.Save(cfg))

		data, err := os.ReadFile(loader.GetConfigPath())
		require.NoError(t, err)
		assert.NotContains(t, string(data), "null")

		loaded, err := loader.Load()
		require.NoError(t, err)
		assert.Empty(t, loaded.Shell.Hooks.Entries)
	})
}

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}
