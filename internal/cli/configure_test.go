package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/nodeshell/internal/config"
)

func TestConfigureCommand(t *testing.T) {
	t.Run("help text", func(t *testing.T) {
		out, _, err := runCLI(t, "", "configure", "--help")
		require.NoError(t, err)
		assert.Contains(t, out, "interactive configuration wizard")
	})

	t.Run("adds a profile to a new config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "conf", "nodeshell.json")
		answers := "disk\nsqlite\n/tmp/disk.db\ndrafts\neditor\nn\ny\n"

		out, _, err := runCLI(t, answers, "--config", path, "configure")
		require.NoError(t, err)
		assert.Contains(t, out, "Profile disk saved.")
		assert.Contains(t, out, "Configuration saved to: "+path)

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "disk", cfg.DefaultProfile)
		assert.Equal(t, []string{"disk", "local"}, cfg.ProfileNames())

		p, err := cfg.Profile("disk")
		require.NoError(t, err)
		assert.Equal(t, config.ProfileConfig{Name: "disk", Transport: "sqlite", DSN: "/tmp/disk.db", Workspace: "drafts", UserID: "editor"}, *p)

		// The saved file is usable by later commands
		out, _, err = runCLI(t, "", "--config", path, "profile", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "disk")
	})

	t.Run("aborted wizard saves nothing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nodeshell.json")

		_, _, err := runCLI(t, "disk\n", "--config", path, "configure")
		require.Error(t, err)
		assert.NoFileExists(t, path)
	})
}
