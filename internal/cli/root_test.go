package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags clears flag values left behind by a previous Execute
func resetFlags() {
	cfgFile, logLevel, profileName, metricsAddr = "", "", "", ""
	execFile, execSave, execKeepErr = "", false, false

	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

// runCLI executes the root command and returns stdout and stderr
func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	cmd := GetRootCmd()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// writeConfig writes a config file whose data directory lives in a temp dir.
// profiles is the JSON array of profiles.
func writeConfig(t *testing.T, profiles string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	path := filepath.Join(dir, "nodeshell.json")

	doc := `{
		"default_profile": "local",
		"profiles": ` + profiles + `,
		"data_dir": "` + dataDir + `"
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path, dataDir
}

const localProfile = `[{"name": "local", "transport": "memory", "user_id": "admin"}]`

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		out, _, err := runCLI(t, "", "--version")
		require.NoError(t, err)

		assert.Contains(t, out, "nodeshell version")
		assert.Contains(t, out, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		out, _, err := runCLI(t, "", "--help")
		require.NoError(t, err)

		assert.Contains(t, out, "content repository")
		for _, sub := range []string{"shell", "exec", "profile", "configure", "transports"} {
			assert.Contains(t, out, sub)
		}
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		for _, name := range []string{"config", "log-level", "profile", "metrics-addr"} {
			flag := cmd.PersistentFlags().Lookup(name)
			require.NotNil(t, flag, name)
			assert.Equal(t, "", flag.DefValue)
		}
		assert.Equal(t, "p", cmd.PersistentFlags().Lookup("profile").Shorthand)
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}

func TestTransportsCommand(t *testing.T) {
	out, _, err := runCLI(t, "", "transports")
	require.NoError(t, err)
	assert.Equal(t, "memory\nredis\nsqlite\n", out)
}

func TestProfileCommands(t *testing.T) {
	path, _ := writeConfig(t, `[
		{"name": "local", "transport": "memory", "user_id": "admin"},
		{"name": "disk", "transport": "sqlite", "dsn": "/tmp/disk.db", "workspace": "drafts", "read_only": true, "attributes": {"team": "docs"}}
	]`)

	t.Run("list", func(t *testing.T) {
		out, _, err := runCLI(t, "", "--config", path, "profile", "list")
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "NAME")
		assert.Contains(t, lines[1], "disk")
		assert.Contains(t, lines[1], "drafts")
		assert.True(t, strings.HasPrefix(lines[2], "*"))
		assert.Contains(t, lines[2], "local")
	})

	t.Run("show named", func(t *testing.T) {
		out, _, err := runCLI(t, "", "--config", path, "profile", "show", "disk")
		require.NoError(t, err)

		assert.Contains(t, out, "sqlite")
		assert.Contains(t, out, "/tmp/disk.db")
		assert.Contains(t, out, "true")
		assert.Contains(t, out, "team=docs")
	})

	t.Run("show default", func(t *testing.T) {
		out, _, err := runCLI(t, "", "--config", path, "profile", "show")
		require.NoError(t, err)
		assert.Contains(t, out, "memory")
		assert.NotContains(t, out, "DSN")
	})

	t.Run("show unknown", func(t *testing.T) {
		_, _, err := runCLI(t, "", "--config", path, "profile", "show", "staging")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk, local")
	})
}

func TestInvalidConfiguration(t *testing.T) {
	path, _ := writeConfig(t, `[{"name": "local", "transport": "ftp"}]`)

	_, _, err := runCLI(t, "", "--config", path, "exec", "pwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "ftp")
}
