package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecCommand(t *testing.T) {
	path, _ := writeConfig(t, localProfile)

	t.Run("runs lines in order", func(t *testing.T) {
		out, stderr, err := runCLI(t, "", "--config", path, "exec",
			"mkdir /a", "cd /a", "set . title hello", "cat title", "pwd")
		require.NoError(t, err)

		assert.Equal(t, "hello\n/a\n", out)
		assert.Contains(t, stderr, "unsaved changes were not saved")
	})

	t.Run("stops at the first failing line", func(t *testing.T) {
		out, _, err := runCLI(t, "", "--config", path, "exec", "cd /missing", "pwd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 1 (cd /missing)")
		assert.Empty(t, out)
	})

	t.Run("keep going reports every failure", func(t *testing.T) {
		out, stderr, err := runCLI(t, "", "--config", path, "exec", "-k", "cd /missing", "bogus", "pwd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2 of 3 lines failed")
		assert.Contains(t, stderr, "line 2: error: unknown command")
		assert.Equal(t, "/\n", out)
	})

	t.Run("script from stdin", func(t *testing.T) {
		script := "# build a tree\nmkdir /docs\n\nls /\n"
		out, _, err := runCLI(t, script, "--config", path, "exec", "--file", "-")
		require.NoError(t, err)
		assert.Equal(t, "docs/\n", out)
	})

	t.Run("script file", func(t *testing.T) {
		script := filepath.Join(t.TempDir(), "setup.nsh")
		require.NoError(t, os.WriteFile(script, []byte("whoami\n"), 0644))

		out, _, err := runCLI(t, "", "--config", path, "exec", "-f", script)
		require.NoError(t, err)
		assert.Equal(t, "admin\n", out)
	})

	t.Run("missing script", func(t *testing.T) {
		_, _, err := runCLI(t, "", "--config", path, "exec", "-f", filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("no lines", func(t *testing.T) {
		_, _, err := runCLI(t, "", "--config", path, "exec")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no command lines")
	})

	t.Run("exit stops execution", func(t *testing.T) {
		out, _, err := runCLI(t, "", "--config", path, "exec", "pwd", "exit", "pwd")
		require.NoError(t, err)
		assert.Equal(t, "/\n", out)
	})

	t.Run("unknown profile", func(t *testing.T) {
		_, _, err := runCLI(t, "", "--config", path, "--profile", "staging", "exec", "pwd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "staging")
	})
}

func TestExecCommand_SavePersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "content.db")
	path, _ := writeConfig(t, `[
		{"name": "local", "transport": "memory"},
		{"name": "disk", "transport": "sqlite", "dsn": "`+dbPath+`", "user_id": "editor"}
	]`)

	_, stderr, err := runCLI(t, "", "--config", path, "-p", "disk", "exec", "--save",
		"mkdir /site", "set /site title 'Home page'")
	require.NoError(t, err)
	assert.Empty(t, stderr)

	out, _, err := runCLI(t, "", "--config", path, "-p", "disk", "exec", "cat /site/title", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Home page\neditor\n", out)
}

func TestExecCommand_ReadOnlyProfile(t *testing.T) {
	path, _ := writeConfig(t, `[{"name": "local", "transport": "memory", "read_only": true}]`)

	_, _, err := runCLI(t, "", "--config", path, "exec", "mkdir /a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}
