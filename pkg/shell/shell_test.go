package shell

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/harun/nodeshell/pkg/content"
	"github.com/harun/nodeshell/pkg/store"
	"github.com/harun/nodeshell/pkg/store/memstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// setupShell logs admin into a fresh memory repository. mutate adjusts the
// config before the shell is built.
func setupShell(t *testing.T, mutate func(*Config)) (*Shell, *bytes.Buffer) {
	t.Helper()
	repo := store.NewRepository(memstore.New(), zerolog.Nop())
	creds := content.Credentials{UserID: "admin"}
	sess, err := repo.Login(context.Background(), creds, "")
	require.NoError(t, err)

	out := &bytes.Buffer{}
	cfg := Config{
		Session:     sess,
		Credentials: creds,
		Profile:     "test",
		Out:         out,
		Logger:      zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	sh, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(sh.Close)
	return sh, out
}

// run executes lines in order, failing the test on the first error
func run(t *testing.T, sh *Shell, lines ...string) {
	t.Helper()
	for _, line := range lines {
		require.NoError(t, sh.Execute(context.Background(), line), line)
	}
}

// output executes line and returns only what it printed
func output(t *testing.T, sh *Shell, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	require.NoError(t, sh.Execute(context.Background(), line), line)
	return out.String()
}

func TestNew_RequiresSession(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestShell_Navigation(t *testing.T) {
	sh, out := setupShell(t, nil)
	run(t, sh, "mkdir /a", "mkdir /a/b", "mkdir c")

	assert.Equal(t, "/\n", output(t, sh, out, "pwd"))
	assert.Equal(t, "a/\nc/\n", output(t, sh, out, "ls"))

	run(t, sh, "cd a/b")
	assert.Equal(t, "/a/b\n", output(t, sh, out, "pwd"))

	run(t, sh, "cd ..")
	assert.Equal(t, "/a\n", output(t, sh, out, "pwd"))

	err := sh.Execute(context.Background(), "cd missing")
	assert.ErrorIs(t, err, content.ErrNotFound)
	assert.Equal(t, "/a", sh.Session().GetCwd())

	run(t, sh, "cd")
	assert.Equal(t, "/", sh.Session().GetCwd())
}

func TestShell_CdByIdentifier(t *testing.T) {
	sh, _ := setupShell(t, nil)
	run(t, sh, "mkdir /a", "mkdir /a/b")

	node, err := sh.Session().GetNode(context.Background(), "/a/b")
	require.NoError(t, err)

	run(t, sh, "cd "+node.Identifier)
	assert.Equal(t, "/a/b", sh.Session().GetCwd())
}

func TestShell_Properties(t *testing.T) {
	sh, out := setupShell(t, nil)
	run(t, sh,
		"mkdir /a",
		`set /a title "Hello world"`,
		"set -t Long /a count 42",
		"set /a tags x y",
		"set --multi /a single only",
	)

	assert.Equal(t, "Hello world\n", output(t, sh, out, "cat /a/title"))
	assert.Equal(t, "x\ny\n", output(t, sh, out, "cat /a/tags"))
	assert.Equal(t, "only\n", output(t, sh, out, "cat /a/single"))

	prop, err := sh.Session().GetProperty(context.Background(), "/a/count")
	require.NoError(t, err)
	assert.Equal(t, content.TypeLong, prop.Type)
	assert.Equal(t, "42", prop.Value())

	listing := output(t, sh, out, "ls /a")
	assert.Contains(t, listing, "title")
	assert.Contains(t, listing, "[x, y]")

	run(t, sh, "unset /a title")
	exists, err := sh.Session().PropertyExists(context.Background(), "/a/title")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, sh.Execute(context.Background(), "unset /a title"), content.ErrNotFound)
	assert.Error(t, sh.Execute(context.Background(), "cat /a"))
}

func TestShell_SetValidatesTypedValues(t *testing.T) {
	sh, _ := setupShell(t, nil)
	run(t, sh, "mkdir /a")

	tests := []struct {
		line string
		ok   bool
	}{
		{"set -t Long /a n 12", true},
		{"set -t Long /a n -5", true},
		{"set -t Long /a n twelve", false},
		{"set -t Double /a d 1.5", true},
		{"set -t Boolean /a b maybe", false},
		{"set -t Date /a when 2024-05-01T10:00:00Z", true},
		{"set -t Date /a when yesterday", false},
		{"set -t Path /a p relative/path", false},
		{"set -t Reference /a r not-a-uuid", false},
		{"set -t Unknown /a u v", false},
		{"set --type=boolean /a b true", true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			err := sh.Execute(context.Background(), tt.line)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, content.ErrConstraint)
		})
	}
}

func TestShell_UsageErrors(t *testing.T) {
	sh, _ := setupShell(t, nil)

	for _, line := range []string{"cat", "mv /a", "set /a name", "pwd extra", "ns prefix", "refresh --bogus"} {
		assert.ErrorIs(t, sh.Execute(context.Background(), line), ErrUsage, line)
	}

	err := sh.Execute(context.Background(), "frobnicate")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = Tokenize(`say "unterminated`)
	require.Error(t, err)
	assert.ErrorIs(t, sh.Execute(context.Background(), `set /a x "unterminated`), ErrUnterminatedQuote)
}

func TestShell_EndOfOptions(t *testing.T) {
	ctx := context.Background()
	sh, out := setupShell(t, nil)
	run(t, sh, "mkdir /n")

	assert.ErrorIs(t, sh.Execute(ctx, "set /n note -draft"), ErrUsage)

	run(t, sh, "set -t String /n note -- -draft")
	assert.Equal(t, "-draft\n", output(t, sh, out, "cat /n/note"))

	run(t, sh, "set -m /n tags -- -a -b")
	assert.Equal(t, "-a\n-b\n", output(t, sh, out, "cat /n/tags"))

	run(t, sh, "cd -- /n")
	assert.Equal(t, "/n\n", output(t, sh, out, "pwd"))

	assert.ErrorIs(t, sh.Execute(ctx, "refresh -- --keep"), ErrUsage)
}

func TestShell_MoveInfersTargetAndFollowsCwd(t *testing.T) {
	ctx := context.Background()
	sh, _ := setupShell(t, nil)
	run(t, sh, "mkdir /a", "mkdir /a/b", "mkdir /c", "cd /a/b")

	run(t, sh, "mv /a /c")

	exists, err := sh.Session().NodeExists(ctx, "/c/a/b")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "/c/a/b", sh.Session().GetCwd())

	run(t, sh, "mv /c/a /renamed")
	assert.Equal(t, "/renamed/b", sh.Session().GetCwd())
}

func TestShell_RemoveResetsCwd(t *testing.T) {
	sh, _ := setupShell(t, nil)
	run(t, sh, "mkdir /a", "mkdir /a/b", "cd /a/b")

	run(t, sh, "rm /a")
	assert.Equal(t, "/", sh.Session().GetCwd())

	run(t, sh, "mkdir /x")
	node, err := sh.Session().GetNode(context.Background(), "/x")
	require.NoError(t, err)
	run(t, sh, "rm "+node.Identifier)

	exists, err := sh.Session().NodeExists(context.Background(), "/x")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestShell_CopyIsPersistedImmediately(t *testing.T) {
	sh, _ := setupShell(t, nil)
	run(t, sh, "mkdir /a", "mkdir /a/b", "mkdir /c", "save")

	run(t, sh, "cp /a /c")
	assert.False(t, sh.Session().HasPendingChanges())

	node, err := sh.Session().GetNode(context.Background(), "/c/a")
	require.NoError(t, err)
	assert.True(t, node.HasNode("b"))
}

func TestShell_Find(t *testing.T) {
	sh, out := setupShell(t, nil)
	run(t, sh, "mkdir /a", "mkdir /a/b", "mkdir /a/c", "mkdir /d", "cd /a")

	assert.Equal(t, "/a/b\n/a/c\n", output(t, sh, out, "find *"))
	assert.Equal(t, "/a/b\n", output(t, sh, out, "find /**/b"))

	node, err := sh.Session().GetNode(context.Background(), "/d")
	require.NoError(t, err)
	assert.Equal(t, "/d\n", output(t, sh, out, "find "+node.Identifier))
}

func TestShell_SaveRefreshStatus(t *testing.T) {
	sh, out := setupShell(t, nil)

	assert.Equal(t, "nothing to save\n", output(t, sh, out, "save"))

	run(t, sh, "mkdir /a")
	assert.Contains(t, output(t, sh, out, "status"), "Pending changes  yes")
	assert.Equal(t, "saved\n", output(t, sh, out, "save"))

	status := output(t, sh, out, "status")
	assert.Contains(t, status, "Pending changes  no")
	assert.Contains(t, status, "Transport        memory")
	assert.Contains(t, status, "Profile          test")

	run(t, sh, "mkdir /tmp", "refresh --keep")
	assert.True(t, sh.Session().HasPendingChanges())
	run(t, sh, "refresh")
	assert.False(t, sh.Session().HasPendingChanges())
}

func TestShell_InfoAndWhoami(t *testing.T) {
	sh, out := setupShell(t, func(cfg *Config) {
		cfg.Credentials.Attributes = map[string]string{"team": "docs"}
	})
	run(t, sh, "mkdir -t nt:folder /a")

	info := output(t, sh, out, "info /a")
	assert.Contains(t, info, "Path        /a")
	assert.Contains(t, info, "Type        nt:folder")
	assert.Contains(t, info, "Writable    yes")

	assert.True(t, strings.HasPrefix(output(t, sh, out, "whoami"), "admin\n"))
}

func TestShell_ExportImport(t *testing.T) {
	sh, out := setupShell(t, nil)
	file := filepath.Join(t.TempDir(), "a.yaml")
	run(t, sh, "mkdir /a", "mkdir /a/b", "set /a title A", "mkdir /copy", "save")

	assert.Contains(t, output(t, sh, out, "export /a"), "name: a")
	assert.NotContains(t, output(t, sh, out, "export --shallow /a"), "name: b")

	run(t, sh, "export /a "+file)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "title")

	run(t, sh, "import /copy "+file)
	node, err := sh.Session().GetNode(context.Background(), "/copy/a")
	require.NoError(t, err)
	assert.True(t, node.HasNode("b"))

	assert.Error(t, sh.Execute(context.Background(), "import /copy "+filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestShell_Workspaces(t *testing.T) {
	sh, out := setupShell(t, nil)
	run(t, sh, "mkdir /a", "save", "cd /a")

	run(t, sh, "ws --create staging")
	assert.Equal(t, "* default\n  staging\n", output(t, sh, out, "ws"))

	run(t, sh, "mkdir /pending")
	assert.ErrorIs(t, sh.Execute(context.Background(), "ws staging"), ErrPendingChanges)
	run(t, sh, "refresh")

	var changes []WorkspacePayload
	sh.Events().On(EventWorkspaceChanged, func(ctx context.Context, payload interface{}) {
		changes = append(changes, payload.(WorkspacePayload))
	})

	run(t, sh, "ws staging")
	assert.Equal(t, "staging", sh.Session().GetWorkspace().Name())
	assert.Equal(t, "/", sh.Session().GetCwd())
	require.Len(t, changes, 1)
	assert.Equal(t, "default", changes[0].From)
	assert.Equal(t, "staging", changes[0].To)

	assert.ErrorIs(t, sh.Execute(context.Background(), "ws missing"), content.ErrNoSuchWorkspace)
	assert.Equal(t, "staging", sh.Session().GetWorkspace().Name())
}

func TestShell_Namespaces(t *testing.T) {
	sh, out := setupShell(t, nil)

	run(t, sh, "ns ex http://example.com/ns")
	listing := output(t, sh, out, "ns")
	assert.Contains(t, listing, "ex")
	assert.Contains(t, listing, "http://example.com/ns")
	assert.Contains(t, listing, "nt")
}

func TestShell_Complete(t *testing.T) {
	sh, out := setupShell(t, func(cfg *Config) { cfg.PrefixCompletion = true })
	run(t, sh, "mkdir /alpha", "mkdir /beta", "set / about x")

	assert.Equal(t, "alpha\nabout\n", output(t, sh, out, "complete a"))
	assert.Equal(t, "alpha\nbeta\nabout\n", output(t, sh, out, "complete"))
}

func TestShell_Help(t *testing.T) {
	sh, out := setupShell(t, nil)

	listing := output(t, sh, out, "help")
	assert.Contains(t, listing, "cd [path|identifier]")
	assert.Contains(t, listing, "Leave the shell")
	assert.Equal(t, 1, strings.Count(listing, "exit"))

	assert.Contains(t, output(t, sh, out, "help quit"), "aliases: quit")
	assert.ErrorIs(t, sh.Execute(context.Background(), "help nope"), ErrUnknownCommand)
}

func TestShell_Aliases(t *testing.T) {
	sh, out := setupShell(t, func(cfg *Config) {
		cfg.Aliases = map[string]string{"ll": "ls /a", "mk": "mkdir -t nt:folder"}
	})
	run(t, sh, "mkdir /a", "mk /a/docs")

	assert.Equal(t, "docs/\n", output(t, sh, out, "ll"))
	node, err := sh.Session().GetNode(context.Background(), "/a/docs")
	require.NoError(t, err)
	assert.Equal(t, content.NodeTypeFolder, node.PrimaryType)
}

func TestShell_AutoSave(t *testing.T) {
	sh, _ := setupShell(t, func(cfg *Config) { cfg.AutoSave = true })

	run(t, sh, "mkdir /a")
	assert.False(t, sh.Session().HasPendingChanges())

	// Failed commands are not saved
	assert.Error(t, sh.Execute(context.Background(), "mkdir /missing/child"))
	assert.False(t, sh.Session().HasPendingChanges())
}

func TestShell_ReadOnly(t *testing.T) {
	repo := store.NewRepository(memstore.New(), zerolog.Nop())
	creds := content.Credentials{UserID: "viewer", ReadOnly: true}
	sess, err := repo.Login(context.Background(), creds, "")
	require.NoError(t, err)

	sh, err := New(Config{Session: sess, Credentials: creds, Out: &bytes.Buffer{}, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer sh.Close()

	assert.ErrorIs(t, sh.Execute(context.Background(), "mkdir /a"), content.ErrAccessDenied)
	assert.NoError(t, sh.Execute(context.Background(), "ls"))
}

func TestShell_CwdChangedEvent(t *testing.T) {
	sh, _ := setupShell(t, nil)
	run(t, sh, "mkdir /a")

	var moves []CwdPayload
	sh.Events().On(EventCwdChanged, func(ctx context.Context, payload interface{}) {
		moves = append(moves, payload.(CwdPayload))
	})

	run(t, sh, "cd /a", "cd /a", "cd ..")
	require.Len(t, moves, 2)
	assert.Equal(t, CwdPayload{Command: "cd", From: "/", To: "/a", Timestamp: moves[0].Timestamp}, moves[0])
	assert.Equal(t, "/", moves[1].To)
}

func TestShell_Prompt(t *testing.T) {
	sh, _ := setupShell(t, nil)
	assert.Equal(t, "admin@default:/> ", sh.Prompt())

	custom, _ := setupShell(t, func(cfg *Config) { cfg.Prompt = "[{profile}] {cwd} $ " })
	assert.Equal(t, "[test] / $ ", custom.Prompt())
}

func TestShell_Run(t *testing.T) {
	sh, out := setupShell(t, nil)

	script := strings.Join([]string{
		"mkdir /a",
		"# comments are ignored",
		"",
		"cd /missing",
		"cd /a",
		"pwd",
		"exit",
		"pwd",
	}, "\n")

	require.NoError(t, sh.Run(context.Background(), strings.NewReader(script)))
	assert.True(t, sh.Exited())

	text := out.String()
	assert.Contains(t, text, "error: ")
	assert.Equal(t, 1, strings.Count(text, "/a\n"))
	assert.Contains(t, text, "warning: unsaved changes were not saved")
	assert.Contains(t, text, "admin@default:/a> ")
}

func TestShell_RunStopsAtEOF(t *testing.T) {
	sh, out := setupShell(t, nil)

	require.NoError(t, sh.Run(context.Background(), strings.NewReader("mkdir /a\nsave\n")))
	assert.False(t, sh.Exited())
	assert.NotContains(t, out.String(), "warning")
}

func TestShell_RunHonorsCancellation(t *testing.T) {
	sh, _ := setupShell(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sh.Run(ctx, strings.NewReader("pwd\n")), context.Canceled)
}

func TestShell_History(t *testing.T) {
	history, err := NewHistory(t.TempDir(), 0, zerolog.Nop())
	require.NoError(t, err)

	sh, out := setupShell(t, func(cfg *Config) { cfg.History = history })
	run(t, sh, "mkdir /a", "cd /a")
	assert.Error(t, sh.Execute(context.Background(), "cd /missing"))

	assert.Equal(t, "    2  cd /a\n    3  cd /missing\n", output(t, sh, out, "history 2"))
	assert.ErrorIs(t, sh.Execute(context.Background(), "history zero"), ErrUsage)

	entries, err := history.Load(context.Background(), "test")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "/", entries[0].Cwd)
	assert.Equal(t, "/a", entries[1].Cwd)
	assert.Equal(t, "failure", entries[2].Status)
	assert.Equal(t, "default", entries[2].Workspace)

	run(t, sh, "history --clear")
	entries, err = history.Load(context.Background(), "test")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestShell_HistoryDisabled(t *testing.T) {
	sh, _ := setupShell(t, nil)
	assert.Error(t, sh.Execute(context.Background(), "history"))
}

func TestShell_RegisterRejectsDuplicates(t *testing.T) {
	sh, _ := setupShell(t, nil)

	err := sh.Register(&Command{Name: "ls", Run: runPwd})
	assert.Error(t, err)
	assert.Error(t, sh.Register(&Command{Name: "noop"}))

	require.NoError(t, sh.Register(&Command{Name: "noop", MaxArgs: -1, Run: func(ctx context.Context, s *Shell, args []string) error {
		return nil
	}}))
	assert.NoError(t, sh.Execute(context.Background(), "noop a b c"))
}
