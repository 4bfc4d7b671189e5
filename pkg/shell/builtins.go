package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/harun/nodeshell/pkg/content"
	"github.com/harun/nodeshell/pkg/store"
)

const defaultHistoryLimit = 20

func builtinCommands() []*Command {
	return []*Command{
		{Name: "pwd", Usage: "pwd", Summary: "Print the working location", Run: runPwd},
		{Name: "cd", Usage: "cd [path|identifier]", Summary: "Change the working location", MaxArgs: 1, Run: runCd},
		{Name: "ls", Usage: "ls [path|identifier]", Summary: "List child nodes and properties", MaxArgs: 1, Run: runLs},
		{Name: "info", Usage: "info [path|identifier]", Summary: "Show node details", MaxArgs: 1, Run: runInfo},
		{Name: "cat", Usage: "cat <property-path>", Summary: "Print a property value", MinArgs: 1, MaxArgs: 1, Run: runCat},
		{Name: "mkdir", Usage: "mkdir [-t type] <path> [type]", Summary: "Add a node", MinArgs: 1, MaxArgs: 2,
			Options: []string{"-t", "--type"}, Mutating: true, Run: runMkdir},
		{Name: "set", Usage: "set [-t type] [-m] <node> <name> <value...>", Summary: "Set a property", MinArgs: 3, MaxArgs: -1,
			Options: []string{"-t", "--type"}, Flags: []string{"-m", "--multi"}, Mutating: true, Run: runSet},
		{Name: "unset", Usage: "unset <node> <name>", Summary: "Remove a property", MinArgs: 2, MaxArgs: 2, Mutating: true, Run: runUnset},
		{Name: "mv", Usage: "mv <src> <dest>", Summary: "Move a node", MinArgs: 2, MaxArgs: 2, Mutating: true, Run: runMv},
		{Name: "cp", Usage: "cp <src> <dest>", Summary: "Copy a saved subtree (persisted immediately)", MinArgs: 2, MaxArgs: 2, Mutating: true, Run: runCp},
		{Name: "rm", Usage: "rm <path|identifier...>", Summary: "Remove nodes or properties", MinArgs: 1, MaxArgs: -1, Mutating: true, Run: runRm},
		{Name: "find", Usage: "find <pattern|identifier>", Summary: "Find nodes by glob (* ? **) or identifier", MinArgs: 1, MaxArgs: 1, Run: runFind},
		{Name: "save", Usage: "save", Summary: "Persist pending changes", Run: runSave},
		{Name: "refresh", Usage: "refresh [--keep]", Summary: "Reload saved state, discarding changes unless --keep",
			Flags: []string{"-k", "--keep"}, Run: runRefresh},
		{Name: "status", Usage: "status", Summary: "Show session status", Run: runStatus},
		{Name: "export", Usage: "export [--shallow] <path> [file]", Summary: "Export a subtree as YAML", MinArgs: 1, MaxArgs: 2,
			Flags: []string{"--shallow"}, Run: runExport},
		{Name: "import", Usage: "import <parent> <file>", Summary: "Import a YAML subtree", MinArgs: 2, MaxArgs: 2, Mutating: true, Run: runImport},
		{Name: "ws", Usage: "ws [name] | ws --create <name>", Summary: "List, switch or create workspaces", MaxArgs: 1,
			Flags: []string{"-c", "--create"}, Run: runWs},
		{Name: "ns", Usage: "ns [prefix uri]", Summary: "List or register namespaces", MaxArgs: 2, Run: runNs},
		{Name: "whoami", Usage: "whoami", Summary: "Show the session user", Run: runWhoami},
		{Name: "complete", Usage: "complete [text]", Summary: "Complete names at the working location", MaxArgs: 1, Run: runComplete},
		{Name: "history", Usage: "history [n] | history --clear", Summary: "Show recent commands", MaxArgs: 1,
			Flags: []string{"--clear"}, Run: runHistory},
		{Name: "help", Usage: "help [command]", Summary: "Show help", MaxArgs: 1, Run: runHelp},
		{Name: "exit", Aliases: []string{"quit"}, Usage: "exit", Summary: "Leave the shell", Run: runExit},
	}
}

func runPwd(ctx context.Context, s *Shell, args []string) error {
	fmt.Fprintln(s.out, s.session.GetCwd())
	return nil
}

func runCd(ctx context.Context, s *Shell, args []string) error {
	target := content.Root
	if len(args) == 1 {
		target = args[0]
	}
	from := s.session.GetCwd()
	if err := s.session.Chdir(ctx, target); err != nil {
		return err
	}
	s.emitCwdChange(ctx, "cd", from)
	return nil
}

func runLs(ctx context.Context, s *Shell, args []string) error {
	node, err := s.session.GetNodeByPathOrIdentifier(ctx, argOr(args, "."))
	if err != nil {
		return err
	}
	return writeListing(s.out, node)
}

func runInfo(ctx context.Context, s *Shell, args []string) error {
	node, err := s.session.GetNodeByPathOrIdentifier(ctx, argOr(args, "."))
	if err != nil {
		return err
	}
	writable, err := s.session.HasPermission(ctx, node.Path,
		strings.Join([]string{content.ActionAddNode, content.ActionSetProperty, content.ActionRemove}, ","))
	if err != nil {
		return err
	}
	return writeInfo(s.out, node, writable)
}

func runCat(ctx context.Context, s *Shell, args []string) error {
	item, err := s.session.GetItem(ctx, args[0])
	if err != nil {
		return err
	}
	prop, ok := item.(*content.Property)
	if !ok {
		return fmt.Errorf("%s is a node", item.ItemPath())
	}
	if !prop.Multiple {
		fmt.Fprintln(s.out, prop.Value())
		return nil
	}
	for _, v := range prop.Values {
		fmt.Fprintln(s.out, v)
	}
	return nil
}

func runMkdir(ctx context.Context, s *Shell, args []string) error {
	cmd := s.commands["mkdir"]
	typ, rest, err := takeOption(args, "-t", "--type")
	if err != nil {
		return err
	}
	if rest, err = rejectFlags(cmd, rest); err != nil {
		return err
	}
	if len(rest) == 2 {
		typ = rest[1]
	}
	if typ == "" {
		typ = content.NodeTypeUnstructured
	}

	abs := s.session.GetAbsPath(rest[0])
	if abs == content.Root {
		return content.PathError("add node", abs, content.ErrItemExists)
	}
	_, err = s.session.AddNode(ctx, content.Parent(abs), content.Base(abs), typ)
	return err
}

func runSet(ctx context.Context, s *Shell, args []string) error {
	cmd := s.commands["set"]
	typeName, rest, err := takeOption(args, "-t", "--type")
	if err != nil {
		return err
	}
	multi, rest := takeFlag(rest, "-m", "--multi")
	if rest, err = rejectFlags(cmd, rest); err != nil {
		return err
	}
	if len(rest) < 3 {
		return cmd.usageError()
	}

	typ := content.TypeString
	if typeName != "" {
		if typ, err = content.ParsePropertyType(typeName); err != nil {
			return fmt.Errorf("%w: %v", content.ErrConstraint, err)
		}
	}
	values := rest[2:]
	for _, v := range values {
		if err := validateValue(typ, v); err != nil {
			return err
		}
	}

	prop := content.NewProperty(rest[1], typ, values[0])
	if multi || len(values) > 1 {
		prop = content.NewMultiProperty(rest[1], typ, values...)
	}
	return s.session.SetProperty(ctx, rest[0], prop)
}

func runUnset(ctx context.Context, s *Shell, args []string) error {
	propPath := content.Join(s.session.GetAbsPath(args[0]), args[1])
	exists, err := s.session.PropertyExists(ctx, propPath)
	if err != nil {
		return err
	}
	if !exists {
		return content.PathError("unset", propPath, content.ErrNotFound)
	}
	return s.session.RemoveItem(ctx, propPath)
}

func runMv(ctx context.Context, s *Shell, args []string) error {
	from := s.session.GetCwd()
	src := s.session.GetAbsPath(args[0])
	dest, err := s.session.GetAbsTargetPath(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if err := s.session.GetSession().Move(ctx, src, dest); err != nil {
		return err
	}
	if from == src || content.IsDescendant(from, src) {
		s.session.SetCwd(content.Rebase(from, src, dest))
		s.emitCwdChange(ctx, "mv", from)
	}
	return nil
}

func runCp(ctx context.Context, s *Shell, args []string) error {
	src := s.session.GetAbsPath(args[0])
	dest, err := s.session.GetAbsTargetPath(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return s.session.GetWorkspace().Copy(ctx, src, dest)
}

func runRm(ctx context.Context, s *Shell, args []string) error {
	for _, arg := range args {
		path := s.session.GetAbsPath(arg)
		if content.IsIdentifier(arg) {
			node, err := s.session.GetNodeByIdentifier(ctx, arg)
			if err != nil {
				return err
			}
			path = node.Path
		}
		if err := s.session.RemoveItem(ctx, path); err != nil {
			return err
		}

		from := s.session.GetCwd()
		if from == path || content.IsDescendant(from, path) {
			s.session.SetCwd(content.Parent(path))
			s.emitCwdChange(ctx, "rm", from)
		}
	}
	return nil
}

func runFind(ctx context.Context, s *Shell, args []string) error {
	nodes, err := s.session.FindNodes(ctx, args[0])
	if err != nil {
		return err
	}
	for _, node := range nodes {
		fmt.Fprintln(s.out, node.Path)
	}
	return nil
}

func runSave(ctx context.Context, s *Shell, args []string) error {
	if !s.session.HasPendingChanges() {
		fmt.Fprintln(s.out, "nothing to save")
		return nil
	}
	if err := s.session.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "saved")
	return nil
}

func runRefresh(ctx context.Context, s *Shell, args []string) error {
	keep, rest := takeFlag(args, "-k", "--keep")
	if _, err := rejectFlags(s.commands["refresh"], rest); err != nil {
		return err
	}
	return s.session.Refresh(ctx, keep)
}

func runStatus(ctx context.Context, s *Shell, args []string) error {
	repo := s.session.GetRepository()
	return writeFields(s.out, [][2]string{
		{"Profile", s.profile},
		{"User", s.session.GetUserID()},
		{"Workspace", s.session.GetWorkspace().Name()},
		{"Cwd", s.session.GetCwd()},
		{"Transport", repo.Descriptor(store.DescTransport)},
		{"Repository", repo.Descriptor(store.DescRepositoryName) + " " + repo.Descriptor(store.DescRepositoryVersion)},
		{"Read-only", yesNo(s.creds.ReadOnly)},
		{"Pending changes", yesNo(s.session.HasPendingChanges())},
	})
}

func runExport(ctx context.Context, s *Shell, args []string) (err error) {
	shallow, rest := takeFlag(args, "--shallow")
	if rest, err = rejectFlags(s.commands["export"], rest); err != nil {
		return err
	}

	var w io.Writer = s.out
	if len(rest) == 2 {
		f, err := os.Create(rest[1])
		if err != nil {
			return fmt.Errorf("failed to create export file: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close export file: %w", cerr)
			}
		}()
		w = f
	}
	return s.session.ExportTree(ctx, rest[0], w, !shallow)
}

func runImport(ctx context.Context, s *Shell, args []string) error {
	f, err := os.Open(args[1])
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()
	return s.session.ImportTree(ctx, args[0], f)
}

func runWs(ctx context.Context, s *Shell, args []string) error {
	create, rest := takeFlag(args, "-c", "--create")
	rest, err := rejectFlags(s.commands["ws"], rest)
	if err != nil {
		return err
	}

	if create {
		if len(rest) != 1 {
			return s.commands["ws"].usageError()
		}
		if err := s.session.GetWorkspace().CreateWorkspace(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "created workspace %s\n", rest[0])
		return nil
	}

	if len(rest) == 1 {
		return s.switchWorkspace(ctx, rest[0])
	}

	names, err := s.session.GetWorkspace().AccessibleWorkspaceNames(ctx)
	if err != nil {
		return err
	}
	current := s.session.GetWorkspace().Name()
	for _, name := range names {
		marker := " "
		if name == current {
			marker = "*"
		}
		fmt.Fprintf(s.out, "%s %s\n", marker, name)
	}
	return nil
}

// switchWorkspace logs into another workspace with the shell's credentials.
// The working location is kept when it exists there, otherwise it resets to root.
func (s *Shell) switchWorkspace(ctx context.Context, name string) error {
	current := s.session.GetWorkspace().Name()
	if name == current {
		return nil
	}
	if s.session.HasPendingChanges() {
		return fmt.Errorf("%w: save or refresh before switching workspaces", ErrPendingChanges)
	}

	next, err := s.session.GetRepository().Login(ctx, s.creds, name)
	if err != nil {
		return err
	}

	old := s.session.GetSession()
	from := s.session.GetCwd()
	s.session.SetSession(next)
	old.Logout()

	if exists, err := s.session.NodeExists(ctx, from); err != nil || !exists {
		s.session.SetCwd(content.Root)
	}

	s.logger.Info().Str("from", current).Str("to", name).Msg("Switched workspace")
	s.events.Emit(ctx, EventWorkspaceChanged, WorkspacePayload{Command: "ws", From: current, To: name, Timestamp: time.Now()})
	s.emitCwdChange(ctx, "ws", from)
	return nil
}

func runNs(ctx context.Context, s *Shell, args []string) error {
	switch len(args) {
	case 2:
		return s.session.GetWorkspace().RegisterNamespace(ctx, args[0], args[1])
	case 1:
		return s.commands["ns"].usageError()
	}

	prefixes, err := s.session.GetNamespacePrefixes(ctx)
	if err != nil {
		return err
	}
	sort.Strings(prefixes)
	rows := make([][2]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		uri, err := s.session.GetNamespaceURI(ctx, prefix)
		if err != nil {
			return err
		}
		rows = append(rows, [2]string{prefix, uri})
	}
	return writeFields(s.out, rows)
}

func runWhoami(ctx context.Context, s *Shell, args []string) error {
	fmt.Fprintln(s.out, s.session.GetUserID())
	names := s.session.GetAttributeNames()
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(s.out, "  %s=%s\n", name, s.session.GetAttribute(name))
	}
	return nil
}

func runComplete(ctx context.Context, s *Shell, args []string) error {
	names, ok := s.session.Autocomplete(ctx, argOr(args, ""))
	if !ok {
		return fmt.Errorf("no completions: working location %s is not readable", s.session.GetCwd())
	}
	for _, name := range names {
		fmt.Fprintln(s.out, name)
	}
	return nil
}

func runHistory(ctx context.Context, s *Shell, args []string) error {
	if s.history == nil {
		return fmt.Errorf("history is disabled")
	}
	clearAll, rest := takeFlag(args, "--clear")
	rest, err := rejectFlags(s.commands["history"], rest)
	if err != nil {
		return err
	}
	if clearAll {
		return s.history.Clear(s.profile)
	}

	limit := defaultHistoryLimit
	if len(rest) == 1 {
		n, err := strconv.Atoi(rest[0])
		if err != nil || n <= 0 {
			return s.commands["history"].usageError()
		}
		limit = n
	}

	entries, err := s.history.Load(ctx, s.profile)
	if err != nil {
		return err
	}
	start := 0
	if len(entries) > limit {
		start = len(entries) - limit
	}
	for i := start; i < len(entries); i++ {
		fmt.Fprintf(s.out, "%5d  %s\n", i+1, entries[i].Line)
	}
	return nil
}

func runHelp(ctx context.Context, s *Shell, args []string) error {
	if len(args) == 1 {
		cmd, ok := s.commands[args[0]]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
		}
		fmt.Fprintf(s.out, "%s\n  %s\n", cmd.Usage, cmd.Summary)
		if len(cmd.Aliases) > 0 {
			fmt.Fprintf(s.out, "  aliases: %s\n", strings.Join(cmd.Aliases, ", "))
		}
		return nil
	}

	rows := make([][2]string, 0, len(s.names))
	for _, name := range s.names {
		cmd := s.commands[name]
		rows = append(rows, [2]string{cmd.Usage, cmd.Summary})
	}
	return writeFields(s.out, rows)
}

func runExit(ctx context.Context, s *Shell, args []string) error {
	s.exited = true
	return nil
}

func argOr(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fallback
}

// validateValue checks a raw value against the property type
func validateValue(typ content.PropertyType, v string) error {
	var err error
	switch typ {
	case content.TypeLong:
		_, err = strconv.ParseInt(v, 10, 64)
	case content.TypeDouble:
		_, err = strconv.ParseFloat(v, 64)
	case content.TypeBoolean:
		_, err = strconv.ParseBool(v)
	case content.TypeDate:
		_, err = time.Parse(time.RFC3339, v)
	case content.TypePath:
		if !content.IsAbs(v) {
			err = fmt.Errorf("path must be absolute")
		}
	case content.TypeReference:
		if !content.IsIdentifier(v) {
			err = fmt.Errorf("not an identifier")
		}
	}
	if err != nil {
		return fmt.Errorf("%w: invalid %s value %q: %v", content.ErrConstraint, typ, v, err)
	}
	return nil
}
