package shell

import (
	"context"
	"fmt"
	"strings"
)

// Command is one shell builtin
type Command struct {
	Name    string
	Aliases []string
	Usage   string
	Summary string
	MinArgs int
	// MaxArgs < 0 means unlimited
	MaxArgs int
	// Options are valued options; their values are not counted as arguments
	Options []string
	// Flags are boolean flags
	Flags []string
	// Mutating commands change content and are audited and auto-saved
	Mutating bool
	Run      func(ctx context.Context, s *Shell, args []string) error
}

func (c *Command) invoke(ctx context.Context, s *Shell, args []string) error {
	head, tail, marked := splitOptions(args)
	positional := len(tail)
	for i := 0; i < len(head); i++ {
		if !isFlag(head[i]) {
			positional++
			continue
		}
		if containsString(c.Options, head[i]) {
			i++
		}
	}
	if positional < c.MinArgs || (c.MaxArgs >= 0 && positional > c.MaxArgs) {
		return c.usageError()
	}
	if marked && len(c.Options) == 0 && len(c.Flags) == 0 {
		args = join(head, tail)
	}
	return c.Run(ctx, s, args)
}

func (c *Command) usageError() error {
	return fmt.Errorf("%w: %s", ErrUsage, c.Usage)
}

// endOfOptions marks the remaining arguments as values, so "-draft" can be
// passed as a property value
const endOfOptions = "--"

// splitOptions splits args at the first "--"
func splitOptions(args []string) (head, tail []string, marked bool) {
	for i, arg := range args {
		if arg == endOfOptions {
			return args[:i], args[i+1:], true
		}
	}
	return args, nil, false
}

func join(head, tail []string) []string {
	out := make([]string, 0, len(head)+len(tail))
	out = append(out, head...)
	return append(out, tail...)
}

// isFlag reports whether arg looks like -x or --name. Negative numbers are
// values, not flags.
func isFlag(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' {
		return false
	}
	c := arg[1]
	return c == '-' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// takeFlag removes a boolean flag from args and reports whether it was present
func takeFlag(args []string, names ...string) (bool, []string) {
	head, tail, marked := splitOptions(args)
	found := false
	rest := make([]string, 0, len(args))
	for _, arg := range head {
		if containsString(names, arg) {
			found = true
			continue
		}
		rest = append(rest, arg)
	}
	return found, rejoin(rest, tail, marked)
}

// takeOption removes a valued option ("-t String" or "--type=String") from args
func takeOption(args []string, names ...string) (string, []string, error) {
	head, tail, marked := splitOptions(args)
	var value string
	rest := make([]string, 0, len(args))
	for i := 0; i < len(head); i++ {
		arg := head[i]
		if k, v, ok := strings.Cut(arg, "="); ok && containsString(names, k) {
			value = v
			continue
		}
		if containsString(names, arg) {
			if i+1 >= len(head) {
				return "", nil, fmt.Errorf("%w: option %s needs a value", ErrUsage, arg)
			}
			value = head[i+1]
			i++
			continue
		}
		rest = append(rest, arg)
	}
	return value, rejoin(rest, tail, marked), nil
}

func rejoin(head, tail []string, marked bool) []string {
	if !marked {
		return head
	}
	return join(append(head, endOfOptions), tail)
}

// rejectFlags fails on any flag left after the known ones were taken and
// returns the arguments without the "--" marker
func rejectFlags(cmd *Command, args []string) ([]string, error) {
	head, tail, _ := splitOptions(args)
	for _, arg := range head {
		if isFlag(arg) {
			return nil, fmt.Errorf("%w: unknown flag %s (%s)", ErrUsage, arg, cmd.Usage)
		}
	}
	return join(head, tail), nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
