package session

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/harun/nodeshell/pkg/content"
)

// Finder searches the node tree for nodes matching an absolute glob pattern
type Finder interface {
	Find(ctx context.Context, absPattern string) ([]*content.Node, error)
}

// NodeReader is the part of a session a TraversalFinder reads through
type NodeReader interface {
	GetNode(ctx context.Context, absPath string) (*content.Node, error)
}

// TraversalFinder walks the tree depth-first, pre-order, children in store
// order, starting at the deepest ancestor of the pattern that holds no
// wildcard. "*" matches within one segment, "?" matches one character and
// "**" matches any number of segments.
type TraversalFinder struct {
	reader NodeReader
}

// NewTraversalFinder creates a finder reading nodes through reader
func NewTraversalFinder(reader NodeReader) *TraversalFinder {
	return &TraversalFinder{reader: reader}
}

// globToRegex converts a path glob into an anchored regular expression.
// A segment that is a lone "*" matches a non-empty name, so "/*" never
// matches the root.
func globToRegex(pattern string) string {
	if pattern == content.Root {
		return "^/$"
	}
	segments := strings.Split(strings.TrimPrefix(pattern, "/"), "/")

	var b strings.Builder
	b.WriteString("^")
	for i, seg := range segments {
		switch seg {
		case "**":
			if i == len(segments)-1 {
				b.WriteString("(?:/.*)?")
			} else {
				b.WriteString("(?:/[^/]+)*")
			}
		case "*":
			b.WriteString("/[^/]+")
		default:
			b.WriteString("/")
			b.WriteString(segmentToRegex(seg))
		}
	}
	b.WriteString("$")
	return b.String()
}

func segmentToRegex(seg string) string {
	escaped := regexp.QuoteMeta(seg)
	escaped = strings.ReplaceAll(escaped, `\*\*`, ".*")
	escaped = strings.ReplaceAll(escaped, `\*`, "[^/]*")
	return strings.ReplaceAll(escaped, `\?`, "[^/]")
}

func hasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?")
}

func depth(p string) int {
	if p == content.Root {
		return 0
	}
	return strings.Count(p, "/")
}

// splitPattern returns the wildcard-free base of pattern
func splitPattern(pattern string) string {
	segments := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	base := content.Root
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if hasWildcard(seg) {
			break
		}
		base = content.Join(base, seg)
	}
	return base
}

func (f *TraversalFinder) Find(ctx context.Context, absPattern string) ([]*content.Node, error) {
	if !content.IsAbs(absPattern) {
		return nil, fmt.Errorf("%w: search pattern %q must be absolute", content.ErrConstraint, absPattern)
	}
	pattern := content.TrimTrailingSlash(absPattern)

	re, err := regexp.Compile(globToRegex(pattern))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid search pattern %q: %v", content.ErrConstraint, pattern, err)
	}

	maxDepth := -1
	if !strings.Contains(pattern, "**") {
		maxDepth = depth(pattern)
	}

	start, err := f.reader.GetNode(ctx, splitPattern(pattern))
	if err != nil {
		if content.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var results []*content.Node
	var walk func(node *content.Node) error
	walk = func(node *content.Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if re.MatchString(node.Path) {
			results = append(results, node)
		}
		if maxDepth >= 0 && depth(node.Path) >= maxDepth {
			return nil
		}
		for _, name := range node.Children {
			child, err := f.reader.GetNode(ctx, node.ChildPath(name))
			if err != nil {
				if content.IsNotFound(err) || content.IsAccessDenied(err) {
					continue
				}
				return err
			}
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(start); err != nil {
		return nil, err
	}
	return results, nil
}
