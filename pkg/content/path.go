package content

import (
	"fmt"
	"strings"
)

// Root is the absolute path of the root node
const Root = "/"

// IsAbs reports whether p is an absolute path
func IsAbs(p string) bool {
	return strings.HasPrefix(p, "/")
}

// TrimTrailingSlash strips trailing separators, keeping the root intact
func TrimTrailingSlash(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" && p != "" {
		return Root
	}
	return trimmed
}

// Base returns the last segment of p
func Base(p string) string {
	p = TrimTrailingSlash(p)
	if p == Root {
		return ""
	}
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Parent returns the parent of an absolute path. The parent of the root is the root.
func Parent(p string) string {
	p = TrimTrailingSlash(p)
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return Root
	}
	return p[:i]
}

// Join appends a child name to an absolute parent path
func Join(parent, name string) string {
	if parent == Root {
		return Root + name
	}
	return parent + "/" + name
}

// IsDescendant reports whether p lies strictly below ancestor
func IsDescendant(p, ancestor string) bool {
	if ancestor == Root {
		return p != Root && IsAbs(p)
	}
	return strings.HasPrefix(p, ancestor+"/")
}

// Rebase moves p from below oldRoot to below newRoot. p must be oldRoot or one of its descendants.
func Rebase(p, oldRoot, newRoot string) string {
	if p == oldRoot {
		return newRoot
	}
	rel := strings.TrimPrefix(p, oldRoot)
	if oldRoot == Root {
		rel = "/" + rel
	}
	if newRoot == Root {
		return rel
	}
	return newRoot + rel
}

// ValidateName checks that name can be used as a node or property name
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name cannot be empty", ErrConstraint)
	case name == "." || name == "..":
		return fmt.Errorf("%w: name cannot be %q", ErrConstraint, name)
	case strings.Contains(name, "/"):
		return fmt.Errorf("%w: name %q cannot contain '/'", ErrConstraint, name)
	case strings.ContainsAny(name, "[]*|\x00"):
		return fmt.Errorf("%w: name %q contains illegal characters", ErrConstraint, name)
	}
	return nil
}
