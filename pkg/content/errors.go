package content

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a path or identifier does not resolve to an item
	ErrNotFound = errors.New("item not found")
	// ErrAccessDenied is returned when an item exists but the session may not access it
	ErrAccessDenied = errors.New("access denied")
	// ErrItemExists is returned when creating an item at an occupied path
	ErrItemExists = errors.New("item already exists")
	// ErrConstraint is returned for structurally invalid operations (moving the root, moving into itself)
	ErrConstraint = errors.New("constraint violation")
	// ErrNoSuchWorkspace is returned when logging into an unknown workspace
	ErrNoSuchWorkspace = errors.New("no such workspace")
	// ErrSessionClosed is returned by any operation on a logged-out session
	ErrSessionClosed = errors.New("session is not live")
)

// ItemError describes a failed operation on one item
type ItemError struct {
	Op         string
	Path       string
	Identifier string
	Err        error
}

func (e *ItemError) Error() string {
	target := e.Path
	if e.Identifier != "" {
		target = "identifier " + e.Identifier
	}
	return fmt.Sprintf("%s %s: %v", e.Op, target, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// PathError builds an ItemError for a path-addressed operation
func PathError(op, path string, err error) error {
	return &ItemError{Op: op, Path: path, Err: err}
}

// IdentifierError builds an ItemError for an identifier-addressed operation
func IdentifierError(op, id string, err error) error {
	return &ItemError{Op: op, Identifier: id, Err: err}
}

// IsNotFound reports whether err is a not-found failure
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessDenied reports whether err is an access failure
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}
