package content

import "github.com/google/uuid"

type refKind int

const (
	refPath refKind = iota
	refIdentifier
)

// Ref addresses a node either by path or by identifier
type Ref struct {
	kind  refKind
	value string
}

// PathRef addresses a node by (absolute or relative) path
func PathRef(path string) Ref {
	return Ref{kind: refPath, value: path}
}

// IDRef addresses a node by identifier
func IDRef(id string) Ref {
	return Ref{kind: refIdentifier, value: id}
}

// ParseRef classifies raw user input: strings in UUID format are identifiers,
// everything else is a path.
func ParseRef(s string) Ref {
	if IsIdentifier(s) {
		return IDRef(s)
	}
	return PathRef(s)
}

// IsIdentifier reports whether s is a UUID in canonical 8-4-4-4-12 form.
func IsIdentifier(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// NewIdentifier returns a fresh random node identifier
func NewIdentifier() string {
	return uuid.NewString()
}

func (r Ref) IsIdentifier() bool { return r.kind == refIdentifier }
func (r Ref) Value() string      { return r.value }

func (r Ref) String() string {
	if r.kind == refIdentifier {
		return "id:" + r.value
	}
	return r.value
}
