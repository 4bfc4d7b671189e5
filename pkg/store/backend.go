package store

import (
	"context"

	"github.com/harun/nodeshell/pkg/content"
)

// DefaultWorkspace is created by every backend when it is opened
const DefaultWorkspace = "default"

// Backend persists node records for one or more workspaces.
//
// Get and GetByIdentifier return an error wrapping content.ErrNotFound for
// missing records. Commit applies a batch atomically: all deletes first, then
// all puts, keeping the identifier index in step.
type Backend interface {
	Name() string
	Workspaces(ctx context.Context) ([]string, error)
	CreateWorkspace(ctx context.Context, name string) error
	Get(ctx context.Context, workspace, path string) (*Record, error)
	GetByIdentifier(ctx context.Context, workspace, id string) (*Record, error)
	Commit(ctx context.Context, workspace string, batch *Batch) error
	Namespaces(ctx context.Context) (map[string]string, error)
	RegisterNamespace(ctx context.Context, prefix, uri string) error
	Close() error
}

// Batch is a set of changes committed together
type Batch struct {
	Deletes []string
	Puts    []*Record
}

// Empty reports whether the batch carries no changes
func (b *Batch) Empty() bool {
	return len(b.Deletes) == 0 && len(b.Puts) == 0
}

// NewRootRecord builds the root record of a fresh workspace
func NewRootRecord() *Record {
	return &Record{
		Path:        content.Root,
		Identifier:  content.NewIdentifier(),
		PrimaryType: content.NodeTypeRoot,
	}
}
