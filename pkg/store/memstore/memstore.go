// Package memstore is a process-local store.Backend. Contents are lost when
// the process exits; it backs tests and the "memory" transport.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/harun/nodeshell/pkg/content"
	"github.com/harun/nodeshell/pkg/store"
)

type workspace struct {
	nodes map[string]*store.Record
	ids   map[string]string
}

func newWorkspace() *workspace {
	root := store.NewRootRecord()
	return &workspace{
		nodes: map[string]*store.Record{root.Path: root},
		ids:   map[string]string{root.Identifier: root.Path},
	}
}

// Backend keeps all workspaces in memory
type Backend struct {
	mu         sync.RWMutex
	workspaces map[string]*workspace
	namespaces map[string]string
}

var _ store.Backend = (*Backend)(nil)

// New creates an empty backend holding only the default workspace
func New() *Backend {
	return &Backend{
		workspaces: map[string]*workspace{store.DefaultWorkspace: newWorkspace()},
		namespaces: make(map[string]string),
	}
}

func (b *Backend) Name() string { return "memory" }

func (b *Backend) Workspaces(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.workspaces))
	for name := range b.workspaces {
		names = append(names, name)
	}
	return names, nil
}

func (b *Backend) CreateWorkspace(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.workspaces[name]; exists {
		return fmt.Errorf("workspace %q: %w", name, content.ErrItemExists)
	}
	b.workspaces[name] = newWorkspace()
	return nil
}

func (b *Backend) workspace(name string) (*workspace, error) {
	ws, ok := b.workspaces[name]
	if !ok {
		return nil, fmt.Errorf("workspace %q: %w", name, content.ErrNoSuchWorkspace)
	}
	return ws, nil
}

func (b *Backend) Get(_ context.Context, wsName, path string) (*store.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ws, err := b.workspace(wsName)
	if err != nil {
		return nil, err
	}
	rec, ok := ws.nodes[path]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", path, content.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (b *Backend) GetByIdentifier(_ context.Context, wsName, id string) (*store.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ws, err := b.workspace(wsName)
	if err != nil {
		return nil, err
	}
	path, ok := ws.ids[id]
	if !ok {
		return nil, fmt.Errorf("identifier %s: %w", id, content.ErrNotFound)
	}
	return ws.nodes[path].Clone(), nil
}

func (b *Backend) Commit(_ context.Context, wsName string, batch *store.Batch) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ws, err := b.workspace(wsName)
	if err != nil {
		return err
	}

	for _, path := range batch.Deletes {
		rec, ok := ws.nodes[path]
		if !ok {
			continue
		}
		if ws.ids[rec.Identifier] == path {
			delete(ws.ids, rec.Identifier)
		}
		delete(ws.nodes, path)
	}
	for _, rec := range batch.Puts {
		if old, ok := ws.nodes[rec.Path]; ok && old.Identifier != rec.Identifier && ws.ids[old.Identifier] == rec.Path {
			delete(ws.ids, old.Identifier)
		}
		ws.nodes[rec.Path] = rec.Clone()
		ws.ids[rec.Identifier] = rec.Path
	}
	return nil
}

func (b *Backend) Namespaces(_ context.Context) (map[string]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]string, len(b.namespaces))
	for k, v := range b.namespaces {
		out[k] = v
	}
	return out, nil
}

func (b *Backend) RegisterNamespace(_ context.Context, prefix, uri string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.namespaces[prefix] = uri
	return nil
}

func (b *Backend) Close() error { return nil }
