// Package transport maps transport names to store backends.
package transport

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/harun/nodeshell/pkg/store"
	"github.com/harun/nodeshell/pkg/store/memstore"
	"github.com/harun/nodeshell/pkg/store/redisstore"
	"github.com/harun/nodeshell/pkg/store/sqlstore"
)

// Built-in transport names
const (
	Memory = "memory"
	SQLite = "sqlite"
	Redis  = "redis"
)

// Options are handed to a Factory when a transport is opened
type Options struct {
	DSN    string
	Logger zerolog.Logger
}

// Factory opens a backend for a transport
type Factory func(ctx context.Context, opts Options) (store.Backend, error)

// Registry stores transport factories by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry constructs an empty transport registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default returns a registry holding the memory, sqlite and redis transports.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register(Memory, func(_ context.Context, _ Options) (store.Backend, error) {
		return memstore.New(), nil
	})
	_ = r.Register(SQLite, func(ctx context.Context, opts Options) (store.Backend, error) {
		return sqlstore.Open(ctx, opts.DSN, opts.Logger)
	})
	_ = r.Register(Redis, func(ctx context.Context, opts Options) (store.Backend, error) {
		return redisstore.Open(ctx, opts.DSN, opts.Logger)
	})
	return r
}

// Register adds a transport to the registry.
func (r *Registry) Register(name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("transport factory is required")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("transport name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("transport %q already registered", name)
	}

	r.factories[name] = factory
	return nil
}

// IsRegistered returns true when the transport exists in the registry.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.TrimSpace(name)]
	return ok
}

// Names returns sorted registered transport names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates a backend for the named transport.
func (r *Registry) Open(ctx context.Context, name string, opts Options) (store.Backend, error) {
	name = strings.TrimSpace(name)

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transport %q is not registered (available: %s)", name, strings.Join(r.Names(), ", "))
	}

	backend, err := factory(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s transport: %w", name, err)
	}

	opts.Logger.Debug().Str("transport", name).Msg("Transport opened")
	return backend, nil
}

// OpenRepository opens the named transport and wraps it in a store.Repository.
func (r *Registry) OpenRepository(ctx context.Context, name string, opts Options) (*store.Repository, error) {
	backend, err := r.Open(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	return store.NewRepository(backend, opts.Logger), nil
}
