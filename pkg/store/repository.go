package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/harun/nodeshell/internal/observability"
	"github.com/harun/nodeshell/pkg/content"
	"github.com/rs/zerolog"
)

// Version is reported through the repository descriptors
const Version = "0.1.0"

// Descriptor keys
const (
	DescRepositoryName    = "repository.name"
	DescRepositoryVersion = "repository.version"
	DescTransport         = "repository.transport"
	DescIdentifierFormat  = "identifier.format"
	DescWorkspaceMgmt     = "option.workspace.management.supported"
)

// Repository opens sessions against one backend
type Repository struct {
	backend     Backend
	logger      zerolog.Logger
	descriptors map[string]string
}

// NewRepository creates a repository on top of backend
func NewRepository(backend Backend, logger zerolog.Logger) *Repository {
	observability.EnsureRegistered()

	return &Repository{
		backend: backend,
		logger:  logger.With().Str("component", "store").Str("transport", backend.Name()).Logger(),
		descriptors: map[string]string{
			DescRepositoryName:    "nodeshell",
			DescRepositoryVersion: Version,
			DescTransport:         backend.Name(),
			DescIdentifierFormat:  "uuid",
			DescWorkspaceMgmt:     "true",
		},
	}
}

// Backend returns the underlying backend
func (r *Repository) Backend() Backend {
	return r.backend
}

// Login opens a session on workspace. An empty workspace selects DefaultWorkspace.
func (r *Repository) Login(ctx context.Context, creds content.Credentials, workspace string) (content.Session, error) {
	return r.open(ctx, creds, workspace)
}

func (r *Repository) open(ctx context.Context, creds content.Credentials, workspace string) (*Session, error) {
	if workspace == "" {
		workspace = DefaultWorkspace
	}

	names, err := r.backend.Workspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	found := false
	for _, name := range names {
		if name == workspace {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("login to %q: %w", workspace, content.ErrNoSuchWorkspace)
	}

	if strings.TrimSpace(creds.UserID) == "" {
		creds.UserID = "anonymous"
	}

	r.logger.Debug().
		Str("workspace", workspace).
		Str("user_id", creds.UserID).
		Bool("read_only", creds.ReadOnly).
		Msg("Session opened")

	return newSession(r, creds, workspace), nil
}

// Descriptor returns a repository descriptor value, "" when unknown
func (r *Repository) Descriptor(key string) string {
	return r.descriptors[key]
}

// DescriptorKeys returns the sorted descriptor keys
func (r *Repository) DescriptorKeys() []string {
	keys := make([]string, 0, len(r.descriptors))
	for k := range r.descriptors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close releases the backend
func (r *Repository) Close() error {
	return r.backend.Close()
}
