package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/nodeshell/pkg/content"
	"github.com/harun/nodeshell/pkg/store"
	"github.com/harun/nodeshell/pkg/store/storetest"
)

func openTestBackend(t *testing.T, path string) *Backend {
	b, err := Open(context.Background(), path, zerolog.Nop())
	require.NoError(t, err)
	return b
}

func TestBackend(t *testing.T) {
	storetest.RunBackendTests(t, func(t *testing.T) store.Backend {
		b := openTestBackend(t, filepath.Join(t.TempDir(), "nodes.db"))
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), "", zerolog.Nop())
	assert.Error(t, err)
}

func TestBackend_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nodes.db")

	b := openTestBackend(t, path)
	rec := &store.Record{
		Path:        "/kept",
		Identifier:  content.NewIdentifier(),
		PrimaryType: content.NodeTypeUnstructured,
		Properties:  []content.Property{content.NewProperty("n", content.TypeLong, "42")},
	}
	require.NoError(t, b.Commit(ctx, store.DefaultWorkspace, &store.Batch{Puts: []*store.Record{rec}}))
	rootBefore, err := b.Get(ctx, store.DefaultWorkspace, content.Root)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b = openTestBackend(t, path)
	defer b.Close()

	got, err := b.GetByIdentifier(ctx, store.DefaultWorkspace, rec.Identifier)
	require.NoError(t, err)
	assert.Equal(t, "/kept", got.Path)
	assert.Equal(t, content.TypeLong, got.Properties[0].Type)

	// Reopening does not recreate the root
	rootAfter, err := b.Get(ctx, store.DefaultWorkspace, content.Root)
	require.NoError(t, err)
	assert.Equal(t, rootBefore.Identifier, rootAfter.Identifier)
}
