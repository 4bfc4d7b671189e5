// Package storetest holds behaviour checks shared by every store.Backend.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/nodeshell/pkg/content"
	"github.com/harun/nodeshell/pkg/store"
)

// Factory returns a fresh, empty backend. Cleanup is the factory's concern.
type Factory func(t *testing.T) store.Backend

// RunBackendTests exercises the store.Backend contract against backends built by newBackend
func RunBackendTests(t *testing.T, newBackend Factory) {
	t.Run("DefaultWorkspace", func(t *testing.T) { testDefaultWorkspace(t, newBackend(t)) })
	t.Run("CommitAndGet", func(t *testing.T) { testCommitAndGet(t, newBackend(t)) })
	t.Run("DeletesBeforePuts", func(t *testing.T) { testDeletesBeforePuts(t, newBackend(t)) })
	t.Run("MovedIdentifier", func(t *testing.T) { testMovedIdentifier(t, newBackend(t)) })
	t.Run("Workspaces", func(t *testing.T) { testWorkspaces(t, newBackend(t)) })
	t.Run("Namespaces", func(t *testing.T) { testNamespaces(t, newBackend(t)) })
}

func testDefaultWorkspace(t *testing.T, b store.Backend) {
	ctx := context.Background()

	names, err := b.Workspaces(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, store.DefaultWorkspace)

	root, err := b.Get(ctx, store.DefaultWorkspace, content.Root)
	require.NoError(t, err)
	assert.Equal(t, content.NodeTypeRoot, root.PrimaryType)
	assert.True(t, content.IsIdentifier(root.Identifier))

	byID, err := b.GetByIdentifier(ctx, store.DefaultWorkspace, root.Identifier)
	require.NoError(t, err)
	assert.Equal(t, content.Root, byID.Path)

	_, err = b.Get(ctx, store.DefaultWorkspace, "/missing")
	assert.ErrorIs(t, err, content.ErrNotFound)

	_, err = b.Get(ctx, "nope", content.Root)
	assert.ErrorIs(t, err, content.ErrNoSuchWorkspace)
}

func testCommitAndGet(t *testing.T, b store.Backend) {
	ctx := context.Background()

	root, err := b.Get(ctx, store.DefaultWorkspace, content.Root)
	require.NoError(t, err)
	root.Children = []string{"a"}

	a := &store.Record{
		Path:        "/a",
		Identifier:  content.NewIdentifier(),
		PrimaryType: content.NodeTypeUnstructured,
		Properties: []content.Property{
			content.NewProperty("title", content.TypeString, "hello"),
			content.NewMultiProperty("tags", content.TypeString, "x", "y"),
		},
	}
	require.NoError(t, b.Commit(ctx, store.DefaultWorkspace, &store.Batch{Puts: []*store.Record{root, a}}))

	got, err := b.Get(ctx, store.DefaultWorkspace, "/a")
	require.NoError(t, err)
	assert.Equal(t, a.Identifier, got.Identifier)
	require.Len(t, got.Properties, 2)
	assert.Equal(t, "hello", got.Properties[0].Value())
	assert.True(t, got.Properties[1].Multiple)
	assert.Equal(t, []string{"x", "y"}, got.Properties[1].Values)

	root, err = b.Get(ctx, store.DefaultWorkspace, content.Root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, root.Children)

	// Returned records are copies
	got.Properties[0].Values[0] = "changed"
	again, err := b.Get(ctx, store.DefaultWorkspace, "/a")
	require.NoError(t, err)
	assert.Equal(t, "hello", again.Properties[0].Value())

	assert.NoError(t, b.Commit(ctx, store.DefaultWorkspace, &store.Batch{}))
	assert.ErrorIs(t, b.Commit(ctx, "nope", &store.Batch{}), content.ErrNoSuchWorkspace)
}

func testDeletesBeforePuts(t *testing.T, b store.Backend) {
	ctx := context.Background()

	first := &store.Record{Path: "/x", Identifier: content.NewIdentifier(), PrimaryType: content.NodeTypeUnstructured}
	require.NoError(t, b.Commit(ctx, store.DefaultWorkspace, &store.Batch{Puts: []*store.Record{first}}))

	// Same path deleted and re-created in one batch: the put wins
	second := &store.Record{Path: "/x", Identifier: content.NewIdentifier(), PrimaryType: content.NodeTypeFolder}
	require.NoError(t, b.Commit(ctx, store.DefaultWorkspace, &store.Batch{
		Deletes: []string{"/x"},
		Puts:    []*store.Record{second},
	}))

	got, err := b.Get(ctx, store.DefaultWorkspace, "/x")
	require.NoError(t, err)
	assert.Equal(t, second.Identifier, got.Identifier)
	assert.Equal(t, content.NodeTypeFolder, got.PrimaryType)

	_, err = b.GetByIdentifier(ctx, store.DefaultWorkspace, first.Identifier)
	assert.ErrorIs(t, err, content.ErrNotFound)

	require.NoError(t, b.Commit(ctx, store.DefaultWorkspace, &store.Batch{Deletes: []string{"/x", "/never-existed"}}))
	_, err = b.Get(ctx, store.DefaultWorkspace, "/x")
	assert.ErrorIs(t, err, content.ErrNotFound)
	_, err = b.GetByIdentifier(ctx, store.DefaultWorkspace, second.Identifier)
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func testMovedIdentifier(t *testing.T, b store.Backend) {
	ctx := context.Background()

	rec := &store.Record{Path: "/old", Identifier: content.NewIdentifier(), PrimaryType: content.NodeTypeUnstructured}
	require.NoError(t, b.Commit(ctx, store.DefaultWorkspace, &store.Batch{Puts: []*store.Record{rec}}))

	moved := rec.Clone()
	moved.Path = "/new"
	require.NoError(t, b.Commit(ctx, store.DefaultWorkspace, &store.Batch{
		Deletes: []string{"/old"},
		Puts:    []*store.Record{moved},
	}))

	got, err := b.GetByIdentifier(ctx, store.DefaultWorkspace, rec.Identifier)
	require.NoError(t, err)
	assert.Equal(t, "/new", got.Path)

	_, err = b.Get(ctx, store.DefaultWorkspace, "/old")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func testWorkspaces(t *testing.T, b store.Backend) {
	ctx := context.Background()

	require.NoError(t, b.CreateWorkspace(ctx, "staging"))
	assert.ErrorIs(t, b.CreateWorkspace(ctx, "staging"), content.ErrItemExists)

	names, err := b.Workspaces(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{store.DefaultWorkspace, "staging"}, names)

	root, err := b.Get(ctx, "staging", content.Root)
	require.NoError(t, err)
	assert.Empty(t, root.Children)

	// Workspaces are isolated
	rec := &store.Record{Path: "/only-here", Identifier: content.NewIdentifier(), PrimaryType: content.NodeTypeUnstructured}
	require.NoError(t, b.Commit(ctx, "staging", &store.Batch{Puts: []*store.Record{rec}}))
	_, err = b.Get(ctx, store.DefaultWorkspace, "/only-here")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func testNamespaces(t *testing.T, b store.Backend) {
	ctx := context.Background()

	ns, err := b.Namespaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, ns)

	require.NoError(t, b.RegisterNamespace(ctx, "app", "urn:app"))
	require.NoError(t, b.RegisterNamespace(ctx, "app", "urn:app:v2"))

	ns, err = b.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"app": "urn:app:v2"}, ns)
}
