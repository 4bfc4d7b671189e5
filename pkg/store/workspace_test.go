package store_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/nodeshell/pkg/content"
)

func TestWorkspace_Copy(t *testing.T) {
	ctx := context.Background()
	sess := login(t, setupRepository(t), content.Credentials{UserID: "admin"})
	seed(t, sess)

	a, err := sess.GetNode(ctx, "/a")
	require.NoError(t, err)

	ws := sess.GetWorkspace()
	require.NoError(t, ws.Copy(ctx, "/a", "/c/copy"))

	// Copies are persisted immediately
	assert.False(t, sess.HasPendingChanges())

	cp, err := sess.GetNode(ctx, "/c/copy")
	require.NoError(t, err)
	assert.NotEqual(t, a.Identifier, cp.Identifier)
	prop, ok := cp.Property("title")
	require.True(t, ok)
	assert.Equal(t, "A", prop.Value())

	ok, err = sess.NodeExists(ctx, "/c/copy/b")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.ErrorIs(t, ws.Copy(ctx, "/a", "/c/copy"), content.ErrItemExists)
	assert.ErrorIs(t, ws.Copy(ctx, "/a", "/a/b/x"), content.ErrConstraint)
	assert.ErrorIs(t, ws.Copy(ctx, "/missing", "/x"), content.ErrNotFound)
	assert.ErrorIs(t, ws.Copy(ctx, "/a", "/missing/x"), content.ErrNotFound)
}

func TestWorkspace_CreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)
	sess := login(t, repo, content.Credentials{UserID: "admin"})
	ws := sess.GetWorkspace()

	require.NoError(t, ws.CreateWorkspace(ctx, "staging"))
	assert.ErrorIs(t, ws.CreateWorkspace(ctx, "staging"), content.ErrItemExists)
	assert.ErrorIs(t, ws.CreateWorkspace(ctx, "bad/name"), content.ErrConstraint)

	names, err := ws.AccessibleWorkspaceNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "staging"}, names)

	staging, err := repo.Login(ctx, content.Credentials{UserID: "admin"}, "staging")
	require.NoError(t, err)
	assert.Equal(t, "staging", staging.GetWorkspace().Name())
}

func TestSession_ExportImport(t *testing.T) {
	ctx := context.Background()
	sess := login(t, setupRepository(t), content.Credentials{UserID: "admin"})
	seed(t, sess)

	var buf bytes.Buffer
	require.NoError(t, sess.ExportTree(ctx, "/a", &buf, true))
	out := buf.String()
	assert.Contains(t, out, "name: a")
	assert.Contains(t, out, "name: b")
	assert.Contains(t, out, "title")

	var flat bytes.Buffer
	require.NoError(t, sess.ExportTree(ctx, "/a", &flat, false))
	assert.NotContains(t, flat.String(), "name: b")

	// Identifiers already in use are replaced on import
	require.NoError(t, sess.ImportTree(ctx, "/c", strings.NewReader(out)))
	imported, err := sess.GetNode(ctx, "/c/a")
	require.NoError(t, err)
	original, err := sess.GetNode(ctx, "/a")
	require.NoError(t, err)
	assert.NotEqual(t, original.Identifier, imported.Identifier)
	assert.True(t, imported.HasNode("b"))
	assert.True(t, sess.HasPendingChanges())

	assert.ErrorIs(t, sess.ImportTree(ctx, "/c", strings.NewReader(out)), content.ErrItemExists)
	assert.Error(t, sess.ImportTree(ctx, "/c", strings.NewReader("name: [unterminated")))
	assert.ErrorIs(t, sess.ImportTree(ctx, "/missing", strings.NewReader(out)), content.ErrNotFound)

	doc := `
name: fresh
identifier: 0f8fad5b-d9cb-469f-a165-70867728950e
properties:
  - name: count
    type: Long
    values: ["3"]
`
	require.NoError(t, sess.ImportTree(ctx, "/", strings.NewReader(doc)))
	fresh, err := sess.GetNodeByIdentifier(ctx, "0f8fad5b-d9cb-469f-a165-70867728950e")
	require.NoError(t, err)
	assert.Equal(t, "/fresh", fresh.Path)
	assert.Equal(t, content.NodeTypeUnstructured, fresh.PrimaryType)
	prop, ok := fresh.Property("count")
	require.True(t, ok)
	assert.Equal(t, content.TypeLong, prop.Type)
}

func TestSession_ImportFailureLeavesNoPartialTree(t *testing.T) {
	ctx := context.Background()
	sess := login(t, setupRepository(t), content.Credentials{UserID: "admin"})
	seed(t, sess)

	_, err := sess.AddNode(ctx, "/", "kept", "")
	require.NoError(t, err)

	doc := `
name: top
children:
  - name: one
  - name: one
`
	err = sess.ImportTree(ctx, "/c", strings.NewReader(doc))
	assert.ErrorIs(t, err, content.ErrItemExists)

	exists, err := sess.NodeExists(ctx, "/c/top")
	require.NoError(t, err)
	assert.False(t, exists)

	c, err := sess.GetNode(ctx, "/c")
	require.NoError(t, err)
	assert.False(t, c.HasNode("top"))

	// Changes made before the import are still pending
	exists, err = sess.NodeExists(ctx, "/kept")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, sess.Save(ctx))
	exists, err = sess.NodeExists(ctx, "/c/top")
	require.NoError(t, err)
	assert.False(t, exists)
}
