// Package store implements content.Session on top of a pluggable Backend.
//
// Invariants:
// - Changes are collected in a per-session transient space and reach the
//   backend only on Save, as one atomic Batch.
// - Reads see the session's own unsaved changes before backend state.
// - Node identifiers survive moves; copies and imports on collision get fresh ones.
// - Every operation emits a tracing span and a store metric sample.
//
// Usage:
//
//	repo := store.NewRepository(memstore.New(), logger)
//	sess, _ := repo.Login(ctx, content.Credentials{UserID: "admin"}, "default")
//	_, _ = sess.AddNode(ctx, "/", "content", content.NodeTypeUnstructured)
//	_ = sess.Save(ctx)
package store
