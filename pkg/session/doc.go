// Package session adds working-directory semantics on top of a content.Session.
//
// Invariants:
// - The current working location is always absolute and has no trailing
//   slash unless it is the root.
// - A failed Chdir leaves the working location unchanged.
// - Every path argument is resolved against the working location before it
//   reaches the wrapped session; identifiers bypass path resolution.
//
// Usage:
//
//	pas := session.New(sess, session.WithLogger(logger))
//	_ = pas.Chdir(ctx, "content/articles")
//	node, _ := pas.GetNodeByPathOrIdentifier(ctx, "first-post")
//	_ = node
package session
