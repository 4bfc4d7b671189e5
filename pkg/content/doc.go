// Package content defines the data model and capability interfaces of a
// hierarchical content repository: nodes and properties addressed by absolute
// path or by a store-assigned identifier.
//
// Invariants:
// - Absolute paths start with '/' and never end with '/' unless they are the root.
// - Node identifiers are UUIDs and remain stable across moves.
// - Lookup failures are reported with the sentinel errors of this package and
//   can be checked with errors.Is.
//
// Usage:
//
//	ref := content.ParseRef(arg)
//	if ref.IsIdentifier() {
//		node, err := sess.GetNodeByIdentifier(ctx, ref.Value())
//		_ = node
//		_ = err
//	}
package content
