package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/harun/nodeshell/internal/observability"
	"github.com/harun/nodeshell/pkg/content"
	"go.opentelemetry.io/otel/attribute"
)

// Workspace is the workspace view of a Session. Its changes bypass the
// session's transient space and are persisted immediately.
type Workspace struct {
	session *Session
}

var _ content.Workspace = (*Workspace)(nil)

func (w *Workspace) Name() string {
	return w.session.workspace
}

// persistedSubtree reads rec and its descendants from the backend, pre-order
func (w *Workspace) persistedSubtree(ctx context.Context, rec *Record) ([]*Record, error) {
	s := w.session
	out := []*Record{rec}
	for _, name := range rec.Children {
		child, err := s.backend.Get(ctx, s.workspace, content.Join(rec.Path, name))
		if err != nil {
			if content.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		desc, err := w.persistedSubtree(ctx, child)
		if err != nil {
			return nil, err
		}
		out = append(out, desc...)
	}
	return out, nil
}

// Copy duplicates the persisted subtree at src to dest with fresh identifiers
func (w *Workspace) Copy(ctx context.Context, srcAbsPath, destAbsPath string) (err error) {
	const op = "copy"
	s := w.session
	ctx, done := s.track(ctx, "copy", attribute.String("src", srcAbsPath), attribute.String("dest", destAbsPath))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return err
	}
	if err := s.requireWritable(op, destAbsPath); err != nil {
		return err
	}
	if destAbsPath == srcAbsPath || content.IsDescendant(destAbsPath, srcAbsPath) {
		return content.PathError(op, destAbsPath, fmt.Errorf("%w: cannot copy %s into itself", content.ErrConstraint, srcAbsPath))
	}
	if err := content.ValidateName(content.Base(destAbsPath)); err != nil {
		return content.PathError(op, destAbsPath, err)
	}

	src, err := s.backend.Get(ctx, s.workspace, srcAbsPath)
	if err != nil {
		if content.IsNotFound(err) {
			return content.PathError(op, srcAbsPath, content.ErrNotFound)
		}
		return err
	}
	if !src.readableBy(s.creds.UserID) {
		return content.PathError(op, srcAbsPath, content.ErrNotFound)
	}
	if _, err := s.backend.Get(ctx, s.workspace, destAbsPath); err == nil {
		return content.PathError(op, destAbsPath, content.ErrItemExists)
	} else if !content.IsNotFound(err) {
		return err
	}
	parent, err := s.backend.Get(ctx, s.workspace, content.Parent(destAbsPath))
	if err != nil {
		if content.IsNotFound(err) {
			return content.PathError(op, content.Parent(destAbsPath), content.ErrNotFound)
		}
		return err
	}

	records, err := w.persistedSubtree(ctx, src)
	if err != nil {
		return err
	}

	batch := &Batch{}
	for _, rec := range records {
		c := rec.Clone()
		c.Path = content.Rebase(rec.Path, srcAbsPath, destAbsPath)
		c.Identifier = content.NewIdentifier()
		batch.Puts = append(batch.Puts, c)
	}
	p := parent.Clone()
	p.addChild(content.Base(destAbsPath))
	batch.Puts = append(batch.Puts, p)

	if err := s.backend.Commit(ctx, s.workspace, batch); err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	// Keep a transiently modified parent consistent with the persisted copy
	if pending, ok := s.changed[p.Path]; ok {
		pending.addChild(content.Base(destAbsPath))
	}

	observability.RecordStoreAudit(ctx, "copy", s.creds.UserID, "success", map[string]interface{}{
		"src":   srcAbsPath,
		"dest":  destAbsPath,
		"nodes": len(records),
	})
	return nil
}

func (w *Workspace) AccessibleWorkspaceNames(ctx context.Context) (names []string, err error) {
	s := w.session
	ctx, done := s.track(ctx, "list_workspaces")
	defer done(&err)

	names, err = s.backend.Workspaces(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (w *Workspace) CreateWorkspace(ctx context.Context, name string) (err error) {
	s := w.session
	ctx, done := s.track(ctx, "create_workspace", attribute.String("name", name))
	defer done(&err)

	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "/:") {
		return fmt.Errorf("%w: invalid workspace name %q", content.ErrConstraint, name)
	}
	if s.creds.ReadOnly {
		return fmt.Errorf("create workspace: %w", content.ErrAccessDenied)
	}
	if err := s.backend.CreateWorkspace(ctx, name); err != nil {
		return fmt.Errorf("create workspace %q: %w", name, err)
	}
	observability.RecordStoreAudit(ctx, "create_workspace", s.creds.UserID, "success", map[string]interface{}{"name": name})
	return nil
}

// RegisterNamespace adds a repository-wide namespace mapping
func (w *Workspace) RegisterNamespace(ctx context.Context, prefix, uri string) (err error) {
	s := w.session
	ctx, done := s.track(ctx, "register_namespace", attribute.String("prefix", prefix))
	defer done(&err)

	if prefix == "" || uri == "" {
		return fmt.Errorf("%w: prefix and uri are required", content.ErrConstraint)
	}
	if _, builtin := BuiltinNamespaces[prefix]; builtin || strings.HasPrefix(strings.ToLower(prefix), "xml") {
		return fmt.Errorf("%w: prefix %q is reserved", content.ErrConstraint, prefix)
	}
	if s.creds.ReadOnly {
		return fmt.Errorf("register namespace: %w", content.ErrAccessDenied)
	}
	return s.backend.RegisterNamespace(ctx, prefix, uri)
}
