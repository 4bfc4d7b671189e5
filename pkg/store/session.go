package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harun/nodeshell/internal/observability"
	"github.com/harun/nodeshell/internal/tracing"
	"github.com/harun/nodeshell/pkg/content"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "nodeshell.store"

// Session is a content.Session over a Backend with a transient change space
type Session struct {
	repo      *Repository
	backend   Backend
	workspace string
	creds     content.Credentials
	logger    zerolog.Logger

	mu       sync.Mutex
	live     bool
	changed  map[string]*Record
	removed  map[string]struct{}
	prefixes map[string]string
}

var _ content.Session = (*Session)(nil)

func newSession(repo *Repository, creds content.Credentials, workspace string) *Session {
	return &Session{
		repo:      repo,
		backend:   repo.backend,
		workspace: workspace,
		creds:     creds,
		logger:    repo.logger.With().Str("workspace", workspace).Str("user_id", creds.UserID).Logger(),
		live:      true,
		changed:   make(map[string]*Record),
		removed:   make(map[string]struct{}),
		prefixes:  make(map[string]string),
	}
}

// track opens a span for op and returns the func that closes it and records metrics
func (s *Session) track(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx = tracing.WithWorkspace(ctx, s.workspace)
	ctx, span := tracing.StartSpan(ctx, tracerName, "store."+op,
		append(attrs, attribute.String("workspace", s.workspace))...)
	start := time.Now()

	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		tracing.EndSpan(span, err)
		observability.RecordStoreOperation(s.backend.Name(), op, time.Since(start), err == nil)
	}
}

func (s *Session) checkLive() error {
	if !s.live {
		return content.ErrSessionClosed
	}
	return nil
}

func (s *Session) requireWritable(op, path string) error {
	if s.creds.ReadOnly {
		return content.PathError(op, path, content.ErrAccessDenied)
	}
	return nil
}

func (s *Session) updatePendingMetric() {
	observability.SetPendingChanges(len(s.changed) + len(s.removed))
}

// load returns the record at path, honouring transient changes. Callers must
// clone before mutating.
func (s *Session) load(ctx context.Context, path string) (*Record, error) {
	if rec, ok := s.changed[path]; ok {
		return rec, nil
	}
	if _, gone := s.removed[path]; gone {
		return nil, content.ErrNotFound
	}
	return s.backend.Get(ctx, s.workspace, path)
}

func (s *Session) put(rec *Record) {
	s.changed[rec.Path] = rec
	delete(s.removed, rec.Path)
}

func (s *Session) markRemoved(path string) {
	delete(s.changed, path)
	s.removed[path] = struct{}{}
}

// readNode loads a node the session user may read. Unreadable nodes are reported as missing.
func (s *Session) readNode(ctx context.Context, op, path string) (*Record, error) {
	if err := s.checkLive(); err != nil {
		return nil, err
	}
	if !content.IsAbs(path) {
		return nil, content.PathError(op, path, fmt.Errorf("%w: path must be absolute", content.ErrConstraint))
	}

	rec, err := s.load(ctx, path)
	if err != nil {
		if content.IsNotFound(err) {
			return nil, content.PathError(op, path, content.ErrNotFound)
		}
		return nil, err
	}
	if !rec.readableBy(s.creds.UserID) {
		return nil, content.PathError(op, path, content.ErrNotFound)
	}
	return rec, nil
}

// conflict reports a path already taken by existing. A node the user cannot
// read is reported as access denied so its presence stays hidden.
func (s *Session) conflict(op, path string, existing *Record) error {
	if !existing.readableBy(s.creds.UserID) {
		return content.PathError(op, path, content.ErrAccessDenied)
	}
	return content.PathError(op, path, content.ErrItemExists)
}

func (s *Session) findByIdentifier(ctx context.Context, op, id string) (*Record, error) {
	if err := s.checkLive(); err != nil {
		return nil, err
	}

	for _, rec := range s.changed {
		if rec.Identifier == id {
			return rec, nil
		}
	}

	rec, err := s.backend.GetByIdentifier(ctx, s.workspace, id)
	if err != nil {
		if content.IsNotFound(err) {
			return nil, content.IdentifierError(op, id, content.ErrNotFound)
		}
		return nil, err
	}
	if _, gone := s.removed[rec.Path]; gone {
		return nil, content.IdentifierError(op, id, content.ErrNotFound)
	}
	if cur, ok := s.changed[rec.Path]; ok && cur.Identifier != id {
		return nil, content.IdentifierError(op, id, content.ErrNotFound)
	}
	return rec, nil
}

// subtree returns rec and all its descendants in pre-order
func (s *Session) subtree(ctx context.Context, rec *Record) ([]*Record, error) {
	out := []*Record{rec}
	for _, name := range rec.Children {
		child, err := s.load(ctx, content.Join(rec.Path, name))
		if err != nil {
			if content.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		desc, err := s.subtree(ctx, child)
		if err != nil {
			return nil, err
		}
		out = append(out, desc...)
	}
	return out, nil
}

func (s *Session) GetRootNode(ctx context.Context) (*content.Node, error) {
	return s.GetNode(ctx, content.Root)
}

func (s *Session) GetNode(ctx context.Context, absPath string) (node *content.Node, err error) {
	ctx, done := s.track(ctx, "get_node", attribute.String("path", absPath))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readNode(ctx, "get node", absPath)
	if err != nil {
		return nil, err
	}
	return rec.Node(), nil
}

// GetNodes returns the nodes that exist among absPaths, in argument order
func (s *Session) GetNodes(ctx context.Context, absPaths []string) (nodes []*content.Node, err error) {
	ctx, done := s.track(ctx, "get_nodes", attribute.Int("count", len(absPaths)))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	nodes = make([]*content.Node, 0, len(absPaths))
	for _, p := range absPaths {
		rec, err := s.readNode(ctx, "get nodes", p)
		if err != nil {
			if content.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		nodes = append(nodes, rec.Node())
	}
	return nodes, nil
}

func (s *Session) GetNodeByIdentifier(ctx context.Context, id string) (node *content.Node, err error) {
	ctx, done := s.track(ctx, "get_node_by_identifier", attribute.String("identifier", id))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.findByIdentifier(ctx, "get node", id)
	if err != nil {
		return nil, err
	}
	if !rec.readableBy(s.creds.UserID) {
		return nil, content.IdentifierError("get node", id, content.ErrAccessDenied)
	}
	return rec.Node(), nil
}

// GetNodesByIdentifier returns the readable nodes among ids, in argument order
func (s *Session) GetNodesByIdentifier(ctx context.Context, ids []string) (nodes []*content.Node, err error) {
	ctx, done := s.track(ctx, "get_nodes_by_identifier", attribute.Int("count", len(ids)))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	nodes = make([]*content.Node, 0, len(ids))
	for _, id := range ids {
		rec, err := s.findByIdentifier(ctx, "get nodes", id)
		if err != nil {
			if content.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if rec.readableBy(s.creds.UserID) {
			nodes = append(nodes, rec.Node())
		}
	}
	return nodes, nil
}

func (s *Session) getProperty(ctx context.Context, op, absPath string) (*content.Property, error) {
	name := content.Base(absPath)
	if name == "" {
		return nil, content.PathError(op, absPath, content.ErrNotFound)
	}
	rec, err := s.readNode(ctx, op, content.Parent(absPath))
	if err != nil {
		if content.IsNotFound(err) {
			return nil, content.PathError(op, absPath, content.ErrNotFound)
		}
		return nil, err
	}
	i := rec.propertyIndex(name)
	if i < 0 {
		return nil, content.PathError(op, absPath, content.ErrNotFound)
	}
	prop := rec.Properties[i].Clone()
	prop.Path = content.Join(rec.Path, prop.Name)
	return &prop, nil
}

// GetItem returns the node at absPath, or the property when no node exists there
func (s *Session) GetItem(ctx context.Context, absPath string) (item content.Item, err error) {
	ctx, done := s.track(ctx, "get_item", attribute.String("path", absPath))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readNode(ctx, "get item", absPath)
	if err == nil {
		return rec.Node(), nil
	}
	if !content.IsNotFound(err) {
		return nil, err
	}
	return s.getProperty(ctx, "get item", absPath)
}

func (s *Session) GetProperty(ctx context.Context, absPath string) (prop *content.Property, err error) {
	ctx, done := s.track(ctx, "get_property", attribute.String("path", absPath))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getProperty(ctx, "get property", absPath)
}

func existence(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if content.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *Session) ItemExists(ctx context.Context, absPath string) (ok bool, err error) {
	ctx, done := s.track(ctx, "item_exists", attribute.String("path", absPath))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readNode(ctx, "item exists", absPath); err == nil || !content.IsNotFound(err) {
		return existence(err)
	}
	_, err = s.getProperty(ctx, "item exists", absPath)
	return existence(err)
}

func (s *Session) NodeExists(ctx context.Context, absPath string) (ok bool, err error) {
	ctx, done := s.track(ctx, "node_exists", attribute.String("path", absPath))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.readNode(ctx, "node exists", absPath)
	return existence(err)
}

func (s *Session) PropertyExists(ctx context.Context, absPath string) (ok bool, err error) {
	ctx, done := s.track(ctx, "property_exists", attribute.String("path", absPath))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.getProperty(ctx, "property exists", absPath)
	return existence(err)
}

// AddNode creates a child node in the transient space. An empty primaryType means nt:unstructured.
func (s *Session) AddNode(ctx context.Context, parentAbsPath, name, primaryType string) (node *content.Node, err error) {
	const op = "add node"
	ctx, done := s.track(ctx, "add_node", attribute.String("path", parentAbsPath), attribute.String("name", name))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	childPath := content.Join(parentAbsPath, name)
	if err := s.requireWritable(op, childPath); err != nil {
		return nil, err
	}
	if err := content.ValidateName(name); err != nil {
		return nil, content.PathError(op, childPath, err)
	}

	parent, err := s.readNode(ctx, op, parentAbsPath)
	if err != nil {
		return nil, err
	}
	if parent.childIndex(name) >= 0 {
		existing, err := s.load(ctx, childPath)
		if err != nil {
			return nil, err
		}
		return nil, s.conflict(op, childPath, existing)
	}

	if primaryType == "" {
		primaryType = content.NodeTypeUnstructured
	}
	rec := &Record{
		Path:        childPath,
		Identifier:  content.NewIdentifier(),
		PrimaryType: primaryType,
	}

	p := parent.Clone()
	p.addChild(name)
	s.put(p)
	s.put(rec)
	s.updatePendingMetric()

	return rec.Node(), nil
}

// SetProperty creates, replaces or (with nil Values) removes a property
func (s *Session) SetProperty(ctx context.Context, nodeAbsPath string, prop content.Property) (err error) {
	const op = "set property"
	ctx, done := s.track(ctx, "set_property", attribute.String("path", nodeAbsPath), attribute.String("name", prop.Name))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	propPath := content.Join(nodeAbsPath, prop.Name)
	if err := s.requireWritable(op, propPath); err != nil {
		return err
	}
	if err := content.ValidateName(prop.Name); err != nil {
		return content.PathError(op, propPath, err)
	}

	rec, err := s.readNode(ctx, op, nodeAbsPath)
	if err != nil {
		return err
	}

	c := rec.Clone()
	if prop.Values == nil {
		if !c.removeProperty(prop.Name) {
			return nil
		}
	} else {
		if !prop.Multiple && len(prop.Values) != 1 {
			return content.PathError(op, propPath, fmt.Errorf("%w: single-valued property needs exactly one value", content.ErrConstraint))
		}
		if prop.Type == "" {
			prop.Type = content.TypeString
		}
		c.setProperty(prop.Clone())
	}
	s.put(c)
	s.updatePendingMetric()
	return nil
}

// Move relocates the subtree at src to dest. dest must not exist; the identifier is kept.
func (s *Session) Move(ctx context.Context, srcAbsPath, destAbsPath string) (err error) {
	const op = "move"
	ctx, done := s.track(ctx, "move", attribute.String("src", srcAbsPath), attribute.String("dest", destAbsPath))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireWritable(op, srcAbsPath); err != nil {
		return err
	}
	if srcAbsPath == content.Root {
		return content.PathError(op, srcAbsPath, fmt.Errorf("%w: the root node cannot be moved", content.ErrConstraint))
	}
	if destAbsPath == srcAbsPath || content.IsDescendant(destAbsPath, srcAbsPath) {
		return content.PathError(op, destAbsPath, fmt.Errorf("%w: cannot move %s into itself", content.ErrConstraint, srcAbsPath))
	}
	if err := content.ValidateName(content.Base(destAbsPath)); err != nil {
		return content.PathError(op, destAbsPath, err)
	}

	src, err := s.readNode(ctx, op, srcAbsPath)
	if err != nil {
		return err
	}
	if existing, err := s.load(ctx, destAbsPath); err == nil {
		return s.conflict(op, destAbsPath, existing)
	} else if !content.IsNotFound(err) {
		return err
	}
	if _, err := s.readNode(ctx, op, content.Parent(destAbsPath)); err != nil {
		return err
	}

	records, err := s.subtree(ctx, src)
	if err != nil {
		return err
	}
	for _, rec := range records {
		s.markRemoved(rec.Path)
	}
	for _, rec := range records {
		c := rec.Clone()
		c.Path = content.Rebase(rec.Path, srcAbsPath, destAbsPath)
		s.put(c)
	}

	oldParent, err := s.load(ctx, content.Parent(srcAbsPath))
	if err != nil {
		return err
	}
	prev := oldParent.Clone()
	prev.removeChild(content.Base(srcAbsPath))
	s.put(prev)

	newParent, err := s.load(ctx, content.Parent(destAbsPath))
	if err != nil {
		return err
	}
	np := newParent.Clone()
	np.addChild(content.Base(destAbsPath))
	s.put(np)

	s.updatePendingMetric()
	s.logger.Debug().Str("src", srcAbsPath).Str("dest", destAbsPath).Int("nodes", len(records)).Msg("Moved subtree")
	return nil
}

// RemoveItem removes a node with its subtree, or a property
func (s *Session) RemoveItem(ctx context.Context, absPath string) (err error) {
	const op = "remove"
	ctx, done := s.track(ctx, "remove_item", attribute.String("path", absPath))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireWritable(op, absPath); err != nil {
		return err
	}
	if absPath == content.Root {
		return content.PathError(op, absPath, fmt.Errorf("%w: the root node cannot be removed", content.ErrConstraint))
	}

	rec, err := s.readNode(ctx, op, absPath)
	if err == nil {
		records, err := s.subtree(ctx, rec)
		if err != nil {
			return err
		}
		for _, r := range records {
			s.markRemoved(r.Path)
		}
		parent, err := s.load(ctx, content.Parent(absPath))
		if err != nil {
			return err
		}
		p := parent.Clone()
		p.removeChild(content.Base(absPath))
		s.put(p)
		s.updatePendingMetric()
		return nil
	}
	if !content.IsNotFound(err) {
		return err
	}

	parent, err := s.readNode(ctx, op, content.Parent(absPath))
	if err != nil {
		if content.IsNotFound(err) {
			return content.PathError(op, absPath, content.ErrNotFound)
		}
		return err
	}
	p := parent.Clone()
	if !p.removeProperty(content.Base(absPath)) {
		return content.PathError(op, absPath, content.ErrNotFound)
	}
	s.put(p)
	s.updatePendingMetric()
	return nil
}

// Save commits the transient space to the backend as one batch
func (s *Session) Save(ctx context.Context) (err error) {
	ctx, done := s.track(ctx, "save")
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return err
	}
	if len(s.changed) == 0 && len(s.removed) == 0 {
		return nil
	}
	if s.creds.ReadOnly {
		return fmt.Errorf("save: %w", content.ErrAccessDenied)
	}

	batch := &Batch{}
	for p := range s.removed {
		batch.Deletes = append(batch.Deletes, p)
	}
	sort.Strings(batch.Deletes)
	for _, rec := range s.changed {
		batch.Puts = append(batch.Puts, rec.Clone())
	}
	sort.Slice(batch.Puts, func(i, j int) bool { return batch.Puts[i].Path < batch.Puts[j].Path })

	start := time.Now()
	err = s.backend.Commit(ctx, s.workspace, batch)
	observability.RecordStoreSave(s.backend.Name(), time.Since(start))
	meta := map[string]interface{}{
		"workspace": s.workspace,
		"puts":      len(batch.Puts),
		"deletes":   len(batch.Deletes),
	}
	if err != nil {
		observability.RecordStoreAudit(ctx, "save", s.creds.UserID, "failure", meta)
		return fmt.Errorf("save: %w", err)
	}
	observability.RecordStoreAudit(ctx, "save", s.creds.UserID, "success", meta)

	s.changed = make(map[string]*Record)
	s.removed = make(map[string]struct{})
	s.updatePendingMetric()

	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().
		Int("puts", len(batch.Puts)).
		Int("deletes", len(batch.Deletes)).
		Msg("Changes saved")
	return nil
}

// Refresh discards pending changes unless keepChanges is set
func (s *Session) Refresh(ctx context.Context, keepChanges bool) (err error) {
	_, done := s.track(ctx, "refresh", attribute.Bool("keep_changes", keepChanges))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return err
	}
	if !keepChanges {
		s.changed = make(map[string]*Record)
		s.removed = make(map[string]struct{})
		s.updatePendingMetric()
	}
	return nil
}

func (s *Session) HasPendingChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.changed) > 0 || len(s.removed) > 0
}

// nearest returns the record at path or, when absent, at its closest existing ancestor
func (s *Session) nearest(ctx context.Context, path string) (*Record, error) {
	cur := path
	for {
		rec, err := s.load(ctx, cur)
		if err == nil {
			return rec, nil
		}
		if !content.IsNotFound(err) {
			return nil, err
		}
		if cur == content.Root {
			return nil, err
		}
		cur = content.Parent(cur)
	}
}

// HasPermission checks a comma-separated list of actions against absPath
func (s *Session) HasPermission(ctx context.Context, absPath, actions string) (ok bool, err error) {
	ctx, done := s.track(ctx, "has_permission", attribute.String("path", absPath), attribute.String("actions", actions))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return false, err
	}
	if !content.IsAbs(absPath) {
		return false, content.PathError("has permission", absPath, fmt.Errorf("%w: path must be absolute", content.ErrConstraint))
	}

	rec, err := s.nearest(ctx, absPath)
	if err != nil {
		return false, err
	}
	readable := rec.readableBy(s.creds.UserID)

	for _, action := range strings.Split(actions, ",") {
		switch strings.TrimSpace(action) {
		case content.ActionRead:
			if !readable {
				return false, nil
			}
		case content.ActionAddNode, content.ActionSetProperty, content.ActionRemove:
			if !readable || s.creds.ReadOnly {
				return false, nil
			}
		default:
			return false, fmt.Errorf("%w: unknown action %q", content.ErrConstraint, action)
		}
	}
	return true, nil
}

func (s *Session) CheckPermission(ctx context.Context, absPath, actions string) error {
	ok, err := s.HasPermission(ctx, absPath, actions)
	if err != nil {
		return err
	}
	if !ok {
		return content.PathError("check permission "+actions, absPath, content.ErrAccessDenied)
	}
	return nil
}

// Impersonate opens a session for userID on the same workspace
func (s *Session) Impersonate(ctx context.Context, userID string) (content.Session, error) {
	s.mu.Lock()
	live := s.live
	readOnly := s.creds.ReadOnly
	s.mu.Unlock()

	if !live {
		return nil, content.ErrSessionClosed
	}
	return s.repo.open(ctx, content.Credentials{UserID: userID, ReadOnly: readOnly}, s.workspace)
}

func (s *Session) GetUserID() string {
	return s.creds.UserID
}

func (s *Session) GetAttributeNames() []string {
	names := make([]string, 0, len(s.creds.Attributes))
	for k := range s.creds.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (s *Session) GetAttribute(name string) string {
	return s.creds.Attributes[name]
}

func (s *Session) GetWorkspace() content.Workspace {
	return &Workspace{session: s}
}

func (s *Session) GetRepository() content.Repository {
	return s.repo
}

// Logout drops pending changes and closes the session
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.live {
		return
	}
	s.live = false
	s.changed = make(map[string]*Record)
	s.removed = make(map[string]struct{})
	s.logger.Debug().Msg("Session logged out")
}

func (s *Session) IsLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}
