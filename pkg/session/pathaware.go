package session

import (
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/nodeshell/internal/observability"
	"github.com/harun/nodeshell/internal/tracing"
	"github.com/harun/nodeshell/pkg/content"
)

const tracerName = "nodeshell.session"

// PathAwareSession decorates a content.Session with a current working
// location. Path arguments are resolved against it before being forwarded.
// It is not safe for concurrent use.
type PathAwareSession struct {
	session          content.Session
	cwd              string
	finder           Finder
	prefixCompletion bool
	logger           zerolog.Logger
}

var _ content.Session = (*PathAwareSession)(nil)

// Option configures a PathAwareSession
type Option func(*PathAwareSession)

// WithFinder replaces the default traversal finder
func WithFinder(f Finder) Option {
	return func(p *PathAwareSession) {
		p.finder = f
	}
}

// WithPrefixCompletion makes Autocomplete keep only names starting with the typed text
func WithPrefixCompletion(enabled bool) Option {
	return func(p *PathAwareSession) {
		p.prefixCompletion = enabled
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(p *PathAwareSession) {
		p.logger = logger
	}
}

// New wraps sess. The working location starts at the root.
func New(sess content.Session, opts ...Option) *PathAwareSession {
	p := &PathAwareSession{
		session: sess,
		cwd:     content.Root,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.finder == nil {
		p.finder = NewTraversalFinder(p)
	}
	p.logger = p.logger.With().Str("component", "session").Logger()
	return p
}

// GetSession returns the wrapped session
func (p *PathAwareSession) GetSession() content.Session {
	return p.session
}

// SetSession swaps the wrapped session, e.g. after a workspace switch. The
// working location is kept.
func (p *PathAwareSession) SetSession(sess content.Session) {
	p.session = sess
}

func (p *PathAwareSession) GetCwd() string {
	return p.cwd
}

// SetCwd sets the working location without checking that it exists
func (p *PathAwareSession) SetCwd(path string) {
	p.cwd = p.GetAbsPath(path)
}

// GetAbsPath resolves path against the working location
func (p *PathAwareSession) GetAbsPath(path string) string {
	var abs string
	switch {
	case path == "" || path == ".":
		abs = p.cwd
	case content.IsAbs(path):
		abs = path
	case p.cwd == content.Root:
		abs = content.Root + path
	default:
		abs = p.cwd + "/" + path
	}
	return content.TrimTrailingSlash(abs)
}

func (p *PathAwareSession) absPaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, path := range paths {
		out[i] = p.GetAbsPath(path)
	}
	return out
}

// GetAbsTargetPath resolves the destination of a move or copy. When target
// names an existing node, the source keeps its name below it.
func (p *PathAwareSession) GetAbsTargetPath(ctx context.Context, srcPath, targetPath string) (string, error) {
	target := p.GetAbsPath(targetPath)
	exists, err := p.session.NodeExists(ctx, target)
	if err != nil {
		return "", err
	}
	if !exists {
		return target, nil
	}
	return content.Join(target, content.Base(p.GetAbsPath(srcPath))), nil
}

// Chdir changes the working location. Identifier input is looked up by identifier.
func (p *PathAwareSession) Chdir(ctx context.Context, path string) error {
	return p.ChdirRef(ctx, content.ParseRef(path))
}

// ChdirRef changes the working location to ref. The target must exist; on
// failure the working location is left unchanged.
func (p *PathAwareSession) ChdirRef(ctx context.Context, ref content.Ref) (err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.chdir", attribute.String("ref", ref.String()))
	defer func() { tracing.EndSpan(span, err) }()

	var target string
	if ref.IsIdentifier() {
		node, err := p.session.GetNodeByIdentifier(ctx, ref.Value())
		if err != nil {
			return err
		}
		target = node.Path
	} else {
		if ref.Value() == ".." {
			target = content.Parent(p.cwd)
		} else {
			target = p.GetAbsPath(ref.Value())
		}
		target = content.TrimTrailingSlash(target)
		if _, err := p.session.GetNode(ctx, target); err != nil {
			return err
		}
	}

	prev := p.cwd
	p.cwd = target
	observability.RecordCwdChange()
	logger := tracing.LoggerFromContext(ctx, p.logger)
	logger.Debug().Str("from", prev).Str("to", target).Msg("Working location changed")
	return nil
}

// Lookup returns the node addressed by ref
func (p *PathAwareSession) Lookup(ctx context.Context, ref content.Ref) (*content.Node, error) {
	if ref.IsIdentifier() {
		return p.session.GetNodeByIdentifier(ctx, ref.Value())
	}
	return p.session.GetNode(ctx, p.GetAbsPath(ref.Value()))
}

// GetNodeByPathOrIdentifier looks up raw user input as an identifier or a path
func (p *PathAwareSession) GetNodeByPathOrIdentifier(ctx context.Context, pathOrID string) (*content.Node, error) {
	return p.Lookup(ctx, content.ParseRef(pathOrID))
}

// Autocomplete returns the child node and property names of the working
// location. ok is false when the working location no longer exists or
// cannot be read. text filters by prefix only WithPrefixCompletion.
func (p *PathAwareSession) Autocomplete(ctx context.Context, text string) (names []string, ok bool) {
	node, err := p.session.GetNode(ctx, p.cwd)
	if err != nil {
		if !content.IsNotFound(err) {
			p.logger.Warn().Err(err).Str("cwd", p.cwd).Msg("Autocomplete failed")
		}
		return nil, false
	}

	names = make([]string, 0, len(node.Children)+len(node.Properties))
	for _, name := range append(append([]string(nil), node.Children...), node.PropertyNames()...) {
		if p.prefixCompletion && !strings.HasPrefix(name, text) {
			continue
		}
		names = append(names, name)
	}
	return names, true
}

// FindNodes searches with raw user input: an identifier yields that node,
// anything else is a glob resolved against the working location
func (p *PathAwareSession) FindNodes(ctx context.Context, pattern string) ([]*content.Node, error) {
	return p.SearchRef(ctx, content.ParseRef(pattern))
}

// SearchRef returns the node with the identifier, or the nodes matching the path glob
func (p *PathAwareSession) SearchRef(ctx context.Context, ref content.Ref) (nodes []*content.Node, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "session.search", attribute.String("ref", ref.String()))
	defer func() { tracing.EndSpan(span, err) }()

	if ref.IsIdentifier() {
		node, err := p.session.GetNodeByIdentifier(ctx, ref.Value())
		if err != nil {
			return nil, err
		}
		return []*content.Node{node}, nil
	}

	nodes, err = p.finder.Find(ctx, p.GetAbsPath(ref.Value()))
	if err != nil {
		return nil, err
	}
	observability.RecordFindResults(len(nodes))
	return nodes, nil
}

func (p *PathAwareSession) GetRootNode(ctx context.Context) (*content.Node, error) {
	return p.session.GetRootNode(ctx)
}

func (p *PathAwareSession) GetNode(ctx context.Context, path string) (*content.Node, error) {
	return p.session.GetNode(ctx, p.GetAbsPath(path))
}

func (p *PathAwareSession) GetNodes(ctx context.Context, paths []string) ([]*content.Node, error) {
	return p.session.GetNodes(ctx, p.absPaths(paths))
}

func (p *PathAwareSession) GetNodeByIdentifier(ctx context.Context, id string) (*content.Node, error) {
	return p.session.GetNodeByIdentifier(ctx, id)
}

func (p *PathAwareSession) GetNodesByIdentifier(ctx context.Context, ids []string) ([]*content.Node, error) {
	return p.session.GetNodesByIdentifier(ctx, ids)
}

func (p *PathAwareSession) GetItem(ctx context.Context, path string) (content.Item, error) {
	return p.session.GetItem(ctx, p.GetAbsPath(path))
}

func (p *PathAwareSession) GetProperty(ctx context.Context, path string) (*content.Property, error) {
	return p.session.GetProperty(ctx, p.GetAbsPath(path))
}

func (p *PathAwareSession) ItemExists(ctx context.Context, path string) (bool, error) {
	return p.session.ItemExists(ctx, p.GetAbsPath(path))
}

func (p *PathAwareSession) NodeExists(ctx context.Context, path string) (bool, error) {
	return p.session.NodeExists(ctx, p.GetAbsPath(path))
}

func (p *PathAwareSession) PropertyExists(ctx context.Context, path string) (bool, error) {
	return p.session.PropertyExists(ctx, p.GetAbsPath(path))
}

func (p *PathAwareSession) AddNode(ctx context.Context, parentPath, name, primaryType string) (*content.Node, error) {
	return p.session.AddNode(ctx, p.GetAbsPath(parentPath), name, primaryType)
}

func (p *PathAwareSession) SetProperty(ctx context.Context, nodePath string, prop content.Property) error {
	return p.session.SetProperty(ctx, p.GetAbsPath(nodePath), prop)
}

// Move resolves src, applies target inference to dest and forwards
func (p *PathAwareSession) Move(ctx context.Context, srcPath, destPath string) error {
	dest, err := p.GetAbsTargetPath(ctx, srcPath, destPath)
	if err != nil {
		return err
	}
	return p.session.Move(ctx, p.GetAbsPath(srcPath), dest)
}

func (p *PathAwareSession) RemoveItem(ctx context.Context, path string) error {
	return p.session.RemoveItem(ctx, p.GetAbsPath(path))
}

func (p *PathAwareSession) Save(ctx context.Context) error {
	return p.session.Save(ctx)
}

func (p *PathAwareSession) Refresh(ctx context.Context, keepChanges bool) error {
	return p.session.Refresh(ctx, keepChanges)
}

func (p *PathAwareSession) HasPendingChanges() bool {
	return p.session.HasPendingChanges()
}

func (p *PathAwareSession) HasPermission(ctx context.Context, path, actions string) (bool, error) {
	return p.session.HasPermission(ctx, p.GetAbsPath(path), actions)
}

func (p *PathAwareSession) CheckPermission(ctx context.Context, path, actions string) error {
	return p.session.CheckPermission(ctx, p.GetAbsPath(path), actions)
}

func (p *PathAwareSession) SetNamespacePrefix(prefix, uri string) error {
	return p.session.SetNamespacePrefix(prefix, uri)
}

func (p *PathAwareSession) GetNamespacePrefixes(ctx context.Context) ([]string, error) {
	return p.session.GetNamespacePrefixes(ctx)
}

func (p *PathAwareSession) GetNamespaceURI(ctx context.Context, prefix string) (string, error) {
	return p.session.GetNamespaceURI(ctx, prefix)
}

func (p *PathAwareSession) GetNamespacePrefix(ctx context.Context, uri string) (string, error) {
	return p.session.GetNamespacePrefix(ctx, uri)
}

func (p *PathAwareSession) ImportTree(ctx context.Context, parentPath string, r io.Reader) error {
	return p.session.ImportTree(ctx, p.GetAbsPath(parentPath), r)
}

func (p *PathAwareSession) ExportTree(ctx context.Context, path string, w io.Writer, recurse bool) error {
	return p.session.ExportTree(ctx, p.GetAbsPath(path), w, recurse)
}

func (p *PathAwareSession) Impersonate(ctx context.Context, userID string) (content.Session, error) {
	return p.session.Impersonate(ctx, userID)
}

func (p *PathAwareSession) GetUserID() string {
	return p.session.GetUserID()
}

func (p *PathAwareSession) GetAttributeNames() []string {
	return p.session.GetAttributeNames()
}

func (p *PathAwareSession) GetAttribute(name string) string {
	return p.session.GetAttribute(name)
}

func (p *PathAwareSession) GetWorkspace() content.Workspace {
	return p.session.GetWorkspace()
}

func (p *PathAwareSession) GetRepository() content.Repository {
	return p.session.GetRepository()
}

func (p *PathAwareSession) Logout() {
	p.session.Logout()
}

func (p *PathAwareSession) IsLive() bool {
	return p.session.IsLive()
}
