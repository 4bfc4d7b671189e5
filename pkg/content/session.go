package content

import (
	"context"
	"io"
)

// Permission actions accepted by Session.HasPermission and Session.CheckPermission
const (
	ActionRead        = "read"
	ActionAddNode     = "add_node"
	ActionSetProperty = "set_property"
	ActionRemove      = "remove"
)

// Credentials identify the user logging into a repository
type Credentials struct {
	UserID     string
	ReadOnly   bool
	Attributes map[string]string
}

// Session is a connection to one workspace of a content repository.
// Every path argument is an absolute path.
type Session interface {
	GetRootNode(ctx context.Context) (*Node, error)
	GetNode(ctx context.Context, absPath string) (*Node, error)
	GetNodes(ctx context.Context, absPaths []string) ([]*Node, error)
	GetNodeByIdentifier(ctx context.Context, id string) (*Node, error)
	GetNodesByIdentifier(ctx context.Context, ids []string) ([]*Node, error)
	GetItem(ctx context.Context, absPath string) (Item, error)
	GetProperty(ctx context.Context, absPath string) (*Property, error)

	ItemExists(ctx context.Context, absPath string) (bool, error)
	NodeExists(ctx context.Context, absPath string) (bool, error)
	PropertyExists(ctx context.Context, absPath string) (bool, error)

	AddNode(ctx context.Context, parentAbsPath, name, primaryType string) (*Node, error)
	SetProperty(ctx context.Context, nodeAbsPath string, prop Property) error
	Move(ctx context.Context, srcAbsPath, destAbsPath string) error
	RemoveItem(ctx context.Context, absPath string) error
	Save(ctx context.Context) error
	Refresh(ctx context.Context, keepChanges bool) error
	HasPendingChanges() bool

	HasPermission(ctx context.Context, absPath, actions string) (bool, error)
	CheckPermission(ctx context.Context, absPath, actions string) error

	SetNamespacePrefix(prefix, uri string) error
	GetNamespacePrefixes(ctx context.Context) ([]string, error)
	GetNamespaceURI(ctx context.Context, prefix string) (string, error)
	GetNamespacePrefix(ctx context.Context, uri string) (string, error)

	ImportTree(ctx context.Context, parentAbsPath string, r io.Reader) error
	ExportTree(ctx context.Context, absPath string, w io.Writer, recurse bool) error

	Impersonate(ctx context.Context, userID string) (Session, error)
	GetUserID() string
	GetAttributeNames() []string
	GetAttribute(name string) string

	GetWorkspace() Workspace
	GetRepository() Repository
	Logout()
	IsLive() bool
}

// Workspace exposes workspace-level operations. Changes made through a
// Workspace are persisted immediately.
type Workspace interface {
	Name() string
	Copy(ctx context.Context, srcAbsPath, destAbsPath string) error
	AccessibleWorkspaceNames(ctx context.Context) ([]string, error)
	CreateWorkspace(ctx context.Context, name string) error
	RegisterNamespace(ctx context.Context, prefix, uri string) error
}

// Repository is the entry point for opening sessions
type Repository interface {
	Login(ctx context.Context, creds Credentials, workspace string) (Session, error)
	Descriptor(key string) string
	DescriptorKeys() []string
}
