package content

import (
	"fmt"
	"strings"
)

// PropertyType identifies the value type of a property
type PropertyType string

const (
	TypeString    PropertyType = "String"
	TypeLong      PropertyType = "Long"
	TypeDouble    PropertyType = "Double"
	TypeBoolean   PropertyType = "Boolean"
	TypeDate      PropertyType = "Date"
	TypeName      PropertyType = "Name"
	TypePath      PropertyType = "Path"
	TypeReference PropertyType = "Reference"
	TypeBinary    PropertyType = "Binary"
)

// Built-in node types and property names
const (
	NodeTypeRoot         = "rep:root"
	NodeTypeUnstructured = "nt:unstructured"
	NodeTypeFolder       = "nt:folder"

	DenyReadProperty = "acl:denyRead"
)

// ParsePropertyType parses a property type name, case-insensitively.
func ParsePropertyType(s string) (PropertyType, error) {
	for _, t := range []PropertyType{
		TypeString, TypeLong, TypeDouble, TypeBoolean, TypeDate,
		TypeName, TypePath, TypeReference, TypeBinary,
	} {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown property type %q", s)
}

// Item is either a Node or a Property
type Item interface {
	ItemPath() string
	ItemName() string
	IsNode() bool
}

// Property is a named value (or list of values) attached to a node
type Property struct {
	Name     string       `json:"name" yaml:"name"`
	Path     string       `json:"-" yaml:"-"`
	Type     PropertyType `json:"type" yaml:"type"`
	Values   []string     `json:"values" yaml:"values"`
	Multiple bool         `json:"multiple,omitempty" yaml:"multiple,omitempty"`
}

// NewProperty builds a single-valued property
func NewProperty(name string, typ PropertyType, value string) Property {
	return Property{Name: name, Type: typ, Values: []string{value}}
}

// NewMultiProperty builds a multi-valued property
func NewMultiProperty(name string, typ PropertyType, values ...string) Property {
	return Property{Name: name, Type: typ, Values: values, Multiple: true}
}

func (p *Property) ItemPath() string { return p.Path }
func (p *Property) ItemName() string { return p.Name }
func (p *Property) IsNode() bool     { return false }

// Value returns the first value, or "" for an empty property
func (p *Property) Value() string {
	if len(p.Values) == 0 {
		return ""
	}
	return p.Values[0]
}

// String renders the property value the way the shell prints it
func (p *Property) String() string {
	if p.Multiple {
		return "[" + strings.Join(p.Values, ", ") + "]"
	}
	return p.Value()
}

// Clone returns a deep copy of the property
func (p Property) Clone() Property {
	p.Values = append([]string(nil), p.Values...)
	return p
}

// Node is a snapshot of a store entry
type Node struct {
	Path        string
	Identifier  string
	PrimaryType string
	Children    []string
	Properties  []Property
}

func (n *Node) ItemPath() string { return n.Path }
func (n *Node) ItemName() string { return Base(n.Path) }
func (n *Node) IsNode() bool     { return true }

// Name returns the last path segment, "" for the root
func (n *Node) Name() string {
	if n.Path == Root {
		return ""
	}
	return Base(n.Path)
}

// HasNode reports whether the node has a child with the given name
func (n *Node) HasNode(name string) bool {
	for _, c := range n.Children {
		if c == name {
			return true
		}
	}
	return false
}

// Property returns the property with the given name
func (n *Node) Property(name string) (*Property, bool) {
	for i := range n.Properties {
		if n.Properties[i].Name == name {
			return &n.Properties[i], true
		}
	}
	return nil, false
}

// PropertyNames returns property names in store order
func (n *Node) PropertyNames() []string {
	names := make([]string, 0, len(n.Properties))
	for _, p := range n.Properties {
		names = append(names, p.Name)
	}
	return names
}

// ChildPath returns the absolute path of a named child
func (n *Node) ChildPath(name string) string {
	return Join(n.Path, name)
}
