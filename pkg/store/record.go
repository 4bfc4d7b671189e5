package store

import (
	"github.com/harun/nodeshell/pkg/content"
)

// Record is the persisted form of a node
type Record struct {
	Path        string             `json:"path"`
	Identifier  string             `json:"identifier"`
	PrimaryType string             `json:"primary_type"`
	Children    []string           `json:"children,omitempty"`
	Properties  []content.Property `json:"properties,omitempty"`
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	c := &Record{
		Path:        r.Path,
		Identifier:  r.Identifier,
		PrimaryType: r.PrimaryType,
		Children:    append([]string(nil), r.Children...),
	}
	if r.Properties != nil {
		c.Properties = make([]content.Property, len(r.Properties))
		for i, p := range r.Properties {
			c.Properties[i] = p.Clone()
		}
	}
	return c
}

// Node converts the record into a node snapshot
func (r *Record) Node() *content.Node {
	c := r.Clone()
	for i := range c.Properties {
		c.Properties[i].Path = content.Join(c.Path, c.Properties[i].Name)
	}
	return &content.Node{
		Path:        c.Path,
		Identifier:  c.Identifier,
		PrimaryType: c.PrimaryType,
		Children:    c.Children,
		Properties:  c.Properties,
	}
}

func (r *Record) propertyIndex(name string) int {
	for i := range r.Properties {
		if r.Properties[i].Name == name {
			return i
		}
	}
	return -1
}

func (r *Record) childIndex(name string) int {
	for i, c := range r.Children {
		if c == name {
			return i
		}
	}
	return -1
}

func (r *Record) setProperty(p content.Property) {
	p.Path = ""
	if i := r.propertyIndex(p.Name); i >= 0 {
		r.Properties[i] = p
		return
	}
	r.Properties = append(r.Properties, p)
}

func (r *Record) removeProperty(name string) bool {
	i := r.propertyIndex(name)
	if i < 0 {
		return false
	}
	r.Properties = append(r.Properties[:i], r.Properties[i+1:]...)
	return true
}

func (r *Record) addChild(name string) {
	if r.childIndex(name) < 0 {
		r.Children = append(r.Children, name)
	}
}

func (r *Record) removeChild(name string) {
	if i := r.childIndex(name); i >= 0 {
		r.Children = append(r.Children[:i], r.Children[i+1:]...)
	}
}

// readableBy reports whether userID may read the node
func (r *Record) readableBy(userID string) bool {
	i := r.propertyIndex(content.DenyReadProperty)
	if i < 0 {
		return true
	}
	for _, denied := range r.Properties[i].Values {
		if denied == userID {
			return false
		}
	}
	return true
}
