package store

import (
	"context"
	"fmt"
	"io"
	"maps"

	"github.com/harun/nodeshell/pkg/content"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

// Document is the YAML document view of a subtree
type Document struct {
	Name        string             `yaml:"name"`
	Identifier  string             `yaml:"identifier,omitempty"`
	PrimaryType string             `yaml:"primaryType"`
	Properties  []content.Property `yaml:"properties,omitempty"`
	Children    []*Document        `yaml:"children,omitempty"`
}

func (s *Session) document(ctx context.Context, rec *Record, recurse bool) (*Document, error) {
	doc := &Document{
		Name:        content.Base(rec.Path),
		Identifier:  rec.Identifier,
		PrimaryType: rec.PrimaryType,
	}
	for _, p := range rec.Properties {
		doc.Properties = append(doc.Properties, p.Clone())
	}
	if !recurse {
		return doc, nil
	}

	for _, name := range rec.Children {
		child, err := s.readNode(ctx, "export", content.Join(rec.Path, name))
		if err != nil {
			if content.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		cd, err := s.document(ctx, child, true)
		if err != nil {
			return nil, err
		}
		doc.Children = append(doc.Children, cd)
	}
	return doc, nil
}

// ExportTree writes the node at absPath as a YAML document. Without recurse
// only the node itself and its properties are written.
func (s *Session) ExportTree(ctx context.Context, absPath string, w io.Writer, recurse bool) (err error) {
	ctx, done := s.track(ctx, "export", attribute.String("path", absPath), attribute.Bool("recurse", recurse))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readNode(ctx, "export", absPath)
	if err != nil {
		return err
	}
	doc, err := s.document(ctx, rec, recurse)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return enc.Close()
}

// ImportTree reads a YAML document and adds it below parentAbsPath in the
// transient space. Identifiers already in use are replaced with fresh ones.
func (s *Session) ImportTree(ctx context.Context, parentAbsPath string, r io.Reader) (err error) {
	const op = "import"
	ctx, done := s.track(ctx, "import", attribute.String("path", parentAbsPath))
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireWritable(op, parentAbsPath); err != nil {
		return err
	}

	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	if _, err := s.readNode(ctx, op, parentAbsPath); err != nil {
		return err
	}

	// A failed import leaves the transient space as it was
	changed, removed := maps.Clone(s.changed), maps.Clone(s.removed)
	if err := s.importDocument(ctx, parentAbsPath, &doc); err != nil {
		s.changed, s.removed = changed, removed
		return err
	}
	s.updatePendingMetric()
	return nil
}

func (s *Session) importDocument(ctx context.Context, parentPath string, doc *Document) error {
	const op = "import"
	path := content.Join(parentPath, doc.Name)
	if err := content.ValidateName(doc.Name); err != nil {
		return content.PathError(op, path, err)
	}

	parent, err := s.load(ctx, parentPath)
	if err != nil {
		return err
	}
	if parent.childIndex(doc.Name) >= 0 {
		existing, err := s.load(ctx, path)
		if err != nil {
			return err
		}
		return s.conflict(op, path, existing)
	}

	id := doc.Identifier
	if !content.IsIdentifier(id) {
		id = content.NewIdentifier()
	} else if _, err := s.findByIdentifier(ctx, op, id); err == nil {
		id = content.NewIdentifier()
	} else if !content.IsNotFound(err) {
		return err
	}

	primaryType := doc.PrimaryType
	if primaryType == "" {
		primaryType = content.NodeTypeUnstructured
	}
	rec := &Record{Path: path, Identifier: id, PrimaryType: primaryType}
	for _, p := range doc.Properties {
		if err := content.ValidateName(p.Name); err != nil {
			return content.PathError(op, content.Join(path, p.Name), err)
		}
		if p.Type == "" {
			p.Type = content.TypeString
		}
		rec.setProperty(p.Clone())
	}

	pc := parent.Clone()
	pc.addChild(doc.Name)
	s.put(pc)
	s.put(rec)

	for _, child := range doc.Children {
		if err := s.importDocument(ctx, path, child); err != nil {
			return err
		}
	}
	return nil
}
