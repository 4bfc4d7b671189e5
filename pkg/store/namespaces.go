package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/harun/nodeshell/pkg/content"
)

// BuiltinNamespaces are always registered and cannot be redefined
var BuiltinNamespaces = map[string]string{
	"":    "",
	"jcr": "http://www.jcp.org/jcr/1.0",
	"nt":  "http://www.jcp.org/jcr/nt/1.0",
	"mix": "http://www.jcp.org/jcr/mix/1.0",
	"xml": "http://www.w3.org/XML/1998/namespace",
	"rep": "internal",
	"acl": "urn:nodeshell:acl",
}

// namespaceMap returns prefix -> uri as seen by this session. Caller holds s.mu.
func (s *Session) namespaceMap(ctx context.Context) (map[string]string, error) {
	registered, err := s.backend.Namespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load namespaces: %w", err)
	}

	out := make(map[string]string, len(BuiltinNamespaces)+len(registered)+len(s.prefixes))
	for prefix, uri := range registered {
		out[prefix] = uri
	}
	for prefix, uri := range BuiltinNamespaces {
		out[prefix] = uri
	}

	// A session-local prefix hides any other prefix bound to the same uri
	for prefix, uri := range s.prefixes {
		for p, u := range out {
			if u == uri {
				delete(out, p)
			}
		}
		out[prefix] = uri
	}
	return out, nil
}

// SetNamespacePrefix remaps uri to prefix for the lifetime of this session
func (s *Session) SetNamespacePrefix(prefix, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return err
	}
	if prefix == "" || uri == "" {
		return fmt.Errorf("%w: prefix and uri are required", content.ErrConstraint)
	}
	if strings.HasPrefix(strings.ToLower(prefix), "xml") {
		return fmt.Errorf("%w: prefix %q is reserved", content.ErrConstraint, prefix)
	}

	for p, u := range s.prefixes {
		if u == uri || p == prefix {
			delete(s.prefixes, p)
		}
	}
	s.prefixes[prefix] = uri
	return nil
}

func (s *Session) GetNamespacePrefixes(ctx context.Context) (prefixes []string, err error) {
	ctx, done := s.track(ctx, "get_namespace_prefixes")
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return nil, err
	}
	m, err := s.namespaceMap(ctx)
	if err != nil {
		return nil, err
	}
	for prefix := range m {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes, nil
}

func (s *Session) GetNamespaceURI(ctx context.Context, prefix string) (uri string, err error) {
	ctx, done := s.track(ctx, "get_namespace_uri")
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return "", err
	}
	m, err := s.namespaceMap(ctx)
	if err != nil {
		return "", err
	}
	uri, ok := m[prefix]
	if !ok {
		return "", fmt.Errorf("namespace prefix %q: %w", prefix, content.ErrNotFound)
	}
	return uri, nil
}

func (s *Session) GetNamespacePrefix(ctx context.Context, uri string) (prefix string, err error) {
	ctx, done := s.track(ctx, "get_namespace_prefix")
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return "", err
	}
	m, err := s.namespaceMap(ctx)
	if err != nil {
		return "", err
	}
	for p, u := range m {
		if u == uri {
			return p, nil
		}
	}
	return "", fmt.Errorf("namespace uri %q: %w", uri, content.ErrNotFound)
}
