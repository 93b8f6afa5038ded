package lookup

import (
	"context"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
)

// fakeDirectory records opens and searches and answers searches from a
// callback.
type fakeDirectory struct {
	respond   func(req *ldap.SearchRequest) []*ldap.Entry
	openErr   error
	searchErr error

	opened   []*ldap.ConnectionConfig
	searches []ldap.SearchRequest
	closed   int
}

func (d *fakeDirectory) Open(_ context.Context, config *ldap.ConnectionConfig) (ldap.Session, error) {
	d.opened = append(d.opened, config)
	if d.openErr != nil {
		return nil, d.openErr
	}
	return &fakeSession{dir: d}, nil
}

type fakeSession struct {
	dir *fakeDirectory
}

func (s *fakeSession) Search(_ context.Context, req *ldap.SearchRequest) ([]*ldap.Entry, error) {
	s.dir.searches = append(s.dir.searches, *req)
	if s.dir.searchErr != nil {
		return nil, s.dir.searchErr
	}
	if s.dir.respond == nil {
		return nil, nil
	}
	return s.dir.respond(req), nil
}

func (s *fakeSession) Close() error {
	s.dir.closed++
	return nil
}

// attr builds a string-valued attribute.
func attr(name string, values ...string) ldap.Attribute {
	raw := make([][]byte, len(values))
	for i, v := range values {
		raw[i] = []byte(v)
	}
	return ldap.Attribute{Name: name, Values: raw}
}

func entry(dn string, attrs ...ldap.Attribute) *ldap.Entry {
	return &ldap.Entry{DN: dn, Attributes: attrs}
}

// stubRenderer renders through a fixed function.
type stubRenderer func(tmpl string, bindings map[string]any) (string, error)

func (f stubRenderer) Render(tmpl string, bindings map[string]any) (string, error) {
	return f(tmpl, bindings)
}
