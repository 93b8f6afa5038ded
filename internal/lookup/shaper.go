package lookup

import (
	"fmt"
	"strings"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
)

// Reserved key and attribute names.
const (
	KeyDN   = "dn"
	KeyTerm = "term"
)

// noAttributes is the RFC 4511 attribute selector requesting no attributes.
const noAttributes = "1.1"

// Shaper turns raw directory entries into result records. It is built once per
// invocation from the parsed value directives and the key name.
type Shaper struct {
	directives []AttributeDirective // non-skipped, in configuration order
	skipped    map[string]bool      // lower-cased names of skipped attributes
	all        bool                 // no active directive: project every attribute
	key        string
}

// NewShaper builds a Shaper. An empty key selects unkeyed results. A key
// attribute named by a directive takes the directive's spelling.
func NewShaper(directives []AttributeDirective, key string) *Shaper {
	s := &Shaper{
		skipped: make(map[string]bool),
		key:     key,
	}
	for _, d := range directives {
		if d.Skip {
			s.skipped[strings.ToLower(d.Name)] = true
			continue
		}
		s.directives = append(s.directives, d)
	}
	s.all = len(s.directives) == 0

	if key != KeyDN && key != KeyTerm {
		for _, d := range s.directives {
			if strings.EqualFold(d.Name, key) {
				s.key = d.Name
				break
			}
		}
	}
	return s
}

// Key returns the key field name used in records.
func (s *Shaper) Key() string {
	return s.key
}

// Keyed reports whether records are merged by key.
func (s *Shaper) Keyed() bool {
	return s.key != ""
}

// single reports whether each entry yields the bare value of one attribute.
func (s *Shaper) single() bool {
	return !s.all && len(s.directives) == 1
}

// Attributes returns the attribute list to request from the directory. A nil
// list requests all user attributes.
func (s *Shaper) Attributes() []string {
	if s.all {
		return nil
	}

	var names []string
	for _, name := range requestedAttributes(s.directives) {
		if !strings.EqualFold(name, KeyDN) {
			names = append(names, name)
		}
	}

	if s.key != "" && s.key != KeyDN && s.key != KeyTerm && !containsFold(names, s.key) {
		names = append(names, s.key)
	}

	if len(names) == 0 {
		return []string{noAttributes}
	}
	return names
}

// Shape converts one entry into a record. It returns false when the entry
// produces no record, which only happens in single-attribute mode when the
// attribute is absent.
func (s *Shaper) Shape(entry *ldap.Entry, term any) (record any, key any, ok bool, err error) {
	if s.Keyed() {
		key, err = s.keyValue(entry, term)
		if err != nil {
			return nil, nil, false, err
		}
	}

	if s.single() {
		d := s.directives[0]
		value, present, err := s.projectDirective(entry, d)
		if err != nil || !present {
			return nil, nil, false, err
		}
		if !s.Keyed() {
			return value, nil, true, nil
		}
		fields := map[string]any{d.Name: value}
		if _, exists := fields[s.key]; !exists {
			fields[s.key] = key
		}
		return fields, key, true, nil
	}

	fields := map[string]any{KeyDN: entry.DN}

	if s.all {
		for _, attr := range entry.Attributes {
			if s.skipped[strings.ToLower(attr.Name)] {
				continue
			}
			value, present, err := project(newDirective(attr.Name), attr.Values)
			if err != nil {
				return nil, nil, false, err
			}
			if !present {
				continue
			}
			name := attr.Name
			if s.Keyed() && strings.EqualFold(name, s.key) {
				name = s.key
			}
			fields[name] = value
		}
	} else {
		projected := make(map[string]bool, len(s.directives))
		for _, d := range s.directives {
			value, present, err := s.projectDirective(entry, d)
			if err != nil {
				return nil, nil, false, err
			}
			if !present {
				continue
			}
			if projected[d.Name] {
				// A repeated directive for the same attribute adds its values
				fields[d.Name] = concat(fields[d.Name], value)
			} else {
				fields[d.Name] = value
				projected[d.Name] = true
			}
		}
	}

	if s.Keyed() {
		if _, exists := fields[s.key]; !exists {
			fields[s.key] = key
		}
	}

	return fields, key, true, nil
}

// projectDirective projects the attribute named by d. The dn pseudo-attribute
// is the entry's DN. An absent attribute is present only as an empty list.
func (s *Shaper) projectDirective(entry *ldap.Entry, d AttributeDirective) (any, bool, error) {
	var raw [][]byte
	if strings.EqualFold(d.Name, KeyDN) {
		raw = [][]byte{[]byte(entry.DN)}
	} else {
		values, found := entry.Get(d.Name)
		if !found || len(values) == 0 {
			if d.List {
				return []any{}, true, nil
			}
			return nil, false, nil
		}
		raw = values
	}
	return project(d, raw)
}

// keyValue returns the key of an entry: its DN, the current term, or the
// first value of the key attribute.
func (s *Shaper) keyValue(entry *ldap.Entry, term any) (any, error) {
	switch s.key {
	case KeyDN:
		return entry.DN, nil
	case KeyTerm:
		return term, nil
	}

	d := newDirective(s.key)
	for _, directive := range s.directives {
		if strings.EqualFold(directive.Name, s.key) {
			d = directive
			break
		}
	}

	raw, found := entry.Get(s.key)
	if !found || len(raw) == 0 {
		return nil, &ConfigError{
			Field:   FieldKey,
			Message: fmt.Sprintf("key attribute %s is missing from entry %s", s.key, entry.DN),
		}
	}

	value, err := decodeValue(d.Encoding, raw[0])
	if err != nil {
		return nil, fmt.Errorf("key attribute %s: %w", s.key, err)
	}
	return value, nil
}

// concat appends the value(s) of next to the value(s) of existing. Bare values
// are treated as one-element sequences.
func concat(existing, next any) []any {
	merged := asList(existing)
	return append(merged, asList(next)...)
}

// asList returns a copy of v as a sequence.
func asList(v any) []any {
	if list, ok := v.([]any); ok {
		return append([]any(nil), list...)
	}
	return []any{v}
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
