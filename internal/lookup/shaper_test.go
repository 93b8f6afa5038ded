package lookup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
)

func mustShaper(t *testing.T, spec any, key string) *Shaper {
	t.Helper()
	directives, err := ParseAttributeSpec(spec)
	require.NoError(t, err)
	return NewShaper(directives, key)
}

func TestShaper_Attributes(t *testing.T) {
	tests := []struct {
		name string
		spec any
		key  string
		want []string
	}{
		{name: "all attributes", spec: nil, want: nil},
		{name: "only skips", spec: map[string]any{"userPassword": "skip=true"}, want: nil},
		{name: "single", spec: "cn", want: []string{"cn"}},
		{name: "dn only", spec: "dn", want: []string{"1.1"}},
		{name: "dn with key dn", spec: "dn", key: "dn", want: []string{"1.1"}},
		{name: "key appended", spec: "mail", key: "uid", want: []string{"mail", "uid"}},
		{name: "key already requested", spec: []any{"UID", "mail"}, key: "uid", want: []string{"UID", "mail"}},
		{name: "term key not requested", spec: "mail", key: "term", want: []string{"mail"}},
		{name: "duplicates collapsed", spec: []any{"cn", "cn", "dn"}, want: []string{"cn"}},
		{name: "skipped excluded", spec: []any{"cn", map[string]any{"mail": "skip=true"}}, want: []string{"cn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustShaper(t, tt.spec, tt.key).Attributes())
		})
	}
}

func TestShaper_SingleUnkeyed(t *testing.T) {
	s := mustShaper(t, "mail", "")
	assert.False(t, s.Keyed())

	record, _, ok, err := s.Shape(entry("uid=a,dc=x", attr("mail", "a@x.com")), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a@x.com", record)

	record, _, ok, err = s.Shape(entry("uid=b,dc=x", attr("mail", "b@x.com", "bee@x.com")), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{"b@x.com", "bee@x.com"}, record)

	_, _, ok, err = s.Shape(entry("uid=c,dc=x", attr("cn", "c")), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestShaper_ListRoundTrip(t *testing.T) {
	s := mustShaper(t, map[string]any{"memberOf": "list=true"}, "")

	record, _, ok, err := s.Shape(entry("uid=a,dc=x", attr("memberOf", "cn=admins,dc=x")), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{"cn=admins,dc=x"}, record)

	record, _, ok, err = s.Shape(entry("uid=b,dc=x"), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{}, record)
}

func TestShaper_SingleKeyed(t *testing.T) {
	s := mustShaper(t, "mail", "uid")
	assert.True(t, s.Keyed())

	record, key, ok, err := s.Shape(entry("uid=a,dc=x", attr("mail", "a@x.com"), attr("uid", "a")), "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", key)
	assert.Equal(t, map[string]any{"mail": "a@x.com", "uid": "a"}, record)
}

func TestShaper_Mapping(t *testing.T) {
	s := mustShaper(t, []any{"cn", map[string]any{"mail": map[string]any{"list": true}}}, "")

	record, _, ok, err := s.Shape(entry("uid=a,dc=x", attr("cn", "Alice"), attr("mail", "a@x.com"), attr("sn", "A")), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"dn":   "uid=a,dc=x",
		"cn":   "Alice",
		"mail": []any{"a@x.com"},
	}, record)

	record, _, ok, err = s.Shape(entry("uid=b,dc=x"), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"dn": "uid=b,dc=x", "mail": []any{}}, record)
}

func TestShaper_AllAttributesWithSkip(t *testing.T) {
	s := mustShaper(t, map[string]any{"userPassword": "skip=true"}, "")

	record, _, ok, err := s.Shape(entry("uid=a,dc=x",
		attr("cn", "Alice"),
		attr("objectClass", "top", "person"),
		attr("userpassword", "secret"),
	), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"dn":          "uid=a,dc=x",
		"cn":          "Alice",
		"objectClass": []any{"top", "person"},
	}, record)
}

func TestShaper_DuplicateDirectives(t *testing.T) {
	s := mustShaper(t, []any{"cn", "cn"}, "")

	record, _, ok, err := s.Shape(entry("uid=a,dc=x", attr("cn", "Alice")), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"dn": "uid=a,dc=x", "cn": []any{"Alice", "Alice"}}, record)
}

func TestShaper_DNValue(t *testing.T) {
	s := mustShaper(t, "dn", "")

	record, _, ok, err := s.Shape(entry("uid=a,dc=x"), nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "uid=a,dc=x", record)
}

func TestShaper_Keys(t *testing.T) {
	e := entry("uid=a,dc=x", attr("cn", "Alice"), attr("uid", "a"))

	_, key, _, err := mustShaper(t, "cn", "dn").Shape(e, "term-1")
	require.NoError(t, err)
	assert.Equal(t, "uid=a,dc=x", key)

	record, key, _, err := mustShaper(t, []any{"cn", "uid"}, "term").Shape(e, "term-1")
	require.NoError(t, err)
	assert.Equal(t, "term-1", key)
	assert.Equal(t, map[string]any{"dn": "uid=a,dc=x", "cn": "Alice", "uid": "a", "term": "term-1"}, record)

	_, _, _, err = mustShaper(t, "cn", "employeeNumber").Shape(e, nil)
	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, FieldKey, configErr.Field)
	assert.Contains(t, err.Error(), "key attribute employeeNumber is missing from entry uid=a,dc=x")
}

func TestShaper_KeyCaseFollowsAttributes(t *testing.T) {
	e := entry("cn=eng,dc=x", attr("cn", "eng"), attr("mail", "eng@x.com"))

	s := mustShaper(t, []any{"cn", "mail"}, "CN")
	assert.Equal(t, "cn", s.Key())
	record, key, ok, err := s.Shape(e, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "eng", key)
	assert.Equal(t, map[string]any{"dn": "cn=eng,dc=x", "cn": "eng", "mail": "eng@x.com"}, record)

	s = mustShaper(t, nil, "CN")
	assert.Equal(t, "CN", s.Key())
	record, _, ok, err = s.Shape(e, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"dn": "cn=eng,dc=x", "CN": "eng", "mail": "eng@x.com"}, record)
}

func TestShaper_KeyUsesDirectiveEncoding(t *testing.T) {
	sid := []byte{0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	s := mustShaper(t, []any{"cn", map[string]any{"objectSid": "encoding=sid"}}, "objectSid")

	e := &ldap.Entry{DN: "cn=everyone", Attributes: []ldap.Attribute{
		attr("cn", "Everyone"),
		{Name: "objectSid", Values: [][]byte{sid}},
	}}
	record, key, ok, err := s.Shape(e, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "S-1-1-0", key)
	assert.Equal(t, map[string]any{"dn": "cn=everyone", "cn": "Everyone", "objectSid": "S-1-1-0"}, record)
}

func TestShaper_Encodings(t *testing.T) {
	sid := []byte{0x01, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05, 0x20, 0x00, 0x00, 0x00, 0x20, 0x02, 0x00, 0x00}
	guid := []byte{
		0x78, 0x56, 0x34, 0x12, 0x34, 0x12, 0x78, 0x56,
		0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78,
	}

	tests := []struct {
		name string
		spec any
		raw  [][]byte
		want any
	}{
		{
			name: "binary",
			spec: map[string]any{"jpegPhoto": "encoding=binary"},
			raw:  [][]byte{{0xff, 0xd8, 0x00}},
			want: []byte{0xff, 0xd8, 0x00},
		},
		{
			name: "sid",
			spec: map[string]any{"objectSid": "encoding=sid"},
			raw:  [][]byte{sid},
			want: "S-1-5-32-544",
		},
		{
			name: "guid",
			spec: map[string]any{"objectGUID": "encoding=guid"},
			raw:  [][]byte{guid},
			want: "12345678-1234-5678-9abc-def012345678",
		},
		{
			name: "latin1 charset",
			spec: map[string]any{"description": "encoding=latin1"},
			raw:  [][]byte{{'c', 'a', 'f', 0xe9}},
			want: "café",
		},
		{
			name: "join",
			spec: map[string]any{"mail": `join=", "`},
			raw:  [][]byte{[]byte("a@x.com"), []byte("b@x.com")},
			want: "a@x.com, b@x.com",
		},
		{
			name: "join over list",
			spec: map[string]any{"mail": `join=; list=true`},
			raw:  [][]byte{[]byte("a@x.com")},
			want: "a@x.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustShaper(t, tt.spec, "")
			name := s.directives[0].Name

			record, _, ok, err := s.Shape(&ldap.Entry{DN: "cn=x", Attributes: []ldap.Attribute{{Name: name, Values: tt.raw}}}, nil)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, record)
		})
	}
}

func TestShaper_DecodeFailure(t *testing.T) {
	s := mustShaper(t, map[string]any{"objectSid": "encoding=sid"}, "")

	_, _, _, err := s.Shape(&ldap.Entry{DN: "cn=x", Attributes: []ldap.Attribute{
		{Name: "objectSid", Values: [][]byte{{0x01}}},
	}}, nil)
	require.Error(t, err)

	var configErr *ConfigError
	assert.False(t, errors.As(err, &configErr))
	assert.Contains(t, err.Error(), "attribute objectSid")
}
