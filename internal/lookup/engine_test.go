package lookup

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
)

var testContexts = ContextTable{
	"user_nophoto": {
		FieldBase:   "ou=people,dc=example,dc=com",
		FieldFilter: "(uid={{ .term }})",
		FieldValue:  []any{"cn", "mail", map[string]any{"jpegPhoto": "skip=true"}},
	},
	"group_members": {
		FieldBase:   "ou=groups,dc=example,dc=com",
		FieldFilter: "(cn={{ .term }})",
		FieldValue:  map[string]any{"memberUid": "list=true"},
	},
	"group_members_cn": {
		FieldBase:   "ou=groups,dc=example,dc=com",
		FieldFilter: "(memberOf=cn={{ .term }},ou=teams,dc=example,dc=com)",
		FieldValue:  "memberUid",
		FieldKey:    "cn",
	},
}

func testEngine(dir *fakeDirectory, opts ...Option) *Engine {
	defaults := WithDefaults(Layer{
		FieldURL:    "ldap://ldap.example.com",
		FieldBase:   "dc=example,dc=com",
		FieldFilter: "(objectClass=*)",
	})
	return NewEngine(dir, append([]Option{defaults, WithContexts(testContexts)}, opts...)...)
}

// groupDirectory answers filters against a fixed set of group entries.
func groupDirectory() *fakeDirectory {
	groups := map[string]*ldap.Entry{
		"(cn=devel)": entry("cn=devel,ou=groups,dc=example,dc=com",
			attr("cn", "devel"), attr("memberUid", "alice", "bob")),
		"(cn=sales)": entry("cn=sales,ou=groups,dc=example,dc=com",
			attr("cn", "sales"), attr("memberUid", "carol")),
		"(memberOf=cn=devel,ou=teams,dc=example,dc=com)": entry("cn=engineering,ou=groups,dc=example,dc=com",
			attr("cn", "engineering"), attr("memberUid", "alice", "bob")),
		"(memberOf=cn=sales,ou=teams,dc=example,dc=com)": entry("cn=engineering,ou=groups,dc=example,dc=com",
			attr("cn", "engineering"), attr("memberUid", "carol")),
	}
	return &fakeDirectory{
		respond: func(req *ldap.SearchRequest) []*ldap.Entry {
			if e, ok := groups[req.Filter]; ok {
				return []*ldap.Entry{e}
			}
			return nil
		},
	}
}

func TestEngine_ContextTemplatedSearch(t *testing.T) {
	dir := &fakeDirectory{
		respond: func(req *ldap.SearchRequest) []*ldap.Entry {
			return []*ldap.Entry{entry("uid=johndoe,ou=people,dc=example,dc=com",
				attr("cn", "John Doe"), attr("mail", "jd@example.com"))}
		},
	}

	records, err := testEngine(dir).Lookup(context.Background(), Call{
		Args: []any{map[string]any{"context": "user_nophoto"}, "johndoe"},
	})
	require.NoError(t, err)

	require.Len(t, dir.searches, 1)
	assert.Equal(t, "(uid=johndoe)", dir.searches[0].Filter)
	assert.Equal(t, "ou=people,dc=example,dc=com", dir.searches[0].BaseDN)
	assert.Equal(t, ldap.ScopeWholeSubtree, dir.searches[0].Scope)
	assert.Equal(t, []string{"cn", "mail"}, dir.searches[0].Attributes)

	assert.Equal(t, []any{
		map[string]any{"dn": "uid=johndoe,ou=people,dc=example,dc=com", "cn": "John Doe", "mail": "jd@example.com"},
	}, records)
	assert.Equal(t, 1, dir.closed)
}

func TestEngine_KeyedMergeAcrossTerms(t *testing.T) {
	dir := groupDirectory()

	records, err := testEngine(dir).Lookup(context.Background(), Call{
		Args: []any{map[string]any{"context": "group_members_cn"}, "devel", "sales"},
	})
	require.NoError(t, err)

	assert.Len(t, dir.searches, 2)
	assert.Equal(t, []string{"memberUid", "cn"}, dir.searches[0].Attributes)
	assert.Equal(t, []any{
		map[string]any{"cn": "engineering", "memberUid": []any{"alice", "bob", "carol"}},
	}, records)
}

func TestEngine_KeyedMergeWithMixedCaseKey(t *testing.T) {
	dir := &fakeDirectory{
		respond: func(req *ldap.SearchRequest) []*ldap.Entry {
			return []*ldap.Entry{entry("cn=eng,dc=x", attr("cn", "eng"), attr("mail", req.Filter))}
		},
	}

	records, err := testEngine(dir).Lookup(context.Background(), Call{
		Args: []any{map[string]any{
			"filter": "(m={{ .term }})",
			"key":    "CN",
			"value":  []any{"cn", "mail"},
		}, "a", "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"cn", "mail"}, dir.searches[0].Attributes)
	assert.Equal(t, []any{
		map[string]any{"dn": "cn=eng,dc=x", "cn": "eng", "mail": []any{"(m=a)", "(m=b)"}},
	}, records)
}

func TestEngine_CallOverrideKeysByDN(t *testing.T) {
	dir := groupDirectory()
	engine := testEngine(dir)

	unkeyed, err := engine.Lookup(context.Background(), Call{
		Args: []any{map[string]any{"context": "group_members"}, "devel", "sales"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{
		[]any{"alice", "bob"},
		[]any{"carol"},
	}, unkeyed)

	keyed, err := engine.Lookup(context.Background(), Call{
		Args: []any{map[string]any{"context": "group_members", "key": "dn"}, "devel", "sales"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"dn": "cn=devel,ou=groups,dc=example,dc=com", "memberUid": []any{"alice", "bob"}},
		map[string]any{"dn": "cn=sales,ou=groups,dc=example,dc=com", "memberUid": []any{"carol"}},
	}, keyed)
}

func TestEngine_InvalidScopeFailsBeforeOpen(t *testing.T) {
	dir := &fakeDirectory{}

	_, err := testEngine(dir).Lookup(context.Background(), Call{
		Args: []any{map[string]any{"scope": "onelvel"}, "x"},
	})

	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, FieldScope, configErr.Field)
	assert.Empty(t, dir.opened)
}

func TestEngine_UnknownContextFailsBeforeOpen(t *testing.T) {
	dir := &fakeDirectory{}

	_, err := testEngine(dir).Lookup(context.Background(), Call{
		Args: []any{map[string]any{"context": "missing"}},
	})

	var configErr *ConfigError
	require.ErrorAs(t, err, &configErr)
	assert.Contains(t, err.Error(), "context missing does not exist")
	assert.Empty(t, dir.opened)
}

func TestEngine_NoTermsRunsOneSearch(t *testing.T) {
	dir := &fakeDirectory{
		respond: func(req *ldap.SearchRequest) []*ldap.Entry {
			return []*ldap.Entry{
				entry("uid=a,dc=example,dc=com", attr("mail", "a@example.com")),
				entry("uid=b,dc=example,dc=com", attr("mail", "b@example.com")),
			}
		},
	}

	records, err := testEngine(dir).Lookup(context.Background(), Call{
		Args: []any{map[string]any{"value": "mail"}},
	})
	require.NoError(t, err)

	require.Len(t, dir.searches, 1)
	assert.Equal(t, "(objectClass=*)", dir.searches[0].Filter)
	assert.Equal(t, []any{"a@example.com", "b@example.com"}, records)
}

func TestEngine_EmptyResult(t *testing.T) {
	dir := &fakeDirectory{}

	records, err := testEngine(dir).Lookup(context.Background(), Call{Args: []any{"nobody"}})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestEngine_ConnectionSettings(t *testing.T) {
	dir := &fakeDirectory{}
	kerberos := ldap.KerberosConfig{CCachePath: "/tmp/krb5cc_test"}

	_, err := testEngine(dir, WithKerberos(kerberos)).Lookup(context.Background(), Call{
		Args: []any{map[string]any{
			"url":         "ldap://{{ .server }}",
			"binddn":      "cn=reader,dc=example,dc=com",
			"bindpw":      "{{ .password }}",
			"tls":         true,
			"tls_reqcert": "allow",
			"auth":        "gssapi",
		}},
		Variables: map[string]any{"server": "dc01.example.com", "password": "s3cret"},
	})
	require.NoError(t, err)

	require.Len(t, dir.opened, 1)
	got := dir.opened[0]
	assert.Equal(t, "ldap://dc01.example.com", got.URL)
	assert.Equal(t, "cn=reader,dc=example,dc=com", got.BindDN)
	assert.Equal(t, "s3cret", got.BindPassword)
	assert.True(t, got.StartTLS)
	assert.Equal(t, ldap.TLSRequireCertAllow, got.RequireCert)
	assert.Equal(t, ldap.AuthMethodGSSAPI, got.AuthMethod)
	assert.Equal(t, kerberos, got.Kerberos)
}

func TestEngine_ConnectionTemplateSeesNoTerm(t *testing.T) {
	dir := &fakeDirectory{}

	_, err := testEngine(dir).Lookup(context.Background(), Call{
		Args: []any{map[string]any{"binddn": "uid={{ .term }},dc=example,dc=com"}, "jdoe"},
	})

	var tmplErr *TemplateError
	require.ErrorAs(t, err, &tmplErr)
	assert.Equal(t, PhaseConnection, tmplErr.Phase)
	assert.Empty(t, dir.opened)
}

func TestEngine_ErrorsDiscardResultsAndClose(t *testing.T) {
	t.Run("search template error on a later term", func(t *testing.T) {
		dir := groupDirectory()
		records, err := testEngine(dir).Lookup(context.Background(), Call{
			Args: []any{
				map[string]any{
					"context": "group_members",
					"base":    `{{ if eq .term "sales" }}{{ .missing }}{{ else }}ou=groups,dc=example,dc=com{{ end }}`,
				},
				"devel", "sales",
			},
		})
		assert.Nil(t, records)

		var tmplErr *TemplateError
		require.ErrorAs(t, err, &tmplErr)
		assert.Equal(t, PhaseSearch, tmplErr.Phase)
		assert.Equal(t, FieldBase, tmplErr.Field)
		assert.Equal(t, "sales", tmplErr.Term)
		assert.Len(t, dir.searches, 1)
		assert.Equal(t, 1, dir.closed)
	})

	t.Run("search failure", func(t *testing.T) {
		searchErr := ldap.NewLDAPError("search", errors.New("connection reset by peer"))
		dir := &fakeDirectory{searchErr: searchErr}

		records, err := testEngine(dir).Lookup(context.Background(), Call{Args: []any{"a", "b"}})
		assert.Nil(t, records)

		var dirErr *DirectoryError
		require.ErrorAs(t, err, &dirErr)
		assert.Equal(t, "search", dirErr.Operation)
		assert.Equal(t, "a", dirErr.Term)
		assert.True(t, ldap.IsRetryableError(err))
		assert.Len(t, dir.searches, 1)
		assert.Equal(t, 1, dir.closed)
	})

	t.Run("open failure", func(t *testing.T) {
		dir := &fakeDirectory{openErr: ldap.NewLDAPError("bind", errors.New("invalid credentials"))}

		_, err := testEngine(dir).Lookup(context.Background(), Call{})

		var dirErr *DirectoryError
		require.ErrorAs(t, err, &dirErr)
		assert.Equal(t, "open", dirErr.Operation)
		assert.False(t, dirErr.HasTerm)
		assert.Equal(t, 0, dir.closed)
	})

	t.Run("missing key attribute", func(t *testing.T) {
		dir := &fakeDirectory{
			respond: func(req *ldap.SearchRequest) []*ldap.Entry {
				return []*ldap.Entry{entry("uid=a,dc=example,dc=com", attr("mail", "a@example.com"))}
			},
		}

		_, err := testEngine(dir).Lookup(context.Background(), Call{
			Args: []any{map[string]any{"value": "mail", "key": "uid"}},
		})

		var configErr *ConfigError
		require.ErrorAs(t, err, &configErr)
		assert.Equal(t, DefaultContextName, configErr.Context)
		assert.Equal(t, 1, dir.closed)
	})

	t.Run("decode failure", func(t *testing.T) {
		dir := &fakeDirectory{
			respond: func(req *ldap.SearchRequest) []*ldap.Entry {
				return []*ldap.Entry{{DN: "cn=x", Attributes: []ldap.Attribute{{Name: "objectGUID", Values: [][]byte{{0x01}}}}}}
			},
		}

		_, err := testEngine(dir).Lookup(context.Background(), Call{
			Args: []any{map[string]any{"value": map[string]any{"objectGUID": "encoding=guid"}}},
		})

		var dirErr *DirectoryError
		require.ErrorAs(t, err, &dirErr)
		assert.Equal(t, "decode", dirErr.Operation)
		assert.Equal(t, 1, dir.closed)
	})

	t.Run("cancelled context", func(t *testing.T) {
		dir := &fakeDirectory{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := testEngine(dir).Lookup(ctx, Call{Args: []any{"a"}})

		var dirErr *DirectoryError
		require.ErrorAs(t, err, &dirErr)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, dir.searches)
		assert.Equal(t, 1, dir.closed)
	})
}

func TestEngine_RendererOption(t *testing.T) {
	dir := &fakeDirectory{}
	upper := stubRenderer(func(tmpl string, _ map[string]any) (string, error) {
		return strings.ToUpper(tmpl), nil
	})

	_, err := testEngine(dir, WithRenderer(upper)).Lookup(context.Background(), Call{Args: []any{"x"}})
	require.NoError(t, err)
	require.Len(t, dir.searches, 1)
	assert.Equal(t, "DC=EXAMPLE,DC=COM", dir.searches[0].BaseDN)
	assert.Equal(t, "LDAP://LDAP.EXAMPLE.COM", dir.opened[0].URL)
}
