package ldap

import (
	"context"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// ConnectionConfig holds the parameters for a single directory connection.
type ConnectionConfig struct {
	// Connection settings
	URL      string        // LDAP URL (ldap://, ldaps:// or ldapi://)
	StartTLS bool          // Upgrade plain ldap:// connections with StartTLS
	Timeout  time.Duration // Connection and request timeout

	// TLS settings
	RequireCert TLSRequireCert // Process-wide certificate verification mode; empty leaves it untouched

	// Authentication settings
	AuthMethod   AuthMethod // Bind mechanism
	BindDN       string     // DN for simple bind (anonymous when empty)
	BindPassword string     // Password for simple bind

	// Kerberos settings (GSSAPI only)
	Kerberos KerberosConfig
}

// KerberosConfig carries the process-level Kerberos settings used for GSSAPI binds.
// No credentials are taken from the lookup configuration; the credential cache is
// the only source.
type KerberosConfig struct {
	ConfigPath string // Path to krb5.conf
	CCachePath string // Path to the credential cache
	SPN        string // Service principal override (ldap/<host> by default)
}

// DefaultConfig returns a connection configuration with safe defaults.
func DefaultConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Timeout:    30 * time.Second,
		AuthMethod: AuthMethodSimpleBind,
	}
}

// Session is a connected, bound directory connection.
type Session interface {
	// Search performs a single search request on the bound connection.
	Search(ctx context.Context, req *SearchRequest) ([]*Entry, error)

	// Close releases the connection.
	Close() error
}

// SearchRequest encapsulates LDAP search parameters.
type SearchRequest struct {
	BaseDN       string
	Scope        SearchScope
	Filter       string
	Attributes   []string
	SizeLimit    int
	TimeLimit    time.Duration
	DerefAliases DerefAliases
}

// Attribute is a single directory attribute with its raw values.
type Attribute struct {
	Name   string
	Values [][]byte
}

// Entry is a raw search result entry. Attributes keep the order returned by the server.
type Entry struct {
	DN         string
	Attributes []Attribute
}

// Get returns the raw values of the named attribute. Attribute names are
// matched case-insensitively.
func (e *Entry) Get(name string) ([][]byte, bool) {
	for _, attr := range e.Attributes {
		if strings.EqualFold(attr.Name, name) {
			return attr.Values, true
		}
	}
	return nil, false
}

// NewEntry converts a go-ldap entry into an Entry.
func NewEntry(entry *ldap.Entry) *Entry {
	if entry == nil {
		return nil
	}

	result := &Entry{
		DN:         entry.DN,
		Attributes: make([]Attribute, 0, len(entry.Attributes)),
	}
	for _, attr := range entry.Attributes {
		result.Attributes = append(result.Attributes, Attribute{
			Name:   attr.Name,
			Values: attr.ByteValues,
		})
	}
	return result
}

// SearchScope defines LDAP search scope.
type SearchScope int

const (
	ScopeBaseObject SearchScope = iota
	ScopeSingleLevel
	ScopeWholeSubtree
)

// String returns the configuration name of the scope.
func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "base"
	case ScopeSingleLevel:
		return "onelevel"
	case ScopeWholeSubtree:
		return "subtree"
	default:
		return "unknown"
	}
}

// ParseSearchScope maps a scope name (base, onelevel, subtree) to a SearchScope.
func ParseSearchScope(name string) (SearchScope, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "base":
		return ScopeBaseObject, true
	case "onelevel":
		return ScopeSingleLevel, true
	case "subtree":
		return ScopeWholeSubtree, true
	default:
		return 0, false
	}
}

// DerefAliases defines alias dereferencing behavior.
type DerefAliases int

const (
	NeverDerefAliases DerefAliases = iota
	DerefInSearching
	DerefFindingBaseObj
	DerefAlways
)

// AuthMethod defines authentication method types.
type AuthMethod int

const (
	AuthMethodSimpleBind AuthMethod = iota // DN/password (or anonymous) bind
	AuthMethodGSSAPI                       // SASL GSSAPI/Kerberos bind
)

// String returns string representation of authentication method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodGSSAPI:
		return "gssapi"
	default:
		return "unknown"
	}
}

// ParseAuthMethod maps an auth mode name (simple, gssapi) to an AuthMethod.
func ParseAuthMethod(name string) (AuthMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "simple":
		return AuthMethodSimpleBind, true
	case "gssapi":
		return AuthMethodGSSAPI, true
	default:
		return 0, false
	}
}

// RetryableError indicates an error that can be retried by the caller.
type RetryableError interface {
	error
	IsRetryable() bool
}
