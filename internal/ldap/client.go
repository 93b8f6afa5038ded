package ldap

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// dialFunc matches ldap.DialURL.
type dialFunc func(addr string, opts ...ldap.DialOpt) (*ldap.Conn, error)

// Client opens bound directory sessions. It holds no connection state: every
// Open dials a fresh connection that the caller owns until Close.
type Client struct {
	dial dialFunc
}

// NewClient creates a new directory client.
func NewClient() *Client {
	return &Client{dial: ldap.DialURL}
}

// session implements the Session interface over a single go-ldap connection.
type session struct {
	conn *ldap.Conn
	url  string
}

// Open dials the configured URL, applies TLS settings and binds. The returned
// session must be closed by the caller.
func (c *Client) Open(ctx context.Context, config *ConnectionConfig) (Session, error) {
	if config == nil {
		return nil, NewLDAPError("connect", fmt.Errorf("connection configuration cannot be nil"))
	}

	server, err := parseServerURL(config.URL)
	if err != nil {
		return nil, NewLDAPError("connect", err)
	}

	var sess Session
	err = LogOperation(ctx, "ldap", "open", map[string]any{
		"url":         config.URL,
		"auth_method": config.AuthMethod.String(),
		"bind_dn":     config.BindDN,
		"start_tls":   config.StartTLS,
	}, func() error {
		// Library options, dial and bind happen under one lock so that the
		// tls_reqcert in force while connecting is the one this lookup set.
		libraryMu.Lock()
		defer libraryMu.Unlock()

		if config.RequireCert != "" {
			if requireCert != config.RequireCert {
				tflog.SubsystemWarn(ctx, "ldap", "Changing process-wide TLS certificate requirement", map[string]any{
					"previous": string(requireCert),
					"current":  string(config.RequireCert),
				})
			}
			requireCert = config.RequireCert
		}
		tlsConfig := tlsConfigFor(server.host)

		LogConnectionEvent(ctx, "connection_attempt", map[string]any{
			"url":          config.URL,
			"require_cert": string(requireCert),
		})

		conn, err := c.dial(config.URL,
			ldap.DialWithTLSConfig(tlsConfig),
			ldap.DialWithDialer(&net.Dialer{Timeout: config.Timeout}),
		)
		if err != nil {
			LogConnectionEvent(ctx, "connection_failed", map[string]any{
				"url":   config.URL,
				"error": err.Error(),
			})
			return NewLDAPError("connect", err)
		}

		if config.Timeout > 0 {
			conn.SetTimeout(config.Timeout)
		}

		if config.StartTLS && server.scheme == "ldap" {
			tflog.SubsystemDebug(ctx, "ldap", "Upgrading connection with StartTLS", map[string]any{
				"url": config.URL,
			})
			if err := conn.StartTLS(tlsConfig); err != nil {
				conn.Close()
				LogLDAPError(ctx, "ldap", "start_tls", err, map[string]any{"url": config.URL})
				return NewLDAPError("start_tls", err)
			}
		}

		if err := authenticate(ctx, conn, config, server.host); err != nil {
			conn.Close()
			return NewLDAPError("bind", err)
		}

		LogConnectionEvent(ctx, "connection_established", map[string]any{
			"url":         config.URL,
			"auth_method": config.AuthMethod.String(),
		})

		sess = &session{conn: conn, url: config.URL}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return sess, nil
}

// authenticate performs the bind for the configured method.
func authenticate(ctx context.Context, conn *ldap.Conn, config *ConnectionConfig, host string) error {
	start := time.Now()
	var err error

	switch config.AuthMethod {
	case AuthMethodSimpleBind:
		err = authenticateSimple(ctx, conn, config)
	case AuthMethodGSSAPI:
		err = performKerberosAuth(ctx, conn, config.Kerberos, host)
	default:
		err = fmt.Errorf("unsupported authentication method: %s", config.AuthMethod.String())
	}

	if err != nil {
		tflog.SubsystemError(ctx, "ldap", "Authentication failed", map[string]any{
			"auth_method": config.AuthMethod.String(),
			"error":       err.Error(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return err
	}

	tflog.SubsystemDebug(ctx, "ldap", "Authentication successful", map[string]any{
		"auth_method": config.AuthMethod.String(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// authenticateSimple performs a simple bind, or an anonymous bind when no DN is configured.
func authenticateSimple(ctx context.Context, conn *ldap.Conn, config *ConnectionConfig) error {
	fields := map[string]any{
		"bind_dn":   config.BindDN,
		"anonymous": config.BindDN == "",
	}

	var err error
	if config.BindDN == "" {
		tflog.SubsystemDebug(ctx, "ldap", "Performing anonymous bind", fields)
		err = conn.UnauthenticatedBind("")
	} else {
		tflog.SubsystemDebug(ctx, "ldap", "Performing simple bind", fields)
		err = conn.Bind(config.BindDN, config.BindPassword)
	}

	if err != nil {
		LogLDAPError(ctx, "ldap", "simple_bind", err, fields)
		return err
	}
	return nil
}

// Search performs an LDAP search on the bound connection.
func (s *session) Search(ctx context.Context, req *SearchRequest) ([]*Entry, error) {
	if req == nil {
		return nil, NewLDAPError("search", fmt.Errorf("search request cannot be nil"))
	}

	fields := map[string]any{
		"base_dn":    req.BaseDN,
		"scope":      req.Scope.String(),
		"filter":     req.Filter,
		"attributes": req.Attributes,
	}
	start := time.Now()
	tflog.SubsystemDebug(ctx, "ldap", "Starting search operation", fields)

	ldapReq := ldap.NewSearchRequest(
		req.BaseDN,
		int(req.Scope),
		int(req.DerefAliases),
		req.SizeLimit,
		int(req.TimeLimit.Seconds()),
		false, // TypesOnly
		req.Filter,
		req.Attributes,
		nil, // Controls
	)

	result, err := s.conn.Search(ldapReq)
	fields["duration_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		LogLDAPError(ctx, "ldap", "search", err, fields)
		ldapErr := NewLDAPError("search", err)
		ldapErr.DN = req.BaseDN
		return nil, ldapErr
	}

	entries := make([]*Entry, 0, len(result.Entries))
	for _, entry := range result.Entries {
		entries = append(entries, NewEntry(entry))
	}

	fields["entries_found"] = len(entries)
	tflog.SubsystemDebug(ctx, "ldap", "Search operation completed successfully", fields)
	LogPerformance(ctx, "ldap", "search", time.Since(start), map[string]any{"base_dn": req.BaseDN})

	return entries, nil
}

// Close closes the underlying connection.
func (s *session) Close() error {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}

// serverURL is the subset of an LDAP URL the client needs.
type serverURL struct {
	scheme string
	host   string
}

// parseServerURL validates an LDAP URL and extracts its scheme and host.
func parseServerURL(rawURL string) (*serverURL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("LDAP URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid LDAP URL %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "ldap", "ldaps":
		if parsed.Hostname() == "" {
			return nil, fmt.Errorf("no hostname found in URL: %s", rawURL)
		}
	case "ldapi":
		// Unix socket path, no host
	default:
		return nil, fmt.Errorf("unsupported LDAP URL scheme %q (expected ldap, ldaps or ldapi)", parsed.Scheme)
	}

	return &serverURL{scheme: scheme, host: parsed.Hostname()}, nil
}
