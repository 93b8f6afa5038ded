/*
Package ldap is the directory client used by the lookup engine.

It wraps github.com/go-ldap/ldap/v3 behind a small surface:

  - Client.Open dials an ldap://, ldaps:// or ldapi:// URL, optionally upgrades
    with StartTLS, and binds (simple, anonymous or SASL GSSAPI)
  - Session.Search runs one search and returns raw entries with byte values
  - Session.Close releases the connection

Each Open creates a fresh connection; there is no pooling.

# TLS certificate requirement

The tls_reqcert setting is process-wide, as it is for libldap. Setting it for
one connection changes the mode for every connection opened afterwards. A
package mutex is held across the option change, the dial and the bind so that
a connection is always established under the mode its caller asked for, but
concurrent callers with different modes still observe each other's changes.

# Errors

Failures are returned as *LDAPError, categorised by LDAP result code
(connection, authentication, permission, not_found, validation, server).

# Helpers

HostnameToDN and DNToHostname convert between dotted hostnames and dc= DNs.
DecodeSID and DecodeGUID render binary objectSid and objectGUID values.
*/
package ldap
