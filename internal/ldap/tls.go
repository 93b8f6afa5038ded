package ldap

import (
	"crypto/tls"
	"fmt"
	"strings"
	"sync"
)

// TLSRequireCert mirrors the OpenLDAP TLS_REQCERT option names.
type TLSRequireCert string

const (
	TLSRequireCertNever  TLSRequireCert = "never"
	TLSRequireCertAllow  TLSRequireCert = "allow"
	TLSRequireCertTry    TLSRequireCert = "try"
	TLSRequireCertDemand TLSRequireCert = "demand"
	TLSRequireCertHard   TLSRequireCert = "hard"
)

// TLSRequireCertValues lists the accepted tls_reqcert names.
var TLSRequireCertValues = []string{
	string(TLSRequireCertNever),
	string(TLSRequireCertAllow),
	string(TLSRequireCertTry),
	string(TLSRequireCertDemand),
	string(TLSRequireCertHard),
}

// ParseTLSRequireCert maps a tls_reqcert name to its value, case-insensitively.
func ParseTLSRequireCert(name string) (TLSRequireCert, bool) {
	value := TLSRequireCert(strings.ToLower(strings.TrimSpace(name)))
	switch value {
	case TLSRequireCertNever, TLSRequireCertAllow, TLSRequireCertTry, TLSRequireCertDemand, TLSRequireCertHard:
		return value, true
	default:
		return "", false
	}
}

// verifiesPeer reports whether the mode requires a valid server certificate.
// Go TLS clients always receive a server certificate, so "never" and "allow"
// both amount to skipping verification.
func (r TLSRequireCert) verifiesPeer() bool {
	switch r {
	case TLSRequireCertNever, TLSRequireCertAllow:
		return false
	default:
		return true
	}
}

// Library options are process-wide: a tls_reqcert set by one lookup applies to
// every connection dialled afterwards, by any lookup, until changed again.
// libraryMu serialises option changes with the dial+bind that depends on them;
// it does not isolate concurrent lookups from each other.
var (
	libraryMu   sync.Mutex
	requireCert = TLSRequireCertDemand
)

// SetRequireCert sets the process-wide certificate verification mode.
func SetRequireCert(mode TLSRequireCert) error {
	if _, ok := ParseTLSRequireCert(string(mode)); !ok {
		return fmt.Errorf("invalid tls_reqcert value %q", mode)
	}

	libraryMu.Lock()
	defer libraryMu.Unlock()
	requireCert = mode
	return nil
}

// RequireCert returns the current process-wide certificate verification mode.
func RequireCert() TLSRequireCert {
	libraryMu.Lock()
	defer libraryMu.Unlock()
	return requireCert
}

// tlsConfigFor builds the TLS configuration for a host from the current library
// options. Callers must hold libraryMu.
func tlsConfigFor(host string) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         host,
		InsecureSkipVerify: !requireCert.verifiesPeer(), //nolint:gosec // governed by tls_reqcert
	}
}
