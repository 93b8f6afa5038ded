package ldap

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// EscapeDNValue escapes special characters in a DN attribute value according to RFC 4514.
//
// Examples:
//   - "Doe, John" → "Doe\, John"
//   - " John " → "\ John\ "
//   - "#123" → "\#123"
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var result strings.Builder
	result.Grow(len(value) + 8)

	for i, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';', '=':
			result.WriteRune('\\')
			result.WriteRune(r)
		case '#':
			if i == 0 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case ' ':
			if i == 0 || i == len(value)-1 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case 0:
			result.WriteString("\\00")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

// HostnameToDN converts a dotted hostname into a DN of domain components.
//
//	HostnameToDN("some.corp.com") == "dc=some,dc=corp,dc=com"
func HostnameToDN(hostname string) string {
	labels := strings.Split(hostname, ".")
	rdns := make([]string, 0, len(labels))
	for _, label := range labels {
		rdns = append(rdns, "dc="+EscapeDNValue(label))
	}
	return strings.Join(rdns, ",")
}

// DNToHostname converts a DN of domain components into a dotted hostname. The
// first dc value of each RDN is used; an RDN without one is an error.
//
//	DNToHostname("DC=some,DC=corp,DC=com") == "some.corp.com"
func DNToHostname(dn string) (string, error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", fmt.Errorf("invalid DN %q: %w", dn, err)
	}
	if len(parsed.RDNs) == 0 {
		return "", fmt.Errorf("DN %q has no components", dn)
	}

	labels := make([]string, 0, len(parsed.RDNs))
	for i, rdn := range parsed.RDNs {
		label, ok := firstDomainComponent(rdn)
		if !ok {
			return "", fmt.Errorf("RDN %d of %q has no dc attribute", i+1, dn)
		}
		labels = append(labels, label)
	}

	return strings.Join(labels, "."), nil
}

func firstDomainComponent(rdn *ldap.RelativeDN) (string, bool) {
	for _, attr := range rdn.Attributes {
		if strings.EqualFold(attr.Type, "dc") {
			return attr.Value, true
		}
	}
	return "", false
}
