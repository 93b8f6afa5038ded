package lookup

import (
	"fmt"
	"strings"
)

// ConfigError reports malformed or missing configuration: an unknown context,
// an unset url or base, an out-of-range enumerated value, or a malformed
// attribute specification.
type ConfigError struct {
	Context string // Resolved or requested context name
	Field   string // Configuration field (if applicable)
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Context != "" {
		fmt.Fprintf(&b, " in context %q", e.Context)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " for %s", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Phase identifies which template expansion pass failed.
type Phase string

const (
	PhaseConnection Phase = "connection"
	PhaseSearch     Phase = "search"
)

// TemplateError reports a failed expansion of a configuration field.
type TemplateError struct {
	Phase   Phase
	Field   string
	Context string
	Term    any // Only meaningful for PhaseSearch
	Err     error
}

func (e *TemplateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "template expansion of %s failed (%s phase", e.Field, e.Phase)
	if e.Context != "" {
		fmt.Fprintf(&b, ", context %q", e.Context)
	}
	if e.Phase == PhaseSearch {
		fmt.Fprintf(&b, ", term %s", formatTerm(e.Term))
	}
	fmt.Fprintf(&b, "): %v", e.Err)
	return b.String()
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// DirectoryError reports a failed open, search or value decode. Err is usually
// an *ldap.LDAPError.
type DirectoryError struct {
	Operation string
	Context   string
	Term      any
	HasTerm   bool
	Err       error
}

func (e *DirectoryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "directory %s failed", e.Operation)
	if e.Context != "" {
		fmt.Fprintf(&b, " in context %q", e.Context)
	}
	if e.HasTerm {
		fmt.Fprintf(&b, " for term %s", formatTerm(e.Term))
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// formatTerm renders a term for error messages.
func formatTerm(term any) string {
	switch t := term.(type) {
	case nil:
		return "<none>"
	case string:
		return fmt.Sprintf("%q", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
