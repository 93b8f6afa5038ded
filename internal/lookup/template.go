package lookup

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	goldap "github.com/go-ldap/ldap/v3"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
)

// Renderer expands a template string against a set of bindings.
type Renderer interface {
	Render(tmpl string, bindings map[string]any) (string, error)
}

// TemplateRenderer renders Go text/template strings with the sprig function
// library and directory helpers. Bindings are the template's dot, so a binding
// named term is referenced as {{ .term }}. Referencing a missing binding is an
// error.
type TemplateRenderer struct {
	funcs template.FuncMap
}

var _ Renderer = (*TemplateRenderer)(nil)

// NewTemplateRenderer creates a TemplateRenderer.
func NewTemplateRenderer() *TemplateRenderer {
	funcs := sprig.TxtFuncMap()
	funcs["filter_escape"] = goldap.EscapeFilter
	funcs["dn_escape"] = ldap.EscapeDNValue
	funcs["hostname_to_dn"] = ldap.HostnameToDN
	funcs["dn_to_hostname"] = ldap.DNToHostname
	return &TemplateRenderer{funcs: funcs}
}

// Render expands tmpl. Strings without template actions are returned unchanged.
func (r *TemplateRenderer) Render(tmpl string, bindings map[string]any) (string, error) {
	if !isTemplate(tmpl) {
		return tmpl, nil
	}

	t, err := template.New("lookup").
		Option("missingkey=error").
		Funcs(r.funcs).
		Parse(tmpl)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	if err := t.Execute(&out, bindings); err != nil {
		return "", err
	}
	return out.String(), nil
}
