package lookup

import (
	"fmt"
	"maps"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
)

// Search binding names added to the ambient variables in the search phase.
const (
	BindingContext = "context"
	BindingTerm    = "term"
)

// SearchParams are the expanded search settings for one term.
type SearchParams struct {
	Base   string
	Scope  ldap.SearchScope
	Filter string
}

// Expander runs the two template expansion passes of an invocation. The
// connection pass sees the ambient variables only; the search pass also sees
// the context and the current term.
type Expander struct {
	renderer  Renderer
	variables map[string]any
}

// NewExpander creates an Expander over the ambient variables.
func NewExpander(renderer Renderer, variables map[string]any) *Expander {
	if variables == nil {
		variables = map[string]any{}
	}
	return &Expander{renderer: renderer, variables: variables}
}

// ExpandConnection returns a copy of cfg with url, binddn, bindpw, key and
// value expanded. Search fields are left untouched.
func (x *Expander) ExpandConnection(cfg *EffectiveConfig) (*EffectiveConfig, error) {
	expanded := *cfg

	connectionFields := []struct {
		name    string
		setting *Setting[string]
	}{
		{FieldURL, &expanded.URL},
		{FieldBindDN, &expanded.BindDN},
		{FieldBindPW, &expanded.BindPW},
		{FieldKey, &expanded.Key},
	}
	for _, f := range connectionFields {
		raw, ok := f.setting.Get()
		if !ok {
			continue
		}
		rendered, err := x.renderer.Render(raw, x.variables)
		if err != nil {
			return nil, &TemplateError{Phase: PhaseConnection, Field: f.name, Context: cfg.Context, Err: err}
		}
		*f.setting = Set(rendered)
	}

	if raw, ok := cfg.Value.Get(); ok {
		rendered, err := x.renderStructure(raw, x.variables)
		if err != nil {
			return nil, &TemplateError{Phase: PhaseConnection, Field: FieldValue, Context: cfg.Context, Err: err}
		}
		expanded.Value = Set(rendered)
	}

	if url, _ := expanded.URL.Get(); url == "" {
		return nil, &ConfigError{Context: cfg.Context, Field: FieldURL, Message: "url is empty"}
	}

	return &expanded, nil
}

// ExpandSearch expands base, scope and filter for one term.
func (x *Expander) ExpandSearch(cfg *EffectiveConfig, contextBinding map[string]any, term any) (*SearchParams, error) {
	bindings := maps.Clone(x.variables)
	bindings[BindingContext] = contextBinding
	bindings[BindingTerm] = term

	render := func(field string, setting Setting[string]) (string, error) {
		raw := setting.Or("")
		rendered, err := x.renderer.Render(raw, bindings)
		if err != nil {
			return "", &TemplateError{Phase: PhaseSearch, Field: field, Context: cfg.Context, Term: term, Err: err}
		}
		return rendered, nil
	}

	base, err := render(FieldBase, cfg.Base)
	if err != nil {
		return nil, err
	}
	scopeName, err := render(FieldScope, cfg.Scope)
	if err != nil {
		return nil, err
	}
	filter, err := render(FieldFilter, cfg.Filter)
	if err != nil {
		return nil, err
	}

	scope, ok := ldap.ParseSearchScope(scopeName)
	if !ok {
		return nil, invalidOption(cfg.Context, FieldScope, scopeName, "base", "onelevel", "subtree")
	}

	return &SearchParams{Base: base, Scope: scope, Filter: filter}, nil
}

// renderStructure renders every string, including mapping keys, inside v.
func (x *Expander) renderStructure(v any, bindings map[string]any) (any, error) {
	switch t := v.(type) {
	case string:
		return x.renderer.Render(t, bindings)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			rendered, err := x.renderStructure(item, bindings)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			rendered, err := x.renderer.Render(item, bindings)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for _, key := range sortedKeys(t) {
			renderedKey, err := x.renderer.Render(key, bindings)
			if err != nil {
				return nil, err
			}
			if _, dup := out[renderedKey]; dup {
				return nil, fmt.Errorf("key %q renders to duplicate key %q", key, renderedKey)
			}
			rendered, err := x.renderStructure(t[key], bindings)
			if err != nil {
				return nil, err
			}
			out[renderedKey] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}
