package lookup

import (
	"fmt"
	"strings"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
)

// Overrides are the call-site settings of one lookup invocation.
type Overrides struct {
	// Context selects a named context; empty selects the default context.
	Context string

	// Fields are per-call configuration overrides.
	Fields Layer

	// Terms are the search inputs, in call order.
	Terms []any
}

// Resolve merges the configuration layers of one invocation. Precedence, lowest
// first: built-in defaults, defaults, the selected context, call overrides.
// Merging is field-wise replacement.
func Resolve(defaults Layer, contexts ContextTable, call Overrides) (*EffectiveConfig, error) {
	builtin, err := builtinLayer()
	if err != nil {
		return nil, err
	}

	cfg := &EffectiveConfig{Context: DefaultContextName}

	var contextLayer Layer
	if call.Context != "" {
		layer, ok := contexts[call.Context]
		if !ok {
			return nil, &ConfigError{
				Context: call.Context,
				Message: fmt.Sprintf("context %s does not exist", call.Context),
			}
		}
		cfg.Context = call.Context
		contextLayer = layer
	} else if layer, ok := contexts[DefaultContextName]; ok {
		contextLayer = layer
	}

	layers := []struct {
		name  string
		layer Layer
	}{
		{"built-in defaults", builtin},
		{"defaults", defaults},
		{fmt.Sprintf("context %s", cfg.Context), contextLayer},
		{"call overrides", call.Fields},
	}
	for _, l := range layers {
		if err := cfg.apply(l.layer, l.name); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks required fields and enumerated values. A scope holding a
// template is checked after search expansion instead.
func (c *EffectiveConfig) validate() error {
	if !c.URL.IsSet() {
		return &ConfigError{Context: c.Context, Field: FieldURL, Message: "url is not set"}
	}
	if !c.Base.IsSet() {
		return &ConfigError{Context: c.Context, Field: FieldBase, Message: "base is not set"}
	}

	if scope, ok := c.Scope.Get(); ok && !isTemplate(scope) {
		if _, valid := ldap.ParseSearchScope(scope); !valid {
			return invalidOption(c.Context, FieldScope, scope, "base", "onelevel", "subtree")
		}
	}

	if auth, ok := c.Auth.Get(); ok {
		if _, valid := ldap.ParseAuthMethod(auth); !valid {
			return invalidOption(c.Context, FieldAuth, auth, "simple", "gssapi")
		}
	}

	if reqcert, ok := c.TLSReqCert.Get(); ok && reqcert != "" {
		if _, valid := ldap.ParseTLSRequireCert(reqcert); !valid {
			return invalidOption(c.Context, FieldTLSReqCert, reqcert, ldap.TLSRequireCertValues...)
		}
	}

	return nil
}

func invalidOption(context, field, value string, options ...string) *ConfigError {
	return &ConfigError{
		Context: context,
		Field:   field,
		Message: fmt.Sprintf("invalid value %q (expected one of: %s)", value, strings.Join(options, ", ")),
	}
}

// isTemplate reports whether s contains a template action.
func isTemplate(s string) bool {
	return strings.Contains(s, "{{")
}
