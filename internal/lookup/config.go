package lookup

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/creasty/defaults"
)

// Configuration field names.
const (
	FieldURL        = "url"
	FieldBase       = "base"
	FieldAuth       = "auth"
	FieldBindDN     = "binddn"
	FieldBindPW     = "bindpw"
	FieldScope      = "scope"
	FieldFilter     = "filter"
	FieldValue      = "value"
	FieldKey        = "key"
	FieldTLS        = "tls"
	FieldTLSReqCert = "tls_reqcert"
)

// Control keys accepted in call overrides alongside configuration fields.
const (
	KeyContext = "context"
	KeyTerms   = "terms"
)

// DefaultContextName names the context used when a call does not select one.
const DefaultContextName = "default"

// Layer is a partial configuration. A missing or nil entry leaves the field unset
// at that layer.
type Layer map[string]any

// ContextTable maps context names to their partial configurations.
type ContextTable map[string]Layer

// EffectiveConfig is the merged configuration of one lookup invocation.
type EffectiveConfig struct {
	// Context is the name of the selected context, or DefaultContextName.
	Context string

	URL        Setting[string]
	Base       Setting[string]
	Auth       Setting[string]
	BindDN     Setting[string]
	BindPW     Setting[string]
	Scope      Setting[string]
	Filter     Setting[string]
	Value      Setting[any]
	Key        Setting[string]
	TLS        Setting[bool]
	TLSReqCert Setting[string]
}

// builtinDefaults are the lowest-precedence settings.
type builtinDefaults struct {
	Auth   string `default:"simple"`
	Scope  string `default:"subtree"`
	Filter string `default:"(objectClass=*)"`
	TLS    bool   `default:"false"`
}

// builtinLayer returns the built-in defaults as a Layer.
func builtinLayer() (Layer, error) {
	builtin := &builtinDefaults{}
	if err := defaults.Set(builtin); err != nil {
		return nil, fmt.Errorf("failed to set built-in defaults: %w", err)
	}
	return Layer{
		FieldAuth:   builtin.Auth,
		FieldScope:  builtin.Scope,
		FieldFilter: builtin.Filter,
		FieldTLS:    builtin.TLS,
	}, nil
}

// field describes how one configuration field is assigned and read back.
type field struct {
	assign func(cfg *EffectiveConfig, v any) error
	value  func(cfg *EffectiveConfig) (any, bool)
}

var fields = map[string]field{
	FieldURL:        stringField(func(c *EffectiveConfig) *Setting[string] { return &c.URL }),
	FieldBase:       stringField(func(c *EffectiveConfig) *Setting[string] { return &c.Base }),
	FieldAuth:       stringField(func(c *EffectiveConfig) *Setting[string] { return &c.Auth }),
	FieldBindDN:     stringField(func(c *EffectiveConfig) *Setting[string] { return &c.BindDN }),
	FieldBindPW:     stringField(func(c *EffectiveConfig) *Setting[string] { return &c.BindPW }),
	FieldScope:      stringField(func(c *EffectiveConfig) *Setting[string] { return &c.Scope }),
	FieldFilter:     stringField(func(c *EffectiveConfig) *Setting[string] { return &c.Filter }),
	FieldKey:        stringField(func(c *EffectiveConfig) *Setting[string] { return &c.Key }),
	FieldTLSReqCert: stringField(func(c *EffectiveConfig) *Setting[string] { return &c.TLSReqCert }),
	FieldValue: {
		assign: func(c *EffectiveConfig, v any) error {
			c.Value = Set(v)
			return nil
		},
		value: func(c *EffectiveConfig) (any, bool) { return c.Value.Get() },
	},
	FieldTLS: {
		assign: func(c *EffectiveConfig, v any) error {
			b, err := asBool(v)
			if err != nil {
				return err
			}
			c.TLS = Set(b)
			return nil
		},
		value: func(c *EffectiveConfig) (any, bool) { return c.TLS.Get() },
	},
}

func stringField(setting func(*EffectiveConfig) *Setting[string]) field {
	return field{
		assign: func(c *EffectiveConfig, v any) error {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("must be a string, got %T", v)
			}
			*setting(c) = Set(s)
			return nil
		},
		value: func(c *EffectiveConfig) (any, bool) { return setting(c).Get() },
	}
}

// IsField reports whether name is a configuration field.
func IsField(name string) bool {
	_, ok := fields[name]
	return ok
}

// FieldNames returns the configuration field names in sorted order.
func FieldNames() []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// apply assigns every non-nil entry of layer to cfg.
func (c *EffectiveConfig) apply(layer Layer, layerName string) error {
	for _, name := range sortedKeys(layer) {
		v := layer[name]
		if v == nil {
			continue
		}

		f, ok := fields[name]
		if !ok {
			return &ConfigError{
				Context: c.Context,
				Field:   name,
				Message: fmt.Sprintf("unknown configuration key in %s", layerName),
			}
		}
		if err := f.assign(c, v); err != nil {
			return &ConfigError{
				Context: c.Context,
				Field:   name,
				Message: fmt.Sprintf("invalid value in %s", layerName),
				Err:     err,
			}
		}
	}
	return nil
}

// Binding returns the configuration as a template binding: every set field
// plus the context name under "name".
func (c *EffectiveConfig) Binding() map[string]any {
	binding := map[string]any{"name": c.Context}
	for name, f := range fields {
		if v, ok := f.value(c); ok {
			binding[name] = v
		}
	}
	return binding
}

// asBool accepts a bool or a string parseable by strconv.ParseBool.
func asBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("must be a boolean, got %q", b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("must be a boolean, got %T", v)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
