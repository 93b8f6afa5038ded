package lookup

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
)

// Directory opens bound directory sessions. *ldap.Client implements it.
type Directory interface {
	Open(ctx context.Context, config *ldap.ConnectionConfig) (ldap.Session, error)
}

var _ Directory = (*ldap.Client)(nil)

// Call is one lookup invocation.
type Call struct {
	// Args are leading override mappings followed by terms.
	Args []any

	// Variables is the ambient template environment.
	Variables map[string]any
}

// Engine resolves configuration, queries the directory and shapes results.
// It is immutable after construction and safe for concurrent use.
type Engine struct {
	directory Directory
	renderer  Renderer
	defaults  Layer
	contexts  ContextTable
	timeout   time.Duration
	kerberos  ldap.KerberosConfig
}

// Option configures an Engine.
type Option func(*Engine)

// WithDefaults sets the global defaults layer.
func WithDefaults(defaults Layer) Option {
	return func(e *Engine) { e.defaults = defaults }
}

// WithContexts sets the named contexts.
func WithContexts(contexts ContextTable) Option {
	return func(e *Engine) { e.contexts = contexts }
}

// WithRenderer replaces the template renderer.
func WithRenderer(renderer Renderer) Option {
	return func(e *Engine) { e.renderer = renderer }
}

// WithTimeout sets the connection and request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) { e.timeout = timeout }
}

// WithKerberos sets the Kerberos settings used for gssapi binds.
func WithKerberos(kerberos ldap.KerberosConfig) Option {
	return func(e *Engine) { e.kerberos = kerberos }
}

// NewEngine creates an Engine on top of a directory.
func NewEngine(directory Directory, opts ...Option) *Engine {
	e := &Engine{
		directory: directory,
		renderer:  NewTemplateRenderer(),
		defaults:  Layer{},
		contexts:  ContextTable{},
		timeout:   ldap.DefaultConfig().Timeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Lookup runs one invocation and returns its records. Any error aborts the
// whole invocation and no partial results are returned. The error is a
// *ConfigError, *TemplateError or *DirectoryError.
func (e *Engine) Lookup(ctx context.Context, call Call) ([]any, error) {
	overrides, err := ParseCall(call.Args)
	if err != nil {
		return nil, err
	}

	var records []any
	err = ldap.LogOperation(ctx, "lookup", "lookup", map[string]any{
		"context":    overrides.Context,
		"term_count": len(overrides.Terms),
	}, func() error {
		var runErr error
		records, runErr = e.run(ctx, overrides, call.Variables)
		return runErr
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (e *Engine) run(ctx context.Context, overrides Overrides, variables map[string]any) ([]any, error) {
	cfg, err := Resolve(e.defaults, e.contexts, overrides)
	if err != nil {
		return nil, err
	}

	expander := NewExpander(e.renderer, variables)
	cfg, err = expander.ExpandConnection(cfg)
	if err != nil {
		return nil, err
	}

	directives, err := ParseAttributeSpec(cfg.Value.Or(nil))
	if err != nil {
		return nil, withContext(err, cfg.Context)
	}
	shaper := NewShaper(directives, cfg.Key.Or(""))

	tflog.SubsystemDebug(ctx, "lookup", "Resolved lookup configuration", ldap.SanitizeFields(map[string]any{
		"context":    cfg.Context,
		"url":        cfg.URL.Or(""),
		"auth":       cfg.Auth.Or(""),
		"binddn":     cfg.BindDN.Or(""),
		"key":        cfg.Key.Or(""),
		"attributes": shaper.Attributes(),
	}))

	session, err := e.directory.Open(ctx, e.connectionConfig(cfg))
	if err != nil {
		return nil, &DirectoryError{Operation: "open", Context: cfg.Context, Err: err}
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			tflog.SubsystemWarn(ctx, "lookup", "Failed to close directory session", map[string]any{
				"error": closeErr.Error(),
			})
		}
	}()

	contextBinding := cfg.Binding()
	accumulator := NewAccumulator(shaper.Key())

	for _, term := range overrides.Terms {
		if err := ctx.Err(); err != nil {
			return nil, &DirectoryError{Operation: "search", Context: cfg.Context, Term: term, HasTerm: true, Err: err}
		}

		params, err := expander.ExpandSearch(cfg, contextBinding, term)
		if err != nil {
			return nil, err
		}

		tflog.SubsystemTrace(ctx, "lookup", "Searching for term", map[string]any{
			"term":   formatTerm(term),
			"base":   params.Base,
			"scope":  params.Scope.String(),
			"filter": params.Filter,
		})

		entries, err := session.Search(ctx, &ldap.SearchRequest{
			BaseDN:     params.Base,
			Scope:      params.Scope,
			Filter:     params.Filter,
			Attributes: shaper.Attributes(),
			TimeLimit:  e.timeout,
		})
		if err != nil {
			return nil, &DirectoryError{Operation: "search", Context: cfg.Context, Term: term, HasTerm: true, Err: err}
		}

		for _, entry := range entries {
			record, key, ok, err := shaper.Shape(entry, term)
			if err != nil {
				var configErr *ConfigError
				if errors.As(err, &configErr) {
					return nil, withContext(err, cfg.Context)
				}
				return nil, &DirectoryError{Operation: "decode", Context: cfg.Context, Term: term, HasTerm: true, Err: err}
			}
			if ok {
				accumulator.Add(key, record)
			}
		}
	}

	tflog.SubsystemDebug(ctx, "lookup", "Lookup completed", map[string]any{
		"context":      cfg.Context,
		"record_count": accumulator.Len(),
	})

	return accumulator.Records(), nil
}

// connectionConfig builds the directory connection settings from an expanded
// configuration.
func (e *Engine) connectionConfig(cfg *EffectiveConfig) *ldap.ConnectionConfig {
	auth, _ := ldap.ParseAuthMethod(cfg.Auth.Or("simple"))

	var requireCert ldap.TLSRequireCert
	if name, ok := cfg.TLSReqCert.Get(); ok {
		requireCert, _ = ldap.ParseTLSRequireCert(name)
	}

	return &ldap.ConnectionConfig{
		URL:          cfg.URL.Or(""),
		StartTLS:     cfg.TLS.Or(false),
		Timeout:      e.timeout,
		RequireCert:  requireCert,
		AuthMethod:   auth,
		BindDN:       cfg.BindDN.Or(""),
		BindPassword: cfg.BindPW.Or(""),
		Kerberos:     e.kerberos,
	}
}

// withContext fills in the context name of a ConfigError.
func withContext(err error, contextName string) error {
	var configErr *ConfigError
	if errors.As(err, &configErr) && configErr.Context == "" {
		configErr.Context = contextName
	}
	return err
}
