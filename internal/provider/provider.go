package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/provider/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
	"github.com/isometry/terraform-provider-ldaplookup/internal/lookup"
	"github.com/isometry/terraform-provider-ldaplookup/internal/provider/helpers"
	"github.com/isometry/terraform-provider-ldaplookup/internal/provider/validators"
)

// Ensure LDAPLookupProvider satisfies various provider interfaces.
var _ provider.Provider = &LDAPLookupProvider{}
var _ provider.ProviderWithFunctions = &LDAPLookupProvider{}

// Environment variables consulted when the matching provider attribute is unset.
const (
	EnvURL     = "LDAPLOOKUP_URL"
	EnvBase    = "LDAPLOOKUP_BASE"
	EnvBindDN  = "LDAPLOOKUP_BINDDN"
	EnvBindPW  = "LDAPLOOKUP_BINDPW"
	EnvTimeout = "LDAPLOOKUP_TIMEOUT"
)

// defaultTimeoutSeconds applies when neither timeout nor LDAPLOOKUP_TIMEOUT is set.
const defaultTimeoutSeconds = 30

// LDAPLookupProvider defines the provider implementation.
type LDAPLookupProvider struct {
	// version is set to the provider version on release, "dev" when the
	// provider is built and ran locally, and "test" when running acceptance
	// testing.
	version string

	directory lookup.Directory
}

// LDAPLookupProviderModel describes the provider data model. The lookup
// fields form the global defaults layer.
type LDAPLookupProviderModel struct {
	// Lookup defaults
	URL        types.String  `tfsdk:"url"`
	Base       types.String  `tfsdk:"base"`
	Auth       types.String  `tfsdk:"auth"`
	BindDN     types.String  `tfsdk:"binddn"`
	BindPW     types.String  `tfsdk:"bindpw"`
	Scope      types.String  `tfsdk:"scope"`
	Filter     types.String  `tfsdk:"filter"`
	Key        types.String  `tfsdk:"key"`
	TLS        types.Bool    `tfsdk:"tls"`
	TLSReqCert types.String  `tfsdk:"tls_reqcert"`
	Value      types.Dynamic `tfsdk:"value"`

	// Named contexts
	Contexts types.Dynamic `tfsdk:"contexts"`

	// Client settings
	Timeout        types.Int64  `tfsdk:"timeout"`
	KerberosConfig types.String `tfsdk:"kerberos_config"`
	KerberosCCache types.String `tfsdk:"kerberos_ccache"`
	KerberosSPN    types.String `tfsdk:"kerberos_spn"`
}

func (p *LDAPLookupProvider) Metadata(ctx context.Context, req provider.MetadataRequest, resp *provider.MetadataResponse) {
	resp.TypeName = "ldaplookup"
	resp.Version = p.version
}

func (p *LDAPLookupProvider) Schema(ctx context.Context, req provider.SchemaRequest, resp *provider.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "The LDAP lookup provider searches LDAP directories and shapes the results into Terraform values. " +
			"Lookups combine built-in defaults, the defaults configured here, a named context and per-lookup overrides. " +
			"String settings may contain Go templates (`{{ .term }}`) rendered per lookup.",
		Attributes: map[string]schema.Attribute{
			"url": schema.StringAttribute{
				MarkdownDescription: "Default LDAP URL (`ldap://`, `ldaps://` or `ldapi://`). " +
					"Can be set via the `LDAPLOOKUP_URL` environment variable.",
				Optional: true,
			},
			"base": schema.StringAttribute{
				MarkdownDescription: "Default search base DN. Can be set via the `LDAPLOOKUP_BASE` environment variable.",
				Optional:            true,
				Validators: []validator.String{
					validators.DNOrTemplate(),
				},
			},
			"auth": schema.StringAttribute{
				MarkdownDescription: "Bind mechanism: `simple` (default) or `gssapi`.",
				Optional:            true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf("simple", "gssapi"),
				},
			},
			"binddn": schema.StringAttribute{
				MarkdownDescription: "Default bind DN for simple binds. Binds anonymously when unset. " +
					"Can be set via the `LDAPLOOKUP_BINDDN` environment variable.",
				Optional: true,
			},
			"bindpw": schema.StringAttribute{
				MarkdownDescription: "Default bind password for simple binds. " +
					"Can be set via the `LDAPLOOKUP_BINDPW` environment variable.",
				Optional:  true,
				Sensitive: true,
			},
			"scope": schema.StringAttribute{
				MarkdownDescription: "Default search scope: `base`, `onelevel` or `subtree` (default), or a template.",
				Optional:            true,
				Validators: []validator.String{
					validators.OneOfOrTemplate("base", "onelevel", "subtree"),
				},
			},
			"filter": schema.StringAttribute{
				MarkdownDescription: "Default search filter. Defaults to `(objectClass=*)`.",
				Optional:            true,
			},
			"key": schema.StringAttribute{
				MarkdownDescription: "Default key attribute. When set, records sharing a key value are merged. " +
					"`dn` keys by entry DN and `term` by search term.",
				Optional: true,
			},
			"tls": schema.BoolAttribute{
				MarkdownDescription: "Upgrade `ldap://` connections with StartTLS. Defaults to `false`.",
				Optional:            true,
			},
			"tls_reqcert": schema.StringAttribute{
				MarkdownDescription: "Server certificate verification: `never`, `allow`, `try`, `demand` or `hard`. " +
					"This setting is process-wide: the last lookup to set it applies to every later connection.",
				Optional: true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(ldap.TLSRequireCertValues...),
				},
			},
			"value": schema.DynamicAttribute{
				MarkdownDescription: "Default attribute selection: an attribute name, a single-key object mapping a name " +
					"to its properties, or a list of those. Properties are `encoding`, `skip`, `list` and `join`.",
				Optional: true,
			},
			"contexts": schema.DynamicAttribute{
				MarkdownDescription: "Named contexts: an object whose attributes are partial lookup configurations. " +
					"A context named `default` applies when a lookup names none.",
				Optional: true,
			},
			"timeout": schema.Int64Attribute{
				MarkdownDescription: "Connection and search timeout in seconds. Defaults to `30`. " +
					"Can be set via the `LDAPLOOKUP_TIMEOUT` environment variable.",
				Optional: true,
				Validators: []validator.Int64{
					int64validator.AtLeast(1),
				},
			},
			"kerberos_config": schema.StringAttribute{
				MarkdownDescription: "Path to the Kerberos configuration used for `gssapi` binds. " +
					"Defaults to `KRB5_CONFIG` or `/etc/krb5.conf`.",
				Optional: true,
			},
			"kerberos_ccache": schema.StringAttribute{
				MarkdownDescription: "Path to the Kerberos credential cache used for `gssapi` binds. " +
					"Defaults to `KRB5CCNAME` or `/tmp/krb5cc_<uid>`.",
				Optional: true,
			},
			"kerberos_spn": schema.StringAttribute{
				MarkdownDescription: "Service principal override for `gssapi` binds. Defaults to `ldap/<host>`.",
				Optional:            true,
			},
		},
	}
}

func (p *LDAPLookupProvider) Configure(ctx context.Context, req provider.ConfigureRequest, resp *provider.ConfigureResponse) {
	var data LDAPLookupProviderModel

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	ctx = p.configureLogging(ctx)

	tflog.Info(ctx, "Configuring LDAP lookup provider", map[string]any{
		"version": p.version,
	})

	defaults, err := buildDefaults(ctx, &data)
	if err != nil {
		resp.Diagnostics.AddError(
			"Invalid Provider Defaults",
			"The provider lookup defaults could not be read.\n\n"+err.Error(),
		)
		return
	}

	contexts, err := buildContexts(ctx, data.Contexts)
	if err != nil {
		resp.Diagnostics.AddAttributeError(
			path.Root("contexts"),
			"Invalid Contexts",
			"The provider contexts could not be read.\n\n"+err.Error(),
		)
		return
	}

	timeout := time.Duration(getInt64Value(data.Timeout, EnvTimeout, defaultTimeoutSeconds)) * time.Second

	engine := lookup.NewEngine(p.directory,
		lookup.WithDefaults(defaults),
		lookup.WithContexts(contexts),
		lookup.WithTimeout(timeout),
		lookup.WithKerberos(ldap.KerberosConfig{
			ConfigPath: data.KerberosConfig.ValueString(),
			CCachePath: data.KerberosCCache.ValueString(),
			SPN:        data.KerberosSPN.ValueString(),
		}),
	)

	tflog.Info(ctx, "LDAP lookup provider configured successfully", ldap.SanitizeFields(map[string]any{
		"defaults":      sortedFieldNames(defaults),
		"context_count": len(contexts),
		"timeout_s":     timeout.Seconds(),
	}))

	resp.DataSourceData = engine
}

// configureLogging sets up the logging subsystems and persistent fields.
func (p *LDAPLookupProvider) configureLogging(ctx context.Context) context.Context {
	ctx = initializeLogging(ctx)
	ctx = tflog.SetField(ctx, "provider", "ldaplookup")
	ctx = tflog.SetField(ctx, "provider_version", p.version)

	tflog.Debug(ctx, "LDAP lookup provider logging configured")

	return ctx
}

// buildDefaults constructs the global defaults layer from provider
// configuration and environment variables.
func buildDefaults(ctx context.Context, data *LDAPLookupProviderModel) (lookup.Layer, error) {
	layer := lookup.Layer{}

	stringFields := []struct {
		field  string
		value  types.String
		envVar string
	}{
		{lookup.FieldURL, data.URL, EnvURL},
		{lookup.FieldBase, data.Base, EnvBase},
		{lookup.FieldAuth, data.Auth, ""},
		{lookup.FieldBindDN, data.BindDN, EnvBindDN},
		{lookup.FieldBindPW, data.BindPW, EnvBindPW},
		{lookup.FieldScope, data.Scope, ""},
		{lookup.FieldFilter, data.Filter, ""},
		{lookup.FieldKey, data.Key, ""},
		{lookup.FieldTLSReqCert, data.TLSReqCert, ""},
	}
	for _, s := range stringFields {
		if v, ok := getStringValue(s.value, s.envVar); ok {
			layer[s.field] = v
		}
	}

	if !data.TLS.IsNull() && !data.TLS.IsUnknown() {
		layer[lookup.FieldTLS] = data.TLS.ValueBool()
	}

	if !data.Value.IsNull() {
		value, err := helpers.TerraformValueToGo(ctx, data.Value)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		layer[lookup.FieldValue] = value
	}

	return layer, nil
}

// buildContexts converts the contexts attribute into a context table. Every
// context must be an object of known configuration fields.
func buildContexts(ctx context.Context, value types.Dynamic) (lookup.ContextTable, error) {
	raw, err := helpers.DynamicValueToMap(ctx, value)
	if err != nil {
		return nil, err
	}

	contexts := make(lookup.ContextTable, len(raw))
	for name, entry := range raw {
		fields, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("context %s must be an object, got %T", name, entry)
		}
		for field := range fields {
			if !lookup.IsField(field) {
				return nil, fmt.Errorf("context %s: unknown configuration key %q", name, field)
			}
		}
		contexts[name] = lookup.Layer(fields)
	}
	return contexts, nil
}

func sortedFieldNames(layer lookup.Layer) []string {
	var names []string
	for _, name := range lookup.FieldNames() {
		if _, ok := layer[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Helper functions for configuration value resolution

// getStringValue returns the configured value, else the environment variable
// when one is named and set.
func getStringValue(configValue types.String, envVar string) (string, bool) {
	if !configValue.IsNull() && !configValue.IsUnknown() {
		return configValue.ValueString(), true
	}
	if envVar == "" {
		return "", false
	}
	return os.LookupEnv(envVar)
}

func getInt64Value(configValue types.Int64, envVar string, defaultValue int64) int64 {
	if !configValue.IsNull() && !configValue.IsUnknown() {
		return configValue.ValueInt64()
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		if parsed, err := strconv.ParseInt(envValue, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func (p *LDAPLookupProvider) Resources(ctx context.Context) []func() resource.Resource {
	return nil
}

func (p *LDAPLookupProvider) DataSources(ctx context.Context) []func() datasource.DataSource {
	return []func() datasource.DataSource{
		NewSearchDataSource,
	}
}

func (p *LDAPLookupProvider) Functions(ctx context.Context) []func() function.Function {
	return []func() function.Function{
		NewHostnameToDNFunction,
		NewDNToHostnameFunction,
	}
}

// New returns a provider factory backed by the go-ldap directory client.
func New(version string) func() provider.Provider {
	return NewWithDirectory(version, ldap.NewClient())
}

// NewWithDirectory returns a provider factory backed by directory.
func NewWithDirectory(version string, directory lookup.Directory) func() provider.Provider {
	return func() provider.Provider {
		return &LDAPLookupProvider{
			version:   version,
			directory: directory,
		}
	}
}
