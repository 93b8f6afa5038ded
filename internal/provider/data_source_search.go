package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
	"github.com/isometry/terraform-provider-ldaplookup/internal/lookup"
	"github.com/isometry/terraform-provider-ldaplookup/internal/provider/helpers"
	"github.com/isometry/terraform-provider-ldaplookup/internal/provider/validators"
)

// Ensure provider defined types fully satisfy framework interfaces.
var _ datasource.DataSource = &SearchDataSource{}
var _ datasource.DataSourceWithConfigure = &SearchDataSource{}

// searchNamespace scopes the deterministic data source IDs.
var searchNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://registry.terraform.io/providers/isometry/ldaplookup/search"))

func NewSearchDataSource() datasource.DataSource {
	return &SearchDataSource{}
}

// SearchDataSource defines the data source implementation.
type SearchDataSource struct {
	engine *lookup.Engine
}

// SearchDataSourceModel describes the data source data model.
type SearchDataSourceModel struct {
	ID        types.String  `tfsdk:"id"`
	Context   types.String  `tfsdk:"context"`
	Terms     types.Dynamic `tfsdk:"terms"`
	Variables types.Dynamic `tfsdk:"variables"`

	// Per-lookup overrides
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

	// Computed
	Results     types.Dynamic `tfsdk:"results"`
	ResultCount types.Int64   `tfsdk:"result_count"`
}

func (d *SearchDataSource) Metadata(ctx context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_search"
}

func (d *SearchDataSource) Schema(ctx context.Context, req datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Runs one LDAP search per term and returns the shaped records. " +
			"The configuration is resolved from the built-in defaults, the provider defaults, the selected context and the " +
			"overrides given here, with the most specific setting winning per field. " +
			"When `key` is set, records sharing a key value are merged across terms.",

		Attributes: map[string]schema.Attribute{
			"id": schema.StringAttribute{
				MarkdownDescription: "Deterministic identifier derived from the lookup arguments.",
				Computed:            true,
			},
			"context": schema.StringAttribute{
				MarkdownDescription: "Name of the provider context to apply. Defaults to the `default` context when one is configured.",
				Optional:            true,
			},
			"terms": schema.DynamicAttribute{
				MarkdownDescription: "Search terms. A list runs one search per element; a single value runs one search. " +
					"Each term is bound to `.term` in search templates. Leading objects are further overrides, as in the per-field " +
					"attributes. Without terms a single search runs with a null term.",
				Optional: true,
			},
			"variables": schema.DynamicAttribute{
				MarkdownDescription: "Object of template variables available to every template.",
				Optional:            true,
			},
			"url": schema.StringAttribute{
				MarkdownDescription: "LDAP URL override.",
				Optional:            true,
			},
			"base": schema.StringAttribute{
				MarkdownDescription: "Search base DN override.",
				Optional:            true,
				Validators: []validator.String{
					validators.DNOrTemplate(),
				},
			},
			"auth": schema.StringAttribute{
				MarkdownDescription: "Bind mechanism override: `simple` or `gssapi`.",
				Optional:            true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf("simple", "gssapi"),
				},
			},
			"binddn": schema.StringAttribute{
				MarkdownDescription: "Bind DN override.",
				Optional:            true,
			},
			"bindpw": schema.StringAttribute{
				MarkdownDescription: "Bind password override.",
				Optional:            true,
				Sensitive:           true,
			},
			"scope": schema.StringAttribute{
				MarkdownDescription: "Search scope override: `base`, `onelevel`, `subtree` or a template.",
				Optional:            true,
				Validators: []validator.String{
					validators.OneOfOrTemplate("base", "onelevel", "subtree"),
				},
			},
			"filter": schema.StringAttribute{
				MarkdownDescription: "Search filter override. Use `filter_escape` to embed terms safely, " +
					"for example `(cn={{ filter_escape .term }})`.",
				Optional: true,
			},
			"key": schema.StringAttribute{
				MarkdownDescription: "Key attribute override. Set to an empty string to disable merging.",
				Optional:            true,
			},
			"tls": schema.BoolAttribute{
				MarkdownDescription: "StartTLS override for `ldap://` URLs.",
				Optional:            true,
			},
			"tls_reqcert": schema.StringAttribute{
				MarkdownDescription: "Certificate verification override: `never`, `allow`, `try`, `demand` or `hard`.",
				Optional:            true,
				Validators: []validator.String{
					validators.CaseInsensitiveOneOf(ldap.TLSRequireCertValues...),
				},
			},
			"value": schema.DynamicAttribute{
				MarkdownDescription: "Attribute selection override: an attribute name, a single-key object mapping a name " +
					"to its properties, or a list of those.",
				Optional: true,
			},
			"results": schema.DynamicAttribute{
				MarkdownDescription: "The shaped records in first-seen order. Binary values are base64 encoded.",
				Computed:            true,
			},
			"result_count": schema.Int64Attribute{
				MarkdownDescription: "Number of records returned.",
				Computed:            true,
			},
		},
	}
}

func (d *SearchDataSource) Configure(ctx context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	// Prevent panic if the provider has not been configured.
	if req.ProviderData == nil {
		return
	}

	engine, ok := req.ProviderData.(*lookup.Engine)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected Data Source Configure Type",
			fmt.Sprintf("Expected *lookup.Engine, got: %T. Please report this issue to the provider developers.", req.ProviderData),
		)
		return
	}

	d.engine = engine
}

func (d *SearchDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data SearchDataSourceModel

	ctx = initializeLogging(ctx)

	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}

	logCompletion := ldap.LogDataSourceOperation(ctx, "ldaplookup_search", "read", map[string]any{
		"context": data.Context.ValueString(),
	})
	defer func() {
		var err error
		if resp.Diagnostics.HasError() {
			for _, diag := range resp.Diagnostics.Errors() {
				err = fmt.Errorf("%s: %s", diag.Summary(), diag.Detail())
				break
			}
		}
		logCompletion(err)
	}()

	if d.engine == nil {
		resp.Diagnostics.AddError(
			"Unconfigured Provider",
			"The ldaplookup provider has not been configured. Please report this issue to the provider developers.",
		)
		return
	}

	call, err := d.buildCall(ctx, &data)
	if err != nil {
		resp.Diagnostics.AddError(
			"Invalid Lookup Arguments",
			fmt.Sprintf("Could not read the lookup arguments: %s", err.Error()),
		)
		return
	}

	records, err := d.engine.Lookup(ctx, call)
	if err != nil {
		summary, detail := lookupErrorDiagnostic(err)
		resp.Diagnostics.AddError(summary, detail)
		return
	}

	results, err := helpers.GoValueToTerraform(ctx, records)
	if err != nil {
		resp.Diagnostics.AddError(
			"Error Converting Results",
			fmt.Sprintf("Could not convert the lookup results to Terraform values: %s", err.Error()),
		)
		return
	}

	tflog.Debug(ctx, "Lookup returned records", map[string]any{
		"record_count": len(records),
	})

	data.ID = types.StringValue(searchID(call.Args))
	data.Results = types.DynamicValue(results)
	data.ResultCount = types.Int64Value(int64(len(records)))

	// Save data into Terraform state
	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}

// buildCall converts the data source configuration into lookup call
// arguments: one overrides mapping holding the context and the set fields,
// followed by the elements of terms.
func (d *SearchDataSource) buildCall(ctx context.Context, data *SearchDataSourceModel) (lookup.Call, error) {
	overrides := map[string]any{}

	if !data.Context.IsNull() {
		overrides[lookup.KeyContext] = data.Context.ValueString()
	}

	stringFields := []struct {
		field string
		value types.String
	}{
		{lookup.FieldURL, data.URL},
		{lookup.FieldBase, data.Base},
		{lookup.FieldAuth, data.Auth},
		{lookup.FieldBindDN, data.BindDN},
		{lookup.FieldBindPW, data.BindPW},
		{lookup.FieldScope, data.Scope},
		{lookup.FieldFilter, data.Filter},
		{lookup.FieldKey, data.Key},
		{lookup.FieldTLSReqCert, data.TLSReqCert},
	}
	for _, s := range stringFields {
		if !s.value.IsNull() && !s.value.IsUnknown() {
			overrides[s.field] = s.value.ValueString()
		}
	}

	if !data.TLS.IsNull() && !data.TLS.IsUnknown() {
		overrides[lookup.FieldTLS] = data.TLS.ValueBool()
	}

	if !data.Value.IsNull() {
		value, err := helpers.TerraformValueToGo(ctx, data.Value)
		if err != nil {
			return lookup.Call{}, fmt.Errorf("value: %w", err)
		}
		overrides[lookup.FieldValue] = value
	}

	// Leading objects in terms are further overrides and win over the
	// attributes above.
	terms, err := helpers.DynamicValueToSlice(ctx, data.Terms)
	if err != nil {
		return lookup.Call{}, fmt.Errorf("terms: %w", err)
	}

	variables, err := helpers.DynamicValueToMap(ctx, data.Variables)
	if err != nil {
		return lookup.Call{}, fmt.Errorf("variables: %w", err)
	}

	return lookup.Call{
		Args:      append([]any{overrides}, terms...),
		Variables: variables,
	}, nil
}

// lookupErrorDiagnostic maps a lookup error onto a diagnostic summary and
// detail.
func lookupErrorDiagnostic(err error) (string, string) {
	var (
		configErr    *lookup.ConfigError
		templateErr  *lookup.TemplateError
		directoryErr *lookup.DirectoryError
	)

	switch {
	case errors.As(err, &configErr):
		return "Invalid Lookup Configuration", err.Error()
	case errors.As(err, &templateErr):
		return "Template Expansion Failed", err.Error()
	case errors.As(err, &directoryErr):
		detail := err.Error()
		switch {
		case ldap.IsAuthenticationError(directoryErr.Err):
			detail += "\n\nCheck the binddn and bindpw settings, or the Kerberos credential cache for gssapi binds."
		case ldap.IsNotFoundError(directoryErr.Err):
			detail += "\n\nCheck that the search base exists."
		case ldap.IsRetryableError(directoryErr.Err):
			detail += "\n\nThis error may be transient; retrying the plan may succeed."
		}
		return "Directory Lookup Failed", detail
	default:
		return "Lookup Failed", err.Error()
	}
}

// searchID derives a stable identifier from the call arguments. fmt prints
// maps with sorted keys, so equal arguments give equal IDs.
func searchID(args []any) string {
	return uuid.NewSHA1(searchNamespace, fmt.Appendf(nil, "%v", args)).String()
}
