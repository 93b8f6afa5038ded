package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/function"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
)

var _ function.Function = &HostnameToDNFunction{}

func NewHostnameToDNFunction() function.Function {
	return &HostnameToDNFunction{}
}

// HostnameToDNFunction implements the hostname_to_dn function.
type HostnameToDNFunction struct{}

// Metadata returns the function name.
func (f HostnameToDNFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "hostname_to_dn"
}

// Definition returns the function schema including parameters and return types.
func (f HostnameToDNFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary:     "Convert a hostname to a domain component DN",
		Description: "Converts a dotted hostname into a DN of dc components, one per label.",
		MarkdownDescription: "Converts a dotted hostname into a DN of `dc` components, one per label.\n\n" +
			"`provider::ldaplookup::hostname_to_dn(\"some.corp.com\")` returns `dc=some,dc=corp,dc=com`.",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:                "hostname",
				Description:         "Dotted hostname, for example some.corp.com.",
				MarkdownDescription: "Dotted hostname, for example `some.corp.com`.",
			},
		},
		Return: function.StringReturn{},
	}
}

// Run implements the function logic.
func (f HostnameToDNFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var hostname string

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &hostname))
	if resp.Error != nil {
		return
	}

	if hostname == "" {
		resp.Error = function.NewArgumentFuncError(0, "hostname cannot be empty")
		return
	}

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, ldap.HostnameToDN(hostname)))
}
