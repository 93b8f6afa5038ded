package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/function"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
)

var _ function.Function = &DNToHostnameFunction{}

func NewDNToHostnameFunction() function.Function {
	return &DNToHostnameFunction{}
}

// DNToHostnameFunction implements the dn_to_hostname function.
type DNToHostnameFunction struct{}

// Metadata returns the function name.
func (f DNToHostnameFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "dn_to_hostname"
}

// Definition returns the function schema including parameters and return types.
func (f DNToHostnameFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary:     "Convert a domain component DN to a hostname",
		Description: "Converts a DN of dc components into a dotted hostname. Every RDN must carry a dc attribute.",
		MarkdownDescription: "Converts a DN of `dc` components into a dotted hostname. Every RDN must carry a `dc` attribute.\n\n" +
			"`provider::ldaplookup::dn_to_hostname(\"DC=some,DC=corp,DC=com\")` returns `some.corp.com`.",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:                "dn",
				Description:         "Distinguished Name made of dc components.",
				MarkdownDescription: "Distinguished Name made of `dc` components.",
			},
		},
		Return: function.StringReturn{},
	}
}

// Run implements the function logic.
func (f DNToHostnameFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var dn string

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &dn))
	if resp.Error != nil {
		return
	}

	hostname, err := ldap.DNToHostname(dn)
	if err != nil {
		resp.Error = function.NewArgumentFuncError(0, err.Error())
		return
	}

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, hostname))
}
