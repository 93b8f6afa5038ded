package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// Logging subsystems, each controlled by TF_LOG_PROVIDER_LDAPLOOKUP_<SUBSYSTEM>.
var subsystems = map[string]string{
	"provider": "TF_LOG_PROVIDER_LDAPLOOKUP_PROVIDER",
	"lookup":   "TF_LOG_PROVIDER_LDAPLOOKUP_LOOKUP",
	"ldap":     "TF_LOG_PROVIDER_LDAPLOOKUP_LDAP",
}

// initializeLogging registers the provider's logging subsystems on ctx. Call it
// at the start of every Configure, Read and function Run.
func initializeLogging(ctx context.Context) context.Context {
	for name, envVar := range subsystems {
		ctx = tflog.NewSubsystem(ctx, name, tflog.WithLevelFromEnv(envVar))
	}
	return ctx
}
