package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/isometry/terraform-provider-ldaplookup/internal/lookup"
)

// EnvPrefix prefixes the environment variables that overlay the defaults
// layer, for example LDAPLOOKUP_URL or LDAPLOOKUP_TLS_REQCERT.
const EnvPrefix = "LDAPLOOKUP_"

// LoadEnvFile loads variables from a .env file into the process
// environment. Variables that are already set are not overridden.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// EnvVar returns the environment variable for a configuration field.
func EnvVar(field string) string {
	return EnvPrefix + strings.ToUpper(field)
}

// EnvLayer returns the configuration fields set through LDAPLOOKUP_*
// environment variables. The value field takes a single attribute name or a
// flow sequence such as [cn, mail].
func EnvLayer() (lookup.Layer, error) {
	return envLayer(os.LookupEnv)
}

func envLayer(lookupEnv func(string) (string, bool)) (lookup.Layer, error) {
	layer := lookup.Layer{}
	for _, field := range lookup.FieldNames() {
		raw, ok := lookupEnv(EnvVar(field))
		if !ok {
			continue
		}
		value, err := parseValue(field, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvVar(field), err)
		}
		layer[field] = value
	}
	return layer, nil
}

// Overlay returns base with every entry of top applied over it.
func Overlay(base, top lookup.Layer) lookup.Layer {
	merged := make(lookup.Layer, len(base)+len(top))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range top {
		merged[k] = v
	}
	return merged
}
