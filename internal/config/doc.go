// Package config loads lookup configuration files for the ldaplookup CLI.
//
// A file holds the global defaults layer, the named contexts, the ambient
// template variables and client settings. YAML and TOML are supported and
// detected from the file extension. LDAPLOOKUP_* environment variables,
// optionally loaded from a .env file, overlay the defaults layer.
package config
