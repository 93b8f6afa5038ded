package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
	"github.com/isometry/terraform-provider-ldaplookup/internal/lookup"
)

// Format represents the configuration file format.
type Format int

const (
	// FormatAuto detects the format from the file extension.
	FormatAuto Format = iota

	// FormatYAML represents YAML format (default).
	FormatYAML

	// FormatTOML represents TOML format.
	FormatTOML
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	default:
		return "unknown"
	}
}

// File is a decoded configuration file.
type File struct {
	Defaults  map[string]any            `yaml:"defaults" toml:"defaults"`
	Contexts  map[string]map[string]any `yaml:"contexts" toml:"contexts"`
	Variables map[string]any            `yaml:"variables" toml:"variables"`
	Client    Client                    `yaml:"client" toml:"client"`
}

// Client holds directory client settings.
type Client struct {
	Timeout        time.Duration `yaml:"timeout" toml:"timeout" default:"30s"`
	KerberosConfig string        `yaml:"kerberos_config" toml:"kerberos_config"`
	KerberosCCache string        `yaml:"kerberos_ccache" toml:"kerberos_ccache"`
	KerberosSPN    string        `yaml:"kerberos_spn" toml:"kerberos_spn"`
}

// Kerberos returns the Kerberos settings for gssapi binds.
func (c Client) Kerberos() ldap.KerberosConfig {
	return ldap.KerberosConfig{
		ConfigPath: c.KerberosConfig,
		CCachePath: c.KerberosCCache,
		SPN:        c.KerberosSPN,
	}
}

// Empty returns a File with no layers and default client settings.
func Empty() (*File, error) {
	file := &File{}
	if err := file.finish(); err != nil {
		return nil, err
	}
	return file, nil
}

// Load reads and validates a configuration file.
func Load(path string, format Format) (*File, error) {
	path = os.ExpandEnv(path)

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if format == FormatAuto {
		format = detectFormat(path)
	}

	file, err := Parse(content, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// Parse decodes and validates configuration content.
func Parse(content []byte, format Format) (*File, error) {
	file := &File{}

	switch format {
	case FormatYAML, FormatAuto:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("YAML parse error: %w", err)
		}
	case FormatTOML:
		meta, err := toml.Decode(string(content), file)
		if err != nil {
			return nil, fmt.Errorf("TOML parse error: %w", err)
		}
		if keys := unknownTOMLKeys(meta.Undecoded()); len(keys) > 0 {
			return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	if err := file.finish(); err != nil {
		return nil, err
	}
	return file, nil
}

// freeformSections hold free-form tables. Their nested keys are reported as
// undecoded by the TOML decoder and are validated by finish instead.
var freeformSections = map[string]bool{
	"defaults":  true,
	"contexts":  true,
	"variables": true,
}

func unknownTOMLKeys(undecoded []toml.Key) []string {
	var keys []string
	for _, key := range undecoded {
		if len(key) > 0 && freeformSections[key[0]] {
			continue
		}
		keys = append(keys, key.String())
	}
	return keys
}

// finish applies client defaults and validates layer keys.
func (f *File) finish() error {
	if err := defaults.Set(&f.Client); err != nil {
		return fmt.Errorf("failed to set client defaults: %w", err)
	}
	if f.Client.Timeout <= 0 {
		return fmt.Errorf("client timeout must be positive, got %s", f.Client.Timeout)
	}

	if err := checkFields("defaults", f.Defaults); err != nil {
		return err
	}
	for _, name := range sortedKeys(f.Contexts) {
		if err := checkFields("contexts."+name, f.Contexts[name]); err != nil {
			return err
		}
	}
	return nil
}

// DefaultsLayer returns the global defaults layer.
func (f *File) DefaultsLayer() lookup.Layer {
	layer := make(lookup.Layer, len(f.Defaults))
	for k, v := range f.Defaults {
		layer[k] = v
	}
	return layer
}

// ContextTable returns the named contexts.
func (f *File) ContextTable() lookup.ContextTable {
	table := make(lookup.ContextTable, len(f.Contexts))
	for name, fields := range f.Contexts {
		table[name] = lookup.Layer(fields)
	}
	return table
}

func checkFields(section string, fields map[string]any) error {
	for _, key := range sortedKeys(fields) {
		if !lookup.IsField(key) {
			return fmt.Errorf("%s: unknown configuration key %q (valid keys: %s)",
				section, key, strings.Join(lookup.FieldNames(), ", "))
		}
	}
	return nil
}

// detectFormat determines the configuration format from the file extension.
func detectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	default:
		return FormatYAML
	}
}

// ParseFormat parses a format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return FormatAuto, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return FormatAuto, fmt.Errorf("unsupported format %q", name)
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
