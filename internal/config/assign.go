package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/isometry/terraform-provider-ldaplookup/internal/lookup"
)

// ParseAssignments parses name=value pairs. Values that look like a YAML flow
// sequence or mapping ([a, b] or {a: b}) are decoded; everything else,
// templates included, stays a string.
func ParseAssignments(pairs []string) (map[string]any, error) {
	result := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected name=value", pair)
		}
		value, err := parseValue(name, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		result[name] = value
	}
	return result, nil
}

// ParseOverrides parses --set assignments into a call override mapping. Only
// configuration fields and context are accepted.
func ParseOverrides(pairs []string) (map[string]any, error) {
	overrides, err := ParseAssignments(pairs)
	if err != nil {
		return nil, err
	}
	for name := range overrides {
		if name != lookup.KeyContext && !lookup.IsField(name) {
			return nil, fmt.Errorf("unknown configuration key %q (valid keys: %s)",
				name, strings.Join(lookup.FieldNames(), ", "))
		}
	}
	return overrides, nil
}

func parseValue(name, raw string) (any, error) {
	if !isFlowCollection(raw) {
		return raw, nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", name, err)
	}
	return value, nil
}

func isFlowCollection(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(trimmed, "{{"):
		return false
	case strings.HasPrefix(trimmed, "["):
		return strings.HasSuffix(trimmed, "]")
	case strings.HasPrefix(trimmed, "{"):
		return strings.HasSuffix(trimmed, "}")
	default:
		return false
	}
}
