package lookup

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

// Attribute encodings. Any other encoding name is a character set.
const (
	EncodingNone   = "none"
	EncodingBinary = "binary"
	EncodingSID    = "sid"
	EncodingGUID   = "guid"
)

// Attribute directive property names.
const (
	propEncoding   = "encoding"
	propSkip       = "skip"
	propList       = "list"
	propAlwaysList = "always_list"
	propJoin       = "join"
)

// AttributeDirective describes how one directory attribute is projected into
// a result record.
type AttributeDirective struct {
	Name     string
	Encoding string
	Skip     bool
	List     bool
	Join     Setting[string]
}

// newDirective returns a directive with default properties.
func newDirective(name string) AttributeDirective {
	return AttributeDirective{Name: name, Encoding: EncodingNone}
}

// ParseAttributeSpec normalizes a value specification into an ordered list of
// directives. The specification is nil, an attribute name, a single-key mapping
// of attribute name to properties, or a sequence of those. Properties are a
// mapping or a "key=value key=value" string. Duplicate names are kept.
func ParseAttributeSpec(spec any) ([]AttributeDirective, error) {
	switch s := spec.(type) {
	case nil:
		return nil, nil
	case []any:
		return parseSequence(s)
	case []string:
		items := make([]any, len(s))
		for i, name := range s {
			items[i] = name
		}
		return parseSequence(items)
	case []map[string]any:
		// TOML arrays of tables
		items := make([]any, len(s))
		for i, element := range s {
			items[i] = element
		}
		return parseSequence(items)
	default:
		directive, err := parseElement(spec)
		if err != nil {
			return nil, err
		}
		return []AttributeDirective{directive}, nil
	}
}

func parseSequence(items []any) ([]AttributeDirective, error) {
	directives := make([]AttributeDirective, 0, len(items))
	for i, item := range items {
		directive, err := parseElement(item)
		if err != nil {
			err.Message = fmt.Sprintf("value[%d]: %s", i, err.Message)
			return nil, err
		}
		directives = append(directives, directive)
	}
	return directives, nil
}

// parseElement parses one attribute name or single-key mapping.
func parseElement(element any) (AttributeDirective, *ConfigError) {
	switch e := element.(type) {
	case string:
		if strings.TrimSpace(e) == "" {
			return AttributeDirective{}, specError("attribute name cannot be empty")
		}
		return newDirective(e), nil

	case map[string]any:
		if len(e) != 1 {
			return AttributeDirective{}, specError(fmt.Sprintf(
				"attribute mapping must have exactly one key, got %d (%s)", len(e), strings.Join(sortedKeys(e), ", ")))
		}
		for name, props := range e {
			if strings.TrimSpace(name) == "" {
				return AttributeDirective{}, specError("attribute name cannot be empty")
			}
			return parseProperties(name, props)
		}

	case map[string]string:
		converted := make(map[string]any, len(e))
		for k, v := range e {
			converted[k] = v
		}
		return parseElement(converted)
	}

	return AttributeDirective{}, specError(fmt.Sprintf(
		"attribute specification must be a name or a single-key mapping, got %T", element))
}

// parseProperties builds a directive for name from its property mapping or
// key=value string.
func parseProperties(name string, props any) (AttributeDirective, *ConfigError) {
	directive := newDirective(name)

	var properties map[string]any
	switch p := props.(type) {
	case nil:
		return directive, nil
	case map[string]any:
		properties = p
	case string:
		parsed, err := parseKV(p)
		if err != nil {
			return AttributeDirective{}, specError(fmt.Sprintf("attribute %s: %v", name, err))
		}
		properties = parsed
	default:
		return AttributeDirective{}, specError(fmt.Sprintf(
			"attribute %s: properties must be a mapping or key=value string, got %T", name, props))
	}

	for _, key := range sortedKeys(properties) {
		v := properties[key]
		var err error
		switch key {
		case propEncoding:
			directive.Encoding, err = parseEncoding(v)
		case propSkip:
			directive.Skip, err = asBool(v)
		case propList, propAlwaysList:
			var list bool
			list, err = asBool(v)
			directive.List = directive.List || list
		case propJoin:
			sep, ok := v.(string)
			if !ok {
				err = fmt.Errorf("must be a string, got %T", v)
			}
			directive.Join = Set(sep)
		default:
			return AttributeDirective{}, specError(fmt.Sprintf(
				"attribute %s: unknown property %q (expected encoding, skip, list, always_list or join)", name, key))
		}
		if err != nil {
			return AttributeDirective{}, specError(fmt.Sprintf("attribute %s: %s %v", name, key, err))
		}
	}

	if directive.Join.IsSet() && directive.Encoding == EncodingBinary {
		return AttributeDirective{}, specError(fmt.Sprintf("attribute %s: join cannot be combined with binary encoding", name))
	}

	return directive, nil
}

// parseEncoding validates an encoding property value.
func parseEncoding(v any) (string, error) {
	name, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("must be a string, got %T", v)
	}

	switch normalized := strings.ToLower(strings.TrimSpace(name)); normalized {
	case "", EncodingNone:
		return EncodingNone, nil
	case EncodingBinary, EncodingSID, EncodingGUID:
		return normalized, nil
	default:
		if _, err := htmlindex.Get(normalized); err != nil {
			return "", fmt.Errorf("unknown character set %q", name)
		}
		return normalized, nil
	}
}

// parseKV parses whitespace-separated key=value pairs. Values may be single or
// double quoted.
func parseKV(s string) (map[string]any, error) {
	tokens, err := splitQuoted(s)
	if err != nil {
		return nil, err
	}

	result := make(map[string]any, len(tokens))
	for _, token := range tokens {
		key, value, ok := strings.Cut(token, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", token)
		}
		result[key] = value
	}
	return result, nil
}

// splitQuoted splits s on unquoted whitespace and strips the quotes.
func splitQuoted(s string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		inToken bool
		escaped bool
	)

	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inToken = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case r == ' ' || r == '\t' || r == '\n':
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	if escaped {
		current.WriteRune('\\')
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

// requestedAttributes returns the distinct names of non-skipped directives,
// compared case-insensitively, in first-seen order.
func requestedAttributes(directives []AttributeDirective) []string {
	seen := make(map[string]bool, len(directives))
	names := make([]string, 0, len(directives))
	for _, d := range directives {
		lower := strings.ToLower(d.Name)
		if d.Skip || seen[lower] {
			continue
		}
		seen[lower] = true
		names = append(names, d.Name)
	}
	return names
}

func specError(message string) *ConfigError {
	return &ConfigError{Field: FieldValue, Message: message}
}
