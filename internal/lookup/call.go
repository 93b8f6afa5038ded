package lookup

import (
	"fmt"
)

// ParseCall splits call arguments into overrides and terms. Leading mappings
// are merged, later ones winning per key; every following argument is one
// term and is never flattened. Elements of a "terms" override are terms in
// their own right and come before the literal terms. A call without terms
// yields a single nil term.
func ParseCall(args []any) (Overrides, error) {
	overrides := Overrides{Fields: Layer{}}

	var termsOverride []any
	i := 0
	for ; i < len(args); i++ {
		mapping, ok := args[i].(map[string]any)
		if !ok {
			break
		}
		for _, key := range sortedKeys(mapping) {
			value := mapping[key]
			switch key {
			case KeyContext:
				if value == nil {
					overrides.Context = ""
					continue
				}
				name, ok := value.(string)
				if !ok {
					return Overrides{}, &ConfigError{
						Field:   KeyContext,
						Message: fmt.Sprintf("context must be a string, got %T", value),
					}
				}
				overrides.Context = name
			case KeyTerms:
				termsOverride = asTerms(value)
			default:
				if !IsField(key) {
					return Overrides{}, &ConfigError{
						Field:   key,
						Message: "unknown override key",
					}
				}
				overrides.Fields[key] = value
			}
		}
	}

	terms := append([]any(nil), termsOverride...)
	for _, arg := range args[i:] {
		if _, ok := arg.(map[string]any); ok {
			return Overrides{}, &ConfigError{Message: "context parameters must come before search terms"}
		}
		terms = append(terms, arg)
	}

	if len(terms) == 0 {
		terms = []any{nil}
	}
	overrides.Terms = terms
	return overrides, nil
}

// asTerms expands a terms override into its elements. A scalar is one term.
func asTerms(value any) []any {
	switch v := value.(type) {
	case nil:
		return nil
	case []any:
		return v
	case []string:
		terms := make([]any, len(v))
		for i, s := range v {
			terms[i] = s
		}
		return terms
	default:
		return []any{v}
	}
}
