package lookup

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/isometry/terraform-provider-ldaplookup/internal/ldap"
)

// decodeValue converts one raw attribute value according to encoding. Binary
// values are returned as a copy of the raw bytes; every other encoding yields
// a string.
func decodeValue(encoding string, raw []byte) (any, error) {
	switch encoding {
	case EncodingNone, "":
		return string(raw), nil
	case EncodingBinary:
		return bytes.Clone(raw), nil
	case EncodingSID:
		return ldap.DecodeSID(raw)
	case EncodingGUID:
		return ldap.DecodeGUID(raw)
	default:
		enc, err := htmlindex.Get(encoding)
		if err != nil {
			return nil, fmt.Errorf("unknown character set %q", encoding)
		}
		decoded, err := enc.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", encoding, err)
		}
		return string(decoded), nil
	}
}

// project applies a directive to the raw values of one attribute. It returns
// false when the attribute produced nothing to emit.
func project(d AttributeDirective, raw [][]byte) (any, bool, error) {
	values := make([]any, 0, len(raw))
	for _, r := range raw {
		v, err := decodeValue(d.Encoding, r)
		if err != nil {
			return nil, false, fmt.Errorf("attribute %s: %w", d.Name, err)
		}
		values = append(values, v)
	}

	if sep, ok := d.Join.Get(); ok {
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = v.(string)
		}
		return strings.Join(parts, sep), true, nil
	}

	switch {
	case d.List:
		return values, true, nil
	case len(values) == 0:
		return nil, false, nil
	case len(values) == 1:
		return values[0], true, nil
	default:
		return values, true, nil
	}
}
