// Package helpers converts between Terraform values and the plain Go values
// handled by the lookup engine.
package helpers

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"sort"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/types"
)

// TerraformValueToGo converts a Terraform value into a Go value. Lists, sets
// and tuples become []any; maps and objects become map[string]any. Whole
// numbers become int64, other numbers float64. Null values are nil and
// unknown values are an error.
func TerraformValueToGo(ctx context.Context, value attr.Value) (any, error) {
	if value.IsNull() {
		return nil, nil
	}
	if value.IsUnknown() {
		return nil, fmt.Errorf("cannot process unknown values")
	}

	switch v := value.(type) {
	case types.String:
		return v.ValueString(), nil
	case types.Int64:
		return v.ValueInt64(), nil
	case types.Int32:
		return int64(v.ValueInt32()), nil
	case types.Float64:
		return v.ValueFloat64(), nil
	case types.Bool:
		return v.ValueBool(), nil
	case types.Number:
		return numberToGo(v.ValueBigFloat())
	case types.List:
		return elementsToGo(ctx, v.Elements())
	case types.Set:
		return elementsToGo(ctx, v.Elements())
	case types.Tuple:
		return elementsToGo(ctx, v.Elements())
	case types.Map:
		return attributesToGo(ctx, v.Elements())
	case types.Object:
		return attributesToGo(ctx, v.Attributes())
	case types.Dynamic:
		return TerraformValueToGo(ctx, v.UnderlyingValue())
	default:
		return nil, fmt.Errorf("unsupported type: %T", value)
	}
}

func numberToGo(f *big.Float) (any, error) {
	if f == nil {
		return nil, fmt.Errorf("number value is nil")
	}
	if f.IsInt() {
		if i, accuracy := f.Int64(); accuracy == big.Exact {
			return i, nil
		}
	}
	value, _ := f.Float64()
	return value, nil
}

func elementsToGo(ctx context.Context, elements []attr.Value) ([]any, error) {
	result := make([]any, len(elements))
	for i, elem := range elements {
		goVal, err := TerraformValueToGo(ctx, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		result[i] = goVal
	}
	return result, nil
}

func attributesToGo(ctx context.Context, attributes map[string]attr.Value) (map[string]any, error) {
	result := make(map[string]any, len(attributes))
	for name, elem := range attributes {
		goVal, err := TerraformValueToGo(ctx, elem)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		result[name] = goVal
	}
	return result, nil
}

// DynamicValueToMap converts a dynamic value holding an object or map into a
// map[string]any. A null dynamic value yields a nil map.
func DynamicValueToMap(ctx context.Context, value types.Dynamic) (map[string]any, error) {
	if value.IsNull() || value.IsUnderlyingValueNull() {
		return nil, nil
	}
	if value.IsUnknown() || value.IsUnderlyingValueUnknown() {
		return nil, fmt.Errorf("value cannot be unknown")
	}

	switch underlying := value.UnderlyingValue().(type) {
	case types.Object, types.Map:
		goVal, err := TerraformValueToGo(ctx, underlying)
		if err != nil {
			return nil, err
		}
		return goVal.(map[string]any), nil
	default:
		return nil, fmt.Errorf("expected object or map value, got %s", underlying.Type(ctx))
	}
}

// DynamicValueToSlice converts a dynamic value into a []any. Lists, sets and
// tuples yield their elements; any other non-null value yields a one-element
// slice. A null dynamic value yields nil.
func DynamicValueToSlice(ctx context.Context, value types.Dynamic) ([]any, error) {
	goVal, err := TerraformValueToGo(ctx, value)
	if err != nil {
		return nil, err
	}
	switch v := goVal.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	default:
		return []any{v}, nil
	}
}

// GoValueToTerraform converts a Go value into a Terraform value. Maps become
// objects and slices become tuples so that heterogeneous records survive the
// conversion. Byte slices become base64 strings.
func GoValueToTerraform(ctx context.Context, value any) (attr.Value, error) {
	switch v := value.(type) {
	case nil:
		return types.StringNull(), nil
	case string:
		return types.StringValue(v), nil
	case []byte:
		return types.StringValue(base64.StdEncoding.EncodeToString(v)), nil
	case int:
		return types.Int64Value(int64(v)), nil
	case int64:
		return types.Int64Value(v), nil
	case float64:
		return types.Float64Value(v), nil
	case bool:
		return types.BoolValue(v), nil
	case map[string]any:
		attrTypes := make(map[string]attr.Type, len(v))
		attrValues := make(map[string]attr.Value, len(v))

		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			terraformVal, err := GoValueToTerraform(ctx, v[key])
			if err != nil {
				return nil, fmt.Errorf("failed to convert map element %s: %w", key, err)
			}
			attrValues[key] = terraformVal
			attrTypes[key] = terraformVal.Type(ctx)
		}

		obj, diags := types.ObjectValue(attrTypes, attrValues)
		if diags.HasError() {
			return nil, fmt.Errorf("failed to build object: %v", diags)
		}
		return obj, nil
	case []any:
		elements := make([]attr.Value, len(v))
		elementTypes := make([]attr.Type, len(v))

		for i, val := range v {
			terraformVal, err := GoValueToTerraform(ctx, val)
			if err != nil {
				return nil, fmt.Errorf("failed to convert list element %d: %w", i, err)
			}
			elements[i] = terraformVal
			elementTypes[i] = terraformVal.Type(ctx)
		}

		tuple, diags := types.TupleValue(elementTypes, elements)
		if diags.HasError() {
			return nil, fmt.Errorf("failed to build tuple: %v", diags)
		}
		return tuple, nil
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return GoValueToTerraform(ctx, items)
	default:
		return nil, fmt.Errorf("unsupported Go type for conversion: %T", value)
	}
}
