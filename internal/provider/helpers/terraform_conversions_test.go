package helpers

import (
	"context"
	"math/big"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerraformValueToGo(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		value attr.Value
		want  any
	}{
		{name: "null", value: types.StringNull(), want: nil},
		{name: "string", value: types.StringValue("jdoe"), want: "jdoe"},
		{name: "bool", value: types.BoolValue(true), want: true},
		{name: "whole number", value: types.NumberValue(big.NewFloat(42)), want: int64(42)},
		{name: "fractional number", value: types.NumberValue(big.NewFloat(1.5)), want: 1.5},
		{
			name: "tuple",
			value: types.TupleValueMust(
				[]attr.Type{types.StringType, types.BoolType},
				[]attr.Value{types.StringValue("a"), types.BoolValue(false)},
			),
			want: []any{"a", false},
		},
		{
			name: "object",
			value: types.ObjectValueMust(
				map[string]attr.Type{"base": types.StringType, "tls": types.BoolType},
				map[string]attr.Value{"base": types.StringValue("dc=x"), "tls": types.BoolValue(true)},
			),
			want: map[string]any{"base": "dc=x", "tls": true},
		},
		{
			name:  "dynamic list",
			value: types.DynamicValue(types.ListValueMust(types.StringType, []attr.Value{types.StringValue("cn")})),
			want:  []any{"cn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TerraformValueToGo(ctx, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := TerraformValueToGo(ctx, types.StringUnknown())
	assert.Error(t, err)
}

func TestDynamicValueToMap(t *testing.T) {
	ctx := context.Background()

	got, err := DynamicValueToMap(ctx, types.DynamicNull())
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = DynamicValueToMap(ctx, types.DynamicValue(types.MapValueMust(types.StringType, map[string]attr.Value{
		"ou": types.StringValue("people"),
	})))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ou": "people"}, got)

	_, err = DynamicValueToMap(ctx, types.DynamicValue(types.StringValue("x")))
	assert.Error(t, err)
}

func TestDynamicValueToSlice(t *testing.T) {
	ctx := context.Background()

	got, err := DynamicValueToSlice(ctx, types.DynamicNull())
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = DynamicValueToSlice(ctx, types.DynamicValue(types.StringValue("jdoe")))
	require.NoError(t, err)
	assert.Equal(t, []any{"jdoe"}, got)

	got, err = DynamicValueToSlice(ctx, types.DynamicValue(types.TupleValueMust(
		[]attr.Type{types.StringType, types.ListType{ElemType: types.StringType}},
		[]attr.Value{
			types.StringValue("a"),
			types.ListValueMust(types.StringType, []attr.Value{types.StringValue("b"), types.StringValue("c")}),
		},
	)))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", []any{"b", "c"}}, got)
}

func TestGoValueToTerraform(t *testing.T) {
	ctx := context.Background()

	got, err := GoValueToTerraform(ctx, []byte{0xff, 0xd8})
	require.NoError(t, err)
	assert.Equal(t, types.StringValue("/9g="), got)

	got, err = GoValueToTerraform(ctx, []any{
		map[string]any{"dn": "uid=a,dc=x", "memberOf": []any{"cn=g1", "cn=g2"}},
		"bare",
	})
	require.NoError(t, err)

	tuple, ok := got.(types.Tuple)
	require.True(t, ok)
	require.Len(t, tuple.Elements(), 2)

	record, ok := tuple.Elements()[0].(types.Object)
	require.True(t, ok)
	assert.Equal(t, types.StringValue("uid=a,dc=x"), record.Attributes()["dn"])

	roundTrip, err := TerraformValueToGo(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"dn": "uid=a,dc=x", "memberOf": []any{"cn=g1", "cn=g2"}},
		"bare",
	}, roundTrip)

	_, err = GoValueToTerraform(ctx, struct{}{})
	assert.Error(t, err)
}
