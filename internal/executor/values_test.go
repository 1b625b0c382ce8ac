package executor

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	schema "github.com/hanpama/graphexec/internal/schema"
)

const inputSDL = `
	enum Color { RED GREEN }
	input Point { x: Int! y: Int = 0 color: Color }
	type Query { noop: String }
`

func inputSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.BuildFromSDL("input.graphql", inputSDL)
	require.NoError(t, err)
	s.AddType(schema.NewType("Pick", schema.TypeKindInputObject, "").
		SetOneOf(true).
		AddInputField(schema.NewInputValue("id", "", schema.NamedType("ID"))).
		AddInputField(schema.NewInputValue("name", "", schema.NamedType("String"))))
	return s
}

// Pattern: Result comparison
func TestCoerceInputValue_Result(t *testing.T) {
	s := inputSchema(t)

	tests := []struct {
		name  string
		value any
		ref   *schema.TypeRef
		want  any
	}{
		{"int from float", float64(3), schema.NamedType("Int"), 3},
		{"int from json number", json.Number("4"), schema.NamedType("Int"), 4},
		{"float from int", 2, schema.NamedType("Float"), float64(2)},
		{"id from int", 7, schema.NamedType("ID"), "7"},
		{"enum", "RED", schema.NamedType("Color"), "RED"},
		{"single value to list", "a", schema.ListType(schema.NamedType("String")), []any{"a"}},
		{"list", []any{1, nil}, schema.ListType(schema.NamedType("Int")), []any{1, nil}},
		{"null", nil, schema.NamedType("Int"), nil},
		{"input object defaults", map[string]any{"x": 1}, schema.NamedType("Point"), map[string]any{"x": 1, "y": 0}},
		{"one of", map[string]any{"name": "n"}, schema.NamedType("Pick"), map[string]any{"name": "n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceInputValue(s, tt.value, tt.ref)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("coerced value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Pattern: Error comparison
func TestCoerceInputValue_Error(t *testing.T) {
	s := inputSchema(t)

	tests := []struct {
		name  string
		value any
		ref   *schema.TypeRef
		want  string
	}{
		{"null for non-null", nil, schema.NonNullType(schema.NamedType("Int")), `Expected non-nullable type "Int!" not to be null.`},
		{"int overflow", float64(1 << 40), schema.NamedType("Int"), "Int cannot represent non 32-bit signed integer value: 1099511627776"},
		{"fractional int", 1.5, schema.NamedType("Int"), "Int cannot represent non-integer value: 1.5"},
		{"bad boolean", "yes", schema.NamedType("Boolean"), `Boolean cannot represent a non boolean value: "yes"`},
		{"unknown enum value", "BLUE", schema.NamedType("Color"), `Value "BLUE" does not exist in "Color" enum.`},
		{"unknown input field", map[string]any{"x": 1, "z": 2}, schema.NamedType("Point"), `Field "z" is not defined by type "Point".`},
		{"missing required field", map[string]any{}, schema.NamedType("Point"), `Field "x" of required type "Int!" was not provided.`},
		{"one of with two keys", map[string]any{"id": "1", "name": "n"}, schema.NamedType("Pick"), `OneOf Input Object "Pick" must specify exactly one non-null key.`},
		{"one of with null", map[string]any{"id": nil}, schema.NamedType("Pick"), `OneOf Input Object "Pick" must specify exactly one non-null key.`},
		{"list element", []any{1, "x"}, schema.ListType(schema.NamedType("Int")), `In element #1: Int cannot represent non-integer value: "x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := coerceInputValue(s, tt.value, tt.ref)
			assert.EqualError(t, err, tt.want)
		})
	}
}
