package schema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err, "failed to read file: %s", path)
	return string(content)
}

func mustBuildPets(t *testing.T) *Schema {
	t.Helper()
	s, err := BuildFromSDL("pets.graphql", mustReadFile(t, filepath.Join("testdata", "pets.graphql")))
	require.NoError(t, err, "failed to build schema from SDL")
	return s
}

func TestBuildFromSDL(t *testing.T) {
	s := mustBuildPets(t)

	assert.Equal(t, "Query", s.QueryType)
	assert.Equal(t, "Mutation", s.MutationType)
	assert.Empty(t, s.SubscriptionType)
	assert.NotNil(t, s.AST)

	pets := s.Types["Query"].Field("pets")
	require.NotNil(t, pets)
	assert.Equal(t, "[Pet!]!", pets.Type.String())
	assert.Equal(t, 10, pets.Argument("first").DefaultValue)
	assert.Equal(t, "CAT", pets.Argument("kind").DefaultValue)

	legacy := s.Types["Query"].Field("legacy")
	assert.True(t, legacy.IsDeprecated)
	assert.Equal(t, "use pets", legacy.DeprecationReason)

	assert.Equal(t, []string{"Cat", "Dog"}, s.Types["Pet"].PossibleTypes)
	assert.Equal(t, []string{"Cat", "Dog"}, s.Types["Named"].PossibleTypes)
	assert.Equal(t, []string{"Named"}, s.Types["Cat"].Interfaces)

	parrot := s.Types["Kind"].EnumValues[2]
	assert.Equal(t, "PARROT", parrot.Name)
	assert.True(t, parrot.IsDeprecated)

	tags := s.Types["PetFilter"].InputField("tags")
	require.NotNil(t, tags)
	assert.Equal(t, []any{"cute"}, tags.DefaultValue)

	assert.Equal(t, TypeKindScalar, s.Types["Date"].Kind)
	require.NotNil(t, s.Directives["feature"])
	assert.Equal(t, []string{"FIELD"}, s.Directives["feature"].Locations)
	assert.True(t, IsBuiltinDirective(s.Directives["skip"]))
}

func TestBuildFromSDL_Error(t *testing.T) {
	_, err := BuildFromSDL("broken.graphql", "type Query { a: Missing }")
	require.Error(t, err)
}

func TestBind(t *testing.T) {
	s := mustBuildPets(t)

	require.NoError(t, s.Bind("Query", "pet", func(context.Context, any, map[string]any) (any, error) { return nil, nil }))
	assert.NotNil(t, s.Types["Query"].Field("pet").Resolve)

	assert.EqualError(t, s.Bind("Nope", "pet", nil), "bind Nope.pet: unknown type")
	assert.EqualError(t, s.Bind("Query", "nope", nil), "bind Query.nope: unknown field")
}

func TestFieldFor(t *testing.T) {
	s := mustBuildPets(t)
	cat := s.Types["Cat"]

	assert.Same(t, TypenameField, s.FieldFor(cat, "__typename"))
	assert.Nil(t, s.FieldFor(cat, "__schema"))
	assert.Nil(t, s.FieldFor(cat, "missing"))
	assert.Equal(t, "lives", s.FieldFor(cat, "lives").Name)
}

func TestKindOf(t *testing.T) {
	s := mustBuildPets(t)

	assert.Equal(t, TypeKindNonNull, s.KindOf(NonNullType(NamedType("Pet"))))
	assert.Equal(t, TypeKindList, s.KindOf(ListType(NamedType("Pet"))))
	assert.Equal(t, TypeKindUnion, s.KindOf(NamedType("Pet")))
	assert.Equal(t, TypeKindInputObject, s.KindOf(NamedType("PetFilter")))
	assert.Equal(t, TypeKind(""), s.KindOf(NamedType("Unknown")))
}

func TestDoesFragmentTypeApply(t *testing.T) {
	s := mustBuildPets(t)
	cat := s.Types["Cat"]

	assert.True(t, s.DoesFragmentTypeApply(cat, ""))
	assert.True(t, s.DoesFragmentTypeApply(cat, "Cat"))
	assert.True(t, s.DoesFragmentTypeApply(cat, "Named"))
	assert.True(t, s.DoesFragmentTypeApply(cat, "Pet"))
	assert.False(t, s.DoesFragmentTypeApply(cat, "Dog"))
	assert.False(t, s.DoesFragmentTypeApply(cat, "Unknown"))
}

type Cat struct{ Name string }

type Dog struct{ Name string }

type Parrot struct{}

func TestResolveAbstractType(t *testing.T) {
	ctx := context.Background()

	t.Run("Typename entry", func(t *testing.T) {
		s := mustBuildPets(t)
		got, err := s.ResolveAbstractType(ctx, s.Types["Pet"], map[string]any{"__typename": "Dog"})
		require.NoError(t, err)
		assert.Equal(t, "Dog", got.Name)
	})

	t.Run("Go type name", func(t *testing.T) {
		s := mustBuildPets(t)
		got, err := s.ResolveAbstractType(ctx, s.Types["Named"], &Cat{})
		require.NoError(t, err)
		assert.Equal(t, "Cat", got.Name)
	})

	t.Run("IsTypeOf", func(t *testing.T) {
		s := mustBuildPets(t)
		s.Types["Dog"].IsTypeOf = func(v any) bool { _, ok := v.(Parrot); return ok }
		got, err := s.ResolveAbstractType(ctx, s.Types["Pet"], Parrot{})
		require.NoError(t, err)
		assert.Equal(t, "Dog", got.Name)
	})

	t.Run("ResolveType hook", func(t *testing.T) {
		s := mustBuildPets(t)
		s.Types["Pet"].ResolveType = func(context.Context, any) (string, error) { return "Cat", nil }
		got, err := s.ResolveAbstractType(ctx, s.Types["Pet"], Dog{})
		require.NoError(t, err)
		assert.Equal(t, "Cat", got.Name)
	})
}

// Pattern: Error comparison
func TestResolveAbstractType_Error(t *testing.T) {
	ctx := context.Background()
	hookErr := errors.New("boom")

	tests := []struct {
		name    string
		prepare func(s *Schema)
		typ     string
		value   any
		want    string
	}{
		{"no match", nil, "Pet", Parrot{}, "Pet: no possible type matches runtime value of type schema.Parrot"},
		{"not possible", nil, "Pet", map[string]any{"__typename": "Query"}, "Pet: runtime value resolved to type Query which is not a possible type"},
		{"non-abstract", nil, "Cat", Cat{}, "cannot resolve concrete type of non-abstract type"},
		{
			"hook error",
			func(s *Schema) {
				s.Types["Pet"].ResolveType = func(context.Context, any) (string, error) { return "", hookErr }
			},
			"Pet", Cat{}, "Pet: resolve type failed: boom",
		},
		{
			"hook unknown type",
			func(s *Schema) {
				s.Types["Pet"].ResolveType = func(context.Context, any) (string, error) { return "Fish", nil }
			},
			"Pet", Cat{}, `Pet: resolve type returned unknown type "Fish"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustBuildPets(t)
			if tt.prepare != nil {
				tt.prepare(s)
			}
			_, err := s.ResolveAbstractType(ctx, s.Types[tt.typ], tt.value)
			var schemaErr *SchemaError
			require.True(t, errors.As(err, &schemaErr), "got %v", err)
			assert.EqualError(t, err, tt.want)
		})
	}
}

type weekday int

type color string

func TestEnumValues(t *testing.T) {
	days := NewType("Day", TypeKindEnum, "").
		AddEnumValue(NewEnumValue("MON", "").SetValue(weekday(1))).
		AddEnumValue(NewEnumValue("TUE", "").SetValue(weekday(2)))
	colors := NewType("Color", TypeKindEnum, "").
		AddEnumValue(NewEnumValue("RED", ""))

	name, ok := days.EnumName(weekday(2))
	assert.True(t, ok)
	assert.Equal(t, "TUE", name)
	_, ok = days.EnumName(2)
	assert.False(t, ok)

	name, ok = colors.EnumName(color("RED"))
	assert.True(t, ok)
	assert.Equal(t, "RED", name)

	v, ok := days.LookupEnumValue("MON")
	assert.True(t, ok)
	assert.Equal(t, weekday(1), v)
	v, ok = colors.LookupEnumValue("RED")
	assert.True(t, ok)
	assert.Equal(t, "RED", v)
}

// Pattern: Result comparison
func TestSerialize_Result(t *testing.T) {
	five := 5
	tests := []struct {
		name  string
		fn    SerializeFunc
		value any
		want  any
	}{
		{"int", serializeInt, int64(7), 7},
		{"int pointer", serializeInt, &five, 5},
		{"int from whole float", serializeInt, 3.0, 3},
		{"int from bool", serializeInt, true, 1},
		{"int from string", serializeInt, "12", 12},
		{"float from int", serializeFloat, 2, 2.0},
		{"string from int", serializeString, 42, "42"},
		{"string from float", serializeString, 1.5, "1.5"},
		{"boolean", serializeBoolean, false, false},
		{"id from int", serializeID, 9, "9"},
		{"id from whole float", serializeID, 9.0, "9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.value)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("serialized value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Pattern: Error comparison
func TestSerialize_Error(t *testing.T) {
	tests := []struct {
		name  string
		fn    SerializeFunc
		value any
		want  string
	}{
		{"int overflow", serializeInt, int64(1) << 40, "Int cannot represent non 32-bit signed integer value: 1099511627776"},
		{"fractional int", serializeInt, 1.5, "Int cannot represent non-integer value: 1.5"},
		{"int from struct", serializeInt, struct{}{}, "Int cannot represent value of type struct {}"},
		{"string from map", serializeString, map[string]any{}, "String cannot represent value of type map[string]interface {}"},
		{"boolean from string", serializeBoolean, "true", "Boolean cannot represent a non boolean value of type string"},
		{"fractional id", serializeID, 1.5, "ID cannot represent value: 1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn(tt.value)
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestRender_RoundTrip(t *testing.T) {
	s := mustBuildPets(t)
	rendered := Render(s)

	rebuilt, err := BuildFromSDL("rendered.graphql", rendered)
	require.NoError(t, err, "rendered SDL does not load:\n%s", rendered)

	if diff := cmp.Diff(rendered, Render(rebuilt)); diff != "" {
		t.Errorf("Render is not stable (-first +second):\n%s", diff)
	}
	assert.NotContains(t, rendered, "directive @skip")
	assert.NotContains(t, rendered, "scalar String")
	assert.NotContains(t, rendered, "schema {")
	assert.Contains(t, rendered, "directive @feature")
}

func TestRender_CustomRootNames(t *testing.T) {
	s, err := BuildFromSDL("roots.graphql", `
		schema { query: Root }
		type Root { ok: Boolean }
	`)
	require.NoError(t, err)

	rendered := Render(s)

	rebuilt, err := BuildFromSDL("rendered.graphql", rendered)
	require.NoError(t, err, "rendered SDL does not load:\n%s", rendered)
	assert.Equal(t, "Root", rebuilt.QueryType)
}

func TestRenderSnapshot(t *testing.T) {
	actual := Render(mustBuildPets(t))

	snapshotPath := filepath.Join("testdata", "pets_rendered.graphql")

	// If snapshot doesn't exist, create it
	if _, err := os.Stat(snapshotPath); os.IsNotExist(err) {
		err := os.WriteFile(snapshotPath, []byte(actual), 0644)
		require.NoError(t, err, "failed to write snapshot file")
		t.Logf("Created snapshot file: %s", snapshotPath)
		return
	}

	expected, err := os.ReadFile(snapshotPath)
	require.NoError(t, err, "failed to read snapshot file")

	if diff := cmp.Diff(string(expected), actual); diff != "" {
		t.Errorf("Rendered schema snapshot mismatch (-want +got):\n%s", diff)
	}
}
