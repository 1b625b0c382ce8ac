package schema

import (
	"context"
	"reflect"
	"strings"

	language "github.com/hanpama/graphexec/internal/language"
)

// Schema represents the complete GraphQL schema
type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            map[string]*Type // All named types keyed by name
	Directives       map[string]*Directive
	Description      string

	// AST is the validated SDL this schema was built from. It is nil for
	// schemas assembled in code and is only used to validate documents.
	AST *language.Schema `json:"-"`
}

// GetQueryType returns the root query type (may be nil if absent)
func (s *Schema) GetQueryType() *Type { return s.Types[s.QueryType] }

// GetMutationType returns the root mutation type (may be nil if absent)
func (s *Schema) GetMutationType() *Type { return s.Types[s.MutationType] }

// GetSubscriptionType returns the root subscription type (may be nil if absent)
func (s *Schema) GetSubscriptionType() *Type { return s.Types[s.SubscriptionType] }

// ResolveFunc computes the raw value of a field from its parent value and
// coerced arguments. The returned value may be a Deferred.
type ResolveFunc func(ctx context.Context, source any, args map[string]any) (any, error)

// Deferred is a value whose computation is postponed until the executor
// forces it. Forcing happens at most once per occurrence.
type Deferred func() (any, error)

// SerializeFunc converts an internal leaf value into its response form.
type SerializeFunc func(value any) (any, error)

// ResolveTypeFunc returns the concrete object type name for a value of an
// abstract type.
type ResolveTypeFunc func(ctx context.Context, value any) (string, error)

// IsTypeOfFunc reports whether value belongs to an object type.
type IsTypeOfFunc func(value any) bool

// Type is a named GraphQL type (object, interface, union, scalar, enum, input)
type Type struct {
	Name           string
	Kind           TypeKind
	Description    string
	Fields         []*Field      // For OBJECT and INTERFACE
	Interfaces     []string      // For OBJECT and INTERFACE (implemented/extended)
	PossibleTypes  []string      // For INTERFACE and UNION
	EnumValues     []*EnumValue  // For ENUM
	InputFields    []*InputValue // For INPUT_OBJECT
	SpecifiedByURL *string
	OneOf          bool

	// Serialize is the output coercion of a scalar. Nil passes values through.
	Serialize SerializeFunc `json:"-"`
	// ResolveType overrides the default abstract type resolution.
	ResolveType ResolveTypeFunc `json:"-"`
	// IsTypeOf binds runtime values to an object type.
	IsTypeOf IsTypeOfFunc `json:"-"`
}

// Field represents a field on an object or interface
type Field struct {
	Name              string
	Description       string
	Type              *TypeRef
	Arguments         []*InputValue
	Resolve           ResolveFunc `json:"-"`
	IsDeprecated      bool
	DeprecationReason string
}

// Argument returns the argument definition with the given name.
func (f *Field) Argument(name string) *InputValue {
	for _, a := range f.Arguments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// TypeKind represents the kind of GraphQL type. LIST and NON_NULL only
// describe wrapping type references and never appear on a named Type.
type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
	TypeKindList        TypeKind = "LIST"
	TypeKindNonNull     TypeKind = "NON_NULL"
)

// IsAbstract reports whether the kind is INTERFACE or UNION.
func (k TypeKind) IsAbstract() bool { return k == TypeKindInterface || k == TypeKindUnion }

// IsLeaf reports whether the kind is SCALAR or ENUM.
func (k TypeKind) IsLeaf() bool { return k == TypeKindScalar || k == TypeKindEnum }

// TypeRef represents a reference to a type (can be wrapped)
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef // For List and NonNull
	Named  string   // For named types
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

// Helper functions for TypeRef
func (t *TypeRef) IsNonNull() bool {
	return t != nil && t.Kind == TypeRefKindNonNull
}

func (t *TypeRef) IsList() bool {
	if t.Kind == TypeRefKindList {
		return true
	}
	if t.Kind == TypeRefKindNonNull && t.OfType != nil {
		return t.OfType.Kind == TypeRefKindList
	}
	return false
}

func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == TypeRefKindNonNull || t.Kind == TypeRefKindList {
		return t.OfType
	}
	return t
}

func (t *TypeRef) GetNamedType() string {
	current := t
	for current != nil {
		if current.Named != "" {
			return current.Named
		}
		current = current.OfType
	}
	return ""
}

// String renders the reference in SDL notation, e.g. "[Int!]!".
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	default:
		return t.Named
	}
}

type EnumValue struct {
	Name        string
	Description string
	// Value is the internal representation. A nil Value means the
	// internal value is the name itself.
	Value             any `json:"-"`
	IsDeprecated      bool
	DeprecationReason string
}

type InputValue struct {
	Name              string
	Description       string
	Type              *TypeRef
	DefaultValue      any
	IsDeprecated      bool
	DeprecationReason string
}

type Directive struct {
	Name         string
	Description  string
	Locations    []string
	Arguments    []*InputValue
	IsRepeatable bool

	// Include, when set, decides whether a node carrying this directive
	// is executed. args holds the directive arguments with variables
	// substituted.
	Include func(args map[string]any) bool `json:"-"`
}

func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }

// IsNonNull reports whether the type is wrapped with Non-Null.
func IsNonNull(t *TypeRef) bool { return t != nil && t.IsNonNull() }

// IsList reports whether the type is (or is wrapped by) a list type.
func IsList(t *TypeRef) bool { return t != nil && t.IsList() }

// Unwrap removes one layer of Non-Null or List wrapping and returns the inner type.
func Unwrap(t *TypeRef) *TypeRef { return t.Unwrap() }

// GetNamedType returns the innermost named type for the given reference.
func GetNamedType(t *TypeRef) string { return t.GetNamedType() }

// TypenameField is the descriptor synthesized for __typename on every
// object, interface and union selection.
var TypenameField = &Field{
	Name:        "__typename",
	Description: "The name of the current Object type at runtime.",
	Type:        NonNullType(NamedType("String")),
}

// TypeForName returns the named type or nil.
func (s *Schema) TypeForName(name string) *Type {
	if s == nil {
		return nil
	}
	return s.Types[name]
}

// FieldFor returns the field descriptor for name on t. Meta fields are
// synthesized rather than looked up.
func (s *Schema) FieldFor(t *Type, name string) *Field {
	if t == nil {
		return nil
	}
	if name == TypenameField.Name {
		return TypenameField
	}
	if strings.HasPrefix(name, "__") {
		return nil
	}
	return t.Field(name)
}

// Field returns the field with the given name declared on t.
func (t *Type) Field(name string) *Field {
	for _, field := range t.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// NamedTypeOf strips all List and NonNull wrappers from ref and returns the
// named type it refers to.
func (s *Schema) NamedTypeOf(ref *TypeRef) *Type {
	if ref == nil {
		return nil
	}
	return s.Types[ref.GetNamedType()]
}

// KindOf reports the kind at the outermost level of ref. Wrappers answer
// LIST or NON_NULL; named references answer the kind of the named type, or
// "" when the type is unknown.
func (s *Schema) KindOf(ref *TypeRef) TypeKind {
	if ref == nil {
		return ""
	}
	switch ref.Kind {
	case TypeRefKindNonNull:
		return TypeKindNonNull
	case TypeRefKindList:
		return TypeKindList
	}
	if t := s.Types[ref.Named]; t != nil {
		return t.Kind
	}
	return ""
}

// EnumName maps an internal enum value back to its external name.
func (t *Type) EnumName(value any) (string, bool) {
	for _, ev := range t.EnumValues {
		if ev.Value == nil {
			if name, ok := stringValue(value); ok && name == ev.Name {
				return ev.Name, true
			}
			continue
		}
		if equalValues(ev.Value, value) {
			return ev.Name, true
		}
	}
	return "", false
}

// stringValue accepts string and named string types.
func stringValue(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

// LookupEnumValue returns the internal value for an external enum name.
func (t *Type) LookupEnumValue(name string) (any, bool) {
	for _, ev := range t.EnumValues {
		if ev.Name == name {
			if ev.Value == nil {
				return ev.Name, true
			}
			return ev.Value, true
		}
	}
	return nil, false
}
