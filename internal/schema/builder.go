package schema

import (
	"fmt"
	"sort"
	"strings"

	language "github.com/hanpama/graphexec/internal/language"
)

// NewSchema returns an empty schema with the specified scalars and the
// @skip and @include directives registered.
func NewSchema(description string) *Schema {
	s := &Schema{
		Types:       make(map[string]*Type),
		Directives:  make(map[string]*Directive),
		Description: description,
	}
	s.AddType(stringType).
		AddType(intType).
		AddType(floatType).
		AddType(booleanType).
		AddType(idType)
	s.AddDirective(includeDirective).
		AddDirective(skipDirective)
	return s
}

func (s *Schema) SetQueryType(name string) *Schema        { s.QueryType = name; return s }
func (s *Schema) SetMutationType(name string) *Schema     { s.MutationType = name; return s }
func (s *Schema) SetSubscriptionType(name string) *Schema { s.SubscriptionType = name; return s }

// AddType registers t under its name, replacing any previous definition.
func (s *Schema) AddType(t *Type) *Schema {
	if s.Types == nil {
		s.Types = make(map[string]*Type)
	}
	s.Types[t.Name] = t
	return s
}

func (s *Schema) AddDirective(d *Directive) *Schema {
	if s.Directives == nil {
		s.Directives = make(map[string]*Directive)
	}
	s.Directives[d.Name] = d
	return s
}

// Bind attaches a resolver to an existing field.
func (s *Schema) Bind(typeName, fieldName string, fn ResolveFunc) error {
	t := s.Types[typeName]
	if t == nil {
		return fmt.Errorf("bind %s.%s: unknown type", typeName, fieldName)
	}
	f := t.Field(fieldName)
	if f == nil {
		return fmt.Errorf("bind %s.%s: unknown field", typeName, fieldName)
	}
	f.Resolve = fn
	return nil
}

func NewType(name string, kind TypeKind, description string) *Type {
	return &Type{Name: name, Kind: kind, Description: description}
}

func (t *Type) AddField(f *Field) *Type             { t.Fields = append(t.Fields, f); return t }
func (t *Type) AddInterface(name string) *Type      { t.Interfaces = append(t.Interfaces, name); return t }
func (t *Type) AddPossibleType(name string) *Type   { t.PossibleTypes = append(t.PossibleTypes, name); return t }
func (t *Type) AddEnumValue(v *EnumValue) *Type     { t.EnumValues = append(t.EnumValues, v); return t }
func (t *Type) AddInputField(v *InputValue) *Type   { t.InputFields = append(t.InputFields, v); return t }
func (t *Type) SetOneOf(oneOf bool) *Type           { t.OneOf = oneOf; return t }
func (t *Type) SetSerialize(fn SerializeFunc) *Type { t.Serialize = fn; return t }
func (t *Type) SetResolveType(fn ResolveTypeFunc) *Type {
	t.ResolveType = fn
	return t
}
func (t *Type) SetIsTypeOf(fn IsTypeOfFunc) *Type { t.IsTypeOf = fn; return t }

// InputField returns the input field with the given name.
func (t *Type) InputField(name string) *InputValue {
	for _, f := range t.InputFields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func NewField(name, description string, typ *TypeRef) *Field {
	return &Field{Name: name, Description: description, Type: typ}
}

func (f *Field) AddArgument(arg *InputValue) *Field { f.Arguments = append(f.Arguments, arg); return f }
func (f *Field) SetResolve(fn ResolveFunc) *Field   { f.Resolve = fn; return f }
func (f *Field) Deprecate(reason string) *Field {
	f.IsDeprecated = true
	f.DeprecationReason = reason
	return f
}

func NewInputValue(name, description string, typ *TypeRef) *InputValue {
	return &InputValue{Name: name, Description: description, Type: typ}
}

func (v *InputValue) SetDefault(value any) *InputValue { v.DefaultValue = value; return v }
func (v *InputValue) Deprecate(reason string) *InputValue {
	v.IsDeprecated = true
	v.DeprecationReason = reason
	return v
}

func NewEnumValue(name, description string) *EnumValue {
	return &EnumValue{Name: name, Description: description}
}

func (v *EnumValue) SetValue(value any) *EnumValue { v.Value = value; return v }
func (v *EnumValue) Deprecate(reason string) *EnumValue {
	v.IsDeprecated = true
	v.DeprecationReason = reason
	return v
}

func NewDirective(name, description string) *Directive {
	return &Directive{Name: name, Description: description}
}

func (d *Directive) AddArgument(arg *InputValue) *Directive {
	d.Arguments = append(d.Arguments, arg)
	return d
}
func (d *Directive) SetRepeatable(r bool) *Directive { d.IsRepeatable = r; return d }
func (d *Directive) SetInclude(fn func(args map[string]any) bool) *Directive {
	d.Include = fn
	return d
}

// BuildFromSDL parses and validates SDL and returns the corresponding
// Schema. Resolvers are attached afterwards with Bind; fields without a
// resolver read their value from the parent.
func BuildFromSDL(name, sdl string) (*Schema, error) {
	doc, err := language.LoadSchema(name, sdl)
	if err != nil {
		return nil, err
	}
	return BuildFromAST(doc)
}

// BuildFromAST converts a validated gqlparser schema into a Schema.
// Introspection types and fields are not carried over.
func BuildFromAST(doc *language.Schema) (*Schema, error) {
	s := NewSchema("")
	s.AST = doc
	if doc.Query != nil {
		s.SetQueryType(doc.Query.Name)
	}
	if doc.Mutation != nil {
		s.SetMutationType(doc.Mutation.Name)
	}
	if doc.Subscription != nil {
		s.SetSubscriptionType(doc.Subscription.Name)
	}

	names := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := doc.Types[name]
		if builtinScalar(name) != nil || strings.HasPrefix(name, "__") {
			continue
		}
		switch def.Kind {
		case language.Object:
			s.AddType(buildComposite(def, TypeKindObject))
		case language.Interface:
			t := buildComposite(def, TypeKindInterface)
			for _, impl := range doc.PossibleTypes[name] {
				t.AddPossibleType(impl.Name)
			}
			sort.Strings(t.PossibleTypes)
			s.AddType(t)
		case language.Union:
			t := NewType(def.Name, TypeKindUnion, def.Description)
			for _, member := range def.Types {
				t.AddPossibleType(member)
			}
			s.AddType(t)
		case language.Enum:
			t := NewType(def.Name, TypeKindEnum, def.Description)
			for _, v := range def.EnumValues {
				ev := NewEnumValue(v.Name, v.Description)
				if reason, ok := deprecation(v.Directives); ok {
					ev.Deprecate(reason)
				}
				t.AddEnumValue(ev)
			}
			s.AddType(t)
		case language.InputObject:
			t := NewType(def.Name, TypeKindInputObject, def.Description).
				SetOneOf(def.Directives.ForName("oneOf") != nil)
			for _, f := range def.Fields {
				t.AddInputField(buildInputValue(f.Name, f.Description, f.Type, f.DefaultValue, f.Directives))
			}
			s.AddType(t)
		case language.Scalar:
			t := NewType(def.Name, TypeKindScalar, def.Description)
			if sb := def.Directives.ForName("specifiedBy"); sb != nil {
				if arg := sb.Arguments.ForName("url"); arg != nil && arg.Value != nil {
					url := arg.Value.Raw
					t.SpecifiedByURL = &url
				}
			}
			s.AddType(t)
		default:
			return nil, fmt.Errorf("type %s: unsupported kind %s", name, def.Kind)
		}
	}

	for _, def := range doc.Directives {
		if def.Position != nil && def.Position.Src != nil && def.Position.Src.BuiltIn {
			continue
		}
		d := NewDirective(def.Name, def.Description).SetRepeatable(def.IsRepeatable)
		for _, loc := range def.Locations {
			d.Locations = append(d.Locations, string(loc))
		}
		for _, arg := range def.Arguments {
			d.AddArgument(buildInputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives))
		}
		s.AddDirective(d)
	}
	return s, nil
}

func buildComposite(def *language.Definition, kind TypeKind) *Type {
	t := NewType(def.Name, kind, def.Description)
	for _, iface := range def.Interfaces {
		t.AddInterface(iface)
	}
	for _, fd := range def.Fields {
		if strings.HasPrefix(fd.Name, "__") {
			continue
		}
		f := NewField(fd.Name, fd.Description, TypeRefFromAST(fd.Type))
		if reason, ok := deprecation(fd.Directives); ok {
			f.Deprecate(reason)
		}
		for _, arg := range fd.Arguments {
			f.AddArgument(buildInputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives))
		}
		t.AddField(f)
	}
	return t
}

func buildInputValue(name, description string, typ *language.Type, def *language.Value, directives language.DirectiveList) *InputValue {
	in := NewInputValue(name, description, TypeRefFromAST(typ))
	if def != nil {
		in.SetDefault(constValue(def))
	}
	if reason, ok := deprecation(directives); ok {
		in.Deprecate(reason)
	}
	return in
}

func deprecation(directives language.DirectiveList) (string, bool) {
	d := directives.ForName("deprecated")
	if d == nil {
		return "", false
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw, true
	}
	return "No longer supported", true
}

// TypeRefFromAST converts a parsed type reference.
func TypeRefFromAST(t *language.Type) *TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return NonNullType(TypeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return NamedType(t.NamedType)
	}
	if t.Elem != nil {
		return ListType(TypeRefFromAST(t.Elem))
	}
	return nil
}

// constValue converts a constant literal. Integers are represented as int
// so that defaults look the same as literal arguments.
func constValue(v *language.Value) any {
	raw, err := v.Value(nil)
	if err != nil {
		return nil
	}
	return normalizeInts(raw)
}

func normalizeInts(v any) any {
	switch x := v.(type) {
	case int64:
		return int(x)
	case []any:
		for i := range x {
			x[i] = normalizeInts(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalizeInts(x[k])
		}
		return x
	}
	return v
}
