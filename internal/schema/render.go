package schema

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// Render produces SDL from the Schema.
// Deterministic ordering: type/directive names sorted lexicographically.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	doc := &ast.SchemaDocument{}

	if (s.QueryType != "" && s.QueryType != "Query") || (s.MutationType != "" && s.MutationType != "Mutation") ||
		(s.SubscriptionType != "" && s.SubscriptionType != "Subscription") {
		def := &ast.SchemaDefinition{Description: s.Description}
		for _, op := range []struct {
			kind ast.Operation
			name string
		}{{ast.Query, s.QueryType}, {ast.Mutation, s.MutationType}, {ast.Subscription, s.SubscriptionType}} {
			if op.name != "" {
				def.OperationTypes = append(def.OperationTypes, &ast.OperationTypeDefinition{Operation: op.kind, Type: op.name})
			}
		}
		doc.Schema = append(doc.Schema, def)
	}

	typeNames := make([]string, 0, len(s.Types))
	for name, typ := range s.Types {
		if !IsBuiltin(typ) {
			typeNames = append(typeNames, name)
		}
	}
	sort.Strings(typeNames)
	for _, name := range typeNames {
		doc.Definitions = append(doc.Definitions, s.definitionAST(s.Types[name]))
	}

	directiveNames := make([]string, 0, len(s.Directives))
	for name, d := range s.Directives {
		if !IsBuiltinDirective(d) {
			directiveNames = append(directiveNames, name)
		}
	}
	sort.Strings(directiveNames)
	for _, name := range directiveNames {
		d := s.Directives[name]
		// The formatter reads Position.Src to skip prelude directives.
		def := &ast.DirectiveDefinition{
			Description:  d.Description,
			Name:         d.Name,
			IsRepeatable: d.IsRepeatable,
			Position:     &ast.Position{Src: &ast.Source{}},
		}
		for _, arg := range d.Arguments {
			def.Arguments = append(def.Arguments, s.argumentAST(arg))
		}
		for _, loc := range d.Locations {
			def.Locations = append(def.Locations, ast.DirectiveLocation(loc))
		}
		doc.Directives = append(doc.Directives, def)
	}

	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)
	return buf.String()
}

func (s *Schema) definitionAST(t *Type) *ast.Definition {
	def := &ast.Definition{
		Description: t.Description,
		Name:        t.Name,
		Interfaces:  t.Interfaces,
	}
	switch t.Kind {
	case TypeKindScalar:
		def.Kind = ast.Scalar
		if t.SpecifiedByURL != nil {
			def.Directives = append(def.Directives, &ast.Directive{
				Name:      "specifiedBy",
				Arguments: ast.ArgumentList{{Name: "url", Value: &ast.Value{Kind: ast.StringValue, Raw: *t.SpecifiedByURL}}},
			})
		}
	case TypeKindObject, TypeKindInterface:
		def.Kind = ast.Object
		if t.Kind == TypeKindInterface {
			def.Kind = ast.Interface
		}
		for _, f := range t.Fields {
			fd := &ast.FieldDefinition{
				Description: f.Description,
				Name:        f.Name,
				Type:        TypeRefToAST(f.Type),
				Directives:  deprecatedAST(f.IsDeprecated, f.DeprecationReason),
			}
			for _, arg := range f.Arguments {
				fd.Arguments = append(fd.Arguments, s.argumentAST(arg))
			}
			def.Fields = append(def.Fields, fd)
		}
	case TypeKindUnion:
		def.Kind = ast.Union
		def.Types = t.PossibleTypes
	case TypeKindEnum:
		def.Kind = ast.Enum
		for _, v := range t.EnumValues {
			def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{
				Description: v.Description,
				Name:        v.Name,
				Directives:  deprecatedAST(v.IsDeprecated, v.DeprecationReason),
			})
		}
	case TypeKindInputObject:
		def.Kind = ast.InputObject
		if t.OneOf {
			def.Directives = append(def.Directives, &ast.Directive{Name: "oneOf"})
		}
		for _, f := range t.InputFields {
			fd := &ast.FieldDefinition{
				Description: f.Description,
				Name:        f.Name,
				Type:        TypeRefToAST(f.Type),
				Directives:  deprecatedAST(f.IsDeprecated, f.DeprecationReason),
			}
			if f.DefaultValue != nil {
				fd.DefaultValue = s.valueAST(f.DefaultValue, f.Type)
			}
			def.Fields = append(def.Fields, fd)
		}
	}
	return def
}

func (s *Schema) argumentAST(arg *InputValue) *ast.ArgumentDefinition {
	def := &ast.ArgumentDefinition{
		Description: arg.Description,
		Name:        arg.Name,
		Type:        TypeRefToAST(arg.Type),
		Directives:  deprecatedAST(arg.IsDeprecated, arg.DeprecationReason),
	}
	if arg.DefaultValue != nil {
		def.DefaultValue = s.valueAST(arg.DefaultValue, arg.Type)
	}
	return def
}

func deprecatedAST(deprecated bool, reason string) ast.DirectiveList {
	if !deprecated {
		return nil
	}
	d := &ast.Directive{Name: "deprecated"}
	if reason != "" {
		d.Arguments = ast.ArgumentList{{Name: "reason", Value: &ast.Value{Kind: ast.StringValue, Raw: reason}}}
	}
	return ast.DirectiveList{d}
}

// TypeRefToAST converts a type reference into its parsed form.
func TypeRefToAST(t *TypeRef) *ast.Type {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case TypeRefKindNonNull:
		inner := TypeRefToAST(t.OfType)
		inner.NonNull = true
		return inner
	case TypeRefKindList:
		return &ast.Type{Elem: TypeRefToAST(t.OfType)}
	default:
		return &ast.Type{NamedType: t.Named}
	}
}

// valueAST renders a Go default value as a literal of type ref.
func (s *Schema) valueAST(value any, ref *TypeRef) *ast.Value {
	if value == nil {
		return &ast.Value{Kind: ast.NullValue, Raw: "null"}
	}
	named := s.NamedTypeOf(ref)
	switch v := value.(type) {
	case string:
		if named != nil && named.Kind == TypeKindEnum {
			return &ast.Value{Kind: ast.EnumValue, Raw: v}
		}
		return &ast.Value{Kind: ast.StringValue, Raw: v}
	case bool:
		return &ast.Value{Kind: ast.BooleanValue, Raw: strconv.FormatBool(v)}
	case int, int32, int64:
		return &ast.Value{Kind: ast.IntValue, Raw: fmt.Sprintf("%d", v)}
	case float32:
		return &ast.Value{Kind: ast.FloatValue, Raw: strconv.FormatFloat(float64(v), 'g', -1, 32)}
	case float64:
		return &ast.Value{Kind: ast.FloatValue, Raw: strconv.FormatFloat(v, 'g', -1, 64)}
	case []any:
		var elem *TypeRef
		if ref != nil {
			elem = ref
			if elem.IsNonNull() {
				elem = elem.OfType
			}
			if elem.Kind == TypeRefKindList {
				elem = elem.OfType
			}
		}
		out := &ast.Value{Kind: ast.ListValue}
		for _, item := range v {
			out.Children = append(out.Children, &ast.ChildValue{Value: s.valueAST(item, elem)})
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := &ast.Value{Kind: ast.ObjectValue}
		for _, k := range keys {
			var fieldType *TypeRef
			if named != nil {
				if f := named.InputField(k); f != nil {
					fieldType = f.Type
				}
			}
			out.Children = append(out.Children, &ast.ChildValue{Name: k, Value: s.valueAST(v[k], fieldType)})
		}
		return out
	default:
		return &ast.Value{Kind: ast.EnumValue, Raw: fmt.Sprint(v)}
	}
}
