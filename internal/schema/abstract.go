package schema

import (
	"context"
	"fmt"
	"reflect"
	"sort"
)

// SchemaError reports a broken schema or a broken resolver binding. It is
// never a data error: the executor aborts the operation when it sees one.
type SchemaError struct {
	Type    string
	Message string
	Err     error
}

func (e *SchemaError) Error() string {
	msg := e.Message
	if e.Type != "" {
		msg = e.Type + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error { return e.Err }

// PossibleTypes returns the object types an abstract type may resolve to.
// Union members are returned in declaration order; interface implementors
// are sorted by name unless declared explicitly.
func (s *Schema) PossibleTypes(abstract *Type) []*Type {
	if abstract == nil {
		return nil
	}
	var names []string
	switch abstract.Kind {
	case TypeKindUnion:
		names = abstract.PossibleTypes
	case TypeKindInterface:
		names = abstract.PossibleTypes
		if len(names) == 0 {
			for name, t := range s.Types {
				if t.Kind == TypeKindObject && t.implements(abstract.Name) {
					names = append(names, name)
				}
			}
			sort.Strings(names)
		}
	default:
		return nil
	}
	out := make([]*Type, 0, len(names))
	for _, name := range names {
		if t := s.Types[name]; t != nil {
			out = append(out, t)
		}
	}
	return out
}

// IsPossibleType reports whether object is a member of abstract.
func (s *Schema) IsPossibleType(abstract, object *Type) bool {
	if abstract == nil || object == nil || object.Kind != TypeKindObject {
		return false
	}
	switch abstract.Kind {
	case TypeKindUnion:
		for _, name := range abstract.PossibleTypes {
			if name == object.Name {
				return true
			}
		}
		return false
	case TypeKindInterface:
		if len(abstract.PossibleTypes) > 0 {
			for _, name := range abstract.PossibleTypes {
				if name == object.Name {
					return true
				}
			}
			return false
		}
		return object.implements(abstract.Name)
	}
	return false
}

// DoesFragmentTypeApply reports whether a fragment with the given type
// condition applies to object. An empty condition always applies.
func (s *Schema) DoesFragmentTypeApply(object *Type, condition string) bool {
	if condition == "" || condition == object.Name {
		return true
	}
	cond := s.Types[condition]
	if cond == nil {
		return false
	}
	return s.IsPossibleType(cond, object)
}

func (t *Type) implements(iface string) bool {
	for _, name := range t.Interfaces {
		if name == iface {
			return true
		}
	}
	return false
}

// ResolveAbstractType determines the concrete object type of value for an
// interface or union. The type's ResolveType hook wins; otherwise each
// possible type is matched through its IsTypeOf binding, then a
// "__typename" entry in map values, then the Go type name of value.
//
// Any failure, including a resolved type that is not a possible type of
// abstract, is reported as a *SchemaError.
func (s *Schema) ResolveAbstractType(ctx context.Context, abstract *Type, value any) (*Type, error) {
	if abstract == nil || !abstract.Kind.IsAbstract() {
		return nil, &SchemaError{Message: "cannot resolve concrete type of non-abstract type"}
	}

	var object *Type
	if abstract.ResolveType != nil {
		name, err := abstract.ResolveType(ctx, value)
		if err != nil {
			return nil, &SchemaError{Type: abstract.Name, Message: "resolve type failed", Err: err}
		}
		object = s.Types[name]
		if object == nil {
			return nil, &SchemaError{Type: abstract.Name, Message: fmt.Sprintf("resolve type returned unknown type %q", name)}
		}
	} else {
		object = s.matchPossibleType(abstract, value)
		if object == nil {
			return nil, &SchemaError{Type: abstract.Name, Message: fmt.Sprintf("no possible type matches runtime value of type %T", value)}
		}
	}

	if !s.IsPossibleType(abstract, object) {
		return nil, &SchemaError{
			Type:    abstract.Name,
			Message: fmt.Sprintf("runtime value resolved to type %s which is not a possible type", object.Name),
		}
	}
	return object, nil
}

func (s *Schema) matchPossibleType(abstract *Type, value any) *Type {
	candidates := s.PossibleTypes(abstract)
	for _, t := range candidates {
		if t.IsTypeOf != nil && t.IsTypeOf(value) {
			return t
		}
	}
	if tag, ok := typenameTag(value); ok {
		for _, t := range candidates {
			if t.Name == tag {
				return t
			}
		}
		return s.Types[tag]
	}
	rt := reflect.TypeOf(value)
	for rt != nil && rt.Kind() == reflect.Ptr {
		rt = rt.Elem()
	}
	if rt == nil {
		return nil
	}
	for _, t := range candidates {
		if t.IsTypeOf == nil && t.Name == rt.Name() {
			return t
		}
	}
	return nil
}

func typenameTag(value any) (string, bool) {
	m, ok := value.(map[string]any)
	if !ok {
		return "", false
	}
	name, ok := m["__typename"].(string)
	return name, ok && name != ""
}

func equalValues(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta != nil && ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
