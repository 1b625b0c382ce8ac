package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/graphexec/internal/language"
	schema "github.com/hanpama/graphexec/internal/schema"
)

// fieldInfo identifies the field whose value is being completed.
type fieldInfo struct {
	parent *schema.Type
	def    *schema.Field
	nodes  []*language.Field
}

func (f *fieldInfo) String() string { return f.parent.Name + "." + f.def.Name }

func (f *fieldInfo) log() logrus.Fields { return fieldLog(f.parent, f.def) }

// completeValue completes raw against ref. A nullable position absorbs a
// propagation from below and becomes null; a Non-Null position turns a null
// into a propagation, recording the violation unless an error was already
// recorded for it.
func (ex *execution) completeValue(
	ctx context.Context,
	ref *schema.TypeRef,
	info *fieldInfo,
	raw any,
	path ast.Path,
	depth int,
) completed {
	if ref.IsNonNull() {
		c := ex.completeNullable(ctx, ref.OfType, info, raw, path, depth)
		switch {
		case c.propagate:
			return c
		case c.failed:
			return propagated
		case c.value == nil:
			ex.addError(info.nodes, path, fmt.Errorf("Cannot return null for non-nullable field %s.", info))
			return propagated
		}
		return c
	}
	c := ex.completeNullable(ctx, ref, info, raw, path, depth)
	if c.propagate {
		return completed{}
	}
	return c
}

// completeNullable dispatches on the kind of ref, which is never Non-Null.
func (ex *execution) completeNullable(
	ctx context.Context,
	ref *schema.TypeRef,
	info *fieldInfo,
	raw any,
	path ast.Path,
	depth int,
) completed {
	raw, err := ex.forceValue(raw, info)
	if err != nil {
		ex.addError(info.nodes, path, err)
		return failedNull
	}
	if isNullish(raw) {
		return completed{}
	}

	switch ex.schema.KindOf(ref) {
	case schema.TypeKindList:
		return ex.completeList(ctx, ref, info, raw, path, depth)

	case schema.TypeKindScalar:
		t := ex.schema.NamedTypeOf(ref)
		if t.Serialize == nil {
			return completed{value: raw}
		}
		var v any
		err := ex.protect("serializer", info.log(), func() (err error) {
			v, err = t.Serialize(raw)
			return err
		})
		if err != nil {
			ex.addError(info.nodes, path, err)
			return failedNull
		}
		return completed{value: v}

	case schema.TypeKindEnum:
		t := ex.schema.NamedTypeOf(ref)
		name, ok := t.EnumName(raw)
		if !ok {
			ex.addError(info.nodes, path, fmt.Errorf("Enum %q cannot represent value: %s", t.Name, inspect(raw)))
			return failedNull
		}
		return completed{value: name}

	case schema.TypeKindObject:
		return ex.completeObject(ctx, ex.schema.NamedTypeOf(ref), info, raw, path, depth)

	case schema.TypeKindInterface, schema.TypeKindUnion:
		abstract := ex.schema.NamedTypeOf(ref)
		var object *schema.Type
		err := ex.protect("type resolver", info.log(), func() (err error) {
			object, err = ex.schema.ResolveAbstractType(ctx, abstract, raw)
			return err
		})
		var perr *panicError
		if errors.As(err, &perr) {
			err = &schema.SchemaError{Type: abstract.Name, Message: "type resolution panicked", Err: perr}
		}
		if err != nil {
			panic(fatal{err: fmt.Errorf("field %s: %w", info, err)})
		}
		return ex.completeObject(ctx, object, info, raw, path, depth)

	case schema.TypeKindInputObject:
		panic(fatal{err: &schema.SchemaError{
			Type:    ref.GetNamedType(),
			Message: fmt.Sprintf("input object type used as the output type of field %s", info),
		}})

	default:
		panic(fatal{err: &schema.SchemaError{
			Type:    ref.GetNamedType(),
			Message: fmt.Sprintf("unknown type %q of field %s", ref.GetNamedType(), info),
		}})
	}
}

// forceValue forces a Deferred list element or field value, turning a
// panic into a field error.
func (ex *execution) forceValue(raw any, info *fieldInfo) (v any, err error) {
	err = ex.protect("resolver", info.log(), func() (err error) {
		v, err = force(raw)
		return err
	})
	return v, err
}

func (ex *execution) completeList(
	ctx context.Context,
	ref *schema.TypeRef,
	info *fieldInfo,
	raw any,
	path ast.Path,
	depth int,
) completed {
	items, ok := listItems(raw)
	if !ok {
		ex.addError(info.nodes, path, fmt.Errorf("Expected Iterable, but did not find one for field %s.", info))
		return failedNull
	}

	inner := ref.OfType
	results := make([]completed, len(items))
	ex.each(len(items), func(i int) {
		results[i] = ex.completeValue(ctx, inner, info, items[i], appendPath(path, ast.PathIndex(i)), depth)
	})

	out := make([]any, len(items))
	for i, c := range results {
		if c.propagate {
			return propagated
		}
		out[i] = c.value
	}
	return completed{value: out}
}

// completeObject executes the merged sub-selections of info against object.
func (ex *execution) completeObject(
	ctx context.Context,
	object *schema.Type,
	info *fieldInfo,
	raw any,
	path ast.Path,
	depth int,
) completed {
	if object.IsTypeOf != nil {
		matches := false
		err := ex.protect("is-type-of", info.log(), func() error {
			matches = object.IsTypeOf(raw)
			return nil
		})
		if err != nil {
			ex.addError(info.nodes, path, err)
			return failedNull
		}
		if !matches {
			ex.addError(info.nodes, path, fmt.Errorf("Expected value of type %q but got: %T.", object.Name, raw))
			return failedNull
		}
	}
	fields := ex.collectFields(object, subSelections(info.nodes)...)
	return ex.executeFields(ctx, object, raw, fields, path, depth+1, false)
}

func listItems(raw any) ([]any, bool) {
	if items, ok := raw.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
