package executor

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/vektah/gqlparser/v2/gqlerror"

	language "github.com/hanpama/graphexec/internal/language"
	schema "github.com/hanpama/graphexec/internal/schema"
)

// coerceVariableValues coerces the request variables against the variable
// definitions of operation. Any failure is a request error.
func coerceVariableValues(
	s *schema.Schema,
	operation *language.OperationDefinition,
	inputs map[string]any,
) (map[string]any, gqlerror.List) {
	coerced := make(map[string]any, len(operation.VariableDefinitions))
	var errs gqlerror.List
	for _, def := range operation.VariableDefinitions {
		name := def.Variable
		ref := schema.TypeRefFromAST(def.Type)
		value, ok := inputs[name]
		if !ok {
			if def.DefaultValue != nil {
				v, _ := valueFromAST(def.DefaultValue, nil)
				coerced[name] = v
			} else if ref.IsNonNull() {
				errs = append(errs, variableError(def, "Variable \"$%s\" of required type \"%s\" was not provided.", name, ref))
			}
			continue
		}
		cv, err := coerceInputValue(s, value, ref)
		if err != nil {
			errs = append(errs, variableError(def, "Variable \"$%s\" got invalid value %s; %v", name, inspect(value), err))
			continue
		}
		coerced[name] = cv
	}
	return coerced, errs
}

func variableError(def *language.VariableDefinition, format string, args ...any) *gqlerror.Error {
	err := &gqlerror.Error{Message: fmt.Sprintf(format, args...)}
	if def.Position != nil {
		err.Locations = []gqlerror.Location{{Line: def.Position.Line, Column: def.Position.Column}}
	}
	return err
}

// coerceArgumentValues builds the argument map of a field or directive.
// Explicit values win over declared defaults; a variable that was not
// provided counts as absent and yields nil unless a default exists.
func coerceArgumentValues(
	s *schema.Schema,
	defs []*schema.InputValue,
	arguments language.ArgumentList,
	variables map[string]any,
) (map[string]any, error) {
	coerced := make(map[string]any, len(defs))
	missing := make(map[string]bool)
	for _, arg := range arguments {
		def := inputValueFor(defs, arg.Name)
		if def == nil {
			continue
		}
		raw, ok := valueFromAST(arg.Value, variables)
		if !ok {
			missing[arg.Name] = true
			continue
		}
		cv, err := coerceInputValue(s, raw, def.Type)
		if err != nil {
			return nil, fmt.Errorf("Argument %q has invalid value %s: %w", arg.Name, inspect(raw), err)
		}
		coerced[arg.Name] = cv
	}
	for _, def := range defs {
		if _, ok := coerced[def.Name]; ok {
			continue
		}
		switch {
		case def.DefaultValue != nil:
			coerced[def.Name] = def.DefaultValue
		case def.Type.IsNonNull():
			return nil, fmt.Errorf("Argument %q of required type %q was not provided.", def.Name, def.Type)
		case missing[def.Name]:
			coerced[def.Name] = nil
		}
	}
	return coerced, nil
}

func inputValueFor(defs []*schema.InputValue, name string) *schema.InputValue {
	for _, d := range defs {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// valueFromAST converts a value node into a plain Go value. Enum literals
// stay their external names. The boolean is false only when value is a
// variable reference with no binding.
func valueFromAST(value *language.Value, variables map[string]any) (any, bool) {
	if value == nil {
		return nil, true
	}
	switch value.Kind {
	case language.Variable:
		v, ok := variables[value.Raw]
		return v, ok
	case language.IntValue:
		if n, err := strconv.ParseInt(value.Raw, 10, 64); err == nil {
			return int(n), true
		}
		f, _ := strconv.ParseFloat(value.Raw, 64)
		return f, true
	case language.FloatValue:
		f, _ := strconv.ParseFloat(value.Raw, 64)
		return f, true
	case language.StringValue, language.BlockValue, language.EnumValue:
		return value.Raw, true
	case language.BooleanValue:
		return value.Raw == "true", true
	case language.NullValue:
		return nil, true
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i], _ = valueFromAST(c.Value, variables)
		}
		return out, true
	case language.ObjectValue:
		out := make(map[string]any, len(value.Children))
		for _, c := range value.Children {
			if v, ok := valueFromAST(c.Value, variables); ok {
				out[c.Name] = v
			}
		}
		return out, true
	}
	return nil, true
}

// coerceInputValue checks value against an input type and converts it into
// its internal form.
func coerceInputValue(s *schema.Schema, value any, ref *schema.TypeRef) (any, error) {
	if ref.IsNonNull() {
		if value == nil {
			return nil, fmt.Errorf("Expected non-nullable type %q not to be null.", ref)
		}
		return coerceInputValue(s, value, ref.OfType)
	}
	if value == nil {
		return nil, nil
	}
	if ref.Kind == schema.TypeRefKindList {
		items, ok := value.([]any)
		if !ok {
			item, err := coerceInputValue(s, value, ref.OfType)
			if err != nil {
				return nil, err
			}
			return []any{item}, nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := coerceInputValue(s, item, ref.OfType)
			if err != nil {
				return nil, fmt.Errorf("In element #%d: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	}

	t := s.TypeForName(ref.Named)
	if t == nil {
		return nil, fmt.Errorf("Unknown type %q.", ref.Named)
	}
	switch t.Kind {
	case schema.TypeKindScalar:
		return coerceScalarInput(t, value)
	case schema.TypeKindEnum:
		name, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("Enum %q cannot represent non-string value: %s.", t.Name, inspect(value))
		}
		if _, ok := t.LookupEnumValue(name); !ok {
			return nil, fmt.Errorf("Value %q does not exist in %q enum.", name, t.Name)
		}
		return name, nil
	case schema.TypeKindInputObject:
		return coerceInputObject(s, t, value)
	}
	return nil, fmt.Errorf("Type %q is not an input type.", t.Name)
}

func coerceInputObject(s *schema.Schema, t *schema.Type, value any) (any, error) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("Expected type %q to be an object.", t.Name)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if t.InputField(name) == nil {
			return nil, fmt.Errorf("Field %q is not defined by type %q.", name, t.Name)
		}
	}

	out := make(map[string]any, len(t.InputFields))
	for _, f := range t.InputFields {
		v, present := fields[f.Name]
		if !present {
			if f.DefaultValue != nil {
				out[f.Name] = f.DefaultValue
			} else if f.Type.IsNonNull() {
				return nil, fmt.Errorf("Field %q of required type %q was not provided.", f.Name, f.Type)
			}
			continue
		}
		cv, err := coerceInputValue(s, v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("In field %q: %w", f.Name, err)
		}
		out[f.Name] = cv
	}

	if t.OneOf {
		set := 0
		for _, v := range out {
			if v != nil {
				set++
			}
		}
		if set != 1 || len(out) != 1 {
			return nil, fmt.Errorf("OneOf Input Object %q must specify exactly one non-null key.", t.Name)
		}
	}
	return out, nil
}

// coerceScalarInput applies the input coercion of the specified scalars.
// Custom scalars receive their value unchanged.
func coerceScalarInput(t *schema.Type, value any) (any, error) {
	if n, ok := value.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			value = int(i)
		} else if f, err := n.Float64(); err == nil {
			value = f
		}
	}
	switch t.Name {
	case "Int":
		var n int64
		switch v := value.(type) {
		case int:
			n = int64(v)
		case int32:
			n = int64(v)
		case int64:
			n = v
		case float64:
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("Int cannot represent non-integer value: %s", inspect(value))
			}
			n = int64(v)
		default:
			return nil, fmt.Errorf("Int cannot represent non-integer value: %s", inspect(value))
		}
		if n > math.MaxInt32 || n < math.MinInt32 {
			return nil, fmt.Errorf("Int cannot represent non 32-bit signed integer value: %d", n)
		}
		return int(n), nil
	case "Float":
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
		return nil, fmt.Errorf("Float cannot represent non numeric value: %s", inspect(value))
	case "String":
		if v, ok := value.(string); ok {
			return v, nil
		}
		return nil, fmt.Errorf("String cannot represent a non string value: %s", inspect(value))
	case "Boolean":
		if v, ok := value.(bool); ok {
			return v, nil
		}
		return nil, fmt.Errorf("Boolean cannot represent a non boolean value: %s", inspect(value))
	case "ID":
		switch v := value.(type) {
		case string:
			return v, nil
		case int:
			return strconv.Itoa(v), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			if v == math.Trunc(v) {
				return strconv.FormatInt(int64(v), 10), nil
			}
		}
		return nil, fmt.Errorf("ID cannot represent value: %s", inspect(value))
	}
	return value, nil
}

// inspect renders a value the way it would appear in a JSON request.
func inspect(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
