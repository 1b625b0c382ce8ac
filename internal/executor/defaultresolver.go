package executor

import (
	"fmt"
	"reflect"
	"strings"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// DefaultResolve reads field name from source. It is used for fields
// without a resolver. Lookup order:
//   - map[string]T: the entry for name (absent entries are null)
//   - a struct field tagged `graphql:"name"` or `json:"name"`
//   - a struct field whose name matches case-insensitively
//   - an exported method without arguments, returning a value and
//     optionally an error
func DefaultResolve(source any, name string) (any, error) {
	if source == nil {
		return nil, nil
	}
	if m, ok := source.(map[string]any); ok {
		return m[name], nil
	}

	rv := reflect.ValueOf(source)
	if v, found, err := callMethod(rv, name); found {
		return v, err
	}
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		v := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !v.IsValid() {
			return nil, nil
		}
		return v.Interface(), nil
	case reflect.Struct:
		if f, ok := structField(rv, name); ok {
			return f.Interface(), nil
		}
		if v, found, err := callMethod(rv, name); found {
			return v, err
		}
	}
	return nil, fmt.Errorf("no field or method %q on %T", name, source)
}

func structField(rv reflect.Value, name string) (reflect.Value, bool) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		if tagName(sf, "graphql") == name || tagName(sf, "json") == name {
			return rv.Field(i), true
		}
	}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			if f, ok := structField(rv.Field(i), name); ok {
				return f, true
			}
			continue
		}
		if tagName(sf, "graphql") == "-" || tagName(sf, "json") == "-" {
			continue
		}
		if strings.EqualFold(sf.Name, name) {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func tagName(sf reflect.StructField, key string) string {
	tag, ok := sf.Tag.Lookup(key)
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

func callMethod(rv reflect.Value, name string) (any, bool, error) {
	if !rv.IsValid() {
		return nil, false, nil
	}
	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		if !strings.EqualFold(rt.Method(i).Name, name) {
			continue
		}
		mt := rv.Method(i).Type()
		if mt.NumIn() != 0 || mt.NumOut() == 0 || mt.NumOut() > 2 {
			continue
		}
		if mt.NumOut() == 2 && !mt.Out(1).Implements(errorType) {
			continue
		}
		out := rv.Method(i).Call(nil)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, true, out[1].Interface().(error)
		}
		return out[0].Interface(), true, nil
	}
	return nil, false, nil
}
