package executor

import (
	"bytes"
	"encoding/json"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// ExecutionResult represents the result of executing a GraphQL query.
// Data is nil when the operation never started or when null propagation
// reached the root.
type ExecutionResult struct {
	Data   any           `json:"data"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

// ResultField is one entry of a ResultMap.
type ResultField struct {
	Key   string
	Value any
}

// ResultMap is the response object of a selection set. Keys keep the order
// in which they were first seen in the merged selection set.
type ResultMap []ResultField

// Get returns the value stored under key.
func (m ResultMap) Get(key string) (any, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the response keys in order.
func (m ResultMap) Keys() []string {
	keys := make([]string, len(m))
	for i, f := range m {
		keys[i] = f.Key
	}
	return keys
}

func (m ResultMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Plain converts a result tree into plain maps and slices, dropping key
// order. It is meant for comparisons and for callers that post-process data.
func Plain(v any) any {
	switch x := v.(type) {
	case ResultMap:
		if x == nil {
			return nil
		}
		out := make(map[string]any, len(x))
		for _, f := range x {
			out[f.Key] = Plain(f.Value)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = Plain(x[i])
		}
		return out
	}
	return v
}
