package executor_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"

	executor "github.com/hanpama/graphexec/internal/executor"
	language "github.com/hanpama/graphexec/internal/language"
	schema "github.com/hanpama/graphexec/internal/schema"
)

// ignoreErrCause drops the wrapped cause and the locations when comparing
// response errors.
var ignoreErrCause = cmpopts.IgnoreFields(gqlerror.Error{}, "Err", "Locations")

// ignoreErrCauseOnly drops the wrapped cause only.
var ignoreErrCauseOnly = cmpopts.IgnoreFields(gqlerror.Error{}, "Err")

// mustParseQuery parses a GraphQL query and fails the test on error.
func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	d, err := language.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return d
}

func mustBuildSchema(t *testing.T, sdl string) *schema.Schema {
	t.Helper()
	s, err := schema.BuildFromSDL("test.graphql", sdl)
	require.NoError(t, err)
	return s
}

// execute runs query and fails the test on developer errors.
func execute(t *testing.T, sch *schema.Schema, query string, vars map[string]any, root any, opts ...executor.Option) *executor.ExecutionResult {
	t.Helper()
	exec := executor.NewExecutor(sch, opts...)
	res, err := exec.ExecuteRequest(context.Background(), mustParseQuery(t, query), "", vars, root)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

// dataJSON renders result data with key order preserved.
func dataJSON(t *testing.T, res *executor.ExecutionResult) string {
	t.Helper()
	b, err := json.Marshal(res.Data)
	require.NoError(t, err)
	return string(b)
}

// Call is a single resolver invocation record.
type Call struct {
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
}

// recorder binds resolvers to a schema and logs every invocation.
type recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *recorder) bind(t *testing.T, sch *schema.Schema, typeName, fieldName string, fn schema.ResolveFunc) {
	t.Helper()
	require.NoError(t, sch.Bind(typeName, fieldName, func(ctx context.Context, source any, args map[string]any) (any, error) {
		r.mu.Lock()
		r.calls = append(r.calls, Call{ObjectType: typeName, Field: fieldName, Source: source, Args: args})
		r.mu.Unlock()
		return fn(ctx, source, args)
	}))
}

func (r *recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// value returns a resolver that always returns v.
func value(v any) schema.ResolveFunc {
	return func(context.Context, any, map[string]any) (any, error) { return v, nil }
}

// failing returns a resolver that always returns err.
func failing(err error) schema.ResolveFunc {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}
