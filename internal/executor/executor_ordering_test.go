package executor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	executor "github.com/hanpama/graphexec/internal/executor"
)

// Pattern: Result comparison
func TestOrdering_Mutation_Serial_Result(t *testing.T) {
	sch := mustBuildSchema(t, `
		type Query { noop: String }
		type Mutation { first: String second: String third: String }
	`)
	var (
		mu  sync.Mutex
		log []string
	)
	appendAfter := func(name string, delay time.Duration) {
		require.NoError(t, sch.Bind("Mutation", name, func(context.Context, any, map[string]any) (any, error) {
			time.Sleep(delay)
			mu.Lock()
			defer mu.Unlock()
			log = append(log, name)
			return name, nil
		}))
	}
	appendAfter("first", 30*time.Millisecond)
	appendAfter("second", 10*time.Millisecond)
	appendAfter("third", 0)

	res := execute(t, sch, "mutation { first second third }", nil, nil, executor.WithParallelism(8))

	assert.Equal(t, []string{"first", "second", "third"}, log)
	assert.Equal(t, `{"first":"first","second":"second","third":"third"}`, dataJSON(t, res))
}

// Pattern: Result comparison
func TestOrdering_Mutation_StopsAtPropagation_Result(t *testing.T) {
	sch := mustBuildSchema(t, `
		type Query { noop: String }
		type Mutation { ok: String broken: String! never: String }
	`)
	var calls []string
	for _, f := range []string{"ok", "broken", "never"} {
		require.NoError(t, sch.Bind("Mutation", f, func(context.Context, any, map[string]any) (any, error) {
			calls = append(calls, f)
			if f == "broken" {
				return nil, nil
			}
			return f, nil
		}))
	}

	res := execute(t, sch, "mutation { ok broken never }", nil, nil)

	assert.Nil(t, res.Data)
	assert.Equal(t, []string{"ok", "broken"}, calls)
	require.Len(t, res.Errors, 1)
}

// Pattern: Result comparison
func TestOrdering_ParallelQuery_KeyOrder_Result(t *testing.T) {
	sch := mustBuildSchema(t, `
		type Query { slow: String medium: String fast: String items: [Item] }
		type Item { n: Int }
	`)
	sleepy := func(v string, d time.Duration) {
		require.NoError(t, sch.Bind("Query", v, func(context.Context, any, map[string]any) (any, error) {
			time.Sleep(d)
			return v, nil
		}))
	}
	sleepy("slow", 30*time.Millisecond)
	sleepy("medium", 15*time.Millisecond)
	sleepy("fast", 0)
	require.NoError(t, sch.Bind("Query", "items", value([]any{
		map[string]any{"n": 1}, map[string]any{"n": 2}, map[string]any{"n": 3},
	})))
	require.NoError(t, sch.Bind("Item", "n", func(_ context.Context, src any, _ map[string]any) (any, error) {
		n := src.(map[string]any)["n"].(int)
		time.Sleep(time.Duration(4-n) * 5 * time.Millisecond)
		return n, nil
	}))

	res := execute(t, sch, "{ slow medium fast items { n } }", nil, nil, executor.WithParallelism(4))

	assert.Equal(t, `{"slow":"slow","medium":"medium","fast":"fast","items":[{"n":1},{"n":2},{"n":3}]}`, dataJSON(t, res))
	assert.Empty(t, res.Errors)
}

// Pattern: Result comparison
func TestOrdering_ParallelQuery_RunsConcurrently_Result(t *testing.T) {
	sch := mustBuildSchema(t, `type Query { a: String b: String }`)
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	barrier := func(v string) {
		require.NoError(t, sch.Bind("Query", v, func(ctx context.Context, _ any, _ map[string]any) (any, error) {
			wg.Done()
			select {
			case <-start:
			case <-time.After(time.Second):
				return nil, context.DeadlineExceeded
			}
			return v, nil
		}))
	}
	barrier("a")
	barrier("b")
	go func() {
		wg.Wait()
		close(start)
	}()

	res := execute(t, sch, "{ a b }", nil, nil, executor.WithParallelism(2))

	assert.Equal(t, `{"a":"a","b":"b"}`, dataJSON(t, res))
	assert.Empty(t, res.Errors)
}
