package fixture

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.graphql")
	dataPath := filepath.Join(dir, "data.json")
	writeFile(t, schemaPath, `type Query { count: Int ratio: Float tags: [String] }`)
	writeFile(t, dataPath, `{"count": 3, "ratio": 0.5, "tags": ["a"]}`)

	f, err := Load(schemaPath, dataPath)
	require.NoError(t, err)

	assert.Equal(t, "Query", f.Schema.QueryType)
	want := map[string]any{"count": 3, "ratio": 0.5, "tags": []any{"a"}}
	if diff := cmp.Diff(want, f.Root); diff != "" {
		t.Fatalf("root value mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Error(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.graphql")
	dataPath := filepath.Join(dir, "data.json")

	t.Run("Missing schema", func(t *testing.T) {
		_, err := Load(schemaPath, "")
		assert.ErrorContains(t, err, "read schema")
	})

	t.Run("Invalid schema", func(t *testing.T) {
		writeFile(t, schemaPath, `type Query { a: Missing }`)
		_, err := Load(schemaPath, "")
		assert.ErrorContains(t, err, "build schema")
	})

	t.Run("Invalid data", func(t *testing.T) {
		writeFile(t, schemaPath, `type Query { a: String }`)
		writeFile(t, dataPath, `{`)
		_, err := Load(schemaPath, dataPath)
		assert.ErrorContains(t, err, "decode data")
	})
}

func TestStore_Reload(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.graphql")
	dataPath := filepath.Join(dir, "data.json")
	writeFile(t, schemaPath, `type Query { a: String }`)
	writeFile(t, dataPath, `{"a": "one"}`)

	s, err := NewStore(schemaPath, dataPath, discard())
	require.NoError(t, err)
	var changes int
	s.OnChange(func(*Fixture) { changes++ })

	writeFile(t, dataPath, `{"a": "two"}`)
	require.NoError(t, s.Reload())
	assert.Equal(t, map[string]any{"a": "two"}, s.Current().Root)

	writeFile(t, dataPath, `not json`)
	require.Error(t, s.Reload())
	assert.Equal(t, map[string]any{"a": "two"}, s.Current().Root)
	assert.Equal(t, 1, changes)
}

func TestStore_Watch(t *testing.T) {
	dir := t.TempDir()
	schemaPath := filepath.Join(dir, "schema.graphql")
	dataPath := filepath.Join(dir, "data.json")
	writeFile(t, schemaPath, `type Query { a: String }`)
	writeFile(t, dataPath, `{"a": "one"}`)

	s, err := NewStore(schemaPath, dataPath, discard())
	require.NoError(t, err)
	reloaded := make(chan *Fixture, 8)
	s.OnChange(func(f *Fixture) {
		select {
		case reloaded <- f:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// The watcher may not be registered yet when the first write happens.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case f := <-reloaded:
			if m, ok := f.Root.(map[string]any); ok && m["a"] == "two" {
				return
			}
		case <-tick.C:
			writeFile(t, dataPath, `{"a": "two"}`)
		case <-deadline:
			t.Fatalf("fixture was not reloaded")
		}
	}
}
