// Package fixture loads a schema together with the JSON document serving
// as its root value, and reloads both when the files change.
package fixture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	schema "github.com/hanpama/graphexec/internal/schema"
)

// Fixture is a schema and the root value its operations start from.
// Fields without resolvers read the root value through the default
// resolver.
type Fixture struct {
	Schema *schema.Schema
	Root   any
}

// Load reads the SDL at schemaPath and the optional JSON document at
// dataPath.
func Load(schemaPath, dataPath string) (*Fixture, error) {
	sdl, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	s, err := schema.BuildFromSDL(filepath.Base(schemaPath), string(sdl))
	if err != nil {
		return nil, fmt.Errorf("build schema %s: %w", schemaPath, err)
	}
	f := &Fixture{Schema: s}
	if dataPath == "" {
		return f, nil
	}
	raw, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	if f.Root, err = DecodeJSON(raw); err != nil {
		return nil, fmt.Errorf("decode data %s: %w", dataPath, err)
	}
	return f, nil
}

// DecodeJSON decodes a JSON document keeping integral numbers as int.
func DecodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return numbers(v), nil
}

func numbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i)
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = numbers(x[i])
		}
	case map[string]any:
		for k := range x {
			x[k] = numbers(x[k])
		}
	}
	return v
}

// Store holds the current fixture and replaces it when its files change.
type Store struct {
	schemaPath string
	dataPath   string
	logger     logrus.FieldLogger
	current    atomic.Pointer[Fixture]
	onChange   []func(*Fixture)
}

// NewStore loads the fixture once and returns a store serving it.
func NewStore(schemaPath, dataPath string, logger logrus.FieldLogger) (*Store, error) {
	f, err := Load(schemaPath, dataPath)
	if err != nil {
		return nil, err
	}
	s := &Store{schemaPath: schemaPath, dataPath: dataPath, logger: logger}
	s.current.Store(f)
	return s, nil
}

// Current returns the most recently loaded fixture.
func (s *Store) Current() *Fixture { return s.current.Load() }

// OnChange registers fn to be called after every successful reload. It
// must be called before Watch.
func (s *Store) OnChange(fn func(*Fixture)) { s.onChange = append(s.onChange, fn) }

// Reload loads the files again. On failure the current fixture is kept.
func (s *Store) Reload() error {
	f, err := Load(s.schemaPath, s.dataPath)
	if err != nil {
		return err
	}
	s.current.Store(f)
	for _, fn := range s.onChange {
		fn(f)
	}
	return nil
}

func (s *Store) files() []string {
	files := []string{filepath.Clean(s.schemaPath)}
	if s.dataPath != "" {
		files = append(files, filepath.Clean(s.dataPath))
	}
	return files
}

// Watch reloads the fixture whenever one of its files is written or
// created, until ctx is done. The directories of the files are watched so
// that editors replacing files atomically are noticed.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not create watcher: %w", err)
	}
	defer watcher.Close()

	files := s.files()
	dirs := map[string]bool{}
	for _, f := range files {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("error add file to watcher: %w", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.WithError(err).Error("fixture watch error")
		case e, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				continue
			}
			if !contains(files, filepath.Clean(e.Name)) {
				continue
			}
			s.logger.WithField("event", e.String()).Debug("received fixture file event")
			if err := s.Reload(); err != nil {
				s.logger.WithError(err).Error("error reloading fixture")
				continue
			}
			s.logger.WithField("file", e.Name).Info("fixture reloaded")
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
