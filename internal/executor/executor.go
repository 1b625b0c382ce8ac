package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"golang.org/x/sync/errgroup"

	eventbus "github.com/hanpama/graphexec/internal/eventbus"
	events "github.com/hanpama/graphexec/internal/events"
	language "github.com/hanpama/graphexec/internal/language"
	schema "github.com/hanpama/graphexec/internal/schema"
)

var (
	// ErrOperationNotFound is reported when the requested operation cannot
	// be selected from the document.
	ErrOperationNotFound = errors.New("operation not found")
	// ErrMaxDepth is recorded on fields nested deeper than the configured
	// maximum depth.
	ErrMaxDepth = errors.New("maximum selection depth exceeded")
	// ErrFragmentCycle aborts execution when fragment spreads form a cycle.
	ErrFragmentCycle = errors.New("fragment cycle detected")
)

// fatal carries a developer error out of the recursion. It is recovered in
// ExecuteRequest and never reaches callers as a panic.
type fatal struct{ err error }

// panicError is recorded when a resolver or another schema callback
// panics. source names the callback, e.g. "resolver" or "serializer".
type panicError struct {
	source string
	value  any
	stack  []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("internal error: %s panic: %v", e.source, e.value)
}

// completed is the outcome of completing one value. At most one flag is
// set: propagate means a non-null position below failed and the nearest
// nullable ancestor becomes null; failed means an error was already recorded
// and value is null.
type completed struct {
	value     any
	propagate bool
	failed    bool
}

var (
	propagated = completed{propagate: true}
	failedNull = completed{failed: true}
)

// nullFor is the outcome of a failed field of type ref.
func nullFor(ref *schema.TypeRef) completed {
	if ref.IsNonNull() {
		return propagated
	}
	return failedNull
}

// Executor runs operations against one schema. It is safe for concurrent
// use.
type Executor struct {
	schema *schema.Schema
	opts   options
}

// NewExecutor returns an Executor for s.
func NewExecutor(s *schema.Schema, opts ...Option) *Executor {
	return &Executor{schema: s, opts: newOptions(opts)}
}

// Schema returns the schema the executor runs against.
func (e *Executor) Schema() *schema.Schema { return e.schema }

// execution is the per-request state. Only errs is written concurrently.
type execution struct {
	schema    *schema.Schema
	document  *language.QueryDocument
	operation *language.OperationDefinition
	variables map[string]any
	opts      *options

	mu   sync.Mutex
	errs gqlerror.List
}

// ExecuteRequest selects operationName from document, coerces
// variableValues and executes the operation with initialValue as the root
// object.
//
// Data errors are reported in the result. The returned error is non-nil
// only for developer errors such as an abstract type resolving to a type
// that is not one of its possible types, a fragment cycle, or a missing
// root type. In that case the result is nil.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) (res *ExecutionResult, err error) {
	operation, opErr := getOperation(document, operationName)
	if opErr != nil {
		return &ExecutionResult{Errors: gqlerror.List{{Message: opErr.Error(), Err: opErr}}}, nil
	}

	coerced, verrs := coerceVariableValues(e.schema, operation, variableValues)
	if len(verrs) > 0 {
		return &ExecutionResult{Errors: verrs}, nil
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	case language.Subscription:
		return &ExecutionResult{Errors: gqlerror.List{{Message: "subscription operations are not supported"}}}, nil
	default:
		return &ExecutionResult{Errors: gqlerror.List{{Message: fmt.Sprintf("unsupported operation type: %s", operation.Operation)}}}, nil
	}
	if rootType == nil {
		return nil, &schema.SchemaError{Message: fmt.Sprintf("root type not found for %s operation", operation.Operation)}
	}

	ex := &execution{
		schema:    e.schema,
		document:  document,
		operation: operation,
		variables: coerced,
		opts:      &e.opts,
	}

	start := time.Now()
	eventbus.Publish(ctx, e.opts.bus, events.GraphQLStart{
		OperationName: operation.Name,
		OperationType: string(operation.Operation),
	})
	defer func() {
		finish := events.GraphQLFinish{
			OperationName: operation.Name,
			OperationType: string(operation.Operation),
			Err:           err,
			Duration:      time.Since(start),
		}
		if res != nil {
			finish.Errors = res.Errors
		}
		eventbus.Publish(ctx, e.opts.bus, finish)
	}()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		f, ok := r.(fatal)
		if !ok {
			panic(r)
		}
		e.opts.logger.WithError(f.err).WithField("operation", operation.Name).Error("execution aborted")
		res, err = nil, f.err
	}()

	fields := ex.collectFields(rootType, operation.SelectionSet)
	serial := operation.Operation == language.Mutation
	root := ex.executeFields(ctx, rootType, initialValue, fields, nil, 1, serial)

	res = &ExecutionResult{Errors: ex.errs}
	if !root.propagate {
		res.Data = root.value
	}
	e.opts.logger.WithFields(logrus.Fields{
		"operation": operation.Name,
		"type":      operation.Operation,
		"errors":    len(ex.errs),
		"duration":  time.Since(start),
	}).Debug("operation executed")
	return res, nil
}

// getOperation retrieves the operation from the document
func getOperation(document *language.QueryDocument, operationName string) (*language.OperationDefinition, error) {
	if document == nil {
		return nil, fmt.Errorf("%w: no document", ErrOperationNotFound)
	}
	if operationName == "" {
		switch len(document.Operations) {
		case 1:
			return document.Operations[0], nil
		case 0:
			return nil, fmt.Errorf("%w: document contains no operations", ErrOperationNotFound)
		default:
			return nil, fmt.Errorf("%w: an operation name is required when the document contains multiple operations", ErrOperationNotFound)
		}
	}
	for _, op := range document.Operations {
		if op.Name == operationName {
			return op, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrOperationNotFound, operationName)
}

// executeFields resolves the collected fields of one object. When serial is
// set each field is fully completed before the next one starts, and
// execution stops at the first field that propagates null.
func (ex *execution) executeFields(
	ctx context.Context,
	object *schema.Type,
	source any,
	fields []collectedField,
	path ast.Path,
	depth int,
	serial bool,
) completed {
	results := make([]completed, len(fields))
	run := func(i int) {
		fieldPath := appendPath(path, ast.PathName(fields[i].ResponseName))
		results[i] = ex.executeField(ctx, object, source, fields[i], fieldPath, depth)
	}
	if serial {
		for i := range fields {
			run(i)
			if results[i].propagate {
				return propagated
			}
		}
	} else {
		ex.each(len(fields), run)
	}

	out := make(ResultMap, 0, len(fields))
	for i, f := range fields {
		if results[i].propagate {
			return propagated
		}
		out = append(out, ResultField{Key: f.ResponseName, Value: results[i].value})
	}
	return completed{value: out}
}

// each calls fn for 0..n-1. With parallelism enabled the calls run on an
// errgroup bounded by the limit; a fatal panic in any of them is re-raised
// on the calling goroutine after all calls returned.
func (ex *execution) each(n int, fn func(i int)) {
	if ex.opts.parallelism <= 0 || n < 2 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var (
		g         errgroup.Group
		once      sync.Once
		recovered any
	)
	g.SetLimit(ex.opts.parallelism)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { recovered = r })
				}
			}()
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
	if recovered != nil {
		panic(recovered)
	}
}

func (ex *execution) executeField(
	ctx context.Context,
	object *schema.Type,
	source any,
	cf collectedField,
	path ast.Path,
	depth int,
) completed {
	node := cf.definition()
	def := ex.schema.FieldFor(object, node.Name)
	if def == nil {
		ex.addError(cf.Fields, path, fmt.Errorf("Cannot query field %q on type %q.", node.Name, object.Name))
		return failedNull
	}
	if def == schema.TypenameField {
		return completed{value: object.Name}
	}
	if ex.opts.maxDepth > 0 && depth > ex.opts.maxDepth {
		ex.addError(cf.Fields, path, fmt.Errorf("%w: limit is %d", ErrMaxDepth, ex.opts.maxDepth))
		return nullFor(def.Type)
	}
	if err := ctx.Err(); err != nil {
		ex.addError(cf.Fields, path, err)
		return nullFor(def.Type)
	}

	args, err := coerceArgumentValues(ex.schema, def.Arguments, node.Arguments, ex.variables)
	if err != nil {
		ex.addError(cf.Fields, path, err)
		return nullFor(def.Type)
	}

	raw, err := ex.resolveField(ctx, object, def, source, args, path)
	if err != nil {
		ex.addError(cf.Fields, path, err)
		return nullFor(def.Type)
	}

	info := &fieldInfo{parent: object, def: def, nodes: cf.Fields}
	return ex.completeValue(ctx, def.Type, info, raw, path, depth)
}

// resolveField invokes the field resolver, or DefaultResolve when the field
// has none, and forces a Deferred result. Panics become errors.
func (ex *execution) resolveField(
	ctx context.Context,
	object *schema.Type,
	def *schema.Field,
	source any,
	args map[string]any,
	path ast.Path,
) (value any, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(fatal); ok {
				panic(f)
			}
			err = ex.recovered(r, "resolver", fieldLog(object, def))
		}
		eventbus.Publish(ctx, ex.opts.bus, events.FieldFinish{
			ObjectType: object.Name,
			Field:      def.Name,
			Path:       path,
			Start:      start,
			Duration:   time.Since(start),
			Err:        err,
		})
	}()

	if def.Resolve != nil {
		value, err = def.Resolve(ctx, source, args)
	} else {
		value, err = DefaultResolve(source, def.Name)
	}
	if err != nil {
		return nil, err
	}
	return force(value)
}

func (ex *execution) recovered(r any, source string, fields logrus.Fields) error {
	perr := &panicError{source: source, value: r, stack: debug.Stack()}
	ex.opts.logger.WithFields(fields).WithFields(logrus.Fields{
		"panic": fmt.Sprint(r),
		"stack": string(perr.stack),
	}).Errorf("recovered %s panic", source)
	return perr
}

// protect runs the schema callback fn. A panic other than a fatal one is
// returned as a *panicError.
func (ex *execution) protect(source string, fields logrus.Fields, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(fatal); ok {
				panic(f)
			}
			err = ex.recovered(r, source, fields)
		}
	}()
	return fn()
}

func fieldLog(object *schema.Type, def *schema.Field) logrus.Fields {
	return logrus.Fields{"type": object.Name, "field": def.Name}
}

// force runs Deferred values until a plain value is produced.
func force(v any) (any, error) {
	for {
		var fn func() (any, error)
		switch d := v.(type) {
		case schema.Deferred:
			fn = d
		case func() (any, error):
			fn = d
		default:
			return v, nil
		}
		if fn == nil {
			return nil, nil
		}
		var err error
		v, err = fn()
		if err != nil {
			return nil, err
		}
	}
}

// addError records err at path. Errors produced by resolvers as
// *gqlerror.Error keep their message and extensions.
func (ex *execution) addError(fields []*language.Field, path ast.Path, err error) {
	var located gqlerror.Error
	var gerr *gqlerror.Error
	if errors.As(err, &gerr) {
		located = *gerr
	} else {
		located = gqlerror.Error{Message: err.Error(), Err: err}
	}
	if located.Path == nil {
		located.Path = path
	}
	if located.Locations == nil {
		for _, f := range fields {
			if f.Position != nil {
				located.Locations = append(located.Locations, gqlerror.Location{Line: f.Position.Line, Column: f.Position.Column})
			}
		}
	}
	var perr *panicError
	if errors.As(err, &perr) {
		ext := make(map[string]any, len(located.Extensions)+1)
		for k, v := range located.Extensions {
			ext[k] = v
		}
		ext["code"] = "INTERNAL_RESOLVER_PANIC"
		located.Extensions = ext
	}

	ex.mu.Lock()
	ex.errs = append(ex.errs, &located)
	ex.mu.Unlock()
}

func appendPath(path ast.Path, elem ast.PathElement) ast.Path {
	newPath := make(ast.Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
