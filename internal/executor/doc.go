// Package executor implements a depth-first GraphQL executor over a parsed
// and validated gqlparser document and an in-memory schema.Schema.
//
// # Overview
//
// The executor walks an operation's selection set against the root type,
// invoking field resolvers and completing their values according to the
// field's declared type:
//   - Collect and merge the fields of a selection set for one concrete object
//     type, honoring @skip/@include and fragment type conditions.
//   - Resolve each response key once, using the arguments of its last
//     occurrence and the merged sub-selections of all occurrences.
//   - Complete values by type kind (Non-Null, List, Scalar, Enum, Object,
//     Interface, Union), including Non-Null null propagation.
//   - Accumulate located errors while allowing partial success.
//
// # Preparation
//
// Before execution, the executor:
//  1. Chooses the operation (by name, or by uniqueness when unnamed).
//  2. Coerces variables from the provided input against the operation's
//     variable definitions. Errors here stop execution and the result has
//     no data.
//  3. Builds an execution context: schema, document, operation, coerced
//     variables and options. It lives for one request only.
//  4. Determines the root object type from the operation (Query/Mutation)
//     and collects the root selection set.
//
// # Field Collection
//
// Fields are collected into an ordered map keyed by response name (alias or
// field name). A key keeps the position where it was first seen; later
// occurrences, whether written directly, through a fragment spread or
// through an inline fragment, are merged into it. Fragments apply when their
// type condition names the object type, an interface it implements, or a
// union it belongs to. A spread that re-enters a fragment that is being
// collected aborts execution with ErrFragmentCycle.
//
// # Value Completion
//
// Completion returns one of three outcomes: a value, a null with an already
// recorded error, or a propagation. Rules:
//   - Non-Null: complete the inner type. A null inner value records
//     "Cannot return null for non-nullable field" (unless an error was
//     already recorded) and propagates.
//   - Nullable positions absorb propagation from below and become null.
//   - List: complete each element with an index path. One propagating
//     element makes the whole list propagate.
//   - Object: a propagating field makes the whole object propagate, so
//     sibling values at that level are discarded.
//   - Leaf: scalars use the type's Serialize function; enums map internal
//     values back to their names.
//   - Abstract: schema.ResolveAbstractType picks the concrete object type.
//     Failure is a developer error and aborts the operation.
//
// If propagation reaches the root, Data is nil.
//
// # Concurrency
//
// With WithParallelism(n), sibling fields and list elements are completed
// on an errgroup limited to n goroutines per level. Top-level mutation
// fields always run one after another in document order. Result key order
// never depends on completion order. Resolvers may return a schema.Deferred;
// it is forced before its value is completed.
//
// # Errors
//
// Resolver errors, coercion errors and Non-Null violations are recorded as
// *gqlerror.Error with the response path and the locations of the field
// nodes. Panics in resolvers, scalar serializers, IsTypeOf bindings and
// directive Include hooks are recovered and recorded with extension code
// INTERNAL_RESOLVER_PANIC. A panic in a ResolveType hook is a developer
// error. Developer errors (*schema.SchemaError,
// ErrFragmentCycle, a missing root type) are returned from ExecuteRequest
// as an error instead of a result.
package executor
