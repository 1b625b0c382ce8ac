package events

import (
	"time"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// GraphQLStart is emitted before executing a GraphQL operation.
type GraphQLStart struct {
	OperationName string
	OperationType string
}

// GraphQLFinish is emitted after executing a GraphQL operation. Err is set
// when execution aborted on a schema error.
type GraphQLFinish struct {
	OperationName string
	OperationType string
	Errors        gqlerror.List
	Err           error
	Duration      time.Duration
}

// FieldFinish is emitted after a field value was resolved, either by the
// field's resolver or by the default resolver. __typename is not reported.
type FieldFinish struct {
	ObjectType string
	Field      string
	Path       ast.Path
	Start      time.Time
	Duration   time.Duration
	Err        error
}
