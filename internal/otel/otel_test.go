package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	eventbus "github.com/hanpama/graphexec/internal/eventbus"
	events "github.com/hanpama/graphexec/internal/events"
	reqid "github.com/hanpama/graphexec/internal/reqid"
)

func TestSpansFromEvents(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	bus := eventbus.New()
	unsubscribe := Subscribe(bus, tp.Tracer("test"))
	defer unsubscribe()

	ctx, _ := reqid.WithID(context.Background(), "r1")
	req := httptest.NewRequest("POST", "/graphql", nil)
	fieldStart := time.Now().Add(-time.Second)

	eventbus.Publish(ctx, bus, events.HTTPStart{Request: req, RequestID: "r1"})
	eventbus.Publish(ctx, bus, events.GraphQLStart{OperationName: "Q", OperationType: "query"})
	eventbus.Publish(ctx, bus, events.FieldFinish{
		ObjectType: "Query",
		Field:      "hello",
		Path:       ast.Path{ast.PathName("hello")},
		Start:      fieldStart,
		Duration:   10 * time.Millisecond,
		Err:        errors.New("boom"),
	})
	eventbus.Publish(ctx, bus, events.GraphQLFinish{OperationName: "Q", OperationType: "query"})
	eventbus.Publish(ctx, bus, events.HTTPFinish{Request: req, RequestID: "r1", Status: 200, Operations: 1})

	ended := sr.Ended()
	require.Len(t, ended, 3)
	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range ended {
		byName[s.Name()] = s
	}
	httpSpan, opSpan, fieldSpan := byName["http.request"], byName["graphql.operation"], byName["graphql.field"]
	require.NotNil(t, httpSpan)
	require.NotNil(t, opSpan)
	require.NotNil(t, fieldSpan)

	assert.Equal(t, httpSpan.SpanContext().SpanID(), opSpan.Parent().SpanID())
	assert.Equal(t, opSpan.SpanContext().SpanID(), fieldSpan.Parent().SpanID())
	assert.Equal(t, httpSpan.SpanContext().TraceID(), fieldSpan.SpanContext().TraceID())
	assert.True(t, fieldSpan.StartTime().Equal(fieldStart))
	assert.Equal(t, 10*time.Millisecond, fieldSpan.EndTime().Sub(fieldSpan.StartTime()))
	assert.Equal(t, codes.Error, fieldSpan.Status().Code)
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), eventbus.New(), "", "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
