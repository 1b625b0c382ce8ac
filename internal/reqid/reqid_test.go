package reqid

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestContextRoundTrip(t *testing.T) {
	ctx, id := NewContext(context.Background())
	got, ok := FromContext(ctx)
	if !ok || got != id {
		t.Fatalf("expected %q from context, got %q ok=%v", id, got, ok)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected a uuid, got %q: %v", id, err)
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("unexpected id in empty context")
	}
}

func TestWithID(t *testing.T) {
	ctx, id := WithID(context.Background(), "abc")
	if got, _ := FromContext(ctx); id != "abc" || got != "abc" {
		t.Fatalf("expected caller id to be kept, got %q and %q", id, got)
	}
	_, id = WithID(context.Background(), "")
	if id == "" {
		t.Fatalf("expected a generated id")
	}
}
