package tenancy

import (
	"context"
	"testing"
)

func TestWithWorkspaceIDRoundTrip(t *testing.T) {
	ctx := WithWorkspaceID(context.Background(), "ws-123")

	got, ok := WorkspaceIDFromContext(ctx)
	if !ok {
		t.Fatalf("expected workspace id to be present")
	}
	if got != "ws-123" {
		t.Fatalf("expected ws-123, got %s", got)
	}
}

func TestWorkspaceIDFromContext_EmptyOrMissing(t *testing.T) {
	ctx := context.Background()
	if _, ok := WorkspaceIDFromContext(ctx); ok {
		t.Fatalf("expected missing workspace id to return false")
	}

	ctx = context.WithValue(ctx, workspaceKey, 42)
	if _, ok := WorkspaceIDFromContext(ctx); ok {
		t.Fatalf("expected non-string workspace id to return false")
	}

	ctx = WithWorkspaceID(context.Background(), "")
	if _, ok := WorkspaceIDFromContext(ctx); ok {
		t.Fatalf("expected empty workspace id to return false")
	}
}
