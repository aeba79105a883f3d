package session

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	tokens, err := InMemoryTokenStore(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	tokens.(*memStore).now = func() time.Time { return now }

	if err := tokens.Save(ctx, "sid-1", "42", time.Minute); err != nil {
		t.Fatal(err)
	}
	id, found, err := tokens.Lookup(ctx, "sid-1")
	if err != nil {
		t.Fatal(err)
	} else if !found || id != "42" {
		t.Fatalf("expecting binding to 42 got %q (found: %v)", id, found)
	}

	now = now.Add(2 * time.Minute)
	if _, found, _ := tokens.Lookup(ctx, "sid-1"); found {
		t.Fatal("expired binding should not be found")
	}

	if err := tokens.Save(ctx, "sid-2", "43", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := tokens.Delete(ctx, "sid-2"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := tokens.Lookup(ctx, "sid-2"); found {
		t.Fatal("deleted binding should not be found")
	}
	if err := tokens.Delete(ctx, "missing"); err != nil {
		t.Fatalf("deleting an unknown binding is not an error, got %v", err)
	}
}
