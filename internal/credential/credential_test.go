package credential

import (
	"context"
	"sync"
	"testing"
)

func TestGetWithoutCarrier(t *testing.T) {
	if tok, ok := Get(context.Background()); ok || tok != "" {
		t.Fatalf("expected no credential, got %q", tok)
	}
}

func TestVisibleAcrossGoroutines(t *testing.T) {
	ctx, c := Set(context.Background(), "tok-A")
	defer c.Clear()

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			child, cancel := context.WithCancel(ctx)
			defer cancel()
			results[i], _ = Get(child)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if got != "tok-A" {
			t.Fatalf("goroutine %d saw %q", i, got)
		}
	}
}

func TestConcurrentTurnsIsolated(t *testing.T) {
	ctxA, a := Set(context.Background(), "tok-A")
	ctxB, b := Set(context.Background(), "tok-B")
	defer a.Clear()
	defer b.Clear()

	var wg sync.WaitGroup
	var gotA, gotB string
	wg.Add(2)
	go func() { defer wg.Done(); gotA, _ = Get(ctxA) }()
	go func() { defer wg.Done(); gotB, _ = Get(ctxB) }()
	wg.Wait()

	if gotA != "tok-A" || gotB != "tok-B" {
		t.Fatalf("credentials crossed: A=%q B=%q", gotA, gotB)
	}
}

func TestClearIsObservedByHolders(t *testing.T) {
	ctx, c := Set(context.Background(), "tok-A")
	c.Clear()
	c.Clear()

	if !c.Cleared() {
		t.Fatalf("expected carrier to be cleared")
	}
	if tok, ok := Get(ctx); ok || tok != "" {
		t.Fatalf("expected empty credential after clear, got %q", tok)
	}
}

func TestMask(t *testing.T) {
	if got := Mask("short"); got != "***" {
		t.Fatalf("unexpected mask %q", got)
	}
	if got := Mask("abcdefghijkl"); got != "abcdefgh***" {
		t.Fatalf("unexpected mask %q", got)
	}
}

func TestFromHeader(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"abc":          "abc",
		"":             "",
	}
	for in, want := range cases {
		if got := FromHeader(in); got != want {
			t.Fatalf("FromHeader(%q) = %q, want %q", in, got, want)
		}
	}
}
