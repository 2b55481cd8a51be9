package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NicholasJacob1990/litgo-match/internal/litmatch"
)

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend unreachable")
}
func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend unreachable")
}
func (failingCache) Delete(context.Context, string) error { return errors.New("backend unreachable") }
func (failingCache) Close() error                         { return nil }

func TestStaticCacheRoundTrip(t *testing.T) {
	sc := New(NewInMemory(0), time.Minute, nil)
	ctx := context.Background()

	if _, ok := sc.Get(ctx, "adv_1"); ok {
		t.Fatalf("expected miss before put")
	}

	sc.Put(ctx, "adv_1", litmatch.StaticFeatures{T: 0.5, G: 0.9, Q: 0.7, R: 0.3})

	got, ok := sc.Get(ctx, "adv_1")
	if !ok {
		t.Fatalf("expected hit after put")
	}
	if got.T != 0.5 || got.G != 0.9 || got.Q != 0.7 || got.R != 0.3 {
		t.Fatalf("round-tripped value mismatch: %+v", got)
	}

	if err := sc.Invalidate(ctx, "adv_1"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, ok := sc.Get(ctx, "adv_1"); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	sc := New(NewInMemory(0), time.Minute, nil)
	ctx := context.Background()
	if err := sc.Invalidate(ctx, "missing"); err != nil {
		t.Fatalf("first invalidate of missing key failed: %v", err)
	}
	if err := sc.Invalidate(ctx, "missing"); err != nil {
		t.Fatalf("second invalidate of missing key failed: %v", err)
	}
}

func TestDegradesToMissOnBackendFailure(t *testing.T) {
	sc := New(failingCache{}, time.Minute, nil)
	ctx := context.Background()

	if _, ok := sc.Get(ctx, "adv_1"); ok {
		t.Fatalf("expected miss when backend fails")
	}
	// Put must not panic even though the backend rejects the write.
	sc.Put(ctx, "adv_1", litmatch.StaticFeatures{T: 1})
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	sc := New(NewInMemory(0), time.Millisecond, nil)
	ctx := context.Background()
	sc.Put(ctx, "adv_1", litmatch.StaticFeatures{T: 1})
	time.Sleep(5 * time.Millisecond)
	if _, ok := sc.Get(ctx, "adv_1"); ok {
		t.Fatalf("expected entry to have expired")
	}
}
