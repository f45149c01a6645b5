package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCachedReaderLiveRead(t *testing.T) {
	src := newStubSource()
	src.set("ns=2;s=A", 7.25)

	r := NewCachedReader(src, NewValueCache(), 30*time.Second)
	res := r.Read(context.Background(), "ns=2;s=A")

	if !res.OK || res.FromCache || res.Err != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Value != 7.25 {
		t.Fatalf("value = %v, want 7.25", res.Value)
	}
	if res.CacheAge != 0 {
		t.Fatalf("cache age = %d, want 0 for live read", res.CacheAge)
	}
}

func TestCachedReaderFallsBackToCache(t *testing.T) {
	src := newStubSource()
	src.set("ns=2;s=A", 3.5)
	clock := newFakeClock(1_700_000_000)

	r := NewCachedReader(src, NewValueCache(), 30*time.Second)
	r.now = clock.now

	if res := r.Read(context.Background(), "ns=2;s=A"); !res.OK {
		t.Fatalf("priming read failed: %+v", res)
	}

	readErr := errors.New("connection reset")
	src.fail("ns=2;s=A", readErr)
	clock.advance(6 * time.Second)

	res := r.Read(context.Background(), "ns=2;s=A")
	if !res.OK || !res.FromCache {
		t.Fatalf("expected cached fallback, got %+v", res)
	}
	if res.Value != 3.5 {
		t.Fatalf("value = %v, want cached 3.5", res.Value)
	}
	if res.CacheAge != 6 {
		t.Fatalf("cache age = %d, want 6", res.CacheAge)
	}
	if !errors.Is(res.Err, readErr) {
		t.Fatalf("original error not preserved: %v", res.Err)
	}
}

func TestCachedReaderCacheTooOld(t *testing.T) {
	src := newStubSource()
	src.set("ns=2;s=A", 3.5)
	clock := newFakeClock(1_700_000_000)

	r := NewCachedReader(src, NewValueCache(), 30*time.Second)
	r.now = clock.now

	r.Read(context.Background(), "ns=2;s=A")
	src.fail("ns=2;s=A", errors.New("down"))
	clock.advance(31 * time.Second)

	res := r.Read(context.Background(), "ns=2;s=A")
	if res.OK {
		t.Fatalf("expected failure once cache is past max age, got %+v", res)
	}
	if res.Err == nil {
		t.Fatal("expected the live read error to surface")
	}
}

func TestCachedReaderNoCacheEntry(t *testing.T) {
	src := newStubSource()
	src.fail("ns=2;s=A", errors.New("down"))

	r := NewCachedReader(src, NewValueCache(), 30*time.Second)
	res := r.Read(context.Background(), "ns=2;s=A")
	if res.OK || res.FromCache {
		t.Fatalf("expected plain failure, got %+v", res)
	}
}

func TestCachedReaderSuccessRefreshesCache(t *testing.T) {
	src := newStubSource()
	src.set("ns=2;s=A", 1)
	clock := newFakeClock(1_700_000_000)

	r := NewCachedReader(src, NewValueCache(), 30*time.Second)
	r.now = clock.now

	r.Read(context.Background(), "ns=2;s=A")
	clock.advance(25 * time.Second)
	src.set("ns=2;s=A", 2)
	r.Read(context.Background(), "ns=2;s=A")

	// The refresh moved the horizon: 10 more seconds is still within range
	// of the second read.
	src.fail("ns=2;s=A", errors.New("down"))
	clock.advance(10 * time.Second)
	res := r.Read(context.Background(), "ns=2;s=A")
	if !res.OK || res.Value != 2 || res.CacheAge != 10 {
		t.Fatalf("got %+v, want cached value 2 with age 10", res)
	}
}
