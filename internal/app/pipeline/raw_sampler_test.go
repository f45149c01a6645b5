package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/navarlu/Historian/internal/adapters/buffer"
	"github.com/navarlu/Historian/internal/adapters/observability"
	"github.com/navarlu/Historian/internal/domain"
	"github.com/navarlu/Historian/internal/ports"
)

func newRawHarness(src *stubSource, cat *stubCatalog, sink *stubSink, queueCap int) (*RawSampler, *fakeClock, *stubObs) {
	clock := newFakeClock(1_700_000_000)
	obs := newStubObs()

	reader := NewCachedReader(src, NewValueCache(), 30*time.Second)
	reader.now = clock.now

	s := NewRawSampler(
		cat, reader, buffer.NewPointBuffer(queueCap),
		NewBatchWriter(sink, 5000, ports.WriteOptions{}),
		obs, "selected_tag_data", time.Second,
	)
	s.now = clock.now
	return s, clock, obs
}

func TestRawSamplerEmitsOnePointPerTagPerCycle(t *testing.T) {
	src := newStubSource()
	src.set("ns=2;s=A", 10)
	src.set("ns=2;s=B", 20)
	cat := &stubCatalog{tags: []domain.Tag{
		{NodeID: "ns=2;s=A", Label: "Temp"},
		{NodeID: "ns=2;s=B"}, // label falls back to the node id
	}}
	sink := newStubSink()
	s, clock, _ := newRawHarness(src, cat, sink, 1000)

	for i := 0; i < 3; i++ {
		s.Cycle(context.Background())
		clock.advance(time.Second)
	}

	points := sink.written()
	if len(points) != 6 {
		t.Fatalf("points = %d, want 6 (2 tags x 3 cycles)", len(points))
	}

	first := points[0]
	if first.Measurement != "selected_tag_data" {
		t.Fatalf("measurement = %q", first.Measurement)
	}
	if first.Tags["label"] != "Temp" {
		t.Fatalf("label = %q, want Temp", first.Tags["label"])
	}
	if first.Fields["value"] != 10.0 || first.Fields["from_cache"] != 0 {
		t.Fatalf("fields = %v", first.Fields)
	}

	if points[1].Tags["label"] != "ns=2;s=B" {
		t.Fatalf("missing label should fall back to node id, got %q", points[1].Tags["label"])
	}

	// Timestamps advance one second per cycle.
	if points[0].Time != 1_700_000_000 || points[2].Time != 1_700_000_001 || points[4].Time != 1_700_000_002 {
		t.Fatalf("timestamps = %d %d %d", points[0].Time, points[2].Time, points[4].Time)
	}
}

func TestRawSamplerCacheFallback(t *testing.T) {
	src := newStubSource()
	src.set("ns=2;s=A", 42)
	cat := &stubCatalog{tags: []domain.Tag{{NodeID: "ns=2;s=A", Label: "Temp"}}}
	sink := newStubSink()
	s, clock, obs := newRawHarness(src, cat, sink, 1000)

	s.Cycle(context.Background())

	src.fail("ns=2;s=A", errors.New("read timed out"))
	clock.advance(6 * time.Second)
	s.Cycle(context.Background())

	points := sink.written()
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2", len(points))
	}

	cached := points[1]
	if cached.Fields["value"] != 42.0 {
		t.Fatalf("cached value = %v, want 42", cached.Fields["value"])
	}
	if cached.Fields["from_cache"] != 1 || cached.Fields["cache_age_s"] != 6 {
		t.Fatalf("cache markers = %v", cached.Fields)
	}
	if cached.Fields["read_error"] != 1 {
		t.Fatalf("read_error = %v, want 1", cached.Fields["read_error"])
	}
	if obs.counter(observability.MetricCacheHits) != 1 {
		t.Fatalf("cache hit counter = %v, want 1", obs.counter(observability.MetricCacheHits))
	}
	if obs.counter(observability.MetricReadFailures) != 1 {
		t.Fatalf("read failure counter = %v, want 1", obs.counter(observability.MetricReadFailures))
	}
}

func TestRawSamplerSkipsDeadSourceAfterCacheExpiry(t *testing.T) {
	src := newStubSource()
	src.set("ns=2;s=A", 42)
	cat := &stubCatalog{tags: []domain.Tag{{NodeID: "ns=2;s=A", Label: "Temp"}}}
	sink := newStubSink()
	s, clock, _ := newRawHarness(src, cat, sink, 1000)

	s.Cycle(context.Background())
	src.fail("ns=2;s=A", errors.New("down"))
	clock.advance(31 * time.Second)
	s.Cycle(context.Background())

	if got := len(sink.written()); got != 1 {
		t.Fatalf("points = %d, want 1 (no point once cache is exhausted)", got)
	}
}

func TestRawSamplerSelectionErrorProducesNoPoints(t *testing.T) {
	cat := &stubCatalog{tagErr: errors.New("disk error")}
	sink := newStubSink()
	s, _, _ := newRawHarness(newStubSource(), cat, sink, 1000)

	s.Cycle(context.Background())

	if len(sink.written()) != 0 {
		t.Fatal("expected no points when the selection cannot be loaded")
	}
}

func TestRawSamplerTrimsOnSinkFailure(t *testing.T) {
	src := newStubSource()
	src.set("ns=2;s=A", 1)
	src.set("ns=2;s=B", 2)
	cat := &stubCatalog{tags: []domain.Tag{
		{NodeID: "ns=2;s=A", Label: "A"},
		{NodeID: "ns=2;s=B", Label: "B"},
	}}
	sink := newStubSink()
	sink.failAfter = 0
	sink.err = errors.New("sink down")

	s, clock, obs := newRawHarness(src, cat, sink, 3)

	for i := 0; i < 3; i++ {
		s.Cycle(context.Background())
		clock.advance(time.Second)
	}

	// 6 points entered, the cap is 3: the oldest 3 were trimmed away.
	if got := s.queue.Len(); got != 3 {
		t.Fatalf("pending = %d, want 3", got)
	}
	if got := obs.counter(observability.MetricPointsDropped); got != 3 {
		t.Fatalf("dropped counter = %v, want 3", got)
	}
	head := s.queue.Peek(1)
	if head[0].Time != 1_700_000_001 {
		t.Fatalf("oldest surviving point at %d, want the second cycle's timestamp", head[0].Time)
	}

	// Once the sink recovers the backlog drains, newest data intact.
	sink.failAfter = -1
	s.Cycle(context.Background())
	if got := s.queue.Len(); got != 0 {
		t.Fatalf("pending after recovery = %d, want 0", got)
	}
	if got := obs.counter(observability.MetricWriteFailures); got != 3 {
		t.Fatalf("write failure counter = %v, want 3", got)
	}
}
