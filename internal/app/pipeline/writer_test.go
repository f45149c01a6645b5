package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/navarlu/Historian/internal/adapters/buffer"
	"github.com/navarlu/Historian/internal/domain"
	"github.com/navarlu/Historian/internal/ports"
)

func makePoints(n int) []domain.Point {
	points := make([]domain.Point, n)
	for i := range points {
		points[i] = domain.Point{
			Measurement: "m",
			Tags:        map[string]string{"nodeid": fmt.Sprintf("n%d", i)},
			Time:        int64(i),
			Fields:      map[string]interface{}{"value": float64(i)},
		}
	}
	return points
}

func TestBatchWriterDrainsInOrder(t *testing.T) {
	sink := newStubSink()
	q := buffer.NewPointBuffer(1000)
	q.Enqueue(makePoints(12)...)

	w := NewBatchWriter(sink, 5, ports.WriteOptions{})
	written, err := w.Flush(q)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if written != 12 {
		t.Fatalf("written = %d, want 12", written)
	}
	if q.Len() != 0 {
		t.Fatalf("queue len = %d, want 0", q.Len())
	}
	if got := len(sink.batches); got != 3 {
		t.Fatalf("batches = %d, want 3 (5+5+2)", got)
	}
	for i, p := range sink.written() {
		if p.Time != int64(i) {
			t.Fatalf("point %d has time %d; order not preserved", i, p.Time)
		}
	}
}

func TestBatchWriterStopsOnFailure(t *testing.T) {
	sink := newStubSink()
	sink.failAfter = 1
	sink.err = errors.New("influx unreachable")

	q := buffer.NewPointBuffer(1000)
	q.Enqueue(makePoints(12)...)

	w := NewBatchWriter(sink, 5, ports.WriteOptions{})
	written, err := w.Flush(q)
	if err == nil {
		t.Fatal("expected flush error")
	}
	if written != 5 {
		t.Fatalf("written = %d, want 5 (only the first batch)", written)
	}
	// The failed batch and everything after stays queued for retry.
	if q.Len() != 7 {
		t.Fatalf("queue len = %d, want 7", q.Len())
	}
	head := q.Peek(1)
	if len(head) != 1 || head[0].Time != 5 {
		t.Fatalf("queue head = %+v, want the first unwritten point (time 5)", head)
	}
}

func TestBatchWriterNeverResendsWrittenPoints(t *testing.T) {
	sink := newStubSink()
	sink.failAfter = 1
	sink.err = errors.New("down")

	q := buffer.NewPointBuffer(1000)
	q.Enqueue(makePoints(10)...)

	w := NewBatchWriter(sink, 5, ports.WriteOptions{})
	if _, err := w.Flush(q); err == nil {
		t.Fatal("expected first flush to fail")
	}

	sink.failAfter = -1
	written, err := w.Flush(q)
	if err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if written != 5 {
		t.Fatalf("second flush wrote %d, want the remaining 5", written)
	}

	seen := map[int64]int{}
	for _, p := range sink.written() {
		seen[p.Time]++
	}
	for ts, n := range seen {
		if n != 1 {
			t.Fatalf("point %d written %d times", ts, n)
		}
	}
}

func TestBatchWriterEmptyQueue(t *testing.T) {
	w := NewBatchWriter(newStubSink(), 5, ports.WriteOptions{})
	written, err := w.Flush(buffer.NewPointBuffer(10))
	if err != nil || written != 0 {
		t.Fatalf("got (%d, %v), want (0, nil)", written, err)
	}
}
