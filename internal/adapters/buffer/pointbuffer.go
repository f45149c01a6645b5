package buffer

import (
	"sync"

	"github.com/navarlu/Historian/internal/domain"
	"github.com/navarlu/Historian/internal/ports"
)

// PointBuffer is a bounded in-memory queue of pending points that preserves
// FIFO ordering. Unlike a rejecting queue, overflow is handled by Trim, which
// discards the oldest points: under sustained backlog the buffer favors
// recency over completeness.
type PointBuffer struct {
	mu     sync.Mutex
	points []domain.Point
	cap    int
}

func NewPointBuffer(capacity int) *PointBuffer {
	return &PointBuffer{
		points: make([]domain.Point, 0, min(capacity, 4096)),
		cap:    capacity,
	}
}

func (b *PointBuffer) Enqueue(points ...domain.Point) {
	if len(points) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.points = append(b.points, points...)
}

func (b *PointBuffer) Peek(max int) []domain.Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.points) == 0 {
		return nil
	}
	if max <= 0 || max > len(b.points) {
		max = len(b.points)
	}
	out := make([]domain.Point, max)
	copy(out, b.points[:max])
	return out
}

func (b *PointBuffer) Drop(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 {
		return
	}
	if n > len(b.points) {
		n = len(b.points)
	}
	b.points = append(b.points[:0], b.points[n:]...)
}

// Trim enforces the capacity bound, removing the oldest excess points, and
// returns how many were discarded.
func (b *PointBuffer) Trim() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	excess := len(b.points) - b.cap
	if excess <= 0 {
		return 0
	}
	b.points = append(b.points[:0], b.points[excess:]...)
	return excess
}

func (b *PointBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.points)
}

var _ ports.PointQueue = (*PointBuffer)(nil)
