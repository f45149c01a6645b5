package ports

import "github.com/navarlu/Historian/internal/domain"

// PointQueue is the ordered buffer of pending writes between the samplers and
// the sink. Insertion order is write order. Overflow handling is lossy:
// Trim discards from the front (oldest first) and reports how many were lost.
type PointQueue interface {
	Enqueue(points ...domain.Point)
	// Peek returns up to max points from the front without removing them.
	Peek(max int) []domain.Point
	// Drop removes the first n points; used after a successful batch write.
	Drop(n int)
	// Trim enforces the queue's capacity and returns the number discarded.
	Trim() int
	Len() int
}
