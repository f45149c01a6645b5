package ports

import "context"

// ScalarSource reads one numeric value from a live field-device signal.
// Implementations own the connection and must serialize concurrent reads so
// the raw and loop samplers can share a single handle.
type ScalarSource interface {
	Read(ctx context.Context, nodeID string) (float64, error)
	Close(ctx context.Context) error
}
