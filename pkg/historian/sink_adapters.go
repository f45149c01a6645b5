package historian

import (
	"errors"
	"fmt"
	"sync"

	"github.com/navarlu/Historian/internal/domain"
	"github.com/navarlu/Historian/internal/ports"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after
// being closed.
var ErrChannelSinkClosed = errors.New("historian: channel sink closed")

// PointBatchFunc is invoked with ordered batches drained from a sampler's
// buffer.
type PointBatchFunc func(points []Point, opts WriteOptions) error

// NewCallbackSink adapts a PointBatchFunc into a full Sink so callers can
// plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn PointBatchFunc) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes batches via a channel; it returns the sink, the
// read-only channel, and a close function the caller should invoke during
// shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan []Point, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []Point, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   PointBatchFunc
}

func (s *callbackSink) WriteBatch(points []domain.Point, opts ports.WriteOptions) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(points) == 0 {
		return nil
	}
	return s.fn(points, opts)
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan []Point
	closed chan struct{}
	once   sync.Once
}

func (s *channelSink) WriteBatch(points []domain.Point, _ ports.WriteOptions) error {
	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(points) == 0 {
		return nil
	}

	batch := make([]Point, len(points))
	copy(batch, points)

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- batch:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		close(s.ch)
	})
}
