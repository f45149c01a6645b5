package pipeline

import (
	"github.com/navarlu/Historian/internal/ports"
)

// BatchWriter drains a point queue into the sink in bounded batches. On a
// write failure it stops immediately, leaving the failed batch and everything
// after it queued for the next cycle; the queue's trim policy bounds memory,
// so a dead sink cannot grow the backlog without limit.
type BatchWriter struct {
	sink      ports.Sink
	batchSize int
	opts      ports.WriteOptions
}

func NewBatchWriter(sink ports.Sink, batchSize int, opts ports.WriteOptions) *BatchWriter {
	if opts.Precision == "" {
		opts.Precision = "s"
	}
	return &BatchWriter{sink: sink, batchSize: batchSize, opts: opts}
}

// Flush writes queued points until the queue is empty or a batch fails.
// It returns how many points were written and the error that stopped it, if
// any. Points are removed from the queue only after their batch succeeds.
func (w *BatchWriter) Flush(queue ports.PointQueue) (int, error) {
	written := 0
	for {
		batch := queue.Peek(w.batchSize)
		if len(batch) == 0 {
			return written, nil
		}
		if err := w.sink.WriteBatch(batch, w.opts); err != nil {
			return written, err
		}
		queue.Drop(len(batch))
		written += len(batch)
	}
}
