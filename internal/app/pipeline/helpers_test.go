package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/navarlu/Historian/internal/domain"
	"github.com/navarlu/Historian/internal/ports"
)

// stubObs records counters and gauges so tests can assert on pipeline
// accounting without a real metrics backend.
type stubObs struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
}

func newStubObs() *stubObs {
	return &stubObs{
		counters: make(map[string]float64),
		gauges:   make(map[string]float64),
	}
}

func (o *stubObs) LogInfo(string, ...ports.Field)         {}
func (o *stubObs) LogError(string, error, ...ports.Field) {}

func (o *stubObs) IncCounter(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counters[name] += v
}

func (o *stubObs) ObserveLatency(string, float64) {}

func (o *stubObs) SetGauge(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gauges[name] = v
}

func (o *stubObs) counter(name string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters[name]
}

// stubSource serves scripted values per node and lets tests fail individual
// nodes on demand.
type stubSource struct {
	mu     sync.Mutex
	values map[string]float64
	errs   map[string]error
	reads  int
}

func newStubSource() *stubSource {
	return &stubSource{
		values: make(map[string]float64),
		errs:   make(map[string]error),
	}
}

func (s *stubSource) set(nodeID string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[nodeID] = v
	delete(s.errs, nodeID)
}

func (s *stubSource) fail(nodeID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[nodeID] = err
}

func (s *stubSource) Read(_ context.Context, nodeID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if err, ok := s.errs[nodeID]; ok {
		return 0, err
	}
	return s.values[nodeID], nil
}

func (s *stubSource) Close(context.Context) error { return nil }

// stubCatalog returns fixed selections and loop assignments.
type stubCatalog struct {
	tags    []domain.Tag
	loops   []domain.LoopAssignment
	tagErr  error
	loopErr error
}

func (c *stubCatalog) Selection(context.Context) ([]domain.Tag, error) {
	return c.tags, c.tagErr
}

func (c *stubCatalog) LoopAssignments(context.Context) ([]domain.LoopAssignment, error) {
	return c.loops, c.loopErr
}

// stubSink collects every batch it receives; failAfter (when >= 0) makes the
// (failAfter+1)-th batch and all later ones fail.
type stubSink struct {
	mu        sync.Mutex
	batches   [][]domain.Point
	failAfter int
	err       error
}

func newStubSink() *stubSink { return &stubSink{failAfter: -1} }

func (s *stubSink) WriteBatch(points []domain.Point, _ ports.WriteOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter >= 0 && len(s.batches) >= s.failAfter {
		return s.err
	}
	batch := make([]domain.Point, len(points))
	copy(batch, points)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *stubSink) Name() string { return "stub" }

func (s *stubSink) written() []domain.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Point
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

// fakeClock hands out a controllable time to the pieces that take a now func.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(sec int64) *fakeClock {
	return &fakeClock{t: time.Unix(sec, 0)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
