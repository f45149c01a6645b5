package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/navarlu/Historian/internal/ports"
)

// Kind identifies one of the independently controllable sampling loops.
type Kind string

const (
	KindRaw  Kind = "raw"
	KindLoop Kind = "loop"
)

// Runner is a sampling loop that runs until its context is cancelled.
type Runner interface {
	Run(ctx context.Context)
}

type handle struct {
	mu      sync.Mutex
	runner  Runner
	running bool
	cancel  context.CancelFunc
	gen     uint64
}

// Supervisor owns one background task per loop kind. Start is idempotent
// (a second call observes running=true and does not spawn), Stop is
// cooperative and never blocks the caller: it cancels the task's context and
// returns, and the loop lands within one poll interval.
type Supervisor struct {
	obs     ports.Observability
	handles map[Kind]*handle
}

func NewSupervisor(obs ports.Observability) *Supervisor {
	return &Supervisor{
		obs:     obs,
		handles: make(map[Kind]*handle),
	}
}

// Register binds a runner to a kind. Must be called before Start/Stop/Running
// for that kind; registering twice replaces the runner for future starts.
func (s *Supervisor) Register(kind Kind, r Runner) {
	s.handles[kind] = &handle{runner: r}
}

// Start launches the loop of the given kind. It returns false without
// spawning when the loop is already running.
func (s *Supervisor) Start(kind Kind) (bool, error) {
	h, ok := s.handles[kind]
	if !ok {
		return false, fmt.Errorf("unknown loop kind %q", kind)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return false, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.running = true
	h.cancel = cancel
	h.gen++
	gen := h.gen
	runner := h.runner

	s.obs.LogInfo("sampler_start", ports.Field{Key: "kind", Value: string(kind)})
	go func() {
		defer cancel()
		runner.Run(ctx)

		h.mu.Lock()
		// Only clear the flag if no newer start superseded this task.
		if h.gen == gen {
			h.running = false
			h.cancel = nil
		}
		h.mu.Unlock()
	}()
	return true, nil
}

// Stop signals the loop of the given kind to exit. It returns false when the
// loop was not running. The in-flight cycle is not interrupted.
func (s *Supervisor) Stop(kind Kind) (bool, error) {
	h, ok := s.handles[kind]
	if !ok {
		return false, fmt.Errorf("unknown loop kind %q", kind)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return false, nil
	}
	h.running = false
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	s.obs.LogInfo("sampler_stop", ports.Field{Key: "kind", Value: string(kind)})
	return true, nil
}

// Running reports the run flag for the given kind.
func (s *Supervisor) Running(kind Kind) bool {
	h, ok := s.handles[kind]
	if !ok {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// StopAll stops every registered loop; used during shutdown.
func (s *Supervisor) StopAll() {
	for kind := range s.handles {
		_, _ = s.Stop(kind)
	}
}
