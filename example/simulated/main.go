// Runs the full collector against a simulated source instead of a live
// OPC UA server, printing every batch that reaches the sink. Useful for
// trying the control surface without any plant connectivity:
//
//	go run ./example/simulated
//	curl -X POST localhost:5050/api/logging/start
package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os/signal"
	"sync"
	"syscall"

	"github.com/navarlu/Historian/pkg/historian"
)

// simSource produces a slow sine wave per node with a little noise. It
// occasionally fails a read so the cache fallback path gets exercised too.
type simSource struct {
	mu    sync.Mutex
	phase map[string]float64
}

func (s *simSource) Read(_ context.Context, nodeID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rand.Float64() < 0.05 {
		return 0, fmt.Errorf("simulated read failure for %s", nodeID)
	}
	if s.phase == nil {
		s.phase = make(map[string]float64)
	}
	s.phase[nodeID] += 0.05
	return 50 + 25*math.Sin(s.phase[nodeID]) + rand.Float64(), nil
}

func (s *simSource) Close(context.Context) error { return nil }

func main() {
	cfg := &historian.Config{}
	cfg.ApplyDefaults()

	sink := historian.NewCallbackSink("stdout", func(points []historian.Point, opts historian.WriteOptions) error {
		for _, p := range points {
			fmt.Printf("%s rp=%q tags=%v fields=%v t=%d\n",
				p.Measurement, opts.RetentionPolicy, p.Tags, p.Fields, p.Time)
		}
		return nil
	})

	store := historian.NewMemoryCatalog()
	_ = store.SaveSelection(context.Background(), []historian.Tag{
		{NodeID: "ns=2;s=Sim.Temperature", Label: "Reactor temperature"},
		{NodeID: "ns=2;s=Sim.Pressure", Label: "Reactor pressure"},
	})
	_ = store.SaveLoopAssignments(context.Background(), []historian.LoopAssignment{
		{
			LoopID:   "TIC-101",
			PVNodeID: "ns=2;s=Sim.TIC101.PV",
			SPNodeID: "ns=2;s=Sim.TIC101.SP",
			CONodeID: "ns=2;s=Sim.TIC101.CO",
		},
	})

	rt, err := historian.New(cfg,
		historian.WithSource(&simSource{}),
		historian.WithSink(sink),
		historian.WithCatalog(store),
	)
	if err != nil {
		log.Fatal(err)
	}

	if _, err := rt.StartSampling(historian.KindRaw); err != nil {
		log.Fatal(err)
	}
	if _, err := rt.StartSampling(historian.KindLoop); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("simulated collector running; control surface on", cfg.HTTP.Addr)
	if err := rt.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
