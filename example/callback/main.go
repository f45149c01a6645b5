// Demonstrates consuming sampled batches through a channel sink instead of
// a time-series database. A goroutine drains the channel and aggregates a
// running average per series while the raw sampler runs for a few seconds.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/navarlu/Historian/pkg/historian"
)

type constantSource struct{ value float64 }

func (c constantSource) Read(context.Context, string) (float64, error) { return c.value, nil }
func (c constantSource) Close(context.Context) error                   { return nil }

func main() {
	cfg := &historian.Config{}
	cfg.ApplyDefaults()
	cfg.Sampling.PollInterval = 250 * time.Millisecond

	sink, batches, closeSink := historian.NewChannelSink("aggregator", 16)
	defer closeSink()

	store := historian.NewMemoryCatalog()
	_ = store.SaveSelection(context.Background(), []historian.Tag{
		{NodeID: "ns=2;s=Demo.Flow", Label: "Flow"},
		{NodeID: "ns=2;s=Demo.Level", Label: "Level"},
	})

	rt, err := historian.New(cfg,
		historian.WithSource(constantSource{value: 42}),
		historian.WithSink(sink),
		historian.WithCatalog(store),
	)
	if err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sums := map[string]float64{}
		counts := map[string]int{}
		for batch := range batches {
			for _, p := range batch {
				label := p.Tags["label"]
				if v, ok := p.Fields["value"].(float64); ok {
					sums[label] += v
					counts[label]++
				}
			}
		}
		for label, n := range counts {
			fmt.Printf("%-8s samples=%d avg=%.2f\n", label, n, sums[label]/float64(n))
		}
	}()

	if _, err := rt.StartSampling(historian.KindRaw); err != nil {
		log.Fatal(err)
	}

	time.Sleep(3 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	closeSink()
	<-done
}
