package historian

import (
	"context"
	"testing"
	"time"
)

type testObs struct{}

func (testObs) LogInfo(string, ...Field)         {}
func (testObs) LogError(string, error, ...Field) {}
func (testObs) IncCounter(string, float64)       {}
func (testObs) ObserveLatency(string, float64)   {}
func (testObs) SetGauge(string, float64)         {}

type fixedSource struct{ value float64 }

func (f fixedSource) Read(context.Context, string) (float64, error) { return f.value, nil }
func (f fixedSource) Close(context.Context) error                   { return nil }

func testConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.OPCUA.Endpoint = "opc.tcp://unused:4840"
	cfg.Sampling.PollInterval = 10 * time.Millisecond
	return cfg
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRuntimeSamplesThroughInjectedSink(t *testing.T) {
	batches := make(chan []Point, 16)
	sink := NewCallbackSink("test", func(points []Point, _ WriteOptions) error {
		batches <- points
		return nil
	})

	store := NewMemoryCatalog()
	if err := store.SaveSelection(context.Background(), []Tag{{NodeID: "ns=2;s=A", Label: "Temp"}}); err != nil {
		t.Fatal(err)
	}

	rt, err := New(testConfig(),
		WithSource(fixedSource{value: 9.5}),
		WithSink(sink),
		WithCatalog(store),
		WithObservability(testObs{}),
	)
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rt.Shutdown(ctx)
	}()

	started, err := rt.StartSampling(KindRaw)
	if err != nil || !started {
		t.Fatalf("start = (%v, %v)", started, err)
	}
	if !rt.SamplingRunning(KindRaw) {
		t.Fatal("raw loop should be running")
	}
	if rt.SamplingRunning(KindLoop) {
		t.Fatal("loop sampler must not start on its own")
	}

	select {
	case batch := <-batches:
		if len(batch) != 1 || batch[0].Fields["value"] != 9.5 {
			t.Fatalf("batch = %+v", batch)
		}
		if batch[0].Tags["label"] != "Temp" {
			t.Fatalf("tags = %v", batch[0].Tags)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no batch arrived")
	}

	stopped, err := rt.StopSampling(KindRaw)
	if err != nil || !stopped {
		t.Fatalf("stop = (%v, %v)", stopped, err)
	}
	if rt.SamplingRunning(KindRaw) {
		t.Fatal("raw loop should be stopped")
	}
}

func TestRuntimeDetectsLatestQuerier(t *testing.T) {
	type querierSink struct {
		Sink
		LatestQuerier
	}

	fake := &fakeLatestQuerier{}
	sink := querierSink{
		Sink:          NewCallbackSink("test", func([]Point, WriteOptions) error { return nil }),
		LatestQuerier: fake,
	}

	rt, err := New(testConfig(),
		WithSource(fixedSource{}),
		WithSink(sink),
		WithCatalog(NewMemoryCatalog()),
		WithObservability(testObs{}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if rt.latest == nil {
		t.Fatal("latest querier on the sink was not picked up")
	}
}

func TestRuntimeLatestQuerierOverride(t *testing.T) {
	fake := &fakeLatestQuerier{}
	rt, err := New(testConfig(),
		WithSource(fixedSource{}),
		WithSink(NewCallbackSink("test", func([]Point, WriteOptions) error { return nil })),
		WithLatestQuerier(fake),
		WithCatalog(NewMemoryCatalog()),
		WithObservability(testObs{}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if rt.latest != fake {
		t.Fatal("explicit latest querier not used")
	}
}

type fakeLatestQuerier struct{}

func (fakeLatestQuerier) LatestBySource(context.Context, string) ([]LatestValue, error) {
	return nil, nil
}
