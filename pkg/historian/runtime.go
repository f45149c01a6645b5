package historian

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/navarlu/Historian/internal/adapters/buffer"
	"github.com/navarlu/Historian/internal/adapters/catalog"
	"github.com/navarlu/Historian/internal/adapters/influx"
	"github.com/navarlu/Historian/internal/adapters/observability"
	"github.com/navarlu/Historian/internal/adapters/opcua"
	"github.com/navarlu/Historian/internal/adapters/timescale"
	"github.com/navarlu/Historian/internal/api"
	"github.com/navarlu/Historian/internal/app/config"
	"github.com/navarlu/Historian/internal/app/pipeline"
	"github.com/navarlu/Historian/internal/ports"
)

// Option customizes the dependencies used by Runtime.
type Option func(*overrides)

type overrides struct {
	source  ports.ScalarSource
	sink    ports.Sink
	latest  ports.LatestQuerier
	catalog ports.CatalogStore
	obs     ports.Observability
}

// WithSource injects a custom scalar source (Modbus, simulators, etc.).
func WithSource(src ports.ScalarSource) Option {
	return func(o *overrides) { o.source = src }
}

// WithSink injects a custom sink so points can be sent to any store or API.
func WithSink(s ports.Sink) Option {
	return func(o *overrides) { o.sink = s }
}

// WithLatestQuerier injects the latest-value reader backing the catalog
// endpoint. When the injected sink implements ports.LatestQuerier it is
// picked up automatically and this option is unnecessary.
func WithLatestQuerier(q ports.LatestQuerier) Option {
	return func(o *overrides) { o.latest = q }
}

// WithCatalog injects a custom catalog store (e.g. database-backed).
func WithCatalog(c ports.CatalogStore) Option {
	return func(o *overrides) { o.catalog = c }
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs ports.Observability) Option {
	return func(o *overrides) { o.obs = obs }
}

// Runtime wires the source → samplers → buffer → sink pipeline together with
// the control surface and metrics endpoint. The sampling loops themselves are
// started through the control surface (or StartSampling), not by Start.
type Runtime struct {
	cfg *config.Config
	obs ports.Observability

	source  ports.ScalarSource
	catalog ports.CatalogStore
	sink    ports.Sink
	latest  ports.LatestQuerier
	sup     *pipeline.Supervisor

	db         *sql.DB
	influxSink *influx.Sink

	httpSrv    *http.Server
	metricsSrv *http.Server
}

// New bootstraps the default adapters (OPC UA source, file catalog, Influx or
// Timescale sink, zap+Prometheus observability). Options override any
// dependency.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var o overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	obs := o.obs
	if obs == nil {
		log, err := newLogger(cfg.Logging.Level)
		if err != nil {
			return nil, err
		}
		obs = observability.NewZapProm(log)
	}

	store := o.catalog
	if store == nil {
		store = catalog.NewFileStore(cfg.Catalog)
	}

	source := o.source
	if source == nil {
		var err error
		source, err = opcua.NewSource(cfg.OPCUA)
		if err != nil {
			return nil, err
		}
	}

	rt := &Runtime{
		cfg:     cfg,
		obs:     obs,
		source:  source,
		catalog: store,
	}

	if o.sink != nil {
		rt.sink = o.sink
	} else {
		switch cfg.Sink {
		case config.SinkTimescale:
			db, err := sql.Open("postgres", cfg.Timescale.ConnString)
			if err != nil {
				return nil, err
			}
			rt.db = db
			rt.sink = timescale.NewSink(db, cfg.Timescale.Table)
		default:
			snk, err := influx.NewSink(cfg.Influx)
			if err != nil {
				return nil, err
			}
			rt.influxSink = snk
			rt.sink = snk
		}
	}

	rt.latest = o.latest
	if rt.latest == nil {
		if q, ok := rt.sink.(ports.LatestQuerier); ok {
			rt.latest = q
		}
	}

	rt.sup = pipeline.NewSupervisor(obs)
	tun := cfg.Tunables()

	rawQueue := buffer.NewPointBuffer(tun.MaxPendingPoints)
	rawReader := pipeline.NewCachedReader(source, pipeline.NewValueCache(), tun.RawCacheMaxAge)
	rawWriter := pipeline.NewBatchWriter(rt.sink, tun.WriteBatchSize, ports.WriteOptions{Precision: "s"})
	rt.sup.Register(pipeline.KindRaw, pipeline.NewRawSampler(
		store, rawReader, rawQueue, rawWriter, obs,
		cfg.Sampling.RawMeasurement, tun.PollInterval,
	))

	loopQueue := buffer.NewPointBuffer(tun.MaxPendingPoints)
	loopReader := pipeline.NewCachedReader(source, pipeline.NewValueCache(), tun.LoopCacheMaxAge)
	loopWriter := pipeline.NewBatchWriter(rt.sink, tun.WriteBatchSize, ports.WriteOptions{
		Precision:       "s",
		RetentionPolicy: cfg.Sampling.LoopRetentionPolicy,
	})
	rt.sup.Register(pipeline.KindLoop, pipeline.NewLoopSampler(
		store, loopReader, loopQueue, loopWriter, obs,
		cfg.Sampling.LoopMeasurement, cfg.Sampling.DefaultMachineID,
		tun.TickPoll, tun.MaxBackfillSeconds,
	))

	return rt, nil
}

// Start launches the control surface and the metrics endpoint, and prepares
// the sink. It returns immediately; call Run to block on a context instead.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}

	if r.influxSink != nil {
		if err := r.influxSink.EnsureDatabase(); err != nil {
			// The sink may come up later; writes retry every cycle anyway.
			r.obs.LogError("influx_database_setup_failed", err)
		}
	}

	ctrl := api.NewServer(
		r.sup, r.catalog, r.latest, r.obs,
		r.cfg.Sampling.RawMeasurement, r.cfg.Sampling.DefaultMachineID,
	)
	r.httpSrv = &http.Server{
		Addr:    r.cfg.HTTP.Addr,
		Handler: ctrl.Routes(),
	}
	go func() {
		if err := r.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("control_server_exited", err)
		}
	}()

	r.startMetrics()
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled,
// then attempts a graceful shutdown.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// StartSampling starts the sampling loop of the given kind; it reports false
// when the loop was already running.
func (r *Runtime) StartSampling(kind pipeline.Kind) (bool, error) {
	return r.sup.Start(kind)
}

// StopSampling signals the sampling loop of the given kind to exit.
func (r *Runtime) StopSampling(kind pipeline.Kind) (bool, error) {
	return r.sup.Stop(kind)
}

// SamplingRunning reports whether the loop of the given kind is running.
func (r *Runtime) SamplingRunning(kind pipeline.Kind) bool {
	return r.sup.Running(kind)
}

// Shutdown stops the sampling loops, the HTTP servers, and the source/sink
// connections.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	r.sup.StopAll()

	if r.httpSrv != nil {
		if err := r.httpSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if r.source != nil {
		if err := r.source.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.influxSink != nil {
		if err := r.influxSink.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Runtime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:    r.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics_server_exited", err)
		}
	}()
}

func newLogger(level string) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	log, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log.Sugar(), nil
}
