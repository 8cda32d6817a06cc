package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/formbricks/riskmatch/internal/api"
	"github.com/formbricks/riskmatch/internal/api/handlers"
	"github.com/formbricks/riskmatch/internal/backfill"
	"github.com/formbricks/riskmatch/internal/config"
	"github.com/formbricks/riskmatch/internal/embedding"
	"github.com/formbricks/riskmatch/internal/observability"
	"github.com/formbricks/riskmatch/internal/relevance"
	"github.com/formbricks/riskmatch/internal/repository"
	"github.com/formbricks/riskmatch/internal/service"
	"github.com/formbricks/riskmatch/internal/similarity"
	"github.com/formbricks/riskmatch/internal/textnorm"
	"github.com/formbricks/riskmatch/internal/workers"
	"github.com/formbricks/riskmatch/pkg/cache"
	"github.com/formbricks/riskmatch/pkg/limiter"
)

const (
	serviceName             = "riskmatch-api"
	riverQueueDepthInterval = 15 * time.Second
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx] // nil when RIVER_ENABLED is false or embeddings are off
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	metrics        *observability.Metrics
}

// components groups the matching engine so NewApp stays readable.
type components struct {
	generator *embedding.Generator
	searcher  *similarity.Searcher
	matcher   *relevance.Matcher
	pipeline  *backfill.Pipeline
}

func buildComponents(
	ctx context.Context,
	cfg *config.Config,
	records *repository.RecordsRepository,
	suppliers *repository.SuppliersRepository,
	metrics *observability.Metrics,
) (*components, error) {
	client, err := embedding.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	var (
		embeddingMetrics observability.EmbeddingMetrics
		matchingMetrics  observability.MatchingMetrics
		backfillMetrics  observability.BackfillMetrics
		cacheMetrics     observability.CacheMetrics
	)
	if metrics != nil {
		embeddingMetrics = metrics.Embeddings
		matchingMetrics = metrics.Matching
		backfillMetrics = metrics.Backfill
		cacheMetrics = metrics.Cache
	}

	var queryCache *cache.Loader[[]float32]
	if cfg.EmbeddingCacheSize > 0 {
		queryCache, err = cache.New[[]float32](cfg.EmbeddingCacheSize, cfg.EmbeddingCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("create query embedding cache: %w", err)
		}
	}

	genParams := embedding.Params{
		ProviderName: cfg.EmbeddingProvider,
		Model:        cfg.EmbeddingModel,
		Timeout:      cfg.EmbeddingTimeout,
		RateLimit:    cfg.EmbeddingRateLimit,
		Normalize:    cfg.EmbeddingNormalize,
		Cache:        queryCache,
		Metrics:      embeddingMetrics,
		CacheMetrics: cacheMetrics,
	}

	var judge *similarity.Judge

	if client != nil {
		genParams.Provider = client
		judge = similarity.NewJudge(similarity.JudgeParams{
			Provider: client,
			Timeout:  cfg.JudgeTimeout,
			Metrics:  matchingMetrics,
		})

		slog.Info("embeddings enabled", "provider", cfg.EmbeddingProvider, "model", client.Model())
	} else {
		slog.Warn("embeddings disabled (EMBEDDING_PROVIDER empty or unset); heuristic scoring only")
	}

	generator := embedding.NewGenerator(genParams)
	normalizer := textnorm.New(cfg.MaxTextLength)

	// One limiter bounds provider traffic from candidate ranking and HTTP-triggered backfills.
	providerLimiter := limiter.New(cfg.BackfillConcurrency)

	searcher := similarity.NewSearcher(similarity.SearcherParams{
		Embedder:     generator,
		Normalizer:   normalizer,
		Heuristic:    similarity.NewHeuristicScorer(similarity.DefaultThresholds(), judge, nil),
		Limiter:      providerLimiter,
		BatchSize:    cfg.SearchBatchSize,
		HeuristicCap: cfg.HeuristicCandidateCap,
		Metrics:      matchingMetrics,
	})

	matcher := relevance.NewMatcher(relevance.MatcherParams{
		Store:      repository.MatchingStore{Records: records, Suppliers: suppliers},
		Ranker:     searcher,
		Normalizer: normalizer,
		Options: relevance.Options{
			Threshold:      cfg.RelevanceThreshold,
			DefaultLimit:   cfg.RelevanceLimit,
			CandidateLimit: cfg.RelevanceCandidateLimit,
			MinQueryLength: cfg.RelevanceMinQueryLength,
		},
		Metrics: matchingMetrics,
	})

	pipeline := backfill.NewPipeline(backfill.PipelineParams{
		Store:      records,
		Embedder:   generator,
		Normalizer: normalizer,
		Limiter:    providerLimiter,
		Metrics:    backfillMetrics,
	})

	return &components{
		generator: generator,
		searcher:  searcher,
		matcher:   matcher,
		pipeline:  pipeline,
	}, nil
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	var (
		meterProvider  *sdkmetric.MeterProvider
		metricsHandler http.Handler
		metrics        *observability.Metrics
		err            error
	)

	if cfg.MetricsEnabled {
		meterProvider, metricsHandler, metrics, err = observability.NewMeterProvider(ctx, observability.MeterProviderConfig{
			ServiceName: serviceName,
		})
		if err != nil {
			return nil, fmt.Errorf("create meter provider: %w", err)
		}

		otel.SetMeterProvider(meterProvider)
	} else {
		slog.Warn("metrics not enabled (METRICS_ENABLED=false)")
	}

	tracerProvider, err := observability.NewTracerProvider(ctx, observability.TracerProviderConfig{
		ServiceName: serviceName,
		Exporter:    cfg.OtelTracesExporter,
	})
	if err != nil {
		if err2 := observability.ShutdownMeterProvider(context.Background(), meterProvider); err2 != nil {
			slog.Error("shutdown meter provider after tracer provider error", "error", err2)
		}

		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	if tracerProvider != nil {
		otel.SetTracerProvider(tracerProvider)
	} else {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unsupported)")
	}

	shutdownTelemetry := func(reason string) {
		if err := shutdownObservability(context.Background(), tracerProvider, meterProvider); err != nil {
			slog.Error("shutdown observability after "+reason, "error", err)
		}
	}

	recordsRepo := repository.NewRecordsRepository(db)
	suppliersRepo := repository.NewSuppliersRepository(db)

	comps, err := buildComponents(ctx, cfg, recordsRepo, suppliersRepo, metrics)
	if err != nil {
		shutdownTelemetry("component error")

		return nil, err
	}

	var riverClient *river.Client[pgx.Tx]

	if cfg.RiverEnabled && comps.generator.Enabled() {
		riverClient, err = newRiverClient(cfg, db, recordsRepo, comps.generator)
		if err != nil {
			shutdownTelemetry("River client error")

			return nil, err
		}
	} else if cfg.RiverEnabled {
		slog.Warn("River enabled but no embedding provider; text changes rely on backfill")
	}

	var refresher service.Refresher
	if riverClient != nil {
		refresher = service.NewEmbeddingRefresher(riverClient, service.EmbeddingsQueueName, cfg.EmbeddingMaxAttempts)
	}

	recordsService := service.NewRecordsService(recordsRepo, refresher)

	router := api.NewRouter(api.RouterParams{
		Health:     handlers.NewHealthHandler(db),
		Records:    handlers.NewRecordsHandler(recordsService),
		Suppliers:  handlers.NewSuppliersHandler(suppliersRepo, comps.matcher),
		Similarity: handlers.NewSimilarityHandler(comps.searcher),
		Backfill: handlers.NewBackfillHandler(
			comps.pipeline, comps.generator.Enabled(), cfg.BackfillBatchSize, cfg.BackfillConcurrency,
		),
		MetricsHandler:      metricsHandler,
		APIKey:              cfg.APIKey,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return &App{
		cfg:            cfg,
		db:             db,
		server:         newHTTPServer(cfg, router, meterProvider, tracerProvider),
		river:          riverClient,
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
		metrics:        metrics,
	}, nil
}

func newRiverClient(
	cfg *config.Config,
	db *pgxpool.Pool,
	recordsRepo *repository.RecordsRepository,
	generator *embedding.Generator,
) (*river.Client[pgx.Tx], error) {
	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewRecordEmbeddingWorker(recordsRepo, generator, textnorm.New(cfg.MaxTextLength)))

	client, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			service.EmbeddingsQueueName: {MaxWorkers: cfg.EmbeddingMaxConcurrent},
		},
		Workers:      riverWorkers,
		ErrorHandler: &workers.ErrorHandler{},
		MaxAttempts:  cfg.EmbeddingMaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	slog.Info("River job queue enabled",
		"queue", service.EmbeddingsQueueName,
		"workers", cfg.EmbeddingMaxConcurrent,
		"max_attempts", cfg.EmbeddingMaxAttempts,
	)

	return client, nil
}

// newHTTPServer wraps the router with otelhttp so HTTP server metrics and spans use our providers.
func newHTTPServer(
	cfg *config.Config,
	router http.Handler,
	meterProvider *sdkmetric.MeterProvider,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	otelOpts := []otelhttp.Option{
		// Skip probes and scrapes to reduce noise.
		otelhttp.WithFilter(func(r *http.Request) bool {
			switch r.URL.Path {
			case "/health", "/ready", "/metrics":
				return false
			default:
				return true
			}
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	if tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(tracerProvider))
	}

	const (
		readTimeout = 15 * time.Second
		// Backfill requests run synchronously and can take minutes.
		writeTimeout = 10 * time.Minute
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(router, serviceName, otelOpts...),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and River (when configured), then blocks until ctx is cancelled or
// a component fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	if a.river != nil {
		if a.metrics != nil {
			go runRiverQueueDepthPoller(riverCtx, a.db, a.metrics.Backfill)
		}

		go func() {
			if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
				select {
				case runErr <- fmt.Errorf("river: %w", err):
				default:
				}
			}
		}()
	}

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// runRiverQueueDepthPoller periodically updates the embedding queue depth gauge.
func runRiverQueueDepthPoller(ctx context.Context, db *pgxpool.Pool, backfillMetrics observability.BackfillMetrics) {
	ticker := time.NewTicker(riverQueueDepthInterval)
	defer ticker.Stop()

	update := func() {
		var count int

		err := db.QueryRow(ctx,
			`SELECT COUNT(*) FROM river_job WHERE queue = $1 AND state IN ($2, $3, $4)`,
			service.EmbeddingsQueueName,
			rivertype.JobStateAvailable, rivertype.JobStateRetryable, rivertype.JobStateScheduled,
		).Scan(&count)
		if err != nil {
			slog.WarnContext(ctx, "river queue depth poll failed", "error", err)

			return
		}

		backfillMetrics.SetQueueDepth(ctx, count)
	}

	update()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
		first = err
	}

	if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
		if first == nil {
			first = err
		} else {
			slog.Error("shutdown meter provider", "error", err)
		}
	}

	return first
}

// Shutdown stops the server, then River, then flushes telemetry. Call after Run returns.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		obsErr := shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
		if err == nil {
			err = obsErr
		} else if obsErr != nil {
			slog.Error("shutdown observability", "error", obsErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.stopRiver(ctx)

		return fmt.Errorf("server shutdown: %w", err)
	}

	if a.river != nil {
		if err = a.river.Stop(ctx); err != nil {
			return fmt.Errorf("river stop: %w", err)
		}
	}

	return nil
}

func (a *App) stopRiver(ctx context.Context) {
	if a.river == nil {
		return
	}

	if err := a.river.Stop(ctx); err != nil {
		slog.Error("river stop during server shutdown", "error", err)
	}
}
