package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrSnakeDoc/matjip/internal/config"
	"github.com/MrSnakeDoc/matjip/internal/connect"
	"github.com/MrSnakeDoc/matjip/internal/enrich"
	"github.com/MrSnakeDoc/matjip/internal/httpserver"
	"github.com/MrSnakeDoc/matjip/internal/httpserver/deps"
	"github.com/MrSnakeDoc/matjip/internal/importer"
	"github.com/MrSnakeDoc/matjip/internal/kakao"
	"github.com/MrSnakeDoc/matjip/internal/logger"
	"github.com/MrSnakeDoc/matjip/internal/matcher"
	"github.com/MrSnakeDoc/matjip/internal/metrics"
	"github.com/MrSnakeDoc/matjip/internal/redis"
	"github.com/MrSnakeDoc/matjip/internal/scheduler"
	"github.com/MrSnakeDoc/matjip/internal/sources/categories"
	"github.com/MrSnakeDoc/matjip/internal/store"
	"github.com/MrSnakeDoc/matjip/internal/store/memory"
	"github.com/MrSnakeDoc/matjip/internal/store/postgres"
	redisstore "github.com/MrSnakeDoc/matjip/internal/store/redis"
	"github.com/MrSnakeDoc/matjip/internal/version"
)

type App struct {
	cfg    *config.Config
	logger logger.Logger
	server *httpserver.Server
	store  store.Store

	// base outlives request contexts; cancelling it interrupts enrichment tasks
	base       context.Context
	cancelBase context.CancelFunc

	runner           *scheduler.EnrichmentRunner
	recovery         *scheduler.BatchRecovery
	reenricher       *scheduler.Reenricher
	categoryReloader *scheduler.CategoryReloader
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		loggerClient.Fatalf("Failed to register metrics: %v", err)
	}

	// Open the store early - fail fast if unavailable
	st, err := openStore(context.Background(), cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open %s store: %v", cfg.Store, err)
		os.Exit(1)
	}
	loggerClient.Info("store initialized", logger.String("backend", cfg.Store))

	client, err := kakao.New(kakao.Config{
		APIKey:            cfg.KakaoAPIKey,
		BaseURL:           cfg.KakaoBaseURL,
		Timeout:           cfg.KakaoTimeout,
		CacheTTL:          cfg.KakaoCacheTTL,
		RequestsPerSecond: cfg.KakaoRPS,
	}, loggerClient, m)
	if err != nil {
		loggerClient.Fatalf("Failed to create place search client: %v", err)
	}

	opts := []enrich.Option{
		enrich.WithThrottle(cfg.EnrichThrottle),
		enrich.WithMetrics(m),
	}

	// Category map (optional)
	var (
		holder           *categories.Holder
		reloadTrigger    chan struct{}
		categoryReloader *scheduler.CategoryReloader
	)
	if cfg.CategoryFile != "" {
		loggerClient.Info("category file configured, initializing category reloader",
			logger.String("file", cfg.CategoryFile))
		holder = &categories.Holder{}
		reloadTrigger = make(chan struct{}, 1)
		categoryReloader = scheduler.NewCategoryReloader(
			cfg.CategoryFile,
			holder,
			loggerClient,
			cfg.ReloadInterval,
			reloadTrigger,
		)
		opts = append(opts, enrich.WithCategoryMapper(holder))
	} else {
		loggerClient.Info("category file not configured, provider labels stored as-is")
	}

	orchestrator := enrich.New(st, matcher.NewResolver(client, loggerClient), loggerClient, opts...)

	base, cancelBase := context.WithCancel(context.Background())
	runner := scheduler.NewEnrichmentRunner(base, st, orchestrator, loggerClient)

	reenrichTrigger := make(chan struct{}, 1)
	reenricher := scheduler.NewReenricher(
		st,
		orchestrator,
		runner.Busy,
		loggerClient,
		cfg.ReenrichInterval,
		cfg.ReenrichLimit,
		reenrichTrigger,
	)

	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		StoreKind:       cfg.Store,
		Store:           st,
		Importer:        importer.New(st, m, loggerClient),
		Runner:          runner,
		Categories:      holder,
		Metrics:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReloadTrigger:   reloadTrigger,
		ReenrichTrigger: reenrichTrigger,
		ImportRate:      cfg.ImportRate,
		ImportBurst:     cfg.ImportBurst,
		MaxBodySize:     cfg.MaxBodySize,
	}
	return &App{
		cfg:              cfg,
		logger:           loggerClient,
		server:           httpserver.New(cfg.ListenPort, loggerClient, d),
		store:            st,
		base:             base,
		cancelBase:       cancelBase,
		runner:           runner,
		recovery:         scheduler.NewBatchRecovery(st, runner, loggerClient),
		reenricher:       reenricher,
		categoryReloader: categoryReloader,
	}
}

// openStore builds the configured backend, retrying the first connection.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Store, error) {
	policy := connect.Policy{
		ConnectTimeout: cfg.ConnectTimeout,
		RetryInterval:  cfg.RetryInterval,
		MaxWait:        cfg.RetryMaxWait,
		PingTimeout:    cfg.PingTimeout,
		WarnThreshold:  cfg.WarnThreshold,
	}

	switch cfg.Store {
	case config.StoreRedis:
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(ctx, redis.ConnectOptions{
			Addr:         cfg.RedisAddr,
			User:         cfg.RedisUser,
			Password:     cfg.RedisPassword,
			RedisDB:      cfg.RedisDB,
			DialTimeout:  cfg.RedisDT,
			ReadTimeout:  cfg.RedisRT,
			WriteTimeout: cfg.RedisWT,
			PoolSize:     cfg.RedisPoolSize,
			Retry:        policy,
		}, log)
		if err != nil {
			return nil, err
		}
		return redisstore.NewStore(client), nil
	case config.StorePostgres:
		log.Info("Connecting to Postgres")
		pg, err := postgres.Open(ctx, cfg.PostgresDSN, policy, log)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case config.StoreMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting matjip v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start category reloader (loads the map and starts periodic refresh)
	if a.categoryReloader != nil {
		if err := a.categoryReloader.Start(ctx); err != nil {
			a.cancelBase()
			_ = a.store.Close()
			return fmt.Errorf("failed to start category reloader: %w", err)
		}
		a.logger.Info("category reloader started",
			logger.Duration("interval", a.cfg.ReloadInterval))
	}

	// Resume batches a previous process left unfinished
	if _, err := a.recovery.Recover(ctx); err != nil {
		a.logger.Warn("batch recovery failed, unfinished batches wait for the next restart",
			logger.Error(err))
	}

	if err := a.reenricher.Start(ctx); err != nil {
		a.shutdown()
		return fmt.Errorf("failed to start re-enricher: %w", err)
	}
	a.logger.Info("re-enricher started",
		logger.Duration("interval", a.cfg.ReenrichInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	a.shutdown()
	return runErr
}

func (a *App) shutdown() {
	a.reenricher.Stop()
	if a.categoryReloader != nil {
		a.categoryReloader.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		a.logger.Warnf("failed to stop server: %v", err)
	}

	// Let running batches finish within the deadline, then interrupt them
	if err := a.runner.Stop(shutdownCtx); err != nil {
		a.logger.Warn("interrupting enrichment, batches resume on next start", logger.Error(err))
		a.cancelBase()
		waitCtx, cancelWait := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelWait()
		_ = a.runner.Stop(waitCtx)
	}
	a.cancelBase()

	if err := a.store.Close(); err != nil {
		a.logger.Warnf("failed to close store: %v", err)
	} else {
		a.logger.Info("✅ Store closed cleanly")
	}

	a.logger.Info("✅ matjip stopped cleanly")
}
