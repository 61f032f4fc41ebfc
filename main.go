package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"sjsage522/keebsteals/config"
	"sjsage522/keebsteals/internal/scraper"
	"sjsage522/keebsteals/internal/server"
	"sjsage522/keebsteals/internal/store"
	"sjsage522/keebsteals/logger"
	"sjsage522/keebsteals/pkg/metrics"
	"sjsage522/keebsteals/services/cache"
	"sjsage522/keebsteals/services/publisher"
	"sjsage522/keebsteals/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("sync_interval", cfg.SyncInterval).
		Str("http_addr", cfg.HTTPAddr).
		Msg("Starting application")

	// Cancel on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	syncMetrics := metrics.NewSyncMetrics(reg)

	var links worker.LinkSource
	if cfg.DiscoverLinks {
		links = scraper.NewListingScraper(cfg.StoreBaseURL, cfg.ListingURL, cfg.ListingPages, services.Cache, cfg.RateLimitBlock, syncMetrics)
	}

	w := worker.NewWorker(
		links,
		scraper.NewProductFetcher(services.Cache, cfg.RateLimitBlock),
		services.Store,
		services.Publisher,
		services.Cache,
		syncMetrics,
		worker.Options{
			AffiliateRef: cfg.AffiliateRef,
			Concurrency:  cfg.SyncConcurrency,
			Interval:     cfg.SyncInterval,
			RunOnStart:   cfg.SyncOnStart,
		},
	)

	srv := server.New(server.Options{
		Addr:          cfg.HTTPAddr,
		SiteURL:       cfg.SiteURL,
		AffiliateRef:  cfg.AffiliateRef,
		CronUserAgent: cfg.CronUserAgent,
		Development:   cfg.IsDevelopment(),
		DealsCacheTTL: cfg.DealsCacheTTL,
	}, services.Store, services.Cache, w, reg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msg("Starting sync worker")
		return w.Start(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Exited with error")
		return
	}

	// Graceful shutdown
	log.Info().Msg("Shut down gracefully")
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     *store.Store
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Initialize cache service
	if cfg.MemcacheAddr != "" {
		memcacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := memcacheService.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache is not reachable yet")
		}
		services.Cache = memcacheService
		logger.Info("Using Memcache at %s", cfg.MemcacheAddr)
	} else {
		services.Cache = cache.NewMemoryCacheService(time.Minute)
		logger.Info("Using in-process cache")
	}

	// Initialize store
	st, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	services.Store = st
	if cfg.AutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			services.Cleanup()
			return nil, err
		}
	}

	// Initialize publisher
	redisPublisher := publisher.NewRedisPublisher(
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamMaxLength,
	)
	if err := redisPublisher.Ping(ctx); err != nil {
		logger.ForPublisher().Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis is not reachable yet")
	}
	services.Publisher = redisPublisher

	logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	return services, nil
}
