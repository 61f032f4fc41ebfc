package server

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sjsage522/keebsteals/internal/deals"
	"sjsage522/keebsteals/logger"
	"sjsage522/keebsteals/pkg/metrics"
	"sjsage522/keebsteals/services/cache"
	"sjsage522/keebsteals/services/worker"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// DealStore is the read side of the product store
type DealStore interface {
	ListActive(ctx context.Context) ([]deals.Product, error)
	GetByID(ctx context.Context, id string) (*deals.Product, error)
	UniqueBrands(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// Syncer runs one storefront sync
type Syncer interface {
	RunOnce(ctx context.Context) (worker.Summary, error)
}

// Options configures the HTTP API
type Options struct {
	Addr          string
	SiteURL       string
	AffiliateRef  string
	CronUserAgent string
	Development   bool
	DealsCacheTTL time.Duration
}

// Server serves the deals API
type Server struct {
	opts    Options
	store   DealStore
	syncer  Syncer
	engine  *deals.Engine
	loader  *dealLoader
	metrics *metrics.HTTPMetrics
	gather  prometheus.Gatherer
	router  chi.Router
}

// New builds the router. cacheSvc may be nil to read through to the store.
func New(opts Options, store DealStore, cacheSvc cache.CacheService, syncer Syncer, reg *prometheus.Registry) *Server {
	s := &Server{
		opts:   opts,
		store:  store,
		syncer: syncer,
		engine: deals.NewEngine(deals.DefaultMetaTags),
		loader: &dealLoader{
			store:        store,
			cache:        cacheSvc,
			ttl:          opts.DealsCacheTTL,
			affiliateRef: opts.AffiliateRef,
		},
	}
	if reg != nil {
		s.metrics = metrics.NewHTTPMetrics(reg)
		s.gather = reg
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		requestLogging,
		instrument(s.metrics),
	)

	r.Get("/healthz", s.handleHealth)
	r.Get("/robots.txt", s.handleRobots)
	if s.gather != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/deals", s.handleListDeals)
		r.Get("/deals/{id}", s.handleGetDeal)
		r.Get("/brands", s.handleBrands)
		r.Get("/tags", s.handleTags)
		r.HandleFunc("/cron/daily-sync", s.handleDailySync)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorStatus(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorStatus(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})
	return r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	log := logger.ForServer()
	httpServer := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown failed")
		}
	}()

	log.Info().Str("addr", s.opts.Addr).Msg("http server started")
	if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("http server stopped")
	return nil
}
