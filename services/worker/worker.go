package worker

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"sjsage522/keebsteals/internal/deals"
	"sjsage522/keebsteals/logger"
	"sjsage522/keebsteals/pkg/errors"
	"sjsage522/keebsteals/pkg/metrics"
	"sjsage522/keebsteals/services/cache"
	"sjsage522/keebsteals/services/publisher"
)

// DealUpdatedKey is the stream field under which synced deals are published
const DealUpdatedKey = "deal_updated"

// LinkSource discovers product links
type LinkSource interface {
	FetchLinks(ctx context.Context) ([]string, error)
}

// ProductSource loads one product by link
type ProductSource interface {
	FetchProduct(ctx context.Context, link string) (*deals.Product, error)
}

// ProductStore is the part of the store the worker writes through
type ProductStore interface {
	ListLinks(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, p *deals.Product) error
}

// Summary describes one sync run
type Summary struct {
	Links    int           `json:"links"`
	Synced   int           `json:"synced"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Options configures a Worker
type Options struct {
	AffiliateRef string
	Concurrency  int
	Interval     time.Duration
	RunOnStart   bool
}

// Worker keeps the stored products in sync with the storefront
type Worker struct {
	links     LinkSource
	products  ProductSource
	store     ProductStore
	publisher publisher.Publisher
	cache     cache.CacheService
	metrics   *metrics.SyncMetrics
	opts      Options
	log       *logger.Logger

	mu sync.Mutex
}

// NewWorker creates a new worker. links may be nil to sync stored links only.
func NewWorker(
	links LinkSource,
	products ProductSource,
	store ProductStore,
	pub publisher.Publisher,
	cacheSvc cache.CacheService,
	m *metrics.SyncMetrics,
	opts Options,
) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Worker{
		links:     links,
		products:  products,
		store:     store,
		publisher: pub,
		cache:     cacheSvc,
		metrics:   m,
		opts:      opts,
		log:       logger.ForWorker(),
	}
}

// Start runs a sync every interval until ctx is cancelled
func (w *Worker) Start(ctx context.Context) error {
	if w.opts.RunOnStart {
		w.runLogged(ctx)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopped")
			return nil
		case <-ticker.C:
			w.runLogged(ctx)
		}
	}
}

func (w *Worker) runLogged(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.log.Error().Err(err).Msg("sync run failed")
	}
}

// RunOnce syncs every known product link once
func (w *Worker) RunOnce(ctx context.Context) (Summary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	summary, err := w.run(ctx)
	summary.Duration = time.Since(start)
	w.metrics.ObserveRun(summary.Duration, err)

	if err != nil {
		return summary, err
	}
	w.log.Info().
		Int("links", summary.Links).
		Int("synced", summary.Synced).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.Duration).
		Msg("sync run completed")
	return summary, nil
}

func (w *Worker) run(ctx context.Context) (Summary, error) {
	w.log.Info().Msg("sync run started")

	links, err := w.store.ListLinks(ctx)
	if err != nil {
		return Summary{}, err
	}

	if w.links != nil {
		discovered, err := w.links.FetchLinks(ctx)
		if err != nil {
			w.log.Warn().Err(err).Msg("link discovery failed, syncing stored links only")
		}
		links = append(links, discovered...)
	}
	links = lo.Uniq(links)

	var synced, failed int64
	g := new(errgroup.Group)
	g.SetLimit(w.opts.Concurrency)

	for _, link := range links {
		link := link
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if w.syncLink(ctx, link) {
				atomic.AddInt64(&synced, 1)
			} else {
				atomic.AddInt64(&failed, 1)
			}
			return nil
		})
	}

	summary := Summary{Links: len(links)}
	err = g.Wait()
	summary.Synced = int(atomic.LoadInt64(&synced))
	summary.Failed = int(atomic.LoadInt64(&failed))
	if err != nil {
		return summary, err
	}

	// Trim the stream after publishing
	if err := w.publisher.TrimStreams(ctx); err != nil {
		w.log.Warn().Err(err).Msg("stream trimming failed")
	}

	if summary.Synced > 0 && w.cache != nil {
		if _, err := cache.BumpActiveDeals(w.cache); err != nil {
			w.log.Warn().Err(err).Msg("failed to invalidate deals cache")
		}
	}
	return summary, nil
}

// syncLink fetches, stores and publishes one product. It reports success.
func (w *Worker) syncLink(ctx context.Context, link string) bool {
	log := w.log.WithField("link", link)

	product, err := w.products.FetchProduct(ctx, link)
	if err != nil {
		w.linkFailed(log, err, "failed to fetch product")
		return false
	}

	if err := w.store.Upsert(ctx, product); err != nil {
		w.linkFailed(log, err, "failed to store product")
		return false
	}
	w.metrics.ProductSynced()

	if logger.IsDebugEnabled() {
		log.Debug().Str("product_id", product.ProductID).Str("title", product.Title).Msg("product synced")
	}

	w.publish(ctx, log, *product)
	return true
}

// linkFailed records a per-link failure. Retryable failures are picked up again
// on the next run, so they log at warn level.
func (w *Worker) linkFailed(log *logger.Logger, err error, msg string) {
	w.metrics.ProductFailed()

	failed := log.WithError(err)
	retryable := errors.Retryable(err)
	if retryable {
		failed.Warn().Bool("retryable", true).Msg(msg)
		return
	}
	failed.Error().Bool("retryable", false).Msg(msg)
}

func (w *Worker) publish(ctx context.Context, log *logger.Logger, product deals.Product) {
	data, err := json.Marshal(deals.FromProduct(product, w.opts.AffiliateRef))
	if err != nil {
		log.Error().Err(err).Msg("failed to encode deal")
		return
	}
	if err := w.publisher.Publish(ctx, DealUpdatedKey, data); err != nil {
		log.Error().Err(err).Msg("failed to publish deal")
	}
}
