package scraper

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"sjsage522/keebsteals/helpers"
	"sjsage522/keebsteals/logger"
	"sjsage522/keebsteals/pkg/errors"
	"sjsage522/keebsteals/pkg/metrics"
	"sjsage522/keebsteals/services/cache"
)

const productCardSelector = "a.m-product-card__link"

// ListingScraper discovers product links from the storefront's paginated deal listing
type ListingScraper struct {
	Base
	BaseURL    string
	ListingURL string
	Pages      int
	metrics    *metrics.SyncMetrics
}

// NewListingScraper creates a listing scraper
func NewListingScraper(baseURL, listingURL string, pages int, cacheSvc cache.CacheService, blockTime time.Duration, m *metrics.SyncMetrics) *ListingScraper {
	return &ListingScraper{
		Base: Base{
			Source:    "listing",
			CacheKey:  "rate_limit:listing",
			CacheSvc:  cacheSvc,
			BlockTime: blockTime,
		},
		BaseURL:    baseURL,
		ListingURL: listingURL,
		Pages:      pages,
		metrics:    m,
	}
}

// pageURL returns the listing URL for page n
func (s *ListingScraper) pageURL(n int) string {
	sep := "&"
	if !strings.Contains(s.ListingURL, "?") {
		sep = "?"
	}
	return s.ListingURL + sep + "page=" + strconv.Itoa(n)
}

// FetchLinks walks the listing pages and returns the absolute product links in
// first-seen order. Pages that fail are logged and skipped.
func (s *ListingScraper) FetchLinks(ctx context.Context) ([]string, error) {
	log := logger.ForScraper(s.Source)

	var (
		links   []string
		lastErr error
		fetched int
	)
	for page := 1; page <= s.Pages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		url := s.pageURL(page)
		doc, err := s.fetchHTML(ctx, url)
		s.metrics.ListingPage(err)
		if err != nil {
			log.Warn().Err(err).Int("page", page).Msg("listing page skipped")
			lastErr = err
			continue
		}
		fetched++

		pageLinks := s.extractLinks(doc)
		log.Debug().Int("page", page).Int("links", len(pageLinks)).Msg("listing page scraped")
		links = append(links, pageLinks...)
	}

	if fetched == 0 && lastErr != nil {
		return nil, errors.NewNetwork(s.Source, "no listing page could be fetched", lastErr)
	}
	return lo.Uniq(links), nil
}

// extractLinks collects the product card links of one listing page
func (s *ListingScraper) extractLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find(productCardSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		links = append(links, helpers.ResolveURL(s.BaseURL, helpers.StripQuery(href)))
	})
	return links
}
