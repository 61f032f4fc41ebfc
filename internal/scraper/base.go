package scraper

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/keebsteals/helpers"
	"sjsage522/keebsteals/logger"
	"sjsage522/keebsteals/pkg/errors"
	"sjsage522/keebsteals/services/cache"
)

// Base provides the rate limited fetching shared by the storefront scrapers
type Base struct {
	Source    string
	CacheKey  string
	CacheSvc  cache.CacheService
	BlockTime time.Duration
}

// blocked reports whether a previous rate limit response is still in effect
func (b *Base) blocked() bool {
	if b.CacheSvc == nil || b.CacheKey == "" {
		return false
	}
	_, err := b.CacheSvc.Get(b.CacheKey)
	return err == nil
}

// markRateLimited blocks further requests for BlockTime when err is a rate limit
func (b *Base) markRateLimited(err error) {
	if b.CacheSvc == nil || b.CacheKey == "" || !errors.Is(err, errors.ErrorTypeRateLimit) {
		return
	}
	value := []byte(fmt.Sprintf("%d", int64(b.BlockTime/time.Second)))
	if cerr := b.CacheSvc.Set(b.CacheKey, value, b.BlockTime); cerr != nil {
		logger.ForScraper(b.Source).Warn().Err(cerr).Msg("failed to store rate limit marker")
		return
	}
	logger.ForScraper(b.Source).Warn().Dur("block", b.BlockTime).Msg("rate limited, pausing requests")
}

// fetchHTML fetches a page and parses it as HTML
func (b *Base) fetchHTML(ctx context.Context, url string) (*goquery.Document, error) {
	if b.blocked() {
		return nil, errors.NewRateLimit(b.Source, b.BlockTime)
	}

	body, err := helpers.FetchWithRandomHeaders(ctx, url)
	if err != nil {
		b.markRateLimited(err)
		return nil, err
	}
	return b.createDocument(body)
}

// fetchJSON fetches url and decodes its JSON body into dest
func (b *Base) fetchJSON(ctx context.Context, url string, dest interface{}) error {
	if b.blocked() {
		return errors.NewRateLimit(b.Source, b.BlockTime)
	}

	if err := helpers.FetchJSON(ctx, url, dest); err != nil {
		b.markRateLimited(err)
		return err
	}
	return nil
}

// createDocument creates a goquery document from a reader
func (b *Base) createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, errors.NewParsing(b.Source, "failed to parse HTML", err)
	}
	return doc, nil
}
