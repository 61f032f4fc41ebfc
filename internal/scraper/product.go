package scraper

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"sjsage522/keebsteals/helpers"
	"sjsage522/keebsteals/internal/deals"
	"sjsage522/keebsteals/pkg/errors"
	"sjsage522/keebsteals/services/cache"
)

// ProductFetcher loads a single product document from the storefront
type ProductFetcher struct {
	Base
}

// NewProductFetcher creates a product fetcher sharing the storefront rate limit
func NewProductFetcher(cacheSvc cache.CacheService, blockTime time.Duration) *ProductFetcher {
	return &ProductFetcher{
		Base: Base{
			Source:    "product",
			CacheKey:  "rate_limit:product",
			CacheSvc:  cacheSvc,
			BlockTime: blockTime,
		},
	}
}

// FetchProduct fetches <link>.js and maps it onto a Product
func (f *ProductFetcher) FetchProduct(ctx context.Context, link string) (*deals.Product, error) {
	var raw storefrontProduct
	if err := f.fetchJSON(ctx, strings.TrimSuffix(link, "/")+".js", &raw); err != nil {
		return nil, err
	}
	if raw.Price == nil {
		return nil, errors.NewParsing(f.Source, "product "+link+" has no price", nil)
	}
	return toProduct(link, raw), nil
}

func toProduct(link string, raw storefrontProduct) *deals.Product {
	tags := raw.Tags
	if tags == nil {
		tags = []string{}
	}
	return &deals.Product{
		ProductID:     strconv.FormatInt(raw.ID, 10),
		Title:         strings.TrimSpace(raw.Title),
		Brand:         strings.TrimSpace(raw.Vendor),
		Category:      strings.TrimSpace(raw.Type),
		ProductLink:   link,
		Description:   headings(raw.Description),
		Tags:          tags,
		CurrentPrice:  fromCents(*raw.Price),
		OriginalPrice: compareAt(raw.CompareAtPrice),
		PriceMin:      nullCents(raw.PriceMin),
		PriceMax:      nullCents(raw.PriceMax),
		Images:        variantImages(link, raw.Variants),
		IsActive:      true,
	}
}

// headings returns the trimmed text of every h2 and h3 in the description HTML
func headings(description string) []string {
	out := []string{}
	if strings.TrimSpace(description) == "" {
		return out
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(description))
	if err != nil {
		return out
	}
	doc.Find("h2, h3").Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

// variantImages keys images by option1. A repeated option keeps its first
// position and takes the later variant's image.
func variantImages(link string, variants []storefrontVariant) []deals.Image {
	images := []deals.Image{}
	index := make(map[string]int, len(variants))
	for _, v := range variants {
		img := deals.Image{Title: v.Option1}
		if v.FeaturedImage != nil && v.FeaturedImage.Src != "" {
			img.URL = helpers.ResolveURL(link, v.FeaturedImage.Src)
		}
		if i, ok := index[v.Option1]; ok {
			images[i] = img
			continue
		}
		index[v.Option1] = len(images)
		images = append(images, img)
	}
	return images
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func nullCents(cents *int64) decimal.NullDecimal {
	if cents == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(fromCents(*cents))
}

// compareAt treats a missing or zero compare-at price as no original price
func compareAt(cents *int64) decimal.NullDecimal {
	if cents == nil || *cents == 0 {
		return decimal.NullDecimal{}
	}
	return nullCents(cents)
}
