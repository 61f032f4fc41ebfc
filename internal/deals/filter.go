package deals

import (
	"cmp"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// SortOrder names an ordering of the filtered deals
type SortOrder string

const (
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortDiscount  SortOrder = "discount"
	SortNewest    SortOrder = "newest"
)

// FilterTags lists the tags offered as filters, meta-tags included
var FilterTags = []string{"75%", "65%", "60%", "40%", "TKL", "100%", "Tenkeyless", "Wireless"}

// DefaultMetaTags maps a filter label onto the literal tags it stands for
var DefaultMetaTags = map[string][]string{
	"Wireless": {"bluetooth", "2.4GHz", "wireless"},
}

// Params holds the query options recognized by the engine. Every field is optional.
type Params struct {
	Brand    string
	Tags     []string
	MinPrice string
	MaxPrice string
	Search   string
	Sort     SortOrder
}

// ParseParams reads the recognized options from a query string
func ParseParams(values url.Values) Params {
	return Params{
		Brand:    values.Get("brand"),
		Tags:     lo.Compact(values["tags"]),
		MinPrice: values.Get("minPrice"),
		MaxPrice: values.Get("maxPrice"),
		Search:   values.Get("search"),
		Sort:     SortOrder(values.Get("sort")),
	}
}

// Engine filters, searches and sorts deals
type Engine struct {
	metaTags map[string][]string
}

// NewEngine creates an engine expanding the given meta-tags
func NewEngine(metaTags map[string][]string) *Engine {
	copied := make(map[string][]string, len(metaTags))
	for tag, members := range metaTags {
		copied[tag] = slices.Clone(members)
	}
	return &Engine{metaTags: copied}
}

var defaultEngine = NewEngine(DefaultMetaTags)

// Apply runs the default engine
func Apply(deals []Deal, params Params) []Deal {
	return defaultEngine.Apply(deals, params)
}

// Apply returns the deals matching params in the requested order. The input
// slice is left untouched.
func (e *Engine) Apply(deals []Deal, params Params) []Deal {
	result := slices.Clone(deals)
	if result == nil {
		result = []Deal{}
	}

	if params.Brand != "" {
		result = lo.Filter(result, func(d Deal, _ int) bool {
			return d.Brand == params.Brand
		})
	}

	if len(params.Tags) > 0 {
		result = lo.Filter(result, func(d Deal, _ int) bool {
			return lo.SomeBy(params.Tags, func(tag string) bool {
				return e.matchesTag(d, tag)
			})
		})
	}

	if lower, ok := parseBound(params.MinPrice); ok {
		result = lo.Filter(result, func(d Deal, _ int) bool {
			return d.CurrentPrice.GreaterThanOrEqual(lower)
		})
	}

	if upper, ok := parseBound(params.MaxPrice); ok {
		result = lo.Filter(result, func(d Deal, _ int) bool {
			return d.CurrentPrice.LessThanOrEqual(upper)
		})
	}

	if params.Search != "" {
		query := strings.ToLower(params.Search)
		result = lo.Filter(result, func(d Deal, _ int) bool {
			return strings.Contains(strings.ToLower(d.Title), query) ||
				strings.Contains(strings.ToLower(d.Brand), query) ||
				lo.SomeBy(d.Tags, func(tag string) bool {
					return strings.Contains(strings.ToLower(tag), query)
				})
		})
	}

	sortDeals(result, params.Sort)
	return result
}

func (e *Engine) matchesTag(d Deal, tag string) bool {
	if members, ok := e.metaTags[tag]; ok {
		return lo.Some(d.Tags, members)
	}
	return slices.Contains(d.Tags, tag)
}

// parseBound parses a price bound. Anything that is not a finite float is
// ignored, which also keeps the bound's exponent within float64 range.
func parseBound(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(f), true
}

func sortDeals(deals []Deal, order SortOrder) {
	switch order {
	case SortPriceAsc:
		slices.SortStableFunc(deals, func(a, b Deal) int {
			return a.CurrentPrice.Cmp(b.CurrentPrice)
		})
	case SortPriceDesc:
		slices.SortStableFunc(deals, func(a, b Deal) int {
			return b.CurrentPrice.Cmp(a.CurrentPrice)
		})
	case SortDiscount:
		slices.SortStableFunc(deals, func(a, b Deal) int {
			return cmp.Compare(b.Discount, a.Discount)
		})
	case SortNewest:
		slices.SortStableFunc(deals, func(a, b Deal) int {
			return b.DateAdded.Compare(a.DateAdded)
		})
	}
}
