package deals

import (
	"net/url"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount returns the percentage saved on original, rounded half away from
// zero. It is 0 when there is no original price or it does not exceed current.
func Discount(current decimal.Decimal, original decimal.NullDecimal) int {
	if !original.Valid || !original.Decimal.IsPositive() || original.Decimal.LessThanOrEqual(current) {
		return 0
	}

	pct := original.Decimal.Sub(current).Div(original.Decimal).Mul(hundred).Round(0)
	d := int(pct.IntPart())
	if d > 100 {
		return 100
	}
	if d < 0 {
		return 0
	}
	return d
}

// AffiliateLink appends the affiliate reference to a product link
func AffiliateLink(link, ref string) string {
	if ref == "" {
		return link
	}
	u, err := url.Parse(link)
	if err != nil {
		return link + "?sca_ref=" + url.QueryEscape(ref)
	}
	q := u.Query()
	q.Set("sca_ref", ref)
	u.RawQuery = q.Encode()
	return u.String()
}

// FromProduct converts a stored product into a display-ready deal
func FromProduct(p Product, affiliateRef string) Deal {
	image := PlaceholderImage
	if len(p.Images) > 0 && p.Images[0].URL != "" {
		image = p.Images[0].URL
	}

	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	images := p.Images
	if images == nil {
		images = []Image{}
	}
	description := p.Description
	if description == nil {
		description = []string{}
	}

	return Deal{
		ID:            p.ID,
		ProductID:     p.ProductID,
		Title:         p.Title,
		Brand:         p.Brand,
		Category:      p.Category,
		Description:   description,
		AffiliateLink: AffiliateLink(p.ProductLink, affiliateRef),
		CurrentPrice:  p.CurrentPrice,
		OriginalPrice: p.OriginalPrice,
		Discount:      Discount(p.CurrentPrice, p.OriginalPrice),
		Image:         image,
		Images:        images,
		Tags:          tags,
		DateAdded:     p.DateAdded,
		IsActive:      p.IsActive,
		Featured:      p.Featured,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// FromProducts converts products in order
func FromProducts(products []Product, affiliateRef string) []Deal {
	return lo.Map(products, func(p Product, _ int) Deal {
		return FromProduct(p, affiliateRef)
	})
}
