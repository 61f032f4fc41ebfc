package scraper

// storefrontImage is a variant's featured image
type storefrontImage struct {
	Src string `json:"src"`
}

// storefrontVariant is one purchasable variant of a product
type storefrontVariant struct {
	Option1       string           `json:"option1"`
	FeaturedImage *storefrontImage `json:"featured_image"`
}

// storefrontProduct is the product document served at <product link>.js.
// Prices are in cents.
type storefrontProduct struct {
	ID             int64               `json:"id"`
	Title          string              `json:"title"`
	Vendor         string              `json:"vendor"`
	Type           string              `json:"type"`
	Description    string              `json:"description"`
	Tags           []string            `json:"tags"`
	Price          *int64              `json:"price"`
	CompareAtPrice *int64              `json:"compare_at_price"`
	PriceMin       *int64              `json:"price_min"`
	PriceMax       *int64              `json:"price_max"`
	Variants       []storefrontVariant `json:"variants"`
}
