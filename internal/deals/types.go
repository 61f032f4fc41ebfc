package deals

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PlaceholderImage is shown for products without any image
const PlaceholderImage = "/placeholder.svg"

// Image describes one product image
type Image struct {
	Title string `json:"title"`
	URL   string `json:"imageUrl"`
}

type imageAlias Image

// UnmarshalJSON accepts an image object, a JSON string holding an encoded
// image object, or a plain URL string.
func (i *Image) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*i = Image{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "{") {
			return i.UnmarshalJSON([]byte(s))
		}
		*i = Image{URL: s}
		return nil
	}

	var alias imageAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*i = Image(alias)
	return nil
}

// Product is the stored form of a scraped storefront product
type Product struct {
	ID            uint                `json:"id" gorm:"primaryKey"`
	ProductID     string              `json:"product_id" gorm:"column:product_id;uniqueIndex;not null" validate:"required"`
	Title         string              `json:"title" gorm:"not null" validate:"required"`
	Brand         string              `json:"brand" gorm:"index"`
	Category      string              `json:"category"`
	ProductLink   string              `json:"product_link" gorm:"column:product_link;not null" validate:"required,url"`
	Description   []string            `json:"product_description" gorm:"column:product_description;serializer:json"`
	Tags          []string            `json:"tags" gorm:"serializer:json"`
	CurrentPrice  decimal.Decimal     `json:"current_price" gorm:"type:numeric(10,2);not null"`
	OriginalPrice decimal.NullDecimal `json:"original_price" gorm:"type:numeric(10,2)"`
	PriceMin      decimal.NullDecimal `json:"price_min" gorm:"type:numeric(10,2)"`
	PriceMax      decimal.NullDecimal `json:"price_max" gorm:"type:numeric(10,2)"`
	Images        []Image             `json:"images" gorm:"serializer:json"`
	DateAdded     time.Time           `json:"date_added" gorm:"autoCreateTime"`
	IsActive      bool                `json:"is_active" gorm:"default:true;index"`
	Featured      bool                `json:"featured" gorm:"default:false"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// TableName keeps the table name used by the storefront sync
func (Product) TableName() string {
	return "product"
}

// Deal is the display-ready form of a Product
type Deal struct {
	ID            uint                `json:"id"`
	ProductID     string              `json:"product_id"`
	Title         string              `json:"title"`
	Brand         string              `json:"brand"`
	Category      string              `json:"category"`
	Description   []string            `json:"description"`
	AffiliateLink string              `json:"affiliateLink"`
	CurrentPrice  decimal.Decimal     `json:"current_price"`
	OriginalPrice decimal.NullDecimal `json:"original_price"`
	Discount      int                 `json:"discount"`
	Image         string              `json:"image"`
	Images        []Image             `json:"images"`
	Tags          []string            `json:"tags"`
	DateAdded     time.Time           `json:"date_added"`
	IsActive      bool                `json:"is_active"`
	Featured      bool                `json:"featured"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}
