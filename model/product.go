package model

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

type Product struct {
	Base
	Name         string              `json:"name"`
	Slug         string              `json:"slug"`
	Description  string              `json:"description,omitempty"`
	Price        decimal.Decimal     `json:"price"`
	OfflinePrice decimal.NullDecimal `json:"offline_price"`
	CostPrice    decimal.NullDecimal `json:"costPrice"`
	CategoryID   string              `json:"categoryId,omitempty"`
	Stock        int                 `json:"stock"`
	ActiveForPOS *bool               `json:"active_for_pos,omitempty"`
	SKU          string              `json:"sku,omitempty"`
	Images       []ProductImage      `json:"images,omitempty"`
}

// AvailableForPOS reports whether cashiers may sell the product. Products
// that never set the flag are available.
func (p Product) AvailableForPOS() bool {
	return p.ActiveForPOS == nil || *p.ActiveForPOS
}

// POSPrice is the till price, falling back to the regular price.
func (p Product) POSPrice() decimal.Decimal {
	if p.OfflinePrice.Valid {
		return p.OfflinePrice.Decimal
	}
	return p.Price
}

type ProductImage struct {
	ID    string `json:"id,omitempty"`
	URL   string `json:"url"`
	Alt   string `json:"alt,omitempty"`
	Order int    `json:"order"`
}

// UnmarshalJSON also accepts a bare URL string, the older image format.
func (img *ProductImage) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(b), []byte(`"`)) {
		*img = ProductImage{}
		return json.Unmarshal(b, &img.URL)
	}
	type plain ProductImage
	return json.Unmarshal(b, (*plain)(img))
}

type Category struct {
	Base
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parentId,omitempty"`
}

type Inventory struct {
	Base
	ProductID string `json:"productId"`
	SKU       string `json:"sku,omitempty"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Quantity  int    `json:"quantity"`
}
