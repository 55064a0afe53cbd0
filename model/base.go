// Package model defines the typed records stored by the shop backend.
//
// Every record embeds Base. Stored fields that a type does not declare are
// kept in Base.Extra and written back unchanged, so older or newer writers can
// share a collection without losing data.
package model

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

func init() {
	// Money is stored as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Collection names.
const (
	Users                   = "users"
	Products                = "products"
	Categories              = "categories"
	Orders                  = "orders"
	OrderItems              = "orderItems"
	InventoryItems          = "inventory"
	Coupons                 = "coupons"
	NewsletterSubscriptions = "newsletterSubscriptions"
	SupportMessages         = "supportMessages"
)

// Base carries the fields shared by all records.
type Base struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (b *Base) Touch(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now.UTC()
	}
}

func (b *Base) ExtraFields() map[string]json.RawMessage { return b.Extra }

func (b *Base) SetExtraFields(extra map[string]json.RawMessage) { b.Extra = extra }
