package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrCouponUsed    = errors.New("coupon has already been used")
	ErrCouponExpired = errors.New("coupon has expired")
)

// Discount types.
const (
	DiscountPercentage = "PERCENTAGE"
	DiscountFixed      = "FIXED"
)

type Coupon struct {
	Base
	Code         string          `json:"code"`
	Discount     decimal.Decimal `json:"discount"`
	DiscountType string          `json:"discountType"`
	OneTimeUse   bool            `json:"oneTimeUse,omitempty"`
	OneTime      bool            `json:"oneTime,omitempty"`
	Used         bool            `json:"used,omitempty"`
	ValidUntil   *time.Time      `json:"validUntil,omitempty"`
	ExpiresAt    *time.Time      `json:"expiresAt,omitempty"`
}

// Check reports why the coupon cannot be redeemed at now, or nil.
func (c Coupon) Check(now time.Time) error {
	if (c.OneTime || c.OneTimeUse) && c.Used {
		return ErrCouponUsed
	}
	expires := c.ExpiresAt
	if expires == nil {
		expires = c.ValidUntil
	}
	if expires != nil && expires.Before(now) {
		return ErrCouponExpired
	}
	return nil
}

type NewsletterSubscription struct {
	Base
	Email string `json:"email"`
}

type SupportMessage struct {
	Base
	Email     string `json:"email"`
	Message   string `json:"message"`
	Responded bool   `json:"responded"`
}
