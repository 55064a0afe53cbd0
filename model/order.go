package model

import (
	"github.com/shopspring/decimal"
)

// Order statuses.
const (
	StatusPending   = "PENDING"
	StatusPaid      = "PAID"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Order sources.
const (
	SourceOnline   = "ONLINE"
	SourcePOS      = "POS"
	SourceTelegram = "TELEGRAM"
	SourceOffline  = "OFFLINE"
)

// ChannelOffline marks orders taken at a till.
const ChannelOffline = "offline"

// Order is a customer or till order. Payment method is read from either
// paymentMethod or payment_method, see Method.
type Order struct {
	Base
	OrderNumber           string          `json:"orderNumber,omitempty"`
	ReceiptNumber         string          `json:"receipt_number,omitempty"`
	UserID                string          `json:"userId,omitempty"`
	CashierID             string          `json:"cashier_id,omitempty"`
	TelegramUserID        string          `json:"telegramUserId,omitempty"`
	Source                string          `json:"source"`
	Channel               string          `json:"channel,omitempty"`
	Status                string          `json:"status"`
	PaymentStatus         string          `json:"payment_status,omitempty"`
	PaymentMethod         string          `json:"paymentMethod,omitempty"`
	LegacyPaymentMethod   string          `json:"payment_method,omitempty"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	Discount              decimal.Decimal `json:"discount"`
	Total                 decimal.Decimal `json:"total"`
	CouponCode            string          `json:"couponCode,omitempty"`
	TerminalTransactionID string          `json:"terminal_transaction_id,omitempty"`
}

// IsRevenue reports whether the order counts towards revenue.
func (o Order) IsRevenue() bool {
	return o.Status == StatusPaid || o.Status == StatusCompleted
}

// IsPOS reports whether the order was taken at a till.
func (o Order) IsPOS() bool {
	return o.Channel == ChannelOffline || o.Source == SourcePOS || o.Source == SourceOffline
}

// Method returns the payment method under either spelling.
func (o Order) Method() string {
	if o.PaymentMethod != "" {
		return o.PaymentMethod
	}
	return o.LegacyPaymentMethod
}

// EffectivePaymentStatus falls back to the order status.
func (o Order) EffectivePaymentStatus() string {
	if o.PaymentStatus != "" {
		return o.PaymentStatus
	}
	return o.Status
}

type OrderItem struct {
	Base
	OrderID     string          `json:"orderId"`
	ProductID   string          `json:"productId"`
	ProductName string          `json:"product_name,omitempty"`
	SKU         string          `json:"sku,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Subtotal is price times quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
