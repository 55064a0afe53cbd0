package analytics

import (
	"fmt"
	"time"

	"github.com/stevemurr/shopstore/model"
)

// OrderFilter narrows a list of orders. Zero fields do not filter.
type OrderFilter struct {
	Source        string
	PaymentMethod string
	CashierID     string
	// From and To are inclusive calendar days.
	From, To time.Time
}

// ParseDay parses YYYY-MM-DD, or an RFC 3339 timestamp, into the start of that
// day in loc. An empty string yields the zero time.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(dayLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
}

// FilterOrders returns the orders matching f, keeping their order.
func FilterOrders(orders []model.Order, f OrderFilter) []model.Order {
	var end time.Time
	if !f.To.IsZero() {
		end = f.To.AddDate(0, 0, 1)
	}
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if f.Source != "" && o.Source != f.Source {
			continue
		}
		if f.PaymentMethod != "" && o.PaymentMethod != f.PaymentMethod && o.LegacyPaymentMethod != f.PaymentMethod {
			continue
		}
		if f.CashierID != "" && o.CashierID != f.CashierID {
			continue
		}
		if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
			continue
		}
		if !end.IsZero() && !o.CreatedAt.Before(end) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// itemsByOrder indexes items by order id, keeping their stored order.
func itemsByOrder(items []model.OrderItem) map[string][]model.OrderItem {
	out := make(map[string][]model.OrderItem)
	for _, it := range items {
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out
}
