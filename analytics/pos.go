package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stevemurr/shopstore/db"
	"github.com/stevemurr/shopstore/model"
)

// ReceiptNumber returns the next till receipt number for the day of
// createdAt, in the form RCP-YYYYMMDD-NNN.
func ReceiptNumber(orders []model.Order, createdAt time.Time, loc *time.Location) string {
	prefix := "RCP-" + createdAt.In(loc).Format("20060102")
	seq := 1
	for _, o := range orders {
		if strings.HasPrefix(o.ReceiptNumber, prefix) {
			seq++
		}
	}
	return fmt.Sprintf("%s-%03d", prefix, seq)
}

type ReceiptLine struct {
	Name     string          `json:"name"`
	SKU      string          `json:"sku,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Receipt is the printable form of a till order.
type Receipt struct {
	ReceiptNumber         string          `json:"receipt_number"`
	Date                  string          `json:"date"`
	Time                  string          `json:"time"`
	Cashier               string          `json:"cashier"`
	Items                 []ReceiptLine   `json:"items"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	Tax                   decimal.Decimal `json:"tax"`
	Total                 decimal.Decimal `json:"total"`
	PaymentMethod         string          `json:"payment_method"`
	PaymentStatus         string          `json:"payment_status"`
	TerminalTransactionID string          `json:"terminal_transaction_id,omitempty"`
}

// BuildReceipt lays out order for printing. items are the order's lines and
// cashier may be nil. No tax is applied.
func BuildReceipt(order model.Order, items []model.OrderItem, cashier *model.User, loc *time.Location) Receipt {
	r := Receipt{
		ReceiptNumber:         order.ReceiptNumber,
		Cashier:               "Cashier",
		Items:                 make([]ReceiptLine, 0, len(items)),
		Tax:                   decimal.Zero,
		PaymentMethod:         order.Method(),
		PaymentStatus:         order.EffectivePaymentStatus(),
		TerminalTransactionID: order.TerminalTransactionID,
	}
	if r.ReceiptNumber == "" {
		r.ReceiptNumber = order.OrderNumber
	}
	created := order.CreatedAt.In(loc)
	r.Date = created.Format("01/02/2006")
	r.Time = created.Format("15:04:05")
	if cashier != nil {
		r.Cashier = cashier.DisplayName()
	}

	r.Subtotal = decimal.Zero
	for _, it := range items {
		name := it.ProductName
		if name == "" {
			name = it.ProductID
		}
		line := ReceiptLine{
			Name:     name,
			SKU:      it.SKU,
			Quantity: it.Quantity,
			Price:    it.Price,
			Subtotal: it.Subtotal(),
		}
		r.Items = append(r.Items, line)
		r.Subtotal = r.Subtotal.Add(line.Subtotal)
	}
	r.Total = r.Subtotal.Add(r.Tax)
	return r
}

// POSQuery selects products for the till.
type POSQuery struct {
	// Search matches name or SKU, case-insensitively.
	Search     string
	ActiveOnly bool
	InStock    bool
	Offset     int
	Limit      int
}

// POSProducts filters the catalog for the till, most recently updated first,
// with the till price substituted for the regular price.
func POSProducts(products []model.Product, q POSQuery) db.Page[model.Product] {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	matched := db.Filter(products, func(p model.Product) bool {
		if q.ActiveOnly && !p.AvailableForPOS() {
			return false
		}
		if q.InStock && p.Stock <= 0 {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.SKU), search) {
			return false
		}
		return true
	})
	matched = db.SortBy(matched, func(a, b model.Product) int {
		return updatedAt(b).Compare(updatedAt(a))
	})
	page := db.Paginate(matched, q.Offset, q.Limit)
	for i := range page.Items {
		page.Items[i].Price = page.Items[i].POSPrice()
	}
	return page
}

func updatedAt(p model.Product) time.Time {
	if p.UpdatedAt == nil {
		return time.Time{}
	}
	return *p.UpdatedAt
}
