// Package analytics computes sales reports from orders and order items.
//
// Every function is pure: callers fetch the records through the db package
// and pass them in together with the time zone that defines a calendar day.
// Sums are exact decimals and every ordering has a deterministic tie-break.
package analytics

import (
	"cmp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stevemurr/shopstore/db"
	"github.com/stevemurr/shopstore/model"
)

const dayLayout = "2006-01-02"

// Day returns the calendar day of t in loc as YYYY-MM-DD.
func Day(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dayLayout)
}

// Revenue sums the totals of the orders that count as revenue.
func Revenue(orders []model.Order) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range orders {
		if o.IsRevenue() {
			sum = sum.Add(o.Total)
		}
	}
	return sum
}

// RevenueBySource sums revenue per order source. Sources without revenue are absent.
func RevenueBySource(orders []model.Order) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, o := range orders {
		if !o.IsRevenue() {
			continue
		}
		out[o.Source] = out[o.Source].Add(o.Total)
	}
	return out
}

// DayTotal summarizes one calendar day. Total covers every order regardless
// of status; Revenue only the paid and completed ones.
type DayTotal struct {
	Date    string          `json:"date"`
	Total   decimal.Decimal `json:"total"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

// DailyTotals groups orders by calendar day in loc, newest day first.
func DailyTotals(orders []model.Order, loc *time.Location) []DayTotal {
	byDay := make(map[string]*DayTotal)
	for _, o := range orders {
		day := Day(o.CreatedAt, loc)
		dt, ok := byDay[day]
		if !ok {
			dt = &DayTotal{Date: day}
			byDay[day] = dt
		}
		dt.Total = dt.Total.Add(o.Total)
		dt.Orders++
		if o.IsRevenue() {
			dt.Revenue = dt.Revenue.Add(o.Total)
		}
	}
	out := make([]DayTotal, 0, len(byDay))
	for _, dt := range byDay {
		out = append(out, *dt)
	}
	return db.SortBy(out, func(a, b DayTotal) int {
		return strings.Compare(b.Date, a.Date)
	})
}

// RecentOrders returns up to limit orders, newest first. Orders created at
// the same instant keep their stored order.
func RecentOrders(orders []model.Order, limit int) []model.Order {
	sorted := db.SortBy(orders, func(a, b model.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit >= 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	return sorted
}

// byRevenueThenID orders rows by revenue descending, then id ascending.
func byRevenueThenID(revA, revB decimal.Decimal, idA, idB string) int {
	if c := revB.Cmp(revA); c != 0 {
		return c
	}
	return cmp.Compare(idA, idB)
}
