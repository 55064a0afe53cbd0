package analytics

import (
	"cmp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stevemurr/shopstore/db"
	"github.com/stevemurr/shopstore/model"
)

// SourceRow aggregates the revenue orders of one (day, source) pair.
// Completed orders count as paid as well.
type SourceRow struct {
	Date             string          `json:"date"`
	Source           string          `json:"source"`
	TotalRevenue     decimal.Decimal `json:"totalRevenue"`
	TotalOrders      int             `json:"totalOrders"`
	ProductsSold     int             `json:"productsSold"`
	PaidOrders       int             `json:"paidOrders"`
	CompletedOrders  int             `json:"completedOrders"`
	PaidRevenue      decimal.Decimal `json:"paidRevenue"`
	CompletedRevenue decimal.Decimal `json:"completedRevenue"`
}

func (r *SourceRow) add(o SourceRow) {
	r.TotalRevenue = r.TotalRevenue.Add(o.TotalRevenue)
	r.TotalOrders += o.TotalOrders
	r.ProductsSold += o.ProductsSold
	r.PaidOrders += o.PaidOrders
	r.CompletedOrders += o.CompletedOrders
	r.PaidRevenue = r.PaidRevenue.Add(o.PaidRevenue)
	r.CompletedRevenue = r.CompletedRevenue.Add(o.CompletedRevenue)
}

type SourceReport struct {
	Data   []SourceRow `json:"data"`
	Totals SourceRow   `json:"totals"`
}

// GroupByDateSource buckets revenue orders by day and source, newest day
// first and sources alphabetically within a day.
func GroupByDateSource(orders []model.Order, items []model.OrderItem, loc *time.Location) SourceReport {
	byOrder := itemsByOrder(items)
	type key struct{ date, source string }
	rows := make(map[key]*SourceRow)
	for _, o := range orders {
		if !o.IsRevenue() {
			continue
		}
		k := key{Day(o.CreatedAt, loc), o.Source}
		row, ok := rows[k]
		if !ok {
			row = &SourceRow{Date: k.date, Source: k.source}
			rows[k] = row
		}
		row.TotalRevenue = row.TotalRevenue.Add(o.Total)
		row.TotalOrders++
		row.PaidOrders++
		row.PaidRevenue = row.PaidRevenue.Add(o.Total)
		if o.Status == model.StatusCompleted {
			row.CompletedOrders++
			row.CompletedRevenue = row.CompletedRevenue.Add(o.Total)
		}
		for _, it := range byOrder[o.ID] {
			row.ProductsSold += it.Quantity
		}
	}

	report := SourceReport{Data: make([]SourceRow, 0, len(rows))}
	for _, row := range rows {
		report.Data = append(report.Data, *row)
	}
	report.Data = db.SortBy(report.Data, func(a, b SourceRow) int {
		if c := cmp.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Source, b.Source)
	})
	for _, row := range report.Data {
		report.Totals.add(row)
	}
	return report
}

type DateSales struct {
	Date     string          `json:"date"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type ProductSalesRow struct {
	ProductID     string          `json:"productId"`
	ProductName   string          `json:"productName"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	OrdersCount   int             `json:"ordersCount"`
	Dates         []DateSales     `json:"dates"`
}

type ProductReport struct {
	Products      []ProductSalesRow `json:"products"`
	TotalProducts int               `json:"totalProducts"`
	TotalRevenue  decimal.Decimal   `json:"totalRevenue"`
	TotalQuantity int               `json:"totalQuantity"`
}

// ProductSales aggregates sold quantity and revenue per product over the
// revenue orders. Items whose product no longer exists are skipped. An item
// without a price is valued at the current product price.
func ProductSales(orders []model.Order, items []model.OrderItem, products []model.Product, loc *time.Location) ProductReport {
	byOrder := itemsByOrder(items)
	catalog := make(map[string]model.Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}

	type acc struct {
		row   ProductSalesRow
		dates map[string]*DateSales
	}
	rows := make(map[string]*acc)
	for _, o := range orders {
		if !o.IsRevenue() {
			continue
		}
		day := Day(o.CreatedAt, loc)
		seen := make(map[string]bool)
		for _, it := range byOrder[o.ID] {
			p, ok := catalog[it.ProductID]
			if !ok {
				continue
			}
			a, ok := rows[it.ProductID]
			if !ok {
				a = &acc{
					row:   ProductSalesRow{ProductID: p.ID, ProductName: p.Name},
					dates: make(map[string]*DateSales),
				}
				rows[it.ProductID] = a
			}
			price := it.Price
			if price.IsZero() {
				price = p.Price
			}
			revenue := price.Mul(decimal.NewFromInt(int64(it.Quantity)))

			a.row.TotalQuantity += it.Quantity
			a.row.TotalRevenue = a.row.TotalRevenue.Add(revenue)
			if !seen[it.ProductID] {
				seen[it.ProductID] = true
				a.row.OrdersCount++
			}
			ds, ok := a.dates[day]
			if !ok {
				ds = &DateSales{Date: day}
				a.dates[day] = ds
			}
			ds.Quantity += it.Quantity
			ds.Revenue = ds.Revenue.Add(revenue)
		}
	}

	report := ProductReport{Products: make([]ProductSalesRow, 0, len(rows))}
	for _, a := range rows {
		row := a.row
		row.Dates = make([]DateSales, 0, len(a.dates))
		for _, ds := range a.dates {
			row.Dates = append(row.Dates, *ds)
		}
		row.Dates = db.SortBy(row.Dates, func(x, y DateSales) int { return cmp.Compare(x.Date, y.Date) })
		report.Products = append(report.Products, row)
	}
	report.Products = db.SortBy(report.Products, func(a, b ProductSalesRow) int {
		return byRevenueThenID(a.TotalRevenue, b.TotalRevenue, a.ProductID, b.ProductID)
	})
	report.TotalProducts = len(report.Products)
	for _, row := range report.Products {
		report.TotalRevenue = report.TotalRevenue.Add(row.TotalRevenue)
		report.TotalQuantity += row.TotalQuantity
	}
	return report
}

type CashierProduct struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type CashierRow struct {
	CashierID    string           `json:"cashierId"`
	CashierName  string           `json:"cashierName"`
	CashierEmail string           `json:"cashierEmail"`
	TotalOrders  int              `json:"totalOrders"`
	TotalRevenue decimal.Decimal  `json:"totalRevenue"`
	ProductStats []CashierProduct `json:"productStats"`
}

type CashierSummary struct {
	TotalCashiers int             `json:"totalCashiers"`
	TotalOrders   int             `json:"totalOrders"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
}

type CashierReport struct {
	Cashiers []CashierRow   `json:"cashiers"`
	Summary  CashierSummary `json:"summary"`
}

// CashierStats summarizes paid till orders per cashier. Orders without a
// cashier, or whose cashier is not a known user, are skipped. Only cashiers
// with at least one order are reported, highest revenue first.
func CashierStats(orders []model.Order, items []model.OrderItem, products []model.Product, users []model.User) CashierReport {
	byOrder := itemsByOrder(items)
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	staff := make(map[string]model.User, len(users))
	for _, u := range users {
		staff[u.ID] = u
	}

	type acc struct {
		row      CashierRow
		products map[string]*CashierProduct
	}
	rows := make(map[string]*acc)
	for _, o := range orders {
		if o.Status != model.StatusPaid || (o.Source != model.SourcePOS && o.Source != model.SourceOffline) {
			continue
		}
		if o.CashierID == "" {
			continue
		}
		a, ok := rows[o.CashierID]
		if !ok {
			u, known := staff[o.CashierID]
			if !known {
				continue
			}
			a = &acc{
				row:      CashierRow{CashierID: u.ID, CashierName: u.DisplayName(), CashierEmail: u.Email},
				products: make(map[string]*CashierProduct),
			}
			rows[o.CashierID] = a
		}
		a.row.TotalOrders++
		a.row.TotalRevenue = a.row.TotalRevenue.Add(o.Total)
		for _, it := range byOrder[o.ID] {
			cp, ok := a.products[it.ProductID]
			if !ok {
				name := names[it.ProductID]
				if name == "" {
					name = it.ProductName
				}
				if name == "" {
					name = "Unknown Product"
				}
				cp = &CashierProduct{ProductID: it.ProductID, ProductName: name}
				a.products[it.ProductID] = cp
			}
			cp.Quantity += it.Quantity
			cp.Revenue = cp.Revenue.Add(it.Subtotal())
		}
	}

	report := CashierReport{Cashiers: make([]CashierRow, 0, len(rows))}
	for _, a := range rows {
		row := a.row
		row.ProductStats = make([]CashierProduct, 0, len(a.products))
		for _, cp := range a.products {
			row.ProductStats = append(row.ProductStats, *cp)
		}
		row.ProductStats = db.SortBy(row.ProductStats, func(x, y CashierProduct) int {
			return byRevenueThenID(x.Revenue, y.Revenue, x.ProductID, y.ProductID)
		})
		report.Cashiers = append(report.Cashiers, row)
	}
	report.Cashiers = db.SortBy(report.Cashiers, func(x, y CashierRow) int {
		return byRevenueThenID(x.TotalRevenue, y.TotalRevenue, x.CashierID, y.CashierID)
	})
	report.Summary.TotalCashiers = len(report.Cashiers)
	for _, row := range report.Cashiers {
		report.Summary.TotalOrders += row.TotalOrders
		report.Summary.TotalRevenue = report.Summary.TotalRevenue.Add(row.TotalRevenue)
	}
	return report
}

type PeriodStats struct {
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

// Counts holds collection sizes shown on the dashboard.
type Counts struct {
	Products   int
	Categories int
	Users      int
}

type DashboardStats struct {
	Today           PeriodStats     `json:"today"`
	AllTime         PeriodStats     `json:"allTime"`
	TotalProducts   int             `json:"totalProducts"`
	TotalCategories int             `json:"totalCategories"`
	TotalOrders     int             `json:"totalOrders"`
	TotalUsers      int             `json:"totalUsers"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	PendingOrders   int             `json:"pendingOrders"`
	CompletedOrders int             `json:"completedOrders"`
	BySource        map[string]int  `json:"bySource"`

	RevenueBySource map[string]decimal.Decimal `json:"revenueBySource"`
	Days            []DayTotal                 `json:"days"`
}

// Dashboard computes the admin overview. Today is the calendar day of now in loc.
func Dashboard(orders []model.Order, counts Counts, now time.Time, loc *time.Location) DashboardStats {
	today := Day(now, loc)
	stats := DashboardStats{
		TotalProducts:   counts.Products,
		TotalCategories: counts.Categories,
		TotalUsers:      counts.Users,
		TotalOrders:     len(orders),
		BySource: map[string]int{
			model.SourceOnline:   0,
			model.SourcePOS:      0,
			model.SourceTelegram: 0,
		},
	}
	var todays []model.Order
	for _, o := range orders {
		if Day(o.CreatedAt, loc) == today {
			todays = append(todays, o)
		}
		switch o.Status {
		case model.StatusPending:
			stats.PendingOrders++
		case model.StatusCompleted:
			stats.CompletedOrders++
		}
		if _, tracked := stats.BySource[o.Source]; tracked {
			stats.BySource[o.Source]++
		}
	}
	stats.Today = PeriodStats{Revenue: Revenue(todays), Orders: len(todays)}
	stats.AllTime.Revenue = Revenue(orders)
	stats.RevenueBySource = RevenueBySource(orders)
	stats.Days = DailyTotals(orders, loc)
	stats.AllTime.Orders = len(orders)
	stats.TotalRevenue = stats.AllTime.Revenue
	return stats
}
