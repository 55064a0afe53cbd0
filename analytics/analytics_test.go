package analytics_test

import (
	"slices"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/shopstore/analytics"
	"github.com/stevemurr/shopstore/model"
)

var day = time.Date(2025, 1, 3, 10, 0, 0, 0, time.UTC)

func order(id, source, status, total string, at time.Time) model.Order {
	o := model.Order{Source: source, Status: status, Total: decimal.RequireFromString(total)}
	o.ID = id
	o.CreatedAt = at
	return o
}

func item(orderID, productID string, qty int, price string) model.OrderItem {
	it := model.OrderItem{OrderID: orderID, ProductID: productID, Quantity: qty, Price: decimal.RequireFromString(price)}
	it.ID = orderID + "-" + productID
	return it
}

// fixture is four orders on the same day: two revenue orders from the till,
// one paid and one pending online order.
func fixture() []model.Order {
	return []model.Order{
		order("o1", model.SourcePOS, model.StatusPaid, "100", day),
		order("o2", model.SourcePOS, model.StatusCompleted, "50", day.Add(time.Hour)),
		order("o3", model.SourceOnline, model.StatusPaid, "50", day.Add(2*time.Hour)),
		order("o4", model.SourceOnline, model.StatusPending, "100", day.Add(3*time.Hour)),
	}
}

func TestRevenueBySource(t *testing.T) {
	got := analytics.RevenueBySource(fixture())
	require.Len(t, got, 2)
	assert.Equal(t, "150", got[model.SourcePOS].String())
	assert.Equal(t, "50", got[model.SourceOnline].String())
	assert.Equal(t, "200", analytics.Revenue(fixture()).String())
}

func TestDailyTotals(t *testing.T) {
	orders := append(fixture(), order("o5", model.SourcePOS, model.StatusPaid, "10", day.AddDate(0, 0, -1)))
	got := analytics.DailyTotals(orders, time.UTC)
	require.Len(t, got, 2)

	assert.Equal(t, "2025-01-03", got[0].Date)
	assert.Equal(t, "300", got[0].Total.String())
	assert.Equal(t, "200", got[0].Revenue.String())
	assert.Equal(t, 4, got[0].Orders)
	assert.Equal(t, "2025-01-02", got[1].Date)
}

func TestDailyTotalsUsesLocation(t *testing.T) {
	// 23:30 UTC on Jan 2 is already Jan 3 two hours east.
	late := order("o1", model.SourcePOS, model.StatusPaid, "10", time.Date(2025, 1, 2, 23, 30, 0, 0, time.UTC))
	east := time.FixedZone("UTC+2", 2*3600)

	assert.Equal(t, "2025-01-02", analytics.DailyTotals([]model.Order{late}, time.UTC)[0].Date)
	assert.Equal(t, "2025-01-03", analytics.DailyTotals([]model.Order{late}, east)[0].Date)
}

func TestGroupByDateSource(t *testing.T) {
	items := []model.OrderItem{
		item("o1", "p1", 2, "50"),
		item("o2", "p2", 1, "50"),
		item("o3", "p1", 1, "50"),
		item("o4", "p1", 7, "50"),
	}
	report := analytics.GroupByDateSource(fixture(), items, time.UTC)
	require.Len(t, report.Data, 2)

	online, pos := report.Data[0], report.Data[1]
	assert.Equal(t, model.SourceOnline, online.Source)
	assert.Equal(t, "50", online.TotalRevenue.String())
	assert.Equal(t, 1, online.TotalOrders)
	assert.Equal(t, 1, online.ProductsSold)

	assert.Equal(t, model.SourcePOS, pos.Source)
	assert.Equal(t, "150", pos.TotalRevenue.String())
	assert.Equal(t, 2, pos.TotalOrders)
	assert.Equal(t, 2, pos.PaidOrders)
	assert.Equal(t, 1, pos.CompletedOrders)
	assert.Equal(t, "50", pos.CompletedRevenue.String())
	assert.Equal(t, 3, pos.ProductsSold)

	assert.Equal(t, "200", report.Totals.TotalRevenue.String())
	assert.Equal(t, 3, report.Totals.TotalOrders)
	assert.Equal(t, 4, report.Totals.ProductsSold)
}

func TestReportsAreDeterministic(t *testing.T) {
	orders := fixture()
	items := []model.OrderItem{
		item("o1", "p1", 1, "40"),
		item("o1", "p2", 1, "60"),
		item("o2", "p3", 1, "50"),
		item("o3", "p2", 1, "50"),
	}
	products := []model.Product{product("p1", "A", "40"), product("p2", "B", "60"), product("p3", "C", "50")}

	encode := func(orders []model.Order, items []model.OrderItem) string {
		b, err := json.Marshal([]any{
			analytics.GroupByDateSource(orders, items, time.UTC),
			analytics.ProductSales(orders, items, products, time.UTC),
			analytics.DailyTotals(orders, time.UTC),
		})
		require.NoError(t, err)
		return string(b)
	}
	want := encode(orders, items)
	for i := 0; i < 20; i++ {
		o := slices.Clone(orders)
		it := slices.Clone(items)
		slices.Reverse(o)
		if i%2 == 1 {
			slices.Reverse(it)
		}
		assert.Equal(t, want, encode(o, it))
	}
}

func product(id, name, price string) model.Product {
	p := model.Product{Name: name, Price: decimal.RequireFromString(price), Stock: 1}
	p.ID = id
	return p
}

func TestProductSales(t *testing.T) {
	orders := fixture()
	items := []model.OrderItem{
		item("o1", "p1", 2, "30"),
		item("o1", "p2", 1, "0"),
		item("o2", "p1", 1, "30"),
		item("o3", "gone", 5, "10"),
		item("o4", "p1", 9, "30"), // pending, not counted
	}
	products := []model.Product{product("p1", "Mug", "35"), product("p2", "Cap", "40")}

	report := analytics.ProductSales(orders, items, products, time.UTC)
	require.Len(t, report.Products, 2)

	mug := report.Products[0]
	assert.Equal(t, "p1", mug.ProductID)
	assert.Equal(t, 3, mug.TotalQuantity)
	assert.Equal(t, "90", mug.TotalRevenue.String())
	assert.Equal(t, 2, mug.OrdersCount)
	require.Len(t, mug.Dates, 1)
	assert.Equal(t, "2025-01-03", mug.Dates[0].Date)

	hat := report.Products[1]
	assert.Equal(t, "p2", hat.ProductID)
	assert.Equal(t, "40", hat.TotalRevenue.String(), "missing item price falls back to product price")

	assert.Equal(t, 2, report.TotalProducts)
	assert.Equal(t, "130", report.TotalRevenue.String())
	assert.Equal(t, 4, report.TotalQuantity)
}

func TestProductSalesTieBreak(t *testing.T) {
	orders := []model.Order{order("o1", model.SourcePOS, model.StatusPaid, "20", day)}
	items := []model.OrderItem{item("o1", "b", 1, "10"), item("o1", "a", 1, "10")}
	products := []model.Product{product("a", "A", "10"), product("b", "B", "10")}

	report := analytics.ProductSales(orders, items, products, time.UTC)
	require.Len(t, report.Products, 2)
	assert.Equal(t, "a", report.Products[0].ProductID)
	assert.Equal(t, "b", report.Products[1].ProductID)
}

func user(id, first, email, role string) model.User {
	u := model.User{FirstName: first, Email: email, Role: role}
	u.ID = id
	return u
}

func TestCashierStats(t *testing.T) {
	withCashier := func(o model.Order, cashier string) model.Order {
		o.CashierID = cashier
		return o
	}
	orders := []model.Order{
		withCashier(order("o1", model.SourcePOS, model.StatusPaid, "30", day), "u1"),
		withCashier(order("o2", model.SourceOffline, model.StatusPaid, "50", day), "u2"),
		withCashier(order("o3", model.SourcePOS, model.StatusPaid, "10", day), "u1"),
		withCashier(order("o4", model.SourcePOS, model.StatusCompleted, "99", day), "u1"),
		withCashier(order("o5", model.SourceOnline, model.StatusPaid, "99", day), "u1"),
		withCashier(order("o6", model.SourcePOS, model.StatusPaid, "99", day), "ghost"),
		order("o7", model.SourcePOS, model.StatusPaid, "99", day),
	}
	items := []model.OrderItem{
		item("o1", "p1", 1, "30"),
		item("o3", "p2", 1, "10"),
		item("o2", "p9", 2, "25"),
	}
	items[2].ProductName = "Legacy"
	products := []model.Product{product("p1", "Mug", "30"), product("p2", "Pin", "10")}
	users := []model.User{user("u1", "Ann", "ann@x", model.RoleCashier), user("u2", "", "bob@x", model.RoleAdmin)}

	report := analytics.CashierStats(orders, items, products, users)
	require.Len(t, report.Cashiers, 2)

	bob := report.Cashiers[0]
	assert.Equal(t, "u2", bob.CashierID)
	assert.Equal(t, "bob@x", bob.CashierName)
	assert.Equal(t, "50", bob.TotalRevenue.String())
	require.Len(t, bob.ProductStats, 1)
	assert.Equal(t, "Legacy", bob.ProductStats[0].ProductName)

	ann := report.Cashiers[1]
	assert.Equal(t, "Ann", ann.CashierName)
	assert.Equal(t, 2, ann.TotalOrders)
	assert.Equal(t, "40", ann.TotalRevenue.String())
	require.Len(t, ann.ProductStats, 2)
	assert.Equal(t, "p1", ann.ProductStats[0].ProductID)

	assert.Equal(t, 2, report.Summary.TotalCashiers)
	assert.Equal(t, 3, report.Summary.TotalOrders)
	assert.Equal(t, "90", report.Summary.TotalRevenue.String())
}

func TestDashboard(t *testing.T) {
	orders := append(fixture(),
		order("o5", model.SourceTelegram, model.StatusCompleted, "25", day.AddDate(0, 0, -2)),
	)
	stats := analytics.Dashboard(orders, analytics.Counts{Products: 3, Categories: 2, Users: 5}, day.Add(5*time.Hour), time.UTC)

	assert.Equal(t, "200", stats.Today.Revenue.String())
	assert.Equal(t, 4, stats.Today.Orders)
	assert.Equal(t, "225", stats.AllTime.Revenue.String())
	assert.Equal(t, 5, stats.AllTime.Orders)
	assert.Equal(t, 5, stats.TotalOrders)
	assert.Equal(t, 3, stats.TotalProducts)
	assert.Equal(t, 2, stats.TotalCategories)
	assert.Equal(t, 5, stats.TotalUsers)
	assert.Equal(t, 1, stats.PendingOrders)
	assert.Equal(t, 2, stats.CompletedOrders)
	assert.Equal(t, map[string]int{model.SourceOnline: 2, model.SourcePOS: 2, model.SourceTelegram: 1}, stats.BySource)

	require.Len(t, stats.RevenueBySource, 3)
	assert.Equal(t, "150", stats.RevenueBySource[model.SourcePOS].String())
	assert.Equal(t, "50", stats.RevenueBySource[model.SourceOnline].String())
	assert.Equal(t, "25", stats.RevenueBySource[model.SourceTelegram].String())
	require.Len(t, stats.Days, 2)
	assert.Equal(t, "2025-01-03", stats.Days[0].Date)
	assert.Equal(t, "300", stats.Days[0].Total.String())
	assert.Equal(t, "200", stats.Days[0].Revenue.String())
	assert.Equal(t, "2025-01-01", stats.Days[1].Date)
}

func TestRecentOrders(t *testing.T) {
	orders := fixture()
	orders = append(orders, order("tie", model.SourcePOS, model.StatusPaid, "1", day))

	got := analytics.RecentOrders(orders, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"o4", "o3", "o2"}, []string{got[0].ID, got[1].ID, got[2].ID})

	all := analytics.RecentOrders(orders, 10)
	require.Len(t, all, 5)
	assert.Equal(t, "o1", all[3].ID, "equal timestamps keep stored order")
	assert.Equal(t, "tie", all[4].ID)
}

func TestFilterOrders(t *testing.T) {
	orders := fixture()
	orders[0].PaymentMethod = "CARD"
	orders[2].LegacyPaymentMethod = "CARD"
	orders = append(orders, order("next", model.SourcePOS, model.StatusPaid, "1", day.AddDate(0, 0, 1)))

	ids := func(os []model.Order) []string {
		var out []string
		for _, o := range os {
			out = append(out, o.ID)
		}
		return out
	}

	from, err := analytics.ParseDay("2025-01-03", time.UTC)
	require.NoError(t, err)

	assert.Equal(t, []string{"o1", "o2", "o3", "o4"}, ids(analytics.FilterOrders(orders, analytics.OrderFilter{From: from, To: from})))
	assert.Equal(t, []string{"o1", "o2", "next"}, ids(analytics.FilterOrders(orders, analytics.OrderFilter{Source: model.SourcePOS})))
	assert.Equal(t, []string{"o1", "o3"}, ids(analytics.FilterOrders(orders, analytics.OrderFilter{PaymentMethod: "CARD"})))
	assert.Equal(t, []string{"next"}, ids(analytics.FilterOrders(orders, analytics.OrderFilter{From: from.AddDate(0, 0, 1)})))
	assert.Len(t, analytics.FilterOrders(orders, analytics.OrderFilter{}), 5)
}

func TestParseDay(t *testing.T) {
	east := time.FixedZone("UTC+2", 2*3600)

	d, err := analytics.ParseDay("2025-01-03", east)
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2025, 1, 3, 0, 0, 0, 0, east)))

	d, err = analytics.ParseDay("2025-01-02T23:30:00Z", east)
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2025, 1, 3, 0, 0, 0, 0, east)))

	d, err = analytics.ParseDay("", east)
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = analytics.ParseDay("03/01/2025", east)
	require.Error(t, err)
}

func TestReceiptNumber(t *testing.T) {
	orders := fixture()
	assert.Equal(t, "RCP-20250103-001", analytics.ReceiptNumber(orders, day, time.UTC))

	orders[0].ReceiptNumber = "RCP-20250103-001"
	orders[1].ReceiptNumber = "RCP-20250103-002"
	orders[2].ReceiptNumber = "RCP-20250102-001"
	assert.Equal(t, "RCP-20250103-003", analytics.ReceiptNumber(orders, day, time.UTC))
}

func TestBuildReceipt(t *testing.T) {
	o := order("o1", model.SourcePOS, model.StatusPaid, "70", time.Date(2025, 1, 3, 14, 5, 9, 0, time.UTC))
	o.OrderNumber = "ORD-1"
	o.LegacyPaymentMethod = "CASH"
	items := []model.OrderItem{item("o1", "p1", 2, "25"), item("o1", "p2", 1, "20")}
	items[0].ProductName = "Mug"
	cashier := user("u1", "Ann", "ann@x", model.RoleCashier)

	r := analytics.BuildReceipt(o, items, &cashier, time.UTC)
	assert.Equal(t, "ORD-1", r.ReceiptNumber)
	assert.Equal(t, "01/03/2025", r.Date)
	assert.Equal(t, "14:05:09", r.Time)
	assert.Equal(t, "Ann", r.Cashier)
	require.Len(t, r.Items, 2)
	assert.Equal(t, "Mug", r.Items[0].Name)
	assert.Equal(t, "50", r.Items[0].Subtotal.String())
	assert.Equal(t, "p2", r.Items[1].Name)
	assert.Equal(t, "70", r.Subtotal.String())
	assert.Equal(t, "70", r.Total.String())
	assert.Equal(t, "CASH", r.PaymentMethod)
	assert.Equal(t, model.StatusPaid, r.PaymentStatus)

	anon := analytics.BuildReceipt(o, nil, nil, time.UTC)
	assert.Equal(t, "Cashier", anon.Cashier)
	assert.Empty(t, anon.Items)
	assert.Equal(t, "0", anon.Total.String())
}

func TestPOSProducts(t *testing.T) {
	inactive := false
	t1 := day
	t2 := day.Add(time.Hour)

	mug := product("p1", "Blue Mug", "10")
	mug.SKU = "MUG-1"
	mug.UpdatedAt = &t1
	mug.OfflinePrice = decimal.NewNullDecimal(decimal.RequireFromString("8"))
	hat := product("p2", "Cap", "15")
	hat.UpdatedAt = &t2
	hidden := product("p3", "Hidden mug", "5")
	hidden.ActiveForPOS = &inactive
	empty := product("p4", "Empty mug", "5")
	empty.Stock = 0
	products := []model.Product{mug, hat, hidden, empty}

	page := analytics.POSProducts(products, analytics.POSQuery{ActiveOnly: true, InStock: true, Limit: 100})
	require.Equal(t, 2, page.Total)
	assert.Equal(t, "p2", page.Items[0].ID)
	assert.Equal(t, "p1", page.Items[1].ID)
	assert.Equal(t, "8", page.Items[1].Price.String())
	assert.Equal(t, "10", products[0].Price.String(), "input is not modified")

	page = analytics.POSProducts(products, analytics.POSQuery{Search: " mug ", Limit: 100})
	assert.Equal(t, 3, page.Total)

	page = analytics.POSProducts(products, analytics.POSQuery{Search: "mug-1", ActiveOnly: true, InStock: true, Limit: 100})
	require.Equal(t, 1, page.Total)

	page = analytics.POSProducts(products, analytics.POSQuery{Offset: 1, Limit: 1})
	assert.Equal(t, 4, page.Total)
	require.Len(t, page.Items, 1)
}
