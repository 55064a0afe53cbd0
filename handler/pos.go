package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/stevemurr/shopstore/analytics"
	"github.com/stevemurr/shopstore/db"
	"github.com/stevemurr/shopstore/model"
)

const (
	defaultPOSPageSize   = 100
	defaultPaymentMethod = "CASH"
)

type posOrderView struct {
	Order   model.Order        `json:"order"`
	Items   []model.OrderItem  `json:"items"`
	Cashier *model.PublicUser `json:"cashier"`
}

// loadPOSOrder fetches a till order with its lines and cashier. It writes the
// error response itself and reports false when the request is done.
func (h *Handler) loadPOSOrder(c *gin.Context) (model.Order, []model.OrderItem, *model.User, bool) {
	ctx := c.Request.Context()
	order, err := h.orders.Get(ctx, c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		failWith(c, http.StatusNotFound, "Order not found")
		return order, nil, nil, false
	}
	if err != nil {
		h.fail(c, err)
		return order, nil, nil, false
	}
	if !order.IsPOS() {
		failWith(c, http.StatusBadRequest, "Not a POS order")
		return order, nil, nil, false
	}

	items, err := h.orderItems.Filter(ctx, func(it model.OrderItem) bool { return it.OrderID == order.ID })
	if err != nil {
		h.fail(c, err)
		return order, nil, nil, false
	}

	var cashier *model.User
	if order.CashierID != "" {
		u, err := h.users.Get(ctx, order.CashierID)
		switch {
		case err == nil:
			cashier = &u
		case !errors.Is(err, db.ErrNotFound):
			h.fail(c, err)
			return order, nil, nil, false
		}
	}
	return order, items, cashier, true
}

type posOrderRequest struct {
	CashierID     string `json:"cashier_id"`
	PaymentMethod string `json:"paymentMethod"`
	Items         []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

// createPOSOrder records a completed till sale. Lines are priced at the till
// price and the order gets the next receipt number of the day.
func (h *Handler) createPOSOrder(c *gin.Context) {
	var req posOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CashierID == "" || len(req.Items) == 0 {
		failWith(c, http.StatusBadRequest, "cashier_id and items are required")
		return
	}
	ctx := c.Request.Context()

	cashier, err := h.users.Get(ctx, req.CashierID)
	if errors.Is(err, db.ErrNotFound) {
		failWith(c, http.StatusBadRequest, "Unknown cashier")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if !cashier.CanSell() {
		failWith(c, http.StatusForbidden, "User cannot take POS orders")
		return
	}

	products, err := h.products.All(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	items := make([]model.OrderItem, 0, len(req.Items))
	total := decimal.Zero
	for _, line := range req.Items {
		p, ok := byID[line.ProductID]
		if !ok || !p.AvailableForPOS() {
			failWith(c, http.StatusBadRequest, fmt.Sprintf("Product %q is not available", line.ProductID))
			return
		}
		if line.Quantity <= 0 {
			failWith(c, http.StatusBadRequest, "Quantity must be positive")
			return
		}
		it := model.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			SKU:         p.SKU,
			Quantity:    line.Quantity,
			Price:       p.POSPrice(),
		}
		items = append(items, it)
		total = total.Add(it.Subtotal())
	}

	method := req.PaymentMethod
	if method == "" {
		method = defaultPaymentMethod
	}
	now := h.now()
	order, err := h.orders.CreateFunc(ctx, func(existing []model.Order) (model.Order, error) {
		number := analytics.ReceiptNumber(existing, now, h.loc)
		o := model.Order{
			OrderNumber:   number,
			ReceiptNumber: number,
			CashierID:     cashier.ID,
			Source:        model.SourcePOS,
			Channel:       model.ChannelOffline,
			Status:        model.StatusCompleted,
			PaymentStatus: model.StatusPaid,
			PaymentMethod: method,
			Subtotal:      total,
			Discount:      decimal.Zero,
			Total:         total,
		}
		o.CreatedAt = now.UTC()
		return o, nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	for i := range items {
		items[i].OrderID = order.ID
		stored, err := h.orderItems.Create(ctx, items[i])
		if err != nil {
			h.log.Errorw("Failed to store POS order line",
				"order", order.ID,
				"product", items[i].ProductID,
				"error", err,
			)
			h.fail(c, err)
			return
		}
		items[i] = stored
	}
	h.log.Infow("POS order created", "order", order.ID, "receipt", order.ReceiptNumber, "cashier", cashier.ID)

	pub := cashier.Public()
	respond(c, http.StatusCreated, posOrderView{Order: order, Items: items, Cashier: &pub})
}

func (h *Handler) posOrder(c *gin.Context) {
	order, items, cashier, ok := h.loadPOSOrder(c)
	if !ok {
		return
	}
	view := posOrderView{Order: order, Items: items}
	if cashier != nil {
		pub := cashier.Public()
		view.Cashier = &pub
	}
	respond(c, http.StatusOK, view)
}

func (h *Handler) posReceipt(c *gin.Context) {
	order, items, cashier, ok := h.loadPOSOrder(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, analytics.BuildReceipt(order, items, cashier, h.loc))
}

// posProducts lists sellable products for the till. active=false and
// has_stock=false lift the default filters.
func (h *Handler) posProducts(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPOSPageSize)
	if err != nil {
		failWith(c, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		failWith(c, http.StatusBadRequest, err.Error())
		return
	}
	products, err := h.products.All(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	page := analytics.POSProducts(products, analytics.POSQuery{
		Search:     c.Query("search"),
		ActiveOnly: c.Query("active") != "false",
		InStock:    c.Query("has_stock") != "false",
		Offset:     offset,
		Limit:      limit,
	})
	respond(c, http.StatusOK, gin.H{
		"data": page.Items,
		"meta": gin.H{"total": page.Total, "limit": page.Limit, "offset": page.Offset},
	})
}

func (h *Handler) posInventory(c *gin.Context) {
	productID := c.Query("productId")
	rows, err := h.inventory.Filter(c.Request.Context(), func(inv model.Inventory) bool {
		return productID == "" || inv.ProductID == productID
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, rows)
}
