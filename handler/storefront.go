package handler

import (
	"cmp"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/stevemurr/shopstore/analytics"
	"github.com/stevemurr/shopstore/db"
	"github.com/stevemurr/shopstore/model"
)

type productView struct {
	model.Product
	Category  *model.Category   `json:"category"`
	Inventory []model.Inventory `json:"inventory"`
}

func (h *Handler) productBySlug(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("slug")
	product, err := h.products.FindOne(ctx, func(p model.Product) bool { return p.Slug == slug })
	if errors.Is(err, db.ErrNotFound) {
		failWith(c, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.Debugw("Product found", "slug", slug, "id", product.ID)

	view := productView{Product: product}
	if product.CategoryID != "" {
		cat, err := h.categories.Get(ctx, product.CategoryID)
		switch {
		case err == nil:
			view.Category = &cat
		case !errors.Is(err, db.ErrNotFound):
			h.fail(c, err)
			return
		}
	}
	view.Inventory, err = h.inventory.Filter(ctx, func(inv model.Inventory) bool { return inv.ProductID == product.ID })
	if err != nil {
		h.fail(c, err)
		return
	}
	view.Images = db.SortBy(product.Images, func(a, b model.ProductImage) int { return cmp.Compare(a.Order, b.Order) })
	respond(c, http.StatusOK, view)
}

type couponView struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	Discount     decimal.Decimal `json:"discount"`
	DiscountType string          `json:"discountType"`
}

func (h *Handler) validateCoupon(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		failWith(c, http.StatusBadRequest, "Coupon code is required")
		return
	}
	coupon, err := h.coupons.FindOne(c.Request.Context(), func(cp model.Coupon) bool {
		return strings.EqualFold(cp.Code, req.Code)
	})
	if errors.Is(err, db.ErrNotFound) {
		failWith(c, http.StatusNotFound, "Coupon not found")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := coupon.Check(h.now()); err != nil {
		failWith(c, http.StatusBadRequest, err.Error())
		return
	}
	respond(c, http.StatusOK, gin.H{
		"valid": true,
		"coupon": couponView{
			ID:           coupon.ID,
			Code:         coupon.Code,
			Discount:     coupon.Discount,
			DiscountType: coupon.DiscountType,
		},
	})
}

// subscribe records a newsletter signup. The lowercased email doubles as the
// record id so a concurrent duplicate loses on ErrDuplicateID.
func (h *Handler) subscribe(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		failWith(c, http.StatusBadRequest, "Email is required")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	ctx := c.Request.Context()

	n, err := h.subscribers.Count(ctx, func(s model.NewsletterSubscription) bool {
		return strings.EqualFold(s.Email, email)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	sub := model.NewsletterSubscription{Email: email}
	sub.ID = email
	if n == 0 {
		sub, err = h.subscribers.Create(ctx, sub)
	}
	if n > 0 || errors.Is(err, db.ErrDuplicateID) {
		failWith(c, http.StatusBadRequest, "This email is already subscribed")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, sub)
}

func (h *Handler) createSupportMessage(c *gin.Context) {
	var req struct {
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Message == "" {
		failWith(c, http.StatusBadRequest, "Email and message are required")
		return
	}
	msg, err := h.supportInbox.Create(c.Request.Context(), model.SupportMessage{Email: req.Email, Message: req.Message})
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, msg)
}

// telegramOrders lists the orders of one Telegram user, newest first.
func (h *Handler) telegramOrders(c *gin.Context) {
	userID := c.Query("telegramUserId")
	if userID == "" {
		failWith(c, http.StatusBadRequest, "telegramUserId is required")
		return
	}
	orders, err := h.orders.Filter(c.Request.Context(), func(o model.Order) bool { return o.TelegramUserID == userID })
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, analytics.RecentOrders(orders, -1))
}
