// Package handler provides the HTTP API of the shop backend.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/stevemurr/shopstore/db"
	"github.com/stevemurr/shopstore/model"
	"github.com/stevemurr/shopstore/schema"
	"github.com/stevemurr/shopstore/store"
)

// Options configure a Handler.
type Options struct {
	// Location defines calendar days for reports. Defaults to time.Local.
	Location *time.Location
	// AllowedOrigins lists CORS origins; "*" allows any. Defaults to "*".
	AllowedOrigins []string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	db     *db.DB
	log    *zap.SugaredLogger
	loc    *time.Location
	now    func() time.Time
	engine *gin.Engine

	orders       *db.Collection[model.Order, *model.Order]
	orderItems   *db.Collection[model.OrderItem, *model.OrderItem]
	products     *db.Collection[model.Product, *model.Product]
	categories   *db.Collection[model.Category, *model.Category]
	inventory    *db.Collection[model.Inventory, *model.Inventory]
	users        *db.Collection[model.User, *model.User]
	coupons      *db.Collection[model.Coupon, *model.Coupon]
	subscribers  *db.Collection[model.NewsletterSubscription, *model.NewsletterSubscription]
	supportInbox *db.Collection[model.SupportMessage, *model.SupportMessage]

	// recordChecks holds, per typed collection, a check that a document
	// decodes into its record type.
	recordChecks map[string]func(store.Document) error
}

// New creates a Handler and wires up all routes.
func New(d *db.DB, opts Options, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	h := &Handler{
		db:  d,
		log: log,
		loc: opts.Location,
		now: opts.Now,

		orders:       db.NewCollection[model.Order](d, model.Orders),
		orderItems:   db.NewCollection[model.OrderItem](d, model.OrderItems),
		products:     db.NewCollection[model.Product](d, model.Products),
		categories:   db.NewCollection[model.Category](d, model.Categories),
		inventory:    db.NewCollection[model.Inventory](d, model.InventoryItems),
		users:        db.NewCollection[model.User](d, model.Users),
		coupons:      db.NewCollection[model.Coupon](d, model.Coupons),
		subscribers:  db.NewCollection[model.NewsletterSubscription](d, model.NewsletterSubscriptions),
		supportInbox: db.NewCollection[model.SupportMessage](d, model.SupportMessages),
	}
	h.recordChecks = map[string]func(store.Document) error{
		model.Orders:                  h.orders.Check,
		model.OrderItems:              h.orderItems.Check,
		model.Products:                h.products.Check,
		model.Categories:              h.categories.Check,
		model.InventoryItems:          h.inventory.Check,
		model.Users:                   h.users.Check,
		model.Coupons:                 h.coupons.Check,
		model.NewsletterSubscriptions: h.subscribers.Check,
		model.SupportMessages:         h.supportInbox.Check,
	}

	h.engine = gin.New()
	h.engine.Use(ginzap.Ginzap(log.Desugar(), time.RFC3339, true))
	h.engine.Use(ginzap.RecoveryWithZap(log.Desugar(), true))
	h.engine.Use(cors(opts.AllowedOrigins))
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.engine.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	r := h.engine

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))
	health.AddReadinessCheck("store", h.storeReady)
	r.GET("/live", gin.WrapF(health.LiveEndpoint))
	r.GET("/ready", gin.WrapF(health.ReadyEndpoint))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", h.health)

	// Generic collection endpoints
	api.GET("/collections", h.listCollections)
	api.GET("/collections/:collection/items", h.listItems)
	api.POST("/collections/:collection/items", h.createItem)
	api.GET("/collections/:collection/items/:id", h.getItem)
	api.PATCH("/collections/:collection/items/:id", h.updateItem)
	api.DELETE("/collections/:collection/items/:id", h.deleteItem)

	// Schemas
	api.GET("/schemas", h.listSchemas)
	api.GET("/schemas/:collection", h.getSchema)
	api.PUT("/schemas/:collection", h.putSchema)
	api.DELETE("/schemas/:collection", h.deleteSchema)

	admin := api.Group("/admin")
	admin.GET("/analytics", h.salesBySource)
	admin.GET("/analytics/products", h.productSales)
	admin.GET("/analytics/dashboard", h.dashboard)
	admin.GET("/analytics/recent-orders", h.recentOrders)
	admin.GET("/cashiers/stats", h.cashierStats)
	admin.GET("/users", h.listUsers)
	admin.DELETE("/products/:id", h.deleteProduct)
	api.DELETE("/products/images/:imageId", h.deleteProductImage)

	pos := api.Group("/pos")
	pos.POST("/orders", h.createPOSOrder)
	pos.GET("/orders/:id", h.posOrder)
	pos.GET("/receipts/:id", h.posReceipt)
	pos.GET("/products", h.posProducts)
	pos.GET("/inventory", h.posInventory)

	api.GET("/products/slug/:slug", h.productBySlug)
	api.POST("/coupons/validate", h.validateCoupon)
	api.POST("/newsletter/subscribe", h.subscribe)
	api.POST("/support", h.createSupportMessage)
	api.GET("/telegram/orders", h.telegramOrders)
}

func (h *Handler) storeReady() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := h.db.Collections(ctx)
	return err
}

// ---------- helpers ----------

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func failWith(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// fail translates a store error into a response. Server-side failures are
// logged and reported without details.
func (h *Handler) fail(c *gin.Context, err error) {
	var verr *schema.ValidationError
	switch {
	case errors.Is(err, db.ErrNotFound):
		failWith(c, http.StatusNotFound, err.Error())
	case errors.Is(err, db.ErrDuplicateID):
		failWith(c, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, db.ErrInvalidID), errors.Is(err, errRecordShape):
		failWith(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &verr):
		failWith(c, http.StatusUnprocessableEntity, "schema validation failed: "+verr.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		failWith(c, http.StatusServiceUnavailable, "request cancelled")
	default:
		h.log.Errorw("Internal server error",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		failWith(c, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) health(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// cors adds CORS headers and answers preflight requests.
func cors(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	return func(c *gin.Context) {
		header := c.Writer.Header()
		origin := c.GetHeader("Origin")
		if allowAll {
			header.Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, o := range allowedOrigins {
				if strings.TrimSpace(o) == origin {
					header.Set("Access-Control-Allow-Origin", origin)
					header.Set("Vary", "Origin")
					break
				}
			}
		}
		header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		header.Set("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
