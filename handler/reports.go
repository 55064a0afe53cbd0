package handler

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/stevemurr/shopstore/analytics"
	"github.com/stevemurr/shopstore/db"
	"github.com/stevemurr/shopstore/model"
)

const defaultRecentOrders = 10

// orderFilter reads the date range and the optional source and payment
// method filters shared by the report endpoints.
func (h *Handler) orderFilter(c *gin.Context, fromKey, toKey string) (analytics.OrderFilter, error) {
	from, err := analytics.ParseDay(c.Query(fromKey), h.loc)
	if err != nil {
		return analytics.OrderFilter{}, err
	}
	to, err := analytics.ParseDay(c.Query(toKey), h.loc)
	if err != nil {
		return analytics.OrderFilter{}, err
	}
	return analytics.OrderFilter{
		Source:        c.Query("source"),
		PaymentMethod: c.Query("paymentMethod"),
		From:          from,
		To:            to,
	}, nil
}

// salesData is what most reports need, loaded concurrently.
type salesData struct {
	orders   []model.Order
	items    []model.OrderItem
	products []model.Product
	users    []model.User
}

func (h *Handler) loadSales(c *gin.Context, withProducts, withUsers bool) (salesData, error) {
	var data salesData
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() (err error) {
		data.orders, err = h.orders.All(ctx)
		return err
	})
	g.Go(func() (err error) {
		data.items, err = h.orderItems.All(ctx)
		return err
	})
	if withProducts {
		g.Go(func() (err error) {
			data.products, err = h.products.All(ctx)
			return err
		})
	}
	if withUsers {
		g.Go(func() (err error) {
			data.users, err = h.users.All(ctx)
			return err
		})
	}
	return data, g.Wait()
}

func (h *Handler) salesBySource(c *gin.Context) {
	filter, err := h.orderFilter(c, "startDate", "endDate")
	if err != nil {
		failWith(c, http.StatusBadRequest, err.Error())
		return
	}
	data, err := h.loadSales(c, false, false)
	if err != nil {
		h.fail(c, err)
		return
	}
	orders := analytics.FilterOrders(data.orders, filter)
	respond(c, http.StatusOK, analytics.GroupByDateSource(orders, data.items, h.loc))
}

func (h *Handler) productSales(c *gin.Context) {
	filter, err := h.orderFilter(c, "startDate", "endDate")
	if err != nil {
		failWith(c, http.StatusBadRequest, err.Error())
		return
	}
	data, err := h.loadSales(c, true, false)
	if err != nil {
		h.fail(c, err)
		return
	}
	orders := analytics.FilterOrders(data.orders, filter)
	respond(c, http.StatusOK, analytics.ProductSales(orders, data.items, data.products, h.loc))
}

func (h *Handler) cashierStats(c *gin.Context) {
	filter, err := h.orderFilter(c, "dateFrom", "dateTo")
	if err != nil {
		failWith(c, http.StatusBadRequest, err.Error())
		return
	}
	filter.CashierID = c.Query("cashierId")
	data, err := h.loadSales(c, true, true)
	if err != nil {
		h.fail(c, err)
		return
	}
	orders := analytics.FilterOrders(data.orders, filter)
	respond(c, http.StatusOK, analytics.CashierStats(orders, data.items, data.products, data.users))
}

// dashboard counts the smaller collections in the background while the
// orders are loaded.
func (h *Handler) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	products := h.products.Async().Count(ctx, nil)
	categories := h.categories.Async().Count(ctx, nil)
	users := h.users.Async().Count(ctx, nil)

	orders, err := h.orders.All(ctx)
	var counts analytics.Counts
	if err == nil {
		counts.Products, err = products.Await(ctx)
	}
	if err == nil {
		counts.Categories, err = categories.Await(ctx)
	}
	if err == nil {
		counts.Users, err = users.Await(ctx)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, analytics.Dashboard(orders, counts, h.now(), h.loc))
}

func (h *Handler) recentOrders(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultRecentOrders)
	if err != nil || limit < 0 {
		failWith(c, http.StatusBadRequest, "invalid limit")
		return
	}
	orders, err := h.orders.All(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, analytics.RecentOrders(orders, limit))
}

// listUsers returns every user without private fields, optionally filtered by role.
func (h *Handler) listUsers(c *gin.Context) {
	role := c.Query("role")
	users, err := h.users.Filter(c.Request.Context(), func(u model.User) bool {
		return role == "" || u.Role == role
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	respond(c, http.StatusOK, out)
}

// deleteProduct removes a product together with its inventory rows.
func (h *Handler) deleteProduct(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	removed, err := h.products.Remove(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !removed {
		h.fail(c, db.ErrNotFound)
		return
	}

	rows, err := h.inventory.Filter(ctx, func(inv model.Inventory) bool { return inv.ProductID == id })
	if err != nil {
		h.fail(c, err)
		return
	}
	var errs []error
	for _, row := range rows {
		if _, err := h.inventory.Remove(ctx, row.ID); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id, "deleted": true, "inventoryRemoved": len(rows)})
}

// deleteProductImage removes one image from the product that holds it.
func (h *Handler) deleteProductImage(c *gin.Context) {
	ctx := c.Request.Context()
	imageID := c.Param("imageId")
	isImage := func(img model.ProductImage) bool { return img.ID == imageID }

	product, err := h.products.FindOne(ctx, func(p model.Product) bool {
		return slices.ContainsFunc(p.Images, isImage)
	})
	if err == nil {
		_, err = h.products.UpdateFunc(ctx, product.ID, func(current model.Product) (db.Patch, error) {
			if !slices.ContainsFunc(current.Images, isImage) {
				return nil, fmt.Errorf("image %s: %w", imageID, db.ErrNotFound)
			}
			return db.Patch{
				"images":    slices.DeleteFunc(slices.Clone(current.Images), isImage),
				"updatedAt": h.now().UTC().Format(time.RFC3339Nano),
			}, nil
		})
	}
	if errors.Is(err, db.ErrNotFound) {
		failWith(c, http.StatusNotFound, "Image not found")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Image deleted successfully"})
}
