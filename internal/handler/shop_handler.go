package handler

import (
	"strconv"

	"ewallet/internal/model"
	"ewallet/internal/service"
	"ewallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 套餐
// ============================================================

// ListPackages GET /api/v1/packages
func (h *Handler) ListPackages(c *gin.Context) {
	packages, err := h.svc.Packages.ListActive(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, packages)
}

// GetPackage GET /api/v1/packages/:id，下架的按不存在处理
func (h *Handler) GetPackage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pkg, err := h.svc.Packages.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		fail(c, err)
		return
	}
	if !pkg.IsActive {
		fail(c, service.ErrPackageNotFound)
		return
	}
	response.Success(c, pkg)
}

// ============================================================
// 购物车
// ============================================================

// GetCart GET /api/v1/cart
func (h *Handler) GetCart(c *gin.Context) {
	summary, err := h.svc.Cart.Summary(c.Request.Context(), currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, summary)
}

type AddCartItemRequest struct {
	PackageID int64 `json:"package_id" binding:"required,gt=0"`
	Quantity  int   `json:"quantity" binding:"required,gte=1,lte=100"`
}

// AddCartItem POST /api/v1/cart/items
func (h *Handler) AddCartItem(c *gin.Context) {
	var req AddCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	summary, err := h.svc.Cart.Add(c.Request.Context(), currentUserID(c), req.PackageID, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Package added to cart.", summary)
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"gte=0,lte=100"`
}

// UpdateCartItem PUT /api/v1/cart/items/:package_id，quantity 为 0 时移除
func (h *Handler) UpdateCartItem(c *gin.Context) {
	packageID, ok := paramID(c, "package_id")
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	summary, err := h.svc.Cart.Update(c.Request.Context(), currentUserID(c), packageID, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, summary)
}

// RemoveCartItem DELETE /api/v1/cart/items/:package_id
func (h *Handler) RemoveCartItem(c *gin.Context) {
	packageID, ok := paramID(c, "package_id")
	if !ok {
		return
	}
	summary, err := h.svc.Cart.Remove(c.Request.Context(), currentUserID(c), packageID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, summary)
}

// ClearCart DELETE /api/v1/cart
func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.svc.Cart.Clear(c.Request.Context(), currentUserID(c)); err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Cart cleared.", nil)
}

// ============================================================
// 下单 / 订单
// ============================================================

type CheckoutRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required,oneof=wallet bank_transfer e_wallet credit_card"`
	Notes         string `json:"notes" binding:"max=1000"`
}

// Checkout POST /api/v1/checkout
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.svc.Checkout.Checkout(c.Request.Context(), &service.CheckoutRequest{
		UserID:        currentUserID(c),
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		fail(c, err)
		return
	}

	msg := "Order placed. Awaiting payment confirmation."
	if order.IsPaid() {
		msg = "Order placed and paid."
	}
	response.SuccessWithMessage(c, msg, order)
}

// ListOrders GET /api/v1/orders?page=&per_page=
func (h *Handler) ListOrders(c *gin.Context) {
	var q PageQuery
	if !bindQuery(c, &q) {
		return
	}
	page, perPage := q.normalized()

	orders, total, err := h.svc.Orders.List(c.Request.Context(), currentUserID(c), page, perPage)
	if err != nil {
		fail(c, err)
		return
	}
	if orders == nil {
		orders = []*model.Order{}
	}
	response.Success(c, response.NewPage(orders, total, page, perPage))
}

// GetOrder GET /api/v1/orders/:id
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := h.svc.Orders.Get(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, order)
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=255"`
}

// CancelOrder POST /api/v1/orders/:id/cancel，已支付的订单原路退款
func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CancelOrderRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	order, err := h.svc.Orders.Cancel(c.Request.Context(), currentUserID(c), id, req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "Order cancelled.", order)
}

// ListNotifications GET /api/v1/notifications
func (h *Handler) ListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	messages, err := h.svc.Notifier.Recent(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		fail(c, err)
		return
	}
	if messages == nil {
		messages = []*model.OutboxMessage{}
	}
	response.Success(c, messages)
}
