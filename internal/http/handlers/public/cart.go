package public

import (
	"strconv"

	"github.com/bazaar-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// AddCartItemRequest 添加购物车项请求
type AddCartItemRequest struct {
	ProductID uint  `json:"product_id" binding:"required"`
	VariantID *uint `json:"variant_id"`
	Quantity  int   `json:"quantity" binding:"required"`
}

// UpdateCartItemRequest 更新购物车项请求
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart 获取购物车汇总
func (h *Handler) GetCart(c *gin.Context) {
	uid, sessionKey, ok := requireCartIdentity(c)
	if !ok {
		return
	}
	cart, err := h.CartService.GetOrCreateCart(uid, sessionKey)
	if err != nil {
		respondCartError(c, err)
		return
	}
	summary, err := h.CartService.Summary(cart)
	if err != nil {
		respondCartError(c, err)
		return
	}
	appliedCoupon := h.CouponService.AppliedCode(c.Request.Context(), cart.ID)
	response.Success(c, gin.H{
		"cart":        summary.Cart,
		"items":       summary.Items,
		"subtotal":    summary.Subtotal,
		"item_count":  summary.ItemCount,
		"coupon_code": appliedCoupon,
	})
}

// AddCartItem 添加购物车项
func (h *Handler) AddCartItem(c *gin.Context) {
	uid, sessionKey, ok := requireCartIdentity(c)
	if !ok {
		return
	}
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	cart, err := h.CartService.GetOrCreateCart(uid, sessionKey)
	if err != nil {
		respondCartError(c, err)
		return
	}
	item, err := h.CartService.AddItem(cart, req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, item)
}

// UpdateCartItem 更新购物车项数量（0 视为删除）
func (h *Handler) UpdateCartItem(c *gin.Context) {
	uid, sessionKey, ok := requireCartIdentity(c)
	if !ok {
		return
	}
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || itemID == 0 {
		respondError(c, response.CodeBadRequest, "error.cart_item_not_found", nil)
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	cart, err := h.CartService.GetOrCreateCart(uid, sessionKey)
	if err != nil {
		respondCartError(c, err)
		return
	}
	if err := h.CartService.UpdateItemQuantity(cart, uint(itemID), req.Quantity); err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": true})
}

// DeleteCartItem 删除购物车项
func (h *Handler) DeleteCartItem(c *gin.Context) {
	uid, sessionKey, ok := requireCartIdentity(c)
	if !ok {
		return
	}
	itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || itemID == 0 {
		respondError(c, response.CodeBadRequest, "error.cart_item_not_found", nil)
		return
	}
	cart, err := h.CartService.GetOrCreateCart(uid, sessionKey)
	if err != nil {
		respondCartError(c, err)
		return
	}
	if err := h.CartService.RemoveItem(cart, uint(itemID)); err != nil {
		respondCartError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// ClearCart 清空购物车
func (h *Handler) ClearCart(c *gin.Context) {
	uid, sessionKey, ok := requireCartIdentity(c)
	if !ok {
		return
	}
	cart, err := h.CartService.GetOrCreateCart(uid, sessionKey)
	if err != nil {
		respondCartError(c, err)
		return
	}
	if err := h.CartService.Clear(cart); err != nil {
		respondCartError(c, err)
		return
	}
	if err := h.CouponService.RemoveFromCart(c.Request.Context(), cart.ID); err != nil {
		respondError(c, response.CodeInternal, "error.cart_operation_failed", err)
		return
	}
	response.Success(c, gin.H{"cleared": true})
}
