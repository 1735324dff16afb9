package public

import (
	"github.com/bazaar-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ApplyCouponRequest 应用优惠码请求
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// ApplyCoupon 为购物车预占优惠码（仅会话状态，下单时重新校验）
func (h *Handler) ApplyCoupon(c *gin.Context) {
	uid, sessionKey, ok := requireCartIdentity(c)
	if !ok {
		return
	}
	var req ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
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

	coupon, discount, err := h.CouponService.ApplyToCart(c.Request.Context(), cart.ID, req.Code, uid, summary.Subtotal)
	if err != nil {
		respondCouponError(c, err)
		return
	}
	response.Success(c, gin.H{
		"coupon_code":     coupon.Code,
		"coupon_type":     coupon.Type,
		"discount_amount": discount,
		"subtotal":        summary.Subtotal,
	})
}

// RemoveCoupon 移除购物车上的优惠码
func (h *Handler) RemoveCoupon(c *gin.Context) {
	uid, sessionKey, ok := requireCartIdentity(c)
	if !ok {
		return
	}
	cart, err := h.CartService.GetOrCreateCart(uid, sessionKey)
	if err != nil {
		respondCartError(c, err)
		return
	}
	if err := h.CouponService.RemoveFromCart(c.Request.Context(), cart.ID); err != nil {
		respondError(c, response.CodeInternal, "error.coupon_apply_failed", err)
		return
	}
	response.Success(c, gin.H{"removed": true})
}
