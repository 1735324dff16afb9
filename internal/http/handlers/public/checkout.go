package public

import (
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/service"

	"github.com/gin-gonic/gin"
)

// PreviewCheckoutRequest 结算预览请求
type PreviewCheckoutRequest struct {
	ShippingMethod string `json:"shipping_method" binding:"required"`
	CouponCode     string `json:"coupon_code"`
}

// PreviewCheckout 结算金额预览（不落库、不扣库存）
func (h *Handler) PreviewCheckout(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req PreviewCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	quote, err := h.CheckoutService.Preview(c.Request.Context(), uid, req.ShippingMethod, req.CouponCode)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, quote)
}

// CreateOrder 提交结算生成订单
func (h *Handler) CreateOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var input service.CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	input.UserID = uid

	order, err := h.CheckoutService.Checkout(c.Request.Context(), input)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, order)
}
