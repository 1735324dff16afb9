package public

import (
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreatePaymentRequest 发起支付请求
type CreatePaymentRequest struct {
	OrderID uint   `json:"order_id" binding:"required"`
	Method  string `json:"method" binding:"required"`
}

// RefundPaymentRequest 退款请求
type RefundPaymentRequest struct {
	Amount string `json:"amount" binding:"required"`
	Reason string `json:"reason"`
}

// CreatePayment 为订单发起一笔支付
func (h *Handler) CreatePayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	payment, err := h.PaymentService.CreatePayment(c.Request.Context(), req.OrderID, uid, req.Method)
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	response.Success(c, payment)
}

// ListOrderPayments 查询订单下的支付流水
func (h *Handler) ListOrderPayments(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	payments, err := h.PaymentService.ListByOrder(orderID, uid)
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	response.Success(c, payments)
}

// requirePaymentOwnership 校验支付流水归属当前用户
func (h *Handler) requirePaymentOwnership(c *gin.Context, paymentID, userID uint) (*models.Payment, bool) {
	payment, err := h.PaymentRepo.GetByID(paymentID)
	if err != nil {
		respondPaymentError(c, err)
		return nil, false
	}
	if payment == nil {
		respondPaymentError(c, service.ErrPaymentNotFound)
		return nil, false
	}
	order, err := h.OrderService.GetByIDAndUser(payment.OrderID, userID)
	if err != nil || order == nil {
		respondPaymentError(c, service.ErrPaymentNotFound)
		return nil, false
	}
	return payment, true
}

// GetPaymentTransactions 查询一笔支付的账务明细
func (h *Handler) GetPaymentTransactions(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	paymentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if _, ok := h.requirePaymentOwnership(c, paymentID, uid); !ok {
		return
	}
	transactions, err := h.PaymentService.Transactions(paymentID)
	if err != nil {
		respondPaymentError(c, err)
		return
	}
	response.Success(c, transactions)
}

// RefundPayment 对一笔支付发起（部分）退款
func (h *Handler) RefundPayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	paymentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	amount, err := models.NewMoneyFromString(req.Amount)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.refund_amount_invalid", nil)
		return
	}
	if _, ok := h.requirePaymentOwnership(c, paymentID, uid); !ok {
		return
	}
	payment, err := h.PaymentService.Refund(c.Request.Context(), paymentID, amount, req.Reason)
	if err != nil {
		respondRefundError(c, err)
		return
	}
	response.Success(c, payment)
}
