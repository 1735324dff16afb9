package public

import (
	"strconv"
	"time"

	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// CancelOrderRequest 取消订单请求
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return 0, false
	}
	return uint(id), true
}

// ListOrders 分页查询当前用户订单
func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.OrderListFilter{
		UserID:   uid,
		Status:   c.Query("status"),
		OrderNo:  c.Query("order_no"),
		Page:     page,
		PageSize: pageSize,
	}
	if raw := c.Query("created_from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.CreatedFrom = &t
		}
	}
	if raw := c.Query("created_to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.CreatedTo = &t
		}
	}

	orders, total, err := h.OrderService.ListByUser(filter)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.SuccessWithPage(c, orders, response.NewPagination(page, pageSize, total))
}

// GetOrder 获取订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderService.GetByIDAndUser(orderID, uid)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// GetOrderByOrderNo 根据订单号获取订单
func (h *Handler) GetOrderByOrderNo(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderNo := c.Param("order_no")
	order, err := h.OrderService.GetByOrderNoAndUser(orderNo, uid)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}

// GetOrderHistory 获取订单状态流转历史
func (h *Handler) GetOrderHistory(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	history, err := h.OrderService.History(orderID, uid)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, history)
}

// CancelOrder 用户主动取消订单
func (h *Handler) CancelOrder(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	order, err := h.OrderStatusService.CancelByUser(orderID, uid, req.Reason)
	if err != nil {
		respondOrderError(c, err)
		return
	}
	response.Success(c, order)
}
