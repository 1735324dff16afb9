package public

import (
	"io"

	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/service"

	"github.com/gin-gonic/gin"
)

// 网关回调路径段到支付方式的映射
var webhookGatewayMethods = map[string]string{
	"card":   constants.PaymentMethodCreditCard,
	"paypal": constants.PaymentMethodPaypal,
}

// PaymentWebhook 接收支付网关异步通知
func (h *Handler) PaymentWebhook(c *gin.Context) {
	method, ok := webhookGatewayMethods[c.Param("gateway")]
	if !ok {
		respondWebhookError(c, service.ErrPaymentMethodInvalid)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.webhook_payload_invalid", err)
		return
	}
	headers := make(map[string]string, len(c.Request.Header))
	for name := range c.Request.Header {
		headers[name] = c.GetHeader(name)
	}

	event, err := h.PaymentService.HandleWebhook(c.Request.Context(), method, headers, body)
	if err != nil {
		respondWebhookError(c, err)
		return
	}
	response.Success(c, gin.H{
		"gateway_ref": event.GatewayRef,
		"status":      event.Status,
	})
}
