package public

import (
	"errors"

	"github.com/bazaar-next/internal/gateway"
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var cartErrorRules = []mappedHandlerError{
	{target: service.ErrCartNotFound, code: response.CodeNotFound, key: "error.cart_not_found"},
	{target: service.ErrCartItemNotFound, code: response.CodeNotFound, key: "error.cart_item_not_found"},
	{target: service.ErrProductNotFound, code: response.CodeNotFound, key: "error.product_not_found"},
	{target: service.ErrProductInactive, code: response.CodeBadRequest, key: "error.product_inactive"},
	{target: service.ErrVariantNotFound, code: response.CodeNotFound, key: "error.variant_not_found"},
	{target: service.ErrInsufficientStock, code: response.CodeBadRequest, key: "error.insufficient_stock"},
	{target: service.ErrValidation, code: response.CodeBadRequest, key: "error.bad_request"},
}

var couponErrorRules = []mappedHandlerError{
	{target: service.ErrCouponInvalid, code: response.CodeBadRequest, key: "error.coupon_invalid"},
	{target: service.ErrCouponNotFound, code: response.CodeBadRequest, key: "error.coupon_not_found"},
	{target: service.ErrCouponInactive, code: response.CodeBadRequest, key: "error.coupon_inactive"},
	{target: service.ErrCouponNotStarted, code: response.CodeBadRequest, key: "error.coupon_not_started"},
	{target: service.ErrCouponExpired, code: response.CodeBadRequest, key: "error.coupon_expired"},
	{target: service.ErrCouponUsageLimit, code: response.CodeBadRequest, key: "error.coupon_usage_limit"},
	{target: service.ErrCouponPerUserLimit, code: response.CodeBadRequest, key: "error.coupon_per_user_limit"},
	{target: service.ErrCouponNotAllowed, code: response.CodeBadRequest, key: "error.coupon_not_allowed"},
	{target: service.ErrCouponMinAmount, code: response.CodeBadRequest, key: "error.coupon_min_amount"},
	{target: service.ErrCouponAlreadyUsed, code: response.CodeConflict, key: "error.coupon_already_used"},
}

var checkoutErrorRules = []mappedHandlerError{
	{target: service.ErrCartNotFound, code: response.CodeNotFound, key: "error.cart_not_found"},
	{target: service.ErrCartEmpty, code: response.CodeBadRequest, key: "error.cart_empty"},
	{target: service.ErrAddressNotFound, code: response.CodeNotFound, key: "error.address_not_found"},
	{target: service.ErrShippingMethodInvalid, code: response.CodeBadRequest, key: "error.shipping_method_invalid"},
	{target: service.ErrProductNotFound, code: response.CodeBadRequest, key: "error.product_not_found"},
	{target: service.ErrProductInactive, code: response.CodeBadRequest, key: "error.product_inactive"},
	{target: service.ErrVariantNotFound, code: response.CodeBadRequest, key: "error.variant_not_found"},
	{target: service.ErrInsufficientStock, code: response.CodeBadRequest, key: "error.insufficient_stock"},
	{target: service.ErrConcurrencyConflict, code: response.CodeConflict, key: "error.concurrency_conflict"},
	{target: service.ErrValidation, code: response.CodeBadRequest, key: "error.bad_request"},
}

var orderErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrOrderStatusInvalid, code: response.CodeBadRequest, key: "error.order_status_invalid"},
	{target: service.ErrOrderNotCancellable, code: response.CodeBadRequest, key: "error.order_not_cancellable"},
}

var paymentErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrOrderStatusInvalid, code: response.CodeBadRequest, key: "error.order_status_invalid"},
	{target: service.ErrOrderAlreadyPaid, code: response.CodeBadRequest, key: "error.order_already_paid"},
	{target: service.ErrPaymentNotFound, code: response.CodeNotFound, key: "error.payment_not_found"},
	{target: service.ErrPaymentMethodInvalid, code: response.CodeBadRequest, key: "error.payment_method_invalid"},
	{target: service.ErrPaymentAmountInvalid, code: response.CodeBadRequest, key: "error.payment_amount_invalid"},
	{target: service.ErrGatewayFailed, code: response.CodeBadRequest, key: "error.gateway_failed"},
}

var refundErrorRules = []mappedHandlerError{
	{target: service.ErrPaymentNotFound, code: response.CodeNotFound, key: "error.payment_not_found"},
	{target: service.ErrRefundNotAllowed, code: response.CodeBadRequest, key: "error.refund_not_allowed"},
	{target: service.ErrRefundAmountInvalid, code: response.CodeBadRequest, key: "error.refund_amount_invalid"},
	{target: service.ErrGatewayFailed, code: response.CodeBadRequest, key: "error.gateway_failed"},
}

var webhookErrorRules = []mappedHandlerError{
	{target: gateway.ErrSignatureInvalid, code: response.CodeUnauthorized, key: "error.webhook_signature_invalid"},
	{target: gateway.ErrResponseInvalid, code: response.CodeBadRequest, key: "error.webhook_payload_invalid"},
	{target: service.ErrPaymentNotFound, code: response.CodeNotFound, key: "error.payment_not_found"},
	{target: service.ErrPaymentMethodInvalid, code: response.CodeNotFound, key: "error.payment_method_invalid"},
}

func respondCartError(c *gin.Context, err error) {
	respondWithMappedError(c, err, cartErrorRules, response.CodeInternal, "error.cart_operation_failed")
}

func respondCouponError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(couponErrorRules, cartErrorRules), response.CodeInternal, "error.coupon_apply_failed")
}

func respondCheckoutError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(checkoutErrorRules, couponErrorRules), response.CodeInternal, "error.order_create_failed")
}

func respondOrderError(c *gin.Context, err error) {
	respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "error.order_fetch_failed")
}

func respondPaymentError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentErrorRules, response.CodeInternal, "error.payment_failed")
}

func respondRefundError(c *gin.Context, err error) {
	respondWithMappedError(c, err, refundErrorRules, response.CodeInternal, "error.refund_failed")
}

func respondWebhookError(c *gin.Context, err error) {
	respondWithMappedError(c, err, webhookErrorRules, response.CodeInternal, "error.webhook_failed")
}
