package service

import "errors"

// 通用错误
var (
	ErrValidation          = errors.New("validation failed")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrGatewayFailed       = errors.New("gateway request failed")
)

// 购物车错误
var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartEmpty        = errors.New("cart is empty")
	ErrCartItemNotFound = errors.New("cart item not found")
)

// 商品与库存错误
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrProductInactive   = errors.New("product inactive")
	ErrVariantNotFound   = errors.New("product variant not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// 优惠券错误
var (
	ErrCouponInvalid      = errors.New("coupon invalid")
	ErrCouponNotFound     = errors.New("coupon not found")
	ErrCouponInactive     = errors.New("coupon inactive")
	ErrCouponNotStarted   = errors.New("coupon not started")
	ErrCouponExpired      = errors.New("coupon expired")
	ErrCouponUsageLimit   = errors.New("coupon usage limit reached")
	ErrCouponPerUserLimit = errors.New("coupon per-user limit reached")
	ErrCouponNotAllowed   = errors.New("coupon not allowed for user")
	ErrCouponMinAmount    = errors.New("coupon minimum amount not met")
	ErrCouponAlreadyUsed  = errors.New("coupon already used for order")
)

// 地址与结算错误
var (
	ErrAddressNotFound       = errors.New("address not found")
	ErrShippingMethodInvalid = errors.New("shipping method invalid")
)

// 订单错误
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderStatusInvalid  = errors.New("order status transition invalid")
	ErrOrderNotCancellable = errors.New("order not cancellable")
)

// 支付错误
var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentMethodInvalid = errors.New("payment method invalid")
	ErrPaymentAmountInvalid = errors.New("payment amount invalid")
	ErrOrderAlreadyPaid     = errors.New("order already paid")
	ErrRefundNotAllowed     = errors.New("refund not allowed")
	ErrRefundAmountInvalid  = errors.New("refund amount invalid")
)
