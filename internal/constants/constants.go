package constants

// 订单状态常量
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// 订单支付状态常量（从支付流水推导）
const (
	OrderPaymentStatusUnpaid            = "unpaid"
	OrderPaymentStatusPartiallyPaid     = "partially_paid"
	OrderPaymentStatusPaid              = "paid"
	OrderPaymentStatusPartiallyRefunded = "partially_refunded"
	OrderPaymentStatusRefunded          = "refunded"
)

// 支付状态常量
const (
	PaymentStatusPending           = "pending"
	PaymentStatusProcessing        = "processing"
	PaymentStatusCompleted         = "completed"
	PaymentStatusFailed            = "failed"
	PaymentStatusRefunded          = "refunded"
	PaymentStatusPartiallyRefunded = "partially_refunded"
)

// 支付方式常量
const (
	PaymentMethodCreditCard     = "credit_card"
	PaymentMethodPaypal         = "paypal"
	PaymentMethodCashOnDelivery = "cash_on_delivery"
	PaymentMethodBankTransfer   = "bank_transfer"
)

// 交易类型常量
const (
	TransactionTypePayment = "payment"
	TransactionTypeRefund  = "refund"
	TransactionTypeCapture = "capture"
	TransactionTypeVoid    = "void"
)

// 优惠券类型常量
const (
	CouponTypeFixed      = "fixed"
	CouponTypePercentage = "percentage"
)

// 配送方式常量
const (
	ShippingMethodStandard = "standard"
	ShippingMethodExpress  = "express"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 队列常量
const (
	QueueDefault           = "default"
	TaskOrderTimeoutCancel = "order:timeout_cancel"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "bz"
)

// 币种常量
const (
	SiteCurrencyDefault = "USD"
)
