package models

import (
	"time"
)

// Order 订单表。财务账本不做软删除，取消走状态机。
type Order struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                         // 主键
	OrderNo           string     `gorm:"uniqueIndex;not null" json:"order_no"`                         // 订单编号
	UserID            uint       `gorm:"index;not null" json:"user_id"`                                // 用户ID
	Status            string     `gorm:"index;not null" json:"status"`                                 // 订单状态
	PaymentStatus     string     `gorm:"index;not null;default:'unpaid'" json:"payment_status"`        // 支付状态（从支付流水推导）
	Currency          string     `gorm:"not null" json:"currency"`                                     // 币种
	Subtotal          Money      `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`        // 商品小计
	ShippingCost      Money      `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_cost"`   // 运费
	TaxAmount         Money      `gorm:"type:decimal(20,2);not null;default:0" json:"tax_amount"`      // 税额
	DiscountAmount    Money      `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"` // 优惠金额
	TotalAmount       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`    // 实付金额
	CouponID          *uint      `gorm:"index" json:"coupon_id,omitempty"`                             // 优惠券ID
	CouponCode        string     `gorm:"type:varchar(50)" json:"coupon_code,omitempty"`                // 下单时的优惠码快照
	ShippingAddressID uint       `gorm:"not null" json:"shipping_address_id"`                          // 收货地址ID
	BillingAddressID  uint       `gorm:"not null" json:"billing_address_id"`                           // 账单地址ID
	ShippingMethod    string     `gorm:"type:varchar(20);not null" json:"shipping_method"`             // 配送方式
	TrackingNumber    string     `gorm:"type:varchar(100)" json:"tracking_number,omitempty"`           // 物流单号
	CustomerNote      string     `gorm:"type:text" json:"customer_note,omitempty"`                     // 买家备注
	ExpiresAt         *time.Time `gorm:"index" json:"expires_at"`                                      // 支付窗口截止时间
	PaidAt            *time.Time `gorm:"index" json:"paid_at"`                                         // 支付时间
	ShippedAt         *time.Time `gorm:"index" json:"shipped_at"`                                      // 发货时间（仅首次进入 shipped 时写入）
	DeliveredAt       *time.Time `gorm:"index" json:"delivered_at"`                                    // 送达时间（仅首次进入 delivered 时写入）
	CancelledAt       *time.Time `gorm:"index" json:"cancelled_at"`                                    // 取消时间
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt         time.Time  `gorm:"index" json:"updated_at"`                                      // 更新时间

	// 关联
	Items         []OrderItem          `gorm:"foreignKey:OrderID" json:"items,omitempty"`          // 订单项
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID" json:"status_history,omitempty"` // 状态轨迹
	Payments      []Payment            `gorm:"foreignKey:OrderID" json:"payments,omitempty"`       // 支付流水
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
