package models

import (
	"time"
)

// CouponUsage 优惠券核销事实（使用次数一律由该表推导）
type CouponUsage struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                         // 主键
	CouponID       uint      `gorm:"not null;uniqueIndex:idx_usage_coupon_user_order" json:"coupon_id"` // 优惠券ID
	UserID         uint      `gorm:"not null;uniqueIndex:idx_usage_coupon_user_order" json:"user_id"`   // 用户ID
	OrderID        uint      `gorm:"not null;uniqueIndex:idx_usage_coupon_user_order" json:"order_id"`  // 订单ID
	DiscountAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"` // 优惠金额
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                      // 创建时间
}

// TableName 指定表名
func (CouponUsage) TableName() string {
	return "coupon_usages"
}
