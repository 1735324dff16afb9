package models

import (
	"time"
)

// Payment 支付流水（账本记录，不做软删除）
type Payment struct {
	ID             uint       `gorm:"primarykey" json:"id"`                                          // 主键
	OrderID        uint       `gorm:"index;not null" json:"order_id"`                                // 订单ID
	Method         string     `gorm:"not null" json:"method"`                                        // 支付方式（credit_card/paypal/cash_on_delivery/bank_transfer）
	Amount         Money      `gorm:"type:decimal(20,2);not null" json:"amount"`                     // 支付金额
	RefundedAmount Money      `gorm:"type:decimal(20,2);not null;default:0" json:"refunded_amount"`  // 已退款金额
	Currency       string     `gorm:"not null" json:"currency"`                                      // 币种
	Status         string     `gorm:"index;not null" json:"status"`                                  // 支付状态
	GatewayRef     string     `gorm:"index" json:"gateway_ref"`                                      // 网关流水号
	GatewayPayload JSON       `gorm:"type:json" json:"gateway_payload"`                              // 网关回执数据
	FailureReason  string     `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`             // 失败原因
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt      time.Time  `gorm:"index" json:"updated_at"`                                       // 更新时间
	CompletedAt    *time.Time `gorm:"index" json:"completed_at"`                                     // 完成时间

	Transactions []Transaction `gorm:"foreignKey:PaymentID" json:"transactions,omitempty"` // 交易明细
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}
