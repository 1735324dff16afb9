package models

import (
	"time"
)

// Transaction 支付下的交易明细（payment/refund/capture/void，追加写）
type Transaction struct {
	ID             uint      `gorm:"primarykey" json:"id"`                            // 主键
	PaymentID      uint      `gorm:"index;not null" json:"payment_id"`                // 支付ID
	Type           string    `gorm:"not null" json:"type"`                            // 交易类型
	Amount         Money     `gorm:"type:decimal(20,2);not null" json:"amount"`       // 交易金额
	GatewayRef     string    `gorm:"index" json:"gateway_ref"`                        // 网关流水号
	GatewayEventID *string   `gorm:"uniqueIndex" json:"gateway_event_id,omitempty"`   // 网关事件ID，去重锚点
	Payload        JSON      `gorm:"type:json" json:"payload"`                        // 网关原始数据
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                         // 创建时间
}

// TableName 指定表名
func (Transaction) TableName() string {
	return "transactions"
}
