package models

import (
	"time"
)

// OrderStatusHistory 订单状态轨迹（追加写，不更新）
type OrderStatusHistory struct {
	ID        uint      `gorm:"primarykey" json:"id"`               // 主键
	OrderID   uint      `gorm:"index;not null" json:"order_id"`     // 订单ID
	Status    string    `gorm:"not null" json:"status"`             // 进入的状态
	Notes     string    `gorm:"type:text" json:"notes"`             // 备注
	CreatedBy string    `gorm:"type:varchar(100)" json:"created_by"` // 操作者（user:<id> / system / gateway:<name>）
	CreatedAt time.Time `gorm:"index" json:"created_at"`            // 创建时间
}

// TableName 指定表名
func (OrderStatusHistory) TableName() string {
	return "order_status_histories"
}
