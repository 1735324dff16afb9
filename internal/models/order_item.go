package models

import (
	"time"
)

// OrderItem 订单项（下单时冻结的商品快照）
type OrderItem struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                       // 主键
	OrderID      uint      `gorm:"index;not null" json:"order_id"`                             // 订单ID
	ProductID    uint      `gorm:"index;not null" json:"product_id"`                           // 商品ID
	VariantID    *uint     `gorm:"index" json:"variant_id,omitempty"`                          // 变体ID（可空）
	ProductName  string    `gorm:"type:varchar(255);not null" json:"product_name"`             // 商品名称快照
	ProductSKU   string    `gorm:"type:varchar(100)" json:"product_sku"`                       // 商品编码快照
	ProductImage string    `gorm:"type:varchar(500)" json:"product_image"`                     // 商品主图快照
	UnitPrice    Money     `gorm:"type:decimal(20,2);not null" json:"unit_price"`              // 单价快照
	Quantity     int       `gorm:"not null" json:"quantity"`                                   // 数量
	TotalPrice   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"`   // 行小计（单价×数量）
	CreatedAt    time.Time `gorm:"index" json:"created_at"`                                    // 创建时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
