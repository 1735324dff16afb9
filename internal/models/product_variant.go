package models

import (
	"time"

	"gorm.io/gorm"
)

// ProductVariant 商品变体（规格）
type ProductVariant struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                      // 主键
	ProductID     uint           `gorm:"index;not null" json:"product_id"`                          // 商品ID
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`                    // 变体名称
	SKU           string         `gorm:"type:varchar(100);uniqueIndex" json:"sku"`                  // 变体编码
	PriceAmount   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price_amount"` // 变体售价（0 表示沿用商品价）
	TrackQuantity bool           `gorm:"not null" json:"track_quantity"`                            // 是否跟踪库存
	Quantity      int            `gorm:"not null;default:0" json:"quantity"`                        // 当前库存
	IsActive      bool           `gorm:"not null;index" json:"is_active"`                           // 是否启用
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt     time.Time      `json:"updated_at"`                                                // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                            // 软删除时间
}

// TableName 指定表名
func (ProductVariant) TableName() string {
	return "product_variants"
}
