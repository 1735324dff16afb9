package models

import (
	"time"

	"gorm.io/gorm"
)

// Product 商品表
type Product struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                        // 主键
	Slug          string         `gorm:"uniqueIndex;not null" json:"slug"`                            // 唯一标识
	Name          string         `gorm:"type:varchar(255);not null" json:"name"`                      // 商品名称
	SKU           string         `gorm:"type:varchar(100);uniqueIndex" json:"sku"`                    // 商品编码
	Description   string         `gorm:"type:text" json:"description"`                                // 商品描述
	PriceAmount   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price_amount"`   // 售价
	CompareAmount Money          `gorm:"type:decimal(20,2);not null;default:0" json:"compare_amount"` // 划线价
	Images        StringArray    `gorm:"type:json" json:"images"`                                     // 图片数组
	TrackQuantity bool           `gorm:"not null" json:"track_quantity"`                              // 是否跟踪库存
	Quantity      int            `gorm:"not null;default:0" json:"quantity"`                          // 当前库存
	IsActive      bool           `gorm:"not null;index" json:"is_active"`                             // 是否上架
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt     time.Time      `json:"updated_at"`                                                  // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                              // 软删除时间

	// 关联
	Variants []ProductVariant `gorm:"foreignKey:ProductID" json:"variants,omitempty"` // 变体列表
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
