package models

import (
	"time"

	"gorm.io/gorm"
)

// Coupon 优惠券
type Coupon struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                         // 主键
	Code           string         `gorm:"uniqueIndex;not null" json:"code"`                             // 优惠码（大写存储）
	Description    string         `gorm:"type:varchar(255)" json:"description"`                         // 描述
	Type           string         `gorm:"not null" json:"type"`                                         // 类型（fixed/percentage）
	Value          Money          `gorm:"type:decimal(20,2);not null" json:"value"`                     // 数值（固定金额或百分比）
	MinimumAmount  Money          `gorm:"type:decimal(20,2);not null;default:0" json:"minimum_amount"`  // 使用门槛（税前、运费前小计）
	MaximumDiscount Money         `gorm:"type:decimal(20,2);not null;default:0" json:"maximum_discount"` // 最大优惠金额（0 表示不封顶）
	UsageLimit     int            `gorm:"not null;default:0" json:"usage_limit"`                        // 总使用上限（0 表示不限制）
	PerUserLimit   int            `gorm:"not null;default:0" json:"per_user_limit"`                     // 每人使用上限（0 表示不限制）
	AllowedUserIDs UintArray      `gorm:"type:json" json:"allowed_user_ids"`                            // 用户白名单（空表示对所有用户开放）
	StartsAt       *time.Time     `gorm:"index" json:"starts_at"`                                       // 生效时间
	EndsAt         *time.Time     `gorm:"index" json:"ends_at"`                                         // 失效时间
	IsActive       bool           `gorm:"not null" json:"is_active"`                                    // 是否启用
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt      time.Time      `gorm:"index" json:"updated_at"`                                      // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                               // 软删除时间
}

// TableName 指定表名
func (Coupon) TableName() string {
	return "coupons"
}
