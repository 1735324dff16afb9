package models

import (
	"time"

	"gorm.io/gorm"
)

// Cart 购物车（登录用户或游客会话二选一）
type Cart struct {
	ID         uint           `gorm:"primarykey" json:"id"`           // 主键
	UserID     *uint          `gorm:"uniqueIndex" json:"user_id"`     // 用户ID（游客为空）
	SessionKey *string        `gorm:"uniqueIndex" json:"session_key"` // 游客会话键（登录用户为空）
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`        // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`        // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                 // 软删除时间

	Items []CartItem `gorm:"foreignKey:CartID" json:"items,omitempty"` // 购物车项
}

// TableName 指定表名
func (Cart) TableName() string {
	return "carts"
}
