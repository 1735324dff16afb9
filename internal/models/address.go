package models

import (
	"time"

	"gorm.io/gorm"
)

// Address 收货/账单地址
type Address struct {
	ID         uint           `gorm:"primarykey" json:"id"`                          // 主键
	UserID     uint           `gorm:"index;not null" json:"user_id"`                 // 所属用户ID
	FullName   string         `gorm:"type:varchar(200);not null" json:"full_name"`   // 收件人姓名
	Phone      string         `gorm:"type:varchar(50)" json:"phone"`                 // 联系电话
	Line1      string         `gorm:"type:varchar(255);not null" json:"line1"`       // 地址行 1
	Line2      string         `gorm:"type:varchar(255)" json:"line2"`                // 地址行 2
	City       string         `gorm:"type:varchar(100);not null" json:"city"`        // 城市
	State      string         `gorm:"type:varchar(100)" json:"state"`                // 省/州
	PostalCode string         `gorm:"type:varchar(20);not null" json:"postal_code"`  // 邮编
	Country    string         `gorm:"type:varchar(2);not null" json:"country"`       // 国家代码（ISO 3166-1 alpha-2）
	IsDefault  bool           `gorm:"not null;default:false" json:"is_default"`      // 是否默认地址
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                       // 创建时间
	UpdatedAt  time.Time      `json:"updated_at"`                                    // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                                // 软删除时间
}

// TableName 指定表名
func (Address) TableName() string {
	return "addresses"
}
