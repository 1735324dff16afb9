package repository

import "time"

// OrderListFilter 订单列表筛选
type OrderListFilter struct {
	UserID      uint
	Status      string
	OrderNo     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	PageSize    int
}

// CouponUsageListFilter 优惠券使用记录筛选
type CouponUsageListFilter struct {
	UserID   uint
	Page     int
	PageSize int
}
