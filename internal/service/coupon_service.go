package service

import (
	"context"
	"strings"
	"time"

	"github.com/bazaar-next/internal/cache"
	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CouponService 优惠券服务
type CouponService struct {
	couponRepo repository.CouponRepository
	usageRepo  repository.CouponUsageRepository
	couponTTL  time.Duration
}

// NewCouponService 创建优惠券服务
func NewCouponService(
	couponRepo repository.CouponRepository,
	usageRepo repository.CouponUsageRepository,
	couponTTLSeconds int,
) *CouponService {
	ttl := time.Duration(couponTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &CouponService{
		couponRepo: couponRepo,
		usageRepo:  usageRepo,
		couponTTL:  ttl,
	}
}

// Validate 按固定顺序校验优惠券可用性。
// 顺序：启用 → 时间窗口 → 总量上限 → 用户白名单 → 每人上限 → 小计门槛。
// 门槛基数为税前、运费前的商品小计。
func (s *CouponService) Validate(code string, userID uint, subtotal models.Money) (*models.Coupon, error) {
	return s.validate(s.couponRepo, s.usageRepo, code, userID, subtotal, time.Now())
}

// ValidateWithTx 在事务内重新校验优惠券（下单路径使用）
func (s *CouponService) ValidateWithTx(tx *gorm.DB, code string, userID uint, subtotal models.Money) (*models.Coupon, error) {
	return s.validate(s.couponRepo.WithTx(tx), s.usageRepo.WithTx(tx), code, userID, subtotal, time.Now())
}

func (s *CouponService) validate(
	couponRepo repository.CouponRepository,
	usageRepo repository.CouponUsageRepository,
	code string,
	userID uint,
	subtotal models.Money,
	now time.Time,
) (*models.Coupon, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, ErrCouponInvalid
	}

	coupon, err := couponRepo.GetByCode(trimmed)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, ErrCouponNotFound
	}
	if !coupon.IsActive {
		return coupon, ErrCouponInactive
	}

	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return coupon, ErrCouponNotStarted
	}
	if coupon.EndsAt != nil && now.After(*coupon.EndsAt) {
		return coupon, ErrCouponExpired
	}

	if coupon.UsageLimit > 0 {
		total, err := usageRepo.CountByCoupon(coupon.ID)
		if err != nil {
			return coupon, err
		}
		if int(total) >= coupon.UsageLimit {
			return coupon, ErrCouponUsageLimit
		}
	}

	if len(coupon.AllowedUserIDs) > 0 && !coupon.AllowedUserIDs.Contains(userID) {
		return coupon, ErrCouponNotAllowed
	}

	if coupon.PerUserLimit > 0 && userID != 0 {
		count, err := usageRepo.CountByUser(coupon.ID, userID)
		if err != nil {
			return coupon, err
		}
		if int(count) >= coupon.PerUserLimit {
			return coupon, ErrCouponPerUserLimit
		}
	}

	if subtotal.Decimal.Cmp(coupon.MinimumAmount.Decimal) < 0 {
		return coupon, ErrCouponMinAmount
	}

	return coupon, nil
}

// Discount 计算折扣金额。
// percentage 先按最大优惠封顶，两种类型最终都不超过小计。
func (s *CouponService) Discount(coupon *models.Coupon, subtotal models.Money) (models.Money, error) {
	if coupon == nil {
		return models.Money{}, ErrCouponInvalid
	}
	if coupon.Value.Decimal.LessThanOrEqual(decimal.Zero) {
		return models.Money{}, ErrCouponInvalid
	}

	var discount decimal.Decimal
	switch strings.ToLower(strings.TrimSpace(coupon.Type)) {
	case constants.CouponTypeFixed:
		discount = coupon.Value.Decimal
	case constants.CouponTypePercentage:
		percent := coupon.Value.Decimal.Div(decimal.NewFromInt(100))
		discount = subtotal.Decimal.Mul(percent)
		if coupon.MaximumDiscount.Decimal.GreaterThan(decimal.Zero) && discount.GreaterThan(coupon.MaximumDiscount.Decimal) {
			discount = coupon.MaximumDiscount.Decimal
		}
	default:
		return models.Money{}, ErrCouponInvalid
	}

	if discount.GreaterThan(subtotal.Decimal) {
		discount = subtotal.Decimal
	}
	return models.NewMoneyFromDecimal(discount), nil
}

// ApplyToCart 为购物车预占优惠码。
// 预占只写 Redis 会话状态，不产生核销事实；下单时一律重新校验。
func (s *CouponService) ApplyToCart(ctx context.Context, cartID uint, code string, userID uint, subtotal models.Money) (*models.Coupon, models.Money, error) {
	coupon, err := s.Validate(code, userID, subtotal)
	if err != nil {
		return coupon, models.Money{}, err
	}
	discount, err := s.Discount(coupon, subtotal)
	if err != nil {
		return coupon, models.Money{}, err
	}

	state := &cache.CheckoutState{
		CartID:     cartID,
		CouponCode: coupon.Code,
	}
	if err := cache.SetCheckoutState(ctx, state, s.couponTTL); err != nil {
		logger.Warnw("checkout_state_set_failed", "cart_id", cartID, "error", err)
	}
	return coupon, discount, nil
}

// RemoveFromCart 移除购物车上的预占优惠码
func (s *CouponService) RemoveFromCart(ctx context.Context, cartID uint) error {
	return cache.DelCheckoutState(ctx, cartID)
}

// AppliedCode 获取购物车上预占的优惠码（无预占返回空串）
func (s *CouponService) AppliedCode(ctx context.Context, cartID uint) string {
	state, hit, err := cache.GetCheckoutState(ctx, cartID)
	if err != nil {
		logger.Warnw("checkout_state_get_failed", "cart_id", cartID, "error", err)
		return ""
	}
	if !hit || state == nil {
		return ""
	}
	return state.CouponCode
}
