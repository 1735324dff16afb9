package cache

import (
	"context"
	"fmt"
	"time"
)

const defaultCheckoutStateTTL = 30 * time.Minute

// CheckoutState 结算会话状态
// 保存购物车上预占的优惠码，属于临时会话数据，只进 Redis 不落库。
// 订单创建时以数据库内容为准重新校验，该状态仅用于预览。
type CheckoutState struct {
	CartID     uint   `json:"cart_id"`
	CouponCode string `json:"coupon_code"`
	AppliedAt  int64  `json:"applied_at"`
}

func checkoutStateKey(cartID uint) string {
	return fmt.Sprintf("checkout:cart:%d", cartID)
}

// GetCheckoutState 获取结算会话状态
func GetCheckoutState(ctx context.Context, cartID uint) (*CheckoutState, bool, error) {
	if cartID == 0 {
		return nil, false, nil
	}
	var state CheckoutState
	hit, err := GetJSON(ctx, checkoutStateKey(cartID), &state)
	if err != nil || !hit {
		return nil, hit, err
	}
	return &state, true, nil
}

// SetCheckoutState 写入结算会话状态
func SetCheckoutState(ctx context.Context, state *CheckoutState, ttl time.Duration) error {
	if state == nil || state.CartID == 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultCheckoutStateTTL
	}
	if state.AppliedAt == 0 {
		state.AppliedAt = time.Now().Unix()
	}
	return SetJSON(ctx, checkoutStateKey(state.CartID), state, ttl)
}

// DelCheckoutState 删除结算会话状态
func DelCheckoutState(ctx context.Context, cartID uint) error {
	if cartID == 0 {
		return nil
	}
	return Del(ctx, checkoutStateKey(cartID))
}
