package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/queue"
	"github.com/bazaar-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CheckoutService 结算服务（购物车转订单）
type CheckoutService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	variantRepo repository.ProductVariantRepository
	addressRepo repository.AddressRepository
	orderRepo   repository.OrderRepository
	usageRepo   repository.CouponUsageRepository
	couponSvc   *CouponService
	queueClient *queue.Client

	taxRate          decimal.Decimal
	standardShipping models.Money
	expressShipping  models.Money
	paymentWindow    time.Duration
	currency         string
}

// NewCheckoutService 创建结算服务
func NewCheckoutService(
	cfg *config.Config,
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	variantRepo repository.ProductVariantRepository,
	addressRepo repository.AddressRepository,
	orderRepo repository.OrderRepository,
	usageRepo repository.CouponUsageRepository,
	couponSvc *CouponService,
	queueClient *queue.Client,
) *CheckoutService {
	s := &CheckoutService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		variantRepo: variantRepo,
		addressRepo: addressRepo,
		orderRepo:   orderRepo,
		usageRepo:   usageRepo,
		couponSvc:   couponSvc,
		queueClient: queueClient,
		taxRate:     decimal.Zero,
		currency:    constants.SiteCurrencyDefault,
	}
	if cfg != nil {
		s.taxRate = parseRate(cfg.Checkout.TaxRate)
		s.standardShipping = parseAmount(cfg.Checkout.StandardShippingCost)
		s.expressShipping = parseAmount(cfg.Checkout.ExpressShippingCost)
		if cfg.Order.PaymentExpireMinutes > 0 {
			s.paymentWindow = time.Duration(cfg.Order.PaymentExpireMinutes) * time.Minute
		}
	}
	if s.paymentWindow <= 0 {
		s.paymentWindow = 30 * time.Minute
	}
	return s
}

func parseRate(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() {
		logger.Warnw("checkout_rate_invalid", "value", raw)
		return decimal.Zero
	}
	return rate
}

func parseAmount(raw string) models.Money {
	if raw == "" {
		return models.Money{}
	}
	amount, err := models.NewMoneyFromString(raw)
	if err != nil || amount.Decimal.IsNegative() {
		logger.Warnw("checkout_amount_invalid", "value", raw)
		return models.Money{}
	}
	return amount
}

// CheckoutInput 下单入参
type CheckoutInput struct {
	UserID            uint   `json:"-"`
	ShippingAddressID uint   `json:"shipping_address_id" binding:"required"`
	BillingAddressID  uint   `json:"billing_address_id"` // 0 表示与收货地址一致
	ShippingMethod    string `json:"shipping_method" binding:"required"`
	CouponCode        string `json:"coupon_code"` // 空则取购物车预占的优惠码
	CustomerNote      string `json:"customer_note"`
}

// Quote 结算金额明细（下单前预览）
type Quote struct {
	Subtotal       models.Money `json:"subtotal"`
	DiscountAmount models.Money `json:"discount_amount"`
	ShippingCost   models.Money `json:"shipping_cost"`
	TaxAmount      models.Money `json:"tax_amount"`
	TotalAmount    models.Money `json:"total_amount"`
	CouponCode     string       `json:"coupon_code,omitempty"`
}

// ShippingCost 根据配送方式取运费
func (s *CheckoutService) ShippingCost(method string) (models.Money, error) {
	switch method {
	case constants.ShippingMethodStandard:
		return s.standardShipping, nil
	case constants.ShippingMethodExpress:
		return s.expressShipping, nil
	default:
		return models.Money{}, ErrShippingMethodInvalid
	}
}

// buildQuote 计算金额明细。
// 税基为折后小计（小计减优惠），总额 = 小计 - 优惠 + 运费 + 税。
func (s *CheckoutService) buildQuote(subtotal, discount, shipping models.Money, couponCode string) Quote {
	taxable := subtotal.Decimal.Sub(discount.Decimal)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := taxable.Mul(s.taxRate).Round(2)
	total := taxable.Add(shipping.Decimal).Add(tax)
	return Quote{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		ShippingCost:   shipping,
		TaxAmount:      models.NewMoneyFromDecimal(tax),
		TotalAmount:    models.NewMoneyFromDecimal(total),
		CouponCode:     couponCode,
	}
}

// Preview 下单前金额预览（不落库，不占库存）
func (s *CheckoutService) Preview(ctx context.Context, userID uint, shippingMethod, couponCode string) (*Quote, error) {
	cart, err := s.cartRepo.GetByUser(userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	items, err := s.cartRepo.ListItems(cart.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}

	shipping, err := s.ShippingCost(shippingMethod)
	if err != nil {
		return nil, err
	}

	subtotal, _ := SumCartItems(items)
	if couponCode == "" {
		couponCode = s.couponSvc.AppliedCode(ctx, cart.ID)
	}

	discount := models.Money{}
	appliedCode := ""
	if couponCode != "" {
		coupon, err := s.couponSvc.Validate(couponCode, userID, subtotal)
		if err != nil {
			return nil, err
		}
		discount, err = s.couponSvc.Discount(coupon, subtotal)
		if err != nil {
			return nil, err
		}
		appliedCode = coupon.Code
	}

	quote := s.buildQuote(subtotal, discount, shipping, appliedCode)
	return &quote, nil
}

// Checkout 购物车转订单。
// 整个装配在单事务内完成：库存条件扣减、优惠券事务内复检、
// 订单与快照落库、核销事实、清空购物车；任一步失败全部回滚。
func (s *CheckoutService) Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if input.UserID == 0 {
		return nil, ErrValidation
	}

	cart, err := s.cartRepo.GetByUser(input.UserID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}

	shippingAddr, err := s.addressRepo.GetByIDAndUser(input.ShippingAddressID, input.UserID)
	if err != nil {
		return nil, err
	}
	if shippingAddr == nil {
		return nil, ErrAddressNotFound
	}
	billingAddressID := input.BillingAddressID
	if billingAddressID == 0 {
		billingAddressID = shippingAddr.ID
	} else if billingAddressID != shippingAddr.ID {
		billingAddr, err := s.addressRepo.GetByIDAndUser(billingAddressID, input.UserID)
		if err != nil {
			return nil, err
		}
		if billingAddr == nil {
			return nil, ErrAddressNotFound
		}
	}

	shipping, err := s.ShippingCost(input.ShippingMethod)
	if err != nil {
		return nil, err
	}

	couponCode := input.CouponCode
	if couponCode == "" {
		couponCode = s.couponSvc.AppliedCode(ctx, cart.ID)
	}

	now := time.Now()
	expiresAt := now.Add(s.paymentWindow)
	var order *models.Order

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		productRepo := s.productRepo.WithTx(tx)
		variantRepo := s.variantRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)
		usageRepo := s.usageRepo.WithTx(tx)

		items, err := cartRepo.ListItems(cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrCartEmpty
		}

		subtotal := decimal.Zero
		orderItems := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			if item.Product == nil {
				return ErrProductNotFound
			}
			if !item.Product.IsActive {
				return ErrProductInactive
			}
			if item.VariantID != nil {
				if item.Variant == nil || !item.Variant.IsActive {
					return ErrVariantNotFound
				}
			}

			// 条件扣减：WHERE 守卫保证不会扣成负数，零行即并发下被抢光。
			if item.Variant != nil {
				if item.Variant.TrackQuantity {
					rows, err := variantRepo.DecrementStock(item.Variant.ID, item.Quantity)
					if err != nil {
						return err
					}
					if rows == 0 {
						return ErrInsufficientStock
					}
				}
			} else if item.Product.TrackQuantity {
				rows, err := productRepo.DecrementStock(item.Product.ID, item.Quantity)
				if err != nil {
					return err
				}
				if rows == 0 {
					return ErrInsufficientStock
				}
			}

			unitPrice := item.UnitPrice()
			line := unitPrice.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity)))
			subtotal = subtotal.Add(line)

			image := ""
			if len(item.Product.Images) > 0 {
				image = item.Product.Images[0]
			}
			sku := item.Product.SKU
			name := item.Product.Name
			if item.Variant != nil {
				if item.Variant.SKU != "" {
					sku = item.Variant.SKU
				}
				name = fmt.Sprintf("%s - %s", item.Product.Name, item.Variant.Name)
			}
			orderItems = append(orderItems, models.OrderItem{
				ProductID:    item.ProductID,
				VariantID:    item.VariantID,
				ProductName:  name,
				ProductSKU:   sku,
				ProductImage: image,
				UnitPrice:    unitPrice,
				Quantity:     item.Quantity,
				TotalPrice:   models.NewMoneyFromDecimal(line),
			})
		}

		subtotalMoney := models.NewMoneyFromDecimal(subtotal)
		discount := models.Money{}
		var coupon *models.Coupon
		if couponCode != "" {
			coupon, err = s.couponSvc.ValidateWithTx(tx, couponCode, input.UserID, subtotalMoney)
			if err != nil {
				return err
			}
			discount, err = s.couponSvc.Discount(coupon, subtotalMoney)
			if err != nil {
				return err
			}
		}

		quote := s.buildQuote(subtotalMoney, discount, shipping, couponCode)

		order = &models.Order{
			OrderNo:           generateOrderNo(),
			UserID:            input.UserID,
			Status:            constants.OrderStatusPending,
			PaymentStatus:     constants.OrderPaymentStatusUnpaid,
			Currency:          s.currency,
			Subtotal:          quote.Subtotal,
			ShippingCost:      quote.ShippingCost,
			TaxAmount:         quote.TaxAmount,
			DiscountAmount:    quote.DiscountAmount,
			TotalAmount:       quote.TotalAmount,
			ShippingAddressID: shippingAddr.ID,
			BillingAddressID:  billingAddressID,
			ShippingMethod:    input.ShippingMethod,
			CustomerNote:      input.CustomerNote,
			ExpiresAt:         &expiresAt,
		}
		if coupon != nil {
			order.CouponID = &coupon.ID
			order.CouponCode = coupon.Code
		}
		if err := orderRepo.Create(order, orderItems); err != nil {
			return err
		}
		order.Items = orderItems

		if coupon != nil {
			usage := &models.CouponUsage{
				CouponID:       coupon.ID,
				UserID:         input.UserID,
				OrderID:        order.ID,
				DiscountAmount: discount,
			}
			if err := usageRepo.Create(usage); err != nil {
				// 唯一索引兜底并发下的重复核销
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrCouponAlreadyUsed
				}
				return err
			}
		}

		history := &models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    constants.OrderStatusPending,
			Notes:     "order placed",
			CreatedBy: fmt.Sprintf("user:%d", input.UserID),
		}
		if err := orderRepo.AppendHistory(history); err != nil {
			return err
		}

		return cartRepo.ClearItems(cart.ID)
	})
	if err != nil {
		return nil, err
	}

	if err := s.couponSvc.RemoveFromCart(ctx, cart.ID); err != nil {
		logger.Warnw("checkout_state_clear_failed", "cart_id", cart.ID, "error", err)
	}
	if err := s.queueClient.EnqueueOrderTimeoutCancel(
		queue.OrderTimeoutCancelPayload{OrderID: order.ID},
		time.Until(expiresAt),
	); err != nil {
		logger.Warnw("order_timeout_task_enqueue_failed", "order_id", order.ID, "error", err)
	}

	logger.Infow("order_created",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"user_id", input.UserID,
		"total_amount", order.TotalAmount.String(),
		"coupon_code", order.CouponCode,
		"expires_at", expiresAt,
	)
	return order, nil
}

// generateOrderNo 生成订单编号：BZ + 时间戳 + 6 位随机数
func generateOrderNo() string {
	suffix, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		suffix = big.NewInt(time.Now().UnixNano() % 1000000)
	}
	return fmt.Sprintf("BZ%s%06d", time.Now().Format("20060102150405"), suffix.Int64())
}
