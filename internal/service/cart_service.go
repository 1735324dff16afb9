package service

import (
	"strings"
	"time"

	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartService 购物车服务
type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	variantRepo repository.ProductVariantRepository
}

// NewCartService 创建购物车服务
func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	variantRepo repository.ProductVariantRepository,
) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		variantRepo: variantRepo,
	}
}

// CartSummary 购物车汇总
type CartSummary struct {
	Cart      *models.Cart      `json:"cart"`
	Items     []models.CartItem `json:"items"`
	Subtotal  models.Money      `json:"subtotal"`
	ItemCount int               `json:"item_count"`
}

// GetOrCreateCart 获取或创建购物车。
// 登录用户带游客会话键访问时，游客购物车并入用户购物车后删除。
func (s *CartService) GetOrCreateCart(userID uint, sessionKey string) (*models.Cart, error) {
	sessionKey = strings.TrimSpace(sessionKey)

	if userID == 0 {
		if sessionKey == "" {
			return nil, ErrCartNotFound
		}
		cart, err := s.cartRepo.GetBySessionKey(sessionKey)
		if err != nil {
			return nil, err
		}
		if cart != nil {
			return cart, nil
		}
		cart = &models.Cart{SessionKey: &sessionKey}
		if err := s.cartRepo.Create(cart); err != nil {
			return nil, err
		}
		return cart, nil
	}

	cart, err := s.cartRepo.GetByUser(userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &models.Cart{UserID: &userID}
		if err := s.cartRepo.Create(cart); err != nil {
			return nil, err
		}
	}

	if sessionKey != "" {
		guestCart, err := s.cartRepo.GetBySessionKey(sessionKey)
		if err != nil {
			return nil, err
		}
		if guestCart != nil && guestCart.ID != cart.ID {
			if err := s.mergeCarts(cart, guestCart); err != nil {
				return nil, err
			}
		}
	}
	return cart, nil
}

// mergeCarts 将游客购物车并入用户购物车（同商品同变体数量相加），随后删除游客购物车。
func (s *CartService) mergeCarts(userCart, guestCart *models.Cart) error {
	return models.DB.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)

		guestItems, err := cartRepo.ListItems(guestCart.ID)
		if err != nil {
			return err
		}
		for _, guestItem := range guestItems {
			existing, err := cartRepo.GetItem(userCart.ID, guestItem.ProductID, guestItem.VariantID)
			if err != nil {
				return err
			}
			if existing != nil {
				if err := cartRepo.UpdateItemQuantity(existing.ID, existing.Quantity+guestItem.Quantity); err != nil {
					return err
				}
				continue
			}
			merged := models.CartItem{
				CartID:    userCart.ID,
				ProductID: guestItem.ProductID,
				VariantID: guestItem.VariantID,
				Quantity:  guestItem.Quantity,
			}
			if err := cartRepo.CreateItem(&merged); err != nil {
				return err
			}
		}
		if err := cartRepo.Delete(guestCart.ID); err != nil {
			return err
		}
		logger.Infow("cart_merged",
			"user_cart_id", userCart.ID,
			"guest_cart_id", guestCart.ID,
			"item_count", len(guestItems),
		)
		return nil
	})
}

// Summary 获取购物车汇总（按当前生效价格折算）
func (s *CartService) Summary(cart *models.Cart) (*CartSummary, error) {
	if cart == nil {
		return nil, ErrCartNotFound
	}
	items, err := s.cartRepo.ListItems(cart.ID)
	if err != nil {
		return nil, err
	}
	subtotal, count := SumCartItems(items)
	return &CartSummary{
		Cart:      cart,
		Items:     items,
		Subtotal:  subtotal,
		ItemCount: count,
	}, nil
}

// SumCartItems 按当前价格折算小计与件数（纯函数，不触发 IO）
func SumCartItems(items []models.CartItem) (models.Money, int) {
	subtotal := decimal.Zero
	count := 0
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		line := item.UnitPrice().Decimal.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
		count += item.Quantity
	}
	return models.NewMoneyFromDecimal(subtotal), count
}

// AddItem 添加购物车项（同商品同变体数量累加）
func (s *CartService) AddItem(cart *models.Cart, productID uint, variantID *uint, quantity int) (*models.CartItem, error) {
	if cart == nil {
		return nil, ErrCartNotFound
	}
	if quantity <= 0 {
		return nil, ErrValidation
	}

	product, variant, err := s.resolvePurchasable(productID, variantID)
	if err != nil {
		return nil, err
	}

	existing, err := s.cartRepo.GetItem(cart.ID, productID, variantID)
	if err != nil {
		return nil, err
	}
	targetQuantity := quantity
	if existing != nil {
		targetQuantity += existing.Quantity
	}
	if err := checkAvailability(product, variant, targetQuantity); err != nil {
		return nil, err
	}

	if existing != nil {
		if err := s.cartRepo.UpdateItemQuantity(existing.ID, targetQuantity); err != nil {
			return nil, err
		}
		existing.Quantity = targetQuantity
		existing.UpdatedAt = time.Now()
		return existing, nil
	}

	item := &models.CartItem{
		CartID:    cart.ID,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  quantity,
	}
	if err := s.cartRepo.CreateItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItemQuantity 更新购物车项数量（0 视为删除）
func (s *CartService) UpdateItemQuantity(cart *models.Cart, itemID uint, quantity int) error {
	if cart == nil {
		return ErrCartNotFound
	}
	if quantity < 0 {
		return ErrValidation
	}

	items, err := s.cartRepo.ListItems(cart.ID)
	if err != nil {
		return err
	}
	var target *models.CartItem
	for i := range items {
		if items[i].ID == itemID {
			target = &items[i]
			break
		}
	}
	if target == nil {
		return ErrCartItemNotFound
	}

	if quantity == 0 {
		return s.cartRepo.DeleteItem(cart.ID, itemID)
	}

	product, variant, err := s.resolvePurchasable(target.ProductID, target.VariantID)
	if err != nil {
		return err
	}
	if err := checkAvailability(product, variant, quantity); err != nil {
		return err
	}
	return s.cartRepo.UpdateItemQuantity(itemID, quantity)
}

// RemoveItem 删除购物车项
func (s *CartService) RemoveItem(cart *models.Cart, itemID uint) error {
	if cart == nil {
		return ErrCartNotFound
	}
	return s.cartRepo.DeleteItem(cart.ID, itemID)
}

// Clear 清空购物车
func (s *CartService) Clear(cart *models.Cart) error {
	if cart == nil {
		return ErrCartNotFound
	}
	return s.cartRepo.ClearItems(cart.ID)
}

func (s *CartService) resolvePurchasable(productID uint, variantID *uint) (*models.Product, *models.ProductVariant, error) {
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, nil, err
	}
	if product == nil {
		return nil, nil, ErrProductNotFound
	}
	if !product.IsActive {
		return nil, nil, ErrProductInactive
	}

	var variant *models.ProductVariant
	if variantID != nil {
		variant, err = s.variantRepo.GetByID(*variantID)
		if err != nil {
			return nil, nil, err
		}
		if variant == nil || variant.ProductID != product.ID {
			return nil, nil, ErrVariantNotFound
		}
		if !variant.IsActive {
			return nil, nil, ErrVariantNotFound
		}
	}
	return product, variant, nil
}

// checkAvailability 校验目标数量是否超过可购库存（仅跟踪库存的行受限）
func checkAvailability(product *models.Product, variant *models.ProductVariant, quantity int) error {
	if variant != nil {
		if variant.TrackQuantity && quantity > variant.Quantity {
			return ErrInsufficientStock
		}
		return nil
	}
	if product.TrackQuantity && quantity > product.Quantity {
		return ErrInsufficientStock
	}
	return nil
}
