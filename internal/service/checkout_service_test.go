package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/queue"
	"github.com/bazaar-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type checkoutTestEnv struct {
	db          *gorm.DB
	svc         *CheckoutService
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	variantRepo repository.ProductVariantRepository
	orderRepo   repository.OrderRepository
	usageRepo   repository.CouponUsageRepository
}

func setupCheckoutServiceTest(t *testing.T) *checkoutTestEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:checkout_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.Product{},
		&models.ProductVariant{},
		&models.Cart{},
		&models.CartItem{},
		&models.Coupon{},
		&models.CouponUsage{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	cartRepo := repository.NewCartRepository(db)
	productRepo := repository.NewProductRepository(db)
	variantRepo := repository.NewProductVariantRepository(db)
	addressRepo := repository.NewAddressRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	usageRepo := repository.NewCouponUsageRepository(db)
	couponSvc := NewCouponService(couponRepo, usageRepo, 0)

	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("new queue client failed: %v", err)
	}

	cfg := &config.Config{
		Checkout: config.CheckoutConfig{
			TaxRate:              "0",
			StandardShippingCost: "10",
			ExpressShippingCost:  "25",
		},
		Order: config.OrderConfig{PaymentExpireMinutes: 30},
	}
	svc := NewCheckoutService(cfg, cartRepo, productRepo, variantRepo, addressRepo, orderRepo, usageRepo, couponSvc, queueClient)

	return &checkoutTestEnv{
		db:          db,
		svc:         svc,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		variantRepo: variantRepo,
		orderRepo:   orderRepo,
		usageRepo:   usageRepo,
	}
}

func createCheckoutUser(t *testing.T, db *gorm.DB, email string) (*models.User, *models.Address) {
	t.Helper()
	user := models.User{Email: email, DisplayName: "Tester", Status: constants.UserStatusActive}
	if err := user.SetPassword("test-password"); err != nil {
		t.Fatalf("set password failed: %v", err)
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	address := models.Address{
		UserID:     user.ID,
		FullName:   "Tester",
		Line1:      "1 Test Street",
		City:       "Testville",
		PostalCode: "00000",
		Country:    "US",
		IsDefault:  true,
	}
	if err := db.Create(&address).Error; err != nil {
		t.Fatalf("create address failed: %v", err)
	}
	return &user, &address
}

func createCheckoutProduct(t *testing.T, db *gorm.DB, sku string, price float64, quantity int, track bool) *models.Product {
	t.Helper()
	product := models.Product{
		Slug:          strings.ToLower(sku),
		Name:          "Product " + sku,
		SKU:           sku,
		PriceAmount:   money(price),
		TrackQuantity: track,
		Quantity:      quantity,
		IsActive:      true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return &product
}

func createCartWithItem(t *testing.T, db *gorm.DB, userID uint, productID uint, variantID *uint, quantity int) *models.Cart {
	t.Helper()
	var cart models.Cart
	if err := db.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		cart = models.Cart{UserID: &userID}
		if err := db.Create(&cart).Error; err != nil {
			t.Fatalf("create cart failed: %v", err)
		}
	}
	item := models.CartItem{CartID: cart.ID, ProductID: productID, VariantID: variantID, Quantity: quantity}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("create cart item failed: %v", err)
	}
	return &cart
}

func TestCheckoutHappyPathWithCoupon(t *testing.T) {
	env := setupCheckoutServiceTest(t)
	user, address := createCheckoutUser(t, env.db, "checkout@example.com")
	product := createCheckoutProduct(t, env.db, "SKU-A", 250, 10, true)
	createCartWithItem(t, env.db, user.ID, product.ID, nil, 2)
	createTestCoupon(t, env.db, models.Coupon{
		Code:            "SAVE10",
		Type:            constants.CouponTypePercentage,
		Value:           money(10),
		MinimumAmount:   money(100),
		MaximumDiscount: money(40),
		PerUserLimit:    1,
		IsActive:        true,
	})

	order, err := env.svc.Checkout(context.Background(), CheckoutInput{
		UserID:            user.ID,
		ShippingAddressID: address.ID,
		ShippingMethod:    constants.ShippingMethodStandard,
		CouponCode:        "SAVE10",
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	// 500 小计，10% 封顶 40，标准运费 10，税率 0 → 470
	if !order.Subtotal.Decimal.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected subtotal: %s", order.Subtotal.String())
	}
	if !order.DiscountAmount.Decimal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected discount: %s", order.DiscountAmount.String())
	}
	if !order.TotalAmount.Decimal.Equal(decimal.NewFromInt(470)) {
		t.Fatalf("unexpected total: %s", order.TotalAmount.String())
	}
	if order.Status != constants.OrderStatusPending {
		t.Fatalf("unexpected status: %s", order.Status)
	}
	if order.PaymentStatus != constants.OrderPaymentStatusUnpaid {
		t.Fatalf("unexpected payment status: %s", order.PaymentStatus)
	}
	if order.ExpiresAt == nil || !order.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future payment deadline, got: %v", order.ExpiresAt)
	}
	if !strings.HasPrefix(order.OrderNo, "BZ") {
		t.Fatalf("unexpected order no: %s", order.OrderNo)
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 2 {
		t.Fatalf("unexpected order items: %+v", order.Items)
	}

	// 库存已条件扣减
	fresh, err := env.productRepo.GetByID(product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if fresh.Quantity != 8 {
		t.Fatalf("expected stock 8, got %d", fresh.Quantity)
	}

	// 购物车已清空
	cart, _ := env.cartRepo.GetByUser(user.ID)
	items, err := env.cartRepo.ListItems(cart.ID)
	if err != nil {
		t.Fatalf("list cart items failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(items))
	}

	// 核销事实已落库
	usages, err := env.usageRepo.ListByOrderID(order.ID)
	if err != nil {
		t.Fatalf("list usages failed: %v", err)
	}
	if len(usages) != 1 || !usages[0].DiscountAmount.Decimal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected usage facts: %+v", usages)
	}

	// 状态历史已追加
	history, err := env.orderRepo.ListHistory(order.ID)
	if err != nil {
		t.Fatalf("list history failed: %v", err)
	}
	if len(history) != 1 || history[0].Status != constants.OrderStatusPending {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestCheckoutTaxOnDiscountedSubtotal(t *testing.T) {
	env := setupCheckoutServiceTest(t)
	user, address := createCheckoutUser(t, env.db, "tax@example.com")
	product := createCheckoutProduct(t, env.db, "SKU-TAX", 100, 5, true)
	createCartWithItem(t, env.db, user.ID, product.ID, nil, 1)

	env.svc.taxRate = decimal.RequireFromString("0.08")

	order, err := env.svc.Checkout(context.Background(), CheckoutInput{
		UserID:            user.ID,
		ShippingAddressID: address.ID,
		ShippingMethod:    constants.ShippingMethodStandard,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	// 100 + 运费 10 + 税 8 = 118
	if !order.TaxAmount.Decimal.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("unexpected tax: %s", order.TaxAmount.String())
	}
	if !order.TotalAmount.Decimal.Equal(decimal.NewFromInt(118)) {
		t.Fatalf("unexpected total: %s", order.TotalAmount.String())
	}
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	env := setupCheckoutServiceTest(t)
	user, address := createCheckoutUser(t, env.db, "rollback@example.com")
	inStock := createCheckoutProduct(t, env.db, "SKU-OK", 50, 10, true)
	soldOut := createCheckoutProduct(t, env.db, "SKU-EMPTY", 30, 0, true)
	createCartWithItem(t, env.db, user.ID, inStock.ID, nil, 2)
	createCartWithItem(t, env.db, user.ID, soldOut.ID, nil, 1)

	_, err := env.svc.Checkout(context.Background(), CheckoutInput{
		UserID:            user.ID,
		ShippingAddressID: address.ID,
		ShippingMethod:    constants.ShippingMethodStandard,
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got: %v", err)
	}

	// 事务回滚：先扣的库存恢复，订单未落库，购物车保持原样
	fresh, _ := env.productRepo.GetByID(inStock.ID)
	if fresh.Quantity != 10 {
		t.Fatalf("expected stock restored to 10, got %d", fresh.Quantity)
	}
	var orderCount int64
	env.db.Model(&models.Order{}).Count(&orderCount)
	if orderCount != 0 {
		t.Fatalf("expected no orders, got %d", orderCount)
	}
	cart, _ := env.cartRepo.GetByUser(user.ID)
	items, _ := env.cartRepo.ListItems(cart.ID)
	if len(items) != 2 {
		t.Fatalf("expected cart untouched, got %d items", len(items))
	}
}

func TestCheckoutConcurrentNoOversell(t *testing.T) {
	env := setupCheckoutServiceTest(t)
	product := createCheckoutProduct(t, env.db, "SKU-RACE", 40, 3, true)

	const buyers = 6
	type buyer struct {
		userID    uint
		addressID uint
	}
	contenders := make([]buyer, 0, buyers)
	for i := 0; i < buyers; i++ {
		user, address := createCheckoutUser(t, env.db, fmt.Sprintf("race%d@example.com", i))
		createCartWithItem(t, env.db, user.ID, product.ID, nil, 1)
		contenders = append(contenders, buyer{userID: user.ID, addressID: address.ID})
	}

	// 单连接串行化 sqlite 写入，条件扣减仍然决定谁赢
	sqlDB, err := env.db.DB()
	if err != nil {
		t.Fatalf("raw db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	results := make(chan error, buyers)
	for _, contender := range contenders {
		go func(b buyer) {
			_, err := env.svc.Checkout(context.Background(), CheckoutInput{
				UserID:            b.userID,
				ShippingAddressID: b.addressID,
				ShippingMethod:    constants.ShippingMethodStandard,
			})
			results <- err
		}(contender)
	}

	var won, lost int
	for i := 0; i < buyers; i++ {
		switch err := <-results; {
		case err == nil:
			won++
		case errors.Is(err, ErrInsufficientStock):
			lost++
		default:
			t.Fatalf("unexpected checkout error: %v", err)
		}
	}
	if won != 3 || lost != 3 {
		t.Fatalf("expected 3 winners and 3 losers, got %d/%d", won, lost)
	}

	fresh, _ := env.productRepo.GetByID(product.ID)
	if fresh.Quantity != 0 {
		t.Fatalf("expected stock drained to 0, got %d", fresh.Quantity)
	}
	var orderCount int64
	env.db.Model(&models.Order{}).Count(&orderCount)
	if orderCount != 3 {
		t.Fatalf("expected exactly 3 orders, got %d", orderCount)
	}
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := setupCheckoutServiceTest(t)
	user, address := createCheckoutUser(t, env.db, "empty@example.com")
	cart := models.Cart{UserID: &user.ID}
	if err := env.db.Create(&cart).Error; err != nil {
		t.Fatalf("create cart failed: %v", err)
	}

	_, err := env.svc.Checkout(context.Background(), CheckoutInput{
		UserID:            user.ID,
		ShippingAddressID: address.ID,
		ShippingMethod:    constants.ShippingMethodStandard,
	})
	if !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("expected cart empty, got: %v", err)
	}
}

func TestCheckoutAddressOwnership(t *testing.T) {
	env := setupCheckoutServiceTest(t)
	user, _ := createCheckoutUser(t, env.db, "owner@example.com")
	_, otherAddress := createCheckoutUser(t, env.db, "other@example.com")
	product := createCheckoutProduct(t, env.db, "SKU-ADDR", 20, 5, true)
	createCartWithItem(t, env.db, user.ID, product.ID, nil, 1)

	_, err := env.svc.Checkout(context.Background(), CheckoutInput{
		UserID:            user.ID,
		ShippingAddressID: otherAddress.ID,
		ShippingMethod:    constants.ShippingMethodStandard,
	})
	if !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("expected address not found, got: %v", err)
	}
}

func TestCheckoutVariantStock(t *testing.T) {
	env := setupCheckoutServiceTest(t)
	user, address := createCheckoutUser(t, env.db, "variant@example.com")
	product := createCheckoutProduct(t, env.db, "SKU-VAR", 199.99, 45, true)
	variant := models.ProductVariant{
		ProductID:     product.ID,
		Name:          "Silver",
		SKU:           "SKU-VAR-SLV",
		PriceAmount:   money(219.99),
		TrackQuantity: true,
		Quantity:      15,
		IsActive:      true,
	}
	if err := env.db.Create(&variant).Error; err != nil {
		t.Fatalf("create variant failed: %v", err)
	}
	createCartWithItem(t, env.db, user.ID, product.ID, &variant.ID, 3)

	order, err := env.svc.Checkout(context.Background(), CheckoutInput{
		UserID:            user.ID,
		ShippingAddressID: address.ID,
		ShippingMethod:    constants.ShippingMethodExpress,
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	// 变体价格入快照，扣变体库存，商品库存不动
	if !order.Items[0].UnitPrice.Decimal.Equal(decimal.NewFromFloat(219.99)) {
		t.Fatalf("unexpected unit price: %s", order.Items[0].UnitPrice.String())
	}
	freshVariant, _ := env.variantRepo.GetByID(variant.ID)
	if freshVariant.Quantity != 12 {
		t.Fatalf("expected variant stock 12, got %d", freshVariant.Quantity)
	}
	freshProduct, _ := env.productRepo.GetByID(product.ID)
	if freshProduct.Quantity != 45 {
		t.Fatalf("expected product stock untouched, got %d", freshProduct.Quantity)
	}
}

func TestPreviewMatchesCheckout(t *testing.T) {
	env := setupCheckoutServiceTest(t)
	user, address := createCheckoutUser(t, env.db, "preview@example.com")
	product := createCheckoutProduct(t, env.db, "SKU-PRE", 250, 10, true)
	createCartWithItem(t, env.db, user.ID, product.ID, nil, 2)
	createTestCoupon(t, env.db, models.Coupon{
		Code:            "SAVE10",
		Type:            constants.CouponTypePercentage,
		Value:           money(10),
		MaximumDiscount: money(40),
		IsActive:        true,
	})

	quote, err := env.svc.Preview(context.Background(), user.ID, constants.ShippingMethodStandard, "SAVE10")
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}

	order, err := env.svc.Checkout(context.Background(), CheckoutInput{
		UserID:            user.ID,
		ShippingAddressID: address.ID,
		ShippingMethod:    constants.ShippingMethodStandard,
		CouponCode:        "SAVE10",
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if !quote.TotalAmount.Decimal.Equal(order.TotalAmount.Decimal) {
		t.Fatalf("preview total %s != order total %s", quote.TotalAmount.String(), order.TotalAmount.String())
	}

	// 预览不占库存
	if _, err := env.svc.Preview(context.Background(), user.ID, "pigeon", ""); !errors.Is(err, ErrShippingMethodInvalid) && !errors.Is(err, ErrCartEmpty) {
		t.Fatalf("expected shipping method or empty cart error, got: %v", err)
	}
}
