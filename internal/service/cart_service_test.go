package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupCartServiceTest(t *testing.T) (*CartService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:cart_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Product{},
		&models.ProductVariant{},
		&models.Cart{},
		&models.CartItem{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	return NewCartService(
		repository.NewCartRepository(db),
		repository.NewProductRepository(db),
		repository.NewProductVariantRepository(db),
	), db
}

func createCartProduct(t *testing.T, db *gorm.DB, sku string, price float64, quantity int, track, active bool) *models.Product {
	t.Helper()
	product := models.Product{
		Slug:          sku,
		Name:          "Product " + sku,
		SKU:           sku,
		PriceAmount:   money(price),
		TrackQuantity: track,
		Quantity:      quantity,
		IsActive:      active,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return &product
}

func TestGuestCartCreationAndReuse(t *testing.T) {
	svc, _ := setupCartServiceTest(t)

	// 无身份无会话键不可建车
	if _, err := svc.GetOrCreateCart(0, ""); !errors.Is(err, ErrCartNotFound) {
		t.Fatalf("expected cart not found, got: %v", err)
	}

	cart, err := svc.GetOrCreateCart(0, "sess-abc")
	if err != nil {
		t.Fatalf("create guest cart failed: %v", err)
	}
	again, err := svc.GetOrCreateCart(0, "sess-abc")
	if err != nil {
		t.Fatalf("reuse guest cart failed: %v", err)
	}
	if cart.ID != again.ID {
		t.Fatalf("expected same guest cart, got %d and %d", cart.ID, again.ID)
	}
}

func TestCartMergeOnLogin(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	shared := createCartProduct(t, db, "sku-shared", 10, 100, true, true)
	guestOnly := createCartProduct(t, db, "sku-guest", 5, 100, true, true)

	guestCart, err := svc.GetOrCreateCart(0, "sess-merge")
	if err != nil {
		t.Fatalf("guest cart failed: %v", err)
	}
	if _, err := svc.AddItem(guestCart, shared.ID, nil, 2); err != nil {
		t.Fatalf("add guest item failed: %v", err)
	}
	if _, err := svc.AddItem(guestCart, guestOnly.ID, nil, 1); err != nil {
		t.Fatalf("add guest item failed: %v", err)
	}

	userCart, err := svc.GetOrCreateCart(42, "")
	if err != nil {
		t.Fatalf("user cart failed: %v", err)
	}
	if _, err := svc.AddItem(userCart, shared.ID, nil, 3); err != nil {
		t.Fatalf("add user item failed: %v", err)
	}

	// 登录后带会话键访问：游客车并入，同品同变体数量相加
	merged, err := svc.GetOrCreateCart(42, "sess-merge")
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	if merged.ID != userCart.ID {
		t.Fatalf("expected user cart to survive merge")
	}
	summary, err := svc.Summary(merged)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if len(summary.Items) != 2 {
		t.Fatalf("expected 2 merged items, got %d", len(summary.Items))
	}
	for _, item := range summary.Items {
		switch item.ProductID {
		case shared.ID:
			if item.Quantity != 5 {
				t.Fatalf("expected shared quantity 5, got %d", item.Quantity)
			}
		case guestOnly.ID:
			if item.Quantity != 1 {
				t.Fatalf("expected guest-only quantity 1, got %d", item.Quantity)
			}
		default:
			t.Fatalf("unexpected item product %d", item.ProductID)
		}
	}
	// 10*5 + 5*1 = 55
	if !summary.Subtotal.Decimal.Equal(decimal.NewFromInt(55)) {
		t.Fatalf("unexpected subtotal: %s", summary.Subtotal.String())
	}

	// 游客购物车已删除
	var guestCount int64
	db.Model(&models.Cart{}).Where("id = ?", guestCart.ID).Count(&guestCount)
	if guestCount != 0 {
		t.Fatalf("expected guest cart deleted")
	}
}

func TestAddItemAccumulatesAndCapsAtStock(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := createCartProduct(t, db, "sku-cap", 30, 5, true, true)
	cart, err := svc.GetOrCreateCart(7, "")
	if err != nil {
		t.Fatalf("cart failed: %v", err)
	}

	item, err := svc.AddItem(cart, product.ID, nil, 3)
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	item, err = svc.AddItem(cart, product.ID, nil, 2)
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if item.Quantity != 5 {
		t.Fatalf("expected accumulated quantity 5, got %d", item.Quantity)
	}

	// 超出可购库存
	if _, err := svc.AddItem(cart, product.ID, nil, 1); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got: %v", err)
	}

	// 不跟踪库存的商品不受限
	untracked := createCartProduct(t, db, "sku-free", 10, 0, false, true)
	if _, err := svc.AddItem(cart, untracked.ID, nil, 999); err != nil {
		t.Fatalf("untracked add failed: %v", err)
	}
}

func TestAddItemInactiveProduct(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	inactive := createCartProduct(t, db, "sku-off", 10, 10, true, false)
	cart, _ := svc.GetOrCreateCart(7, "")

	if _, err := svc.AddItem(cart, inactive.ID, nil, 1); !errors.Is(err, ErrProductInactive) {
		t.Fatalf("expected product inactive, got: %v", err)
	}
	if _, err := svc.AddItem(cart, 999999, nil, 1); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected product not found, got: %v", err)
	}
}

func TestAddItemVariantChecks(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := createCartProduct(t, db, "sku-var", 100, 50, true, true)
	other := createCartProduct(t, db, "sku-other", 100, 50, true, true)
	variant := models.ProductVariant{
		ProductID:     product.ID,
		Name:          "Blue",
		SKU:           "sku-var-blue",
		PriceAmount:   money(120),
		TrackQuantity: true,
		Quantity:      2,
		IsActive:      true,
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("create variant failed: %v", err)
	}
	cart, _ := svc.GetOrCreateCart(7, "")

	// 变体必须属于商品
	if _, err := svc.AddItem(cart, other.ID, &variant.ID, 1); !errors.Is(err, ErrVariantNotFound) {
		t.Fatalf("expected variant not found, got: %v", err)
	}

	if _, err := svc.AddItem(cart, product.ID, &variant.ID, 2); err != nil {
		t.Fatalf("add variant item failed: %v", err)
	}

	// 变体价优先于商品价
	summary, err := svc.Summary(cart)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if !summary.Subtotal.Decimal.Equal(decimal.NewFromInt(240)) {
		t.Fatalf("expected subtotal 240 at variant price, got %s", summary.Subtotal.String())
	}
	if _, err := svc.AddItem(cart, product.ID, &variant.ID, 1); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected variant stock cap, got: %v", err)
	}
}

func TestUpdateItemQuantityZeroDeletes(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := createCartProduct(t, db, "sku-upd", 10, 10, true, true)
	cart, _ := svc.GetOrCreateCart(7, "")
	item, err := svc.AddItem(cart, product.ID, nil, 2)
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}

	if err := svc.UpdateItemQuantity(cart, item.ID, 4); err != nil {
		t.Fatalf("update quantity failed: %v", err)
	}
	if err := svc.UpdateItemQuantity(cart, item.ID, 0); err != nil {
		t.Fatalf("zero quantity delete failed: %v", err)
	}
	summary, _ := svc.Summary(cart)
	if len(summary.Items) != 0 {
		t.Fatalf("expected empty cart after zero update, got %d items", len(summary.Items))
	}

	if err := svc.UpdateItemQuantity(cart, item.ID, 1); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected item not found, got: %v", err)
	}
}

func TestClearCart(t *testing.T) {
	svc, db := setupCartServiceTest(t)
	product := createCartProduct(t, db, "sku-clr", 10, 10, true, true)
	cart, _ := svc.GetOrCreateCart(7, "")
	if _, err := svc.AddItem(cart, product.ID, nil, 2); err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	if err := svc.Clear(cart); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	summary, _ := svc.Summary(cart)
	if summary.ItemCount != 0 {
		t.Fatalf("expected empty cart, got %d items", summary.ItemCount)
	}
}
