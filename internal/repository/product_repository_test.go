package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/bazaar-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupProductRepoTest(t *testing.T) (*GormProductRepository, *GormProductVariantRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:product_repository_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.ProductVariant{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewProductRepository(db), NewProductVariantRepository(db), db
}

func TestProductDecrementStockGuard(t *testing.T) {
	repo, _, db := setupProductRepoTest(t)
	product := models.Product{Slug: "p1", Name: "P1", SKU: "P1", TrackQuantity: true, Quantity: 5, IsActive: true}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	rows, err := repo.DecrementStock(product.ID, 3)
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row affected, got %d", rows)
	}

	// 余量不足：零行受影响，库存不变
	rows, err = repo.DecrementStock(product.ID, 3)
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected guard to reject over-decrement, got %d rows", rows)
	}
	fresh, err := repo.GetByID(product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if fresh.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", fresh.Quantity)
	}

	// 非正数量为空操作
	if rows, _ := repo.DecrementStock(product.ID, 0); rows != 0 {
		t.Fatalf("expected no-op for zero quantity, got %d rows", rows)
	}
	if rows, _ := repo.DecrementStock(product.ID, -1); rows != 0 {
		t.Fatalf("expected no-op for negative quantity, got %d rows", rows)
	}
}

func TestProductPersistsFalseFlags(t *testing.T) {
	repo, variantRepo, db := setupProductRepoTest(t)
	product := models.Product{Slug: "p-off", Name: "POff", SKU: "P-OFF", TrackQuantity: false, Quantity: 0, IsActive: false}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	variant := models.ProductVariant{ProductID: product.ID, Name: "V", SKU: "P-OFF-V", TrackQuantity: false, IsActive: false}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("create variant failed: %v", err)
	}

	// 下架与不跟踪库存必须原样落库，不被列默认值吞掉
	freshProduct, err := repo.GetByID(product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if freshProduct.IsActive || freshProduct.TrackQuantity {
		t.Fatalf("expected false flags persisted, got active=%v track=%v", freshProduct.IsActive, freshProduct.TrackQuantity)
	}
	freshVariant, err := variantRepo.GetByID(variant.ID)
	if err != nil {
		t.Fatalf("get variant failed: %v", err)
	}
	if freshVariant.IsActive || freshVariant.TrackQuantity {
		t.Fatalf("expected false flags persisted, got active=%v track=%v", freshVariant.IsActive, freshVariant.TrackQuantity)
	}
}

func TestProductDecrementStockUntracked(t *testing.T) {
	repo, _, db := setupProductRepoTest(t)
	product := models.Product{Slug: "p2", Name: "P2", SKU: "P2", TrackQuantity: false, Quantity: 0, IsActive: true}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	// 不跟踪库存的行不落在 WHERE 条件内
	rows, err := repo.DecrementStock(product.ID, 1)
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected untracked product untouched, got %d rows", rows)
	}
}

func TestProductRestoreStock(t *testing.T) {
	repo, _, db := setupProductRepoTest(t)
	product := models.Product{Slug: "p3", Name: "P3", SKU: "P3", TrackQuantity: true, Quantity: 1, IsActive: true}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	rows, err := repo.RestoreStock(product.ID, 4)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row affected, got %d", rows)
	}
	fresh, _ := repo.GetByID(product.ID)
	if fresh.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %d", fresh.Quantity)
	}
}

func TestVariantStockOps(t *testing.T) {
	_, variantRepo, db := setupProductRepoTest(t)
	product := models.Product{Slug: "p4", Name: "P4", SKU: "P4", TrackQuantity: true, Quantity: 100, IsActive: true}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	variant := models.ProductVariant{ProductID: product.ID, Name: "V", SKU: "P4-V", TrackQuantity: true, Quantity: 2, IsActive: true}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("create variant failed: %v", err)
	}

	rows, err := variantRepo.DecrementStock(variant.ID, 2)
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 row affected, got %d", rows)
	}
	if rows, _ := variantRepo.DecrementStock(variant.ID, 1); rows != 0 {
		t.Fatalf("expected sold-out variant rejected, got %d rows", rows)
	}
	if rows, _ := variantRepo.RestoreStock(variant.ID, 2); rows != 1 {
		t.Fatalf("expected restore to hit 1 row, got %d", rows)
	}

	fresh, err := variantRepo.GetByID(variant.ID)
	if err != nil {
		t.Fatalf("get variant failed: %v", err)
	}
	if fresh.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", fresh.Quantity)
	}
}
