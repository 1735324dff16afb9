package repository

import (
	"errors"

	"github.com/bazaar-next/internal/models"

	"gorm.io/gorm"
)

// ProductVariantRepository 商品变体数据访问接口
type ProductVariantRepository interface {
	Create(variant *models.ProductVariant) error
	GetByID(id uint) (*models.ProductVariant, error)
	DecrementStock(id uint, quantity int) (int64, error)
	RestoreStock(id uint, quantity int) (int64, error)
	WithTx(tx *gorm.DB) *GormProductVariantRepository
}

// GormProductVariantRepository GORM 实现
type GormProductVariantRepository struct {
	db *gorm.DB
}

// NewProductVariantRepository 创建商品变体仓库
func NewProductVariantRepository(db *gorm.DB) *GormProductVariantRepository {
	return &GormProductVariantRepository{db: db}
}

// WithTx 绑定事务
func (r *GormProductVariantRepository) WithTx(tx *gorm.DB) *GormProductVariantRepository {
	if tx == nil {
		return r
	}
	return &GormProductVariantRepository{db: tx}
}

// Create 创建变体
func (r *GormProductVariantRepository) Create(variant *models.ProductVariant) error {
	return r.db.Create(variant).Error
}

// GetByID 根据 ID 获取变体
func (r *GormProductVariantRepository) GetByID(id uint) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.First(&variant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &variant, nil
}

// DecrementStock 条件扣减变体库存，返回受影响行数。
func (r *GormProductVariantRepository) DecrementStock(id uint, quantity int) (int64, error) {
	if quantity <= 0 {
		return 0, nil
	}
	result := r.db.Model(&models.ProductVariant{}).
		Where("id = ? AND track_quantity = ? AND quantity >= ?", id, true, quantity).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", quantity))
	return result.RowsAffected, result.Error
}

// RestoreStock 回补变体库存，返回受影响行数。
func (r *GormProductVariantRepository) RestoreStock(id uint, quantity int) (int64, error) {
	if quantity <= 0 {
		return 0, nil
	}
	result := r.db.Model(&models.ProductVariant{}).
		Where("id = ? AND track_quantity = ?", id, true).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", quantity))
	return result.RowsAffected, result.Error
}
