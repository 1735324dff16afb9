package repository

import (
	"errors"
	"strings"

	"github.com/bazaar-next/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository 支付数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	Update(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	GetByGatewayRef(gatewayRef string) (*models.Payment, error)
	ListByOrderID(orderID uint) ([]models.Payment, error)
	CreateTransaction(txn *models.Transaction) error
	GetTransactionByEventID(eventID string) (*models.Transaction, error)
	ListTransactions(paymentID uint) ([]models.Transaction, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付流水
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// Update 更新支付流水
func (r *GormPaymentRepository) Update(payment *models.Payment) error {
	return r.db.Save(payment).Error
}

// GetByID 根据 ID 获取支付流水
func (r *GormPaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByGatewayRef 根据网关流水号获取最新支付流水
func (r *GormPaymentRepository) GetByGatewayRef(gatewayRef string) (*models.Payment, error) {
	gatewayRef = strings.TrimSpace(gatewayRef)
	if gatewayRef == "" {
		return nil, nil
	}
	var payment models.Payment
	result := r.db.Where("gateway_ref = ?", gatewayRef).Order("id desc").Limit(1).Find(&payment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &payment, nil
}

// ListByOrderID 获取订单支付流水
func (r *GormPaymentRepository) ListByOrderID(orderID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.Where("order_id = ?", orderID).Order("id desc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// CreateTransaction 追加交易明细
func (r *GormPaymentRepository) CreateTransaction(txn *models.Transaction) error {
	return r.db.Create(txn).Error
}

// GetTransactionByEventID 根据网关事件 ID 获取已入账交易
func (r *GormPaymentRepository) GetTransactionByEventID(eventID string) (*models.Transaction, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, nil
	}
	var txn models.Transaction
	result := r.db.Where("gateway_event_id = ?", eventID).Limit(1).Find(&txn)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &txn, nil
}

// ListTransactions 获取支付交易明细
func (r *GormPaymentRepository) ListTransactions(paymentID uint) ([]models.Transaction, error) {
	var txns []models.Transaction
	if err := r.db.Where("payment_id = ?", paymentID).Order("id asc").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
