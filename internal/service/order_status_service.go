package service

import (
	"fmt"
	"time"

	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/repository"

	"gorm.io/gorm"
)

// orderTransitions 订单状态机（正向推进 + 受限取消）
var orderTransitions = map[string][]string{
	constants.OrderStatusPending:    {constants.OrderStatusConfirmed, constants.OrderStatusCancelled},
	constants.OrderStatusConfirmed:  {constants.OrderStatusProcessing, constants.OrderStatusCancelled},
	constants.OrderStatusProcessing: {constants.OrderStatusShipped},
	constants.OrderStatusShipped:    {constants.OrderStatusDelivered},
	constants.OrderStatusDelivered:  {constants.OrderStatusRefunded},
	constants.OrderStatusCancelled:  {},
	constants.OrderStatusRefunded:   {},
}

// CanTransition 判断状态迁移是否合法
func CanTransition(from, to string) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderStatusService 订单状态服务
type OrderStatusService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	variantRepo repository.ProductVariantRepository
}

// NewOrderStatusService 创建订单状态服务
func NewOrderStatusService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	variantRepo repository.ProductVariantRepository,
) *OrderStatusService {
	return &OrderStatusService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		variantRepo: variantRepo,
	}
}

// Transition 推进订单状态。
// shipped_at / delivered_at 仅在首次进入对应状态时写入；取消走 Cancel。
func (s *OrderStatusService) Transition(orderID uint, target, actor, notes string) (*models.Order, error) {
	if target == constants.OrderStatusCancelled {
		return s.cancel(orderID, actor, notes, false)
	}

	var order *models.Order
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)

		var err error
		order, err = orderRepo.GetByID(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if !CanTransition(order.Status, target) {
			return ErrOrderStatusInvalid
		}

		now := time.Now()
		updates := map[string]interface{}{}
		switch target {
		case constants.OrderStatusShipped:
			if order.ShippedAt == nil {
				updates["shipped_at"] = now
				order.ShippedAt = &now
			}
		case constants.OrderStatusDelivered:
			if order.DeliveredAt == nil {
				updates["delivered_at"] = now
				order.DeliveredAt = &now
			}
		}
		if err := orderRepo.UpdateStatus(order.ID, target, updates); err != nil {
			return err
		}
		order.Status = target

		return orderRepo.AppendHistory(&models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    target,
			Notes:     notes,
			CreatedBy: actor,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("order_status_changed",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"status", target,
		"actor", actor,
	)
	return order, nil
}

// ForceTransition 管理通道的显式状态跳转。
// 不查迁移表，允许跳级推进，但轨迹必须写明跳转前后的状态；
// 取消仍走受限的 cancel 路径，库存回补语义不被绕过。
func (s *OrderStatusService) ForceTransition(orderID uint, target, actor, notes string) (*models.Order, error) {
	if _, ok := orderTransitions[target]; !ok {
		return nil, ErrOrderStatusInvalid
	}
	if target == constants.OrderStatusCancelled {
		return s.cancel(orderID, actor, notes, false)
	}

	var order *models.Order
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)

		var err error
		order, err = orderRepo.GetByID(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		from := order.Status
		if from == target {
			return nil
		}

		now := time.Now()
		updates := map[string]interface{}{}
		switch target {
		case constants.OrderStatusShipped:
			if order.ShippedAt == nil {
				updates["shipped_at"] = now
				order.ShippedAt = &now
			}
		case constants.OrderStatusDelivered:
			if order.DeliveredAt == nil {
				updates["delivered_at"] = now
				order.DeliveredAt = &now
			}
		}
		if err := orderRepo.UpdateStatus(order.ID, target, updates); err != nil {
			return err
		}
		order.Status = target

		note := fmt.Sprintf("forced from %s to %s", from, target)
		if notes != "" {
			note = note + ": " + notes
		}
		return orderRepo.AppendHistory(&models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    target,
			Notes:     note,
			CreatedBy: actor,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("order_status_forced",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"status", order.Status,
		"actor", actor,
	)
	return order, nil
}

// MarkShipped 发货（可附带物流单号）
func (s *OrderStatusService) MarkShipped(orderID uint, trackingNumber, actor string) (*models.Order, error) {
	order, err := s.Transition(orderID, constants.OrderStatusShipped, actor, "order shipped")
	if err != nil {
		return nil, err
	}
	if trackingNumber != "" {
		if err := s.orderRepo.UpdateStatus(order.ID, order.Status, map[string]interface{}{
			"tracking_number": trackingNumber,
		}); err != nil {
			return nil, err
		}
		order.TrackingNumber = trackingNumber
	}
	return order, nil
}

// CancelByUser 用户取消订单（仅限 pending / confirmed）
func (s *OrderStatusService) CancelByUser(orderID, userID uint, reason string) (*models.Order, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if reason == "" {
		reason = "cancelled by customer"
	}
	return s.cancel(order.ID, fmt.Sprintf("user:%d", userID), reason, false)
}

// CancelExpired 取消超时未支付订单（worker 调用）。
// 订单已不在 pending、或已有支付进账、或支付窗口未到期时直接跳过。
func (s *OrderStatusService) CancelExpired(orderID uint, now time.Time) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return nil
	}
	if order.Status != constants.OrderStatusPending {
		return nil
	}
	if order.PaymentStatus != constants.OrderPaymentStatusUnpaid {
		return nil
	}
	if order.ExpiresAt == nil || now.Before(*order.ExpiresAt) {
		return nil
	}

	_, err = s.cancel(order.ID, "system", "payment window expired", true)
	if err != nil {
		logger.Errorw("order_timeout_cancel_failed", "order_id", orderID, "error", err)
		return err
	}
	logger.Infow("order_timeout_cancelled", "order_id", orderID, "order_no", order.OrderNo)
	return nil
}

// cancel 取消订单：状态校验、库存回补、轨迹落库在同一事务内。
// 库存只回补仍跟踪库存的行；优惠券核销事实保留，不自动退款。
func (s *OrderStatusService) cancel(orderID uint, actor, reason string, expired bool) (*models.Order, error) {
	var order *models.Order
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		productRepo := s.productRepo.WithTx(tx)
		variantRepo := s.variantRepo.WithTx(tx)

		var err error
		order, err = orderRepo.GetByID(orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status != constants.OrderStatusPending && order.Status != constants.OrderStatusConfirmed {
			return ErrOrderNotCancellable
		}

		for _, item := range order.Items {
			if item.VariantID != nil {
				if _, err := variantRepo.RestoreStock(*item.VariantID, item.Quantity); err != nil {
					return err
				}
				continue
			}
			if _, err := productRepo.RestoreStock(item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := orderRepo.UpdateStatus(order.ID, constants.OrderStatusCancelled, map[string]interface{}{
			"cancelled_at": now,
		}); err != nil {
			return err
		}
		order.Status = constants.OrderStatusCancelled
		order.CancelledAt = &now

		return orderRepo.AppendHistory(&models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    constants.OrderStatusCancelled,
			Notes:     reason,
			CreatedBy: actor,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("order_cancelled",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"actor", actor,
		"expired", expired,
	)
	return order, nil
}
