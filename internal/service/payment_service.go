package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/gateway"
	"github.com/bazaar-next/internal/logger"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentService 支付账本服务
type PaymentService struct {
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	resolver    gateway.Resolver
}

// NewPaymentService 创建支付服务
func NewPaymentService(
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	resolver gateway.Resolver,
) *PaymentService {
	return &PaymentService{
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		resolver:    resolver,
	}
}

// DeriveOrderPaymentStatus 从订单全部支付流水推导支付状态（纯函数）。
// 每次账本变更整体重算，不做增量修补，回放与多次支付下不漂移。
func DeriveOrderPaymentStatus(total models.Money, payments []models.Payment) string {
	paidTotal := decimal.Zero
	refundedTotal := decimal.Zero
	for _, p := range payments {
		switch p.Status {
		case constants.PaymentStatusCompleted:
			paidTotal = paidTotal.Add(p.Amount.Decimal)
		case constants.PaymentStatusPartiallyRefunded:
			paidTotal = paidTotal.Add(p.Amount.Decimal)
			refundedTotal = refundedTotal.Add(p.RefundedAmount.Decimal)
		case constants.PaymentStatusRefunded:
			refundedTotal = refundedTotal.Add(p.RefundedAmount.Decimal)
		}
	}

	switch {
	case refundedTotal.GreaterThanOrEqual(total.Decimal) && refundedTotal.GreaterThan(decimal.Zero):
		return constants.OrderPaymentStatusRefunded
	case refundedTotal.GreaterThan(decimal.Zero):
		return constants.OrderPaymentStatusPartiallyRefunded
	case paidTotal.GreaterThanOrEqual(total.Decimal) && paidTotal.GreaterThan(decimal.Zero):
		return constants.OrderPaymentStatusPaid
	case paidTotal.GreaterThan(decimal.Zero):
		return constants.OrderPaymentStatusPartiallyPaid
	default:
		return constants.OrderPaymentStatusUnpaid
	}
}

func validPaymentMethod(method string) bool {
	switch method {
	case constants.PaymentMethodCreditCard,
		constants.PaymentMethodPaypal,
		constants.PaymentMethodCashOnDelivery,
		constants.PaymentMethodBankTransfer:
		return true
	}
	return false
}

// CreatePayment 为订单创建支付尝试。
// COD 直接完成并确认订单；bank_transfer 落 pending 等待人工完成；
// card / paypal 分发到网关适配器。
func (s *PaymentService) CreatePayment(ctx context.Context, orderID, userID uint, method string) (*models.Payment, error) {
	if !validPaymentMethod(method) {
		return nil, ErrPaymentMethodInvalid
	}

	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status == constants.OrderStatusCancelled || order.Status == constants.OrderStatusRefunded {
		return nil, ErrOrderStatusInvalid
	}

	payments, err := s.paymentRepo.ListByOrderID(order.ID)
	if err != nil {
		return nil, err
	}
	remaining := remainingDue(order.TotalAmount, payments)
	if remaining.LessThanOrEqual(decimal.Zero) {
		return nil, ErrOrderAlreadyPaid
	}
	amount := models.NewMoneyFromDecimal(remaining)

	switch method {
	case constants.PaymentMethodCashOnDelivery:
		return s.createOfflineCompleted(order, method, amount)
	case constants.PaymentMethodBankTransfer:
		payment := &models.Payment{
			OrderID:  order.ID,
			Method:   method,
			Amount:   amount,
			Currency: order.Currency,
			Status:   constants.PaymentStatusPending,
		}
		if err := s.paymentRepo.Create(payment); err != nil {
			return nil, err
		}
		logger.Infow("payment_created",
			"payment_id", payment.ID,
			"order_id", order.ID,
			"method", method,
			"status", payment.Status,
		)
		return payment, nil
	default:
		return s.createGatewayCharge(ctx, order, method, amount)
	}
}

// remainingDue 计算订单未结清金额
func remainingDue(total models.Money, payments []models.Payment) decimal.Decimal {
	covered := decimal.Zero
	for _, p := range payments {
		switch p.Status {
		case constants.PaymentStatusCompleted, constants.PaymentStatusPartiallyRefunded:
			covered = covered.Add(p.Amount.Decimal)
		}
	}
	return total.Decimal.Sub(covered)
}

// createOfflineCompleted 货到付款：不触网关，流水直接完成，订单转 confirmed。
func (s *PaymentService) createOfflineCompleted(order *models.Order, method string, amount models.Money) (*models.Payment, error) {
	now := time.Now()
	payment := &models.Payment{
		OrderID:     order.ID,
		Method:      method,
		Amount:      amount,
		Currency:    order.Currency,
		Status:      constants.PaymentStatusCompleted,
		CompletedAt: &now,
	}

	err := models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		if err := paymentRepo.Create(payment); err != nil {
			return err
		}
		if err := paymentRepo.CreateTransaction(&models.Transaction{
			PaymentID: payment.ID,
			Type:      constants.TransactionTypePayment,
			Amount:    amount,
		}); err != nil {
			return err
		}
		if err := s.derivePaymentStatusTx(tx, order.ID); err != nil {
			return err
		}
		if CanTransition(order.Status, constants.OrderStatusConfirmed) {
			if err := orderRepo.UpdateStatus(order.ID, constants.OrderStatusConfirmed, nil); err != nil {
				return err
			}
			if err := orderRepo.AppendHistory(&models.OrderStatusHistory{
				OrderID:   order.ID,
				Status:    constants.OrderStatusConfirmed,
				Notes:     "cash on delivery accepted",
				CreatedBy: "system",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("payment_created",
		"payment_id", payment.ID,
		"order_id", order.ID,
		"method", method,
		"status", payment.Status,
	)
	return payment, nil
}

// createGatewayCharge 走网关创建扣款，网关回执原样留存在流水上。
func (s *PaymentService) createGatewayCharge(ctx context.Context, order *models.Order, method string, amount models.Money) (*models.Payment, error) {
	gw, err := s.resolver.Resolve(method)
	if err != nil {
		return nil, ErrPaymentMethodInvalid
	}

	payment := &models.Payment{
		OrderID:  order.ID,
		Method:   method,
		Amount:   amount,
		Currency: order.Currency,
		Status:   constants.PaymentStatusPending,
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		return nil, err
	}

	result, err := gw.CreateCharge(ctx, gateway.ChargeInput{
		OrderNo:     order.OrderNo,
		PaymentID:   payment.ID,
		Amount:      amount.String(),
		Currency:    order.Currency,
		Description: fmt.Sprintf("order %s", order.OrderNo),
	})
	if err != nil {
		payment.Status = constants.PaymentStatusFailed
		payment.FailureReason = err.Error()
		if updateErr := s.paymentRepo.Update(payment); updateErr != nil {
			logger.Errorw("payment_fail_update_failed", "payment_id", payment.ID, "error", updateErr)
		}
		logger.Warnw("gateway_charge_failed",
			"payment_id", payment.ID,
			"order_id", order.ID,
			"gateway", gw.Name(),
			"error", err,
		)
		return payment, fmt.Errorf("%w: %v", ErrGatewayFailed, err)
	}

	payment.GatewayRef = result.GatewayRef
	payment.GatewayPayload = models.JSON(result.Raw)
	if result.Status == gateway.StatusCompleted {
		// 同步完成的扣款与 webhook 走同一条幂等入账路径
		if err := s.paymentRepo.Update(payment); err != nil {
			return nil, err
		}
		if err := s.applyGatewayStatus(payment, "", gateway.StatusCompleted, "", result.Raw); err != nil {
			return nil, err
		}
		return payment, nil
	}
	payment.Status = constants.PaymentStatusProcessing
	if err := s.paymentRepo.Update(payment); err != nil {
		return nil, err
	}

	logger.Infow("payment_created",
		"payment_id", payment.ID,
		"order_id", order.ID,
		"method", method,
		"gateway_ref", payment.GatewayRef,
		"status", payment.Status,
	)
	return payment, nil
}

// HandleWebhook 处理网关回调：验签、按网关流水号定位支付、幂等入账。
func (s *PaymentService) HandleWebhook(ctx context.Context, method string, headers map[string]string, body []byte) (*gateway.Event, error) {
	gw, err := s.resolver.Resolve(method)
	if err != nil {
		return nil, ErrPaymentMethodInvalid
	}

	event, err := gw.ParseWebhookEvent(headers, body, time.Now())
	if err != nil {
		logger.Warnw("webhook_rejected", "gateway", gw.Name(), "error", err)
		return nil, err
	}

	payment, err := s.paymentRepo.GetByGatewayRef(event.GatewayRef)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		logger.Warnw("webhook_payment_not_found",
			"gateway", gw.Name(),
			"event_id", event.EventID,
			"gateway_ref", event.GatewayRef,
		)
		return event, ErrPaymentNotFound
	}

	if err := s.applyGatewayStatus(payment, event.EventID, event.Status, event.Amount, event.Raw); err != nil {
		return event, err
	}
	logger.Infow("webhook_processed",
		"gateway", gw.Name(),
		"event_id", event.EventID,
		"event_type", event.EventType,
		"payment_id", payment.ID,
	)
	return event, nil
}

// applyGatewayStatus 网关结果入账。
// 按事件 ID 去重：已入账的事件回放只刷新回执并重算推导，不追加交易，不重复计数。
// 已退款的流水不会被迟到的 completed 事件拉回。
func (s *PaymentService) applyGatewayStatus(payment *models.Payment, eventID, status, amount string, raw map[string]interface{}) error {
	target, err := mapGatewayStatus(status)
	if err != nil {
		return err
	}

	return models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)

		current, err := paymentRepo.GetByID(payment.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrPaymentNotFound
		}

		if raw != nil {
			current.GatewayPayload = models.JSON(raw)
		}

		replay := current.Status == target
		if !replay && eventID != "" {
			seen, err := paymentRepo.GetTransactionByEventID(eventID)
			if err != nil {
				return err
			}
			replay = seen != nil
		}
		// 退款后的迟到 completed 不可逆转账本
		if !replay && target == constants.PaymentStatusCompleted &&
			(current.Status == constants.PaymentStatusRefunded ||
				current.Status == constants.PaymentStatusPartiallyRefunded) {
			replay = true
		}
		if replay {
			if err := paymentRepo.Update(current); err != nil {
				return err
			}
			*payment = *current
			return s.derivePaymentStatusTx(tx, current.OrderID)
		}

		var txnEventID *string
		if eventID != "" {
			txnEventID = &eventID
		}

		switch target {
		case constants.PaymentStatusCompleted:
			now := time.Now()
			current.Status = target
			current.FailureReason = ""
			if current.CompletedAt == nil {
				current.CompletedAt = &now
			}
			if err := paymentRepo.CreateTransaction(&models.Transaction{
				PaymentID:      current.ID,
				Type:           constants.TransactionTypePayment,
				Amount:         current.Amount,
				GatewayRef:     current.GatewayRef,
				GatewayEventID: txnEventID,
				Payload:        models.JSON(raw),
			}); err != nil {
				return err
			}
		case constants.PaymentStatusFailed:
			current.Status = target
			current.FailureReason = "gateway reported failure"
		case constants.PaymentStatusRefunded:
			refundAmount := current.Amount.Decimal.Sub(current.RefundedAmount.Decimal)
			if amount != "" {
				parsed, err := decimal.NewFromString(amount)
				if err == nil && parsed.GreaterThan(decimal.Zero) {
					refundAmount = parsed
				}
			}
			current.RefundedAmount = models.NewMoneyFromDecimal(current.RefundedAmount.Decimal.Add(refundAmount))
			if current.RefundedAmount.Decimal.GreaterThanOrEqual(current.Amount.Decimal) {
				current.Status = constants.PaymentStatusRefunded
			} else {
				current.Status = constants.PaymentStatusPartiallyRefunded
			}
			if err := paymentRepo.CreateTransaction(&models.Transaction{
				PaymentID:      current.ID,
				Type:           constants.TransactionTypeRefund,
				Amount:         models.NewMoneyFromDecimal(refundAmount),
				GatewayRef:     current.GatewayRef,
				GatewayEventID: txnEventID,
				Payload:        models.JSON(raw),
			}); err != nil {
				return err
			}
		default:
			current.Status = target
		}

		if err := paymentRepo.Update(current); err != nil {
			return err
		}
		*payment = *current
		return s.derivePaymentStatusTx(tx, current.OrderID)
	})
}

// mapGatewayStatus 网关归一化状态映射到流水状态
func mapGatewayStatus(status string) (string, error) {
	switch status {
	case gateway.StatusCompleted:
		return constants.PaymentStatusCompleted, nil
	case gateway.StatusFailed:
		return constants.PaymentStatusFailed, nil
	case gateway.StatusRefunded:
		return constants.PaymentStatusRefunded, nil
	case gateway.StatusPending:
		return constants.PaymentStatusProcessing, nil
	default:
		return "", gateway.ErrResponseInvalid
	}
}

// Refund 发起退款。
// 仅 completed / partially_refunded 的流水可退，累计退款不得超过支付金额。
func (s *PaymentService) Refund(ctx context.Context, paymentID uint, amount models.Money, reason string) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if payment.Status != constants.PaymentStatusCompleted &&
		payment.Status != constants.PaymentStatusPartiallyRefunded {
		return nil, ErrRefundNotAllowed
	}
	refundable := payment.Amount.Decimal.Sub(payment.RefundedAmount.Decimal)
	if amount.Decimal.LessThanOrEqual(decimal.Zero) || amount.Decimal.GreaterThan(refundable) {
		return nil, ErrRefundAmountInvalid
	}

	var raw map[string]interface{}
	refundRef := payment.GatewayRef
	if payment.Method == constants.PaymentMethodCreditCard || payment.Method == constants.PaymentMethodPaypal {
		gw, err := s.resolver.Resolve(payment.Method)
		if err != nil {
			return nil, ErrPaymentMethodInvalid
		}
		result, err := gw.Refund(ctx, gateway.RefundInput{
			GatewayRef: payment.GatewayRef,
			Amount:     amount.String(),
			Currency:   payment.Currency,
			Reason:     reason,
		})
		if err != nil {
			logger.Warnw("gateway_refund_failed",
				"payment_id", payment.ID,
				"gateway", gw.Name(),
				"error", err,
			)
			return nil, fmt.Errorf("%w: %v", ErrGatewayFailed, err)
		}
		raw = result.Raw
		if result.RefundRef != "" {
			refundRef = result.RefundRef
		}
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)

		current, err := paymentRepo.GetByID(payment.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrPaymentNotFound
		}

		current.RefundedAmount = models.NewMoneyFromDecimal(current.RefundedAmount.Decimal.Add(amount.Decimal))
		if current.RefundedAmount.Decimal.GreaterThanOrEqual(current.Amount.Decimal) {
			current.Status = constants.PaymentStatusRefunded
		} else {
			current.Status = constants.PaymentStatusPartiallyRefunded
		}
		if err := paymentRepo.Update(current); err != nil {
			return err
		}
		if err := paymentRepo.CreateTransaction(&models.Transaction{
			PaymentID:  current.ID,
			Type:       constants.TransactionTypeRefund,
			Amount:     amount,
			GatewayRef: refundRef,
			Payload:    models.JSON(raw),
		}); err != nil {
			return err
		}
		*payment = *current
		return s.derivePaymentStatusTx(tx, current.OrderID)
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("payment_refunded",
		"payment_id", payment.ID,
		"order_id", payment.OrderID,
		"amount", amount.String(),
		"status", payment.Status,
	)
	return payment, nil
}

// derivePaymentStatusTx 重算订单支付状态并落库。
// 首次进入 paid 时写 paid_at，并把 pending 订单推进到 confirmed。
func (s *PaymentService) derivePaymentStatusTx(tx *gorm.DB, orderID uint) error {
	orderRepo := s.orderRepo.WithTx(tx)
	paymentRepo := s.paymentRepo.WithTx(tx)

	order, err := orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	payments, err := paymentRepo.ListByOrderID(orderID)
	if err != nil {
		return err
	}

	derived := DeriveOrderPaymentStatus(order.TotalAmount, payments)
	if derived == order.PaymentStatus {
		return nil
	}

	updates := map[string]interface{}{}
	if derived == constants.OrderPaymentStatusPaid && order.PaidAt == nil {
		updates["paid_at"] = time.Now()
	}
	if err := orderRepo.UpdatePaymentStatus(orderID, derived, updates); err != nil {
		return err
	}

	if derived == constants.OrderPaymentStatusPaid && order.Status == constants.OrderStatusPending {
		if err := orderRepo.UpdateStatus(orderID, constants.OrderStatusConfirmed, nil); err != nil {
			return err
		}
		if err := orderRepo.AppendHistory(&models.OrderStatusHistory{
			OrderID:   orderID,
			Status:    constants.OrderStatusConfirmed,
			Notes:     "payment received",
			CreatedBy: "system",
		}); err != nil {
			return err
		}
	}

	logger.Infow("order_payment_status_derived",
		"order_id", orderID,
		"payment_status", derived,
	)
	return nil
}

// ListByOrder 获取订单支付流水（校验归属）
func (s *PaymentService) ListByOrder(orderID, userID uint) ([]models.Payment, error) {
	order, err := s.orderRepo.GetByIDAndUser(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.paymentRepo.ListByOrderID(order.ID)
}

// Transactions 获取支付交易明细
func (s *PaymentService) Transactions(paymentID uint) ([]models.Transaction, error) {
	payment, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return s.paymentRepo.ListTransactions(paymentID)
}
