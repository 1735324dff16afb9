package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/gateway"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/repository"

	"github.com/shopspring/decimal"
)

// fakeGateway 测试桩：按预置结果应答，记录调用次数。
type fakeGateway struct {
	chargeResult *gateway.ChargeResult
	chargeErr    error
	refundResult *gateway.RefundResult
	refundErr    error
	event        *gateway.Event
	eventErr     error

	chargeCalls int
	refundCalls int
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreateCharge(ctx context.Context, input gateway.ChargeInput) (*gateway.ChargeResult, error) {
	g.chargeCalls++
	return g.chargeResult, g.chargeErr
}

func (g *fakeGateway) Refund(ctx context.Context, input gateway.RefundInput) (*gateway.RefundResult, error) {
	g.refundCalls++
	return g.refundResult, g.refundErr
}

func (g *fakeGateway) ParseWebhookEvent(headers map[string]string, body []byte, now time.Time) (*gateway.Event, error) {
	return g.event, g.eventErr
}

type paymentTestEnv struct {
	*checkoutTestEnv
	svc         *PaymentService
	paymentRepo repository.PaymentRepository
	gw          *fakeGateway
}

func setupPaymentServiceTest(t *testing.T) *paymentTestEnv {
	t.Helper()
	env := setupCheckoutServiceTest(t)
	if err := env.db.AutoMigrate(&models.Payment{}, &models.Transaction{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	paymentRepo := repository.NewPaymentRepository(env.db)
	gw := &fakeGateway{}
	registry, err := gateway.NewRegistry(nil)
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}
	registry.Register(constants.PaymentMethodCreditCard, gw)
	svc := NewPaymentService(env.orderRepo, paymentRepo, registry)
	return &paymentTestEnv{
		checkoutTestEnv: env,
		svc:             svc,
		paymentRepo:     paymentRepo,
		gw:              gw,
	}
}

func createPayableOrder(t *testing.T, env *paymentTestEnv, userID uint, total float64) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNo:       generateOrderNo(),
		UserID:        userID,
		Status:        constants.OrderStatusPending,
		PaymentStatus: constants.OrderPaymentStatusUnpaid,
		Currency:      constants.SiteCurrencyDefault,
		Subtotal:      money(total),
		TotalAmount:   money(total),
	}
	if err := env.orderRepo.Create(order, nil); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func TestDeriveOrderPaymentStatus(t *testing.T) {
	total := money(300)
	cases := []struct {
		name     string
		payments []models.Payment
		want     string
	}{
		{"no payments", nil, constants.OrderPaymentStatusUnpaid},
		{"pending only", []models.Payment{
			{Status: constants.PaymentStatusPending, Amount: money(300)},
		}, constants.OrderPaymentStatusUnpaid},
		{"partial", []models.Payment{
			{Status: constants.PaymentStatusCompleted, Amount: money(100)},
		}, constants.OrderPaymentStatusPartiallyPaid},
		{"paid", []models.Payment{
			{Status: constants.PaymentStatusCompleted, Amount: money(100)},
			{Status: constants.PaymentStatusCompleted, Amount: money(200)},
		}, constants.OrderPaymentStatusPaid},
		{"partially refunded", []models.Payment{
			{Status: constants.PaymentStatusPartiallyRefunded, Amount: money(300), RefundedAmount: money(100)},
		}, constants.OrderPaymentStatusPartiallyRefunded},
		{"fully refunded", []models.Payment{
			{Status: constants.PaymentStatusRefunded, Amount: money(300), RefundedAmount: money(300)},
		}, constants.OrderPaymentStatusRefunded},
		{"failed ignored", []models.Payment{
			{Status: constants.PaymentStatusFailed, Amount: money(300)},
		}, constants.OrderPaymentStatusUnpaid},
	}
	for _, tc := range cases {
		if got := DeriveOrderPaymentStatus(total, tc.payments); got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestCashOnDeliveryCompletesImmediately(t *testing.T) {
	env := setupPaymentServiceTest(t)
	user, _ := createCheckoutUser(t, env.db, "cod@example.com")
	order := createPayableOrder(t, env, user.ID, 150)

	payment, err := env.svc.CreatePayment(context.Background(), order.ID, user.ID, constants.PaymentMethodCashOnDelivery)
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if payment.Status != constants.PaymentStatusCompleted || payment.CompletedAt == nil {
		t.Fatalf("unexpected payment: %+v", payment)
	}

	txs, err := env.paymentRepo.ListTransactions(payment.ID)
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	if len(txs) != 1 || txs[0].Type != constants.TransactionTypePayment {
		t.Fatalf("unexpected transactions: %+v", txs)
	}

	fresh, _ := env.orderRepo.GetByID(order.ID)
	if fresh.PaymentStatus != constants.OrderPaymentStatusPaid {
		t.Fatalf("expected order paid, got %s", fresh.PaymentStatus)
	}
	if fresh.Status != constants.OrderStatusConfirmed {
		t.Fatalf("expected order confirmed, got %s", fresh.Status)
	}
	if fresh.PaidAt == nil {
		t.Fatalf("expected paid_at set")
	}

	// 已结清订单拒绝再次支付
	if _, err := env.svc.CreatePayment(context.Background(), order.ID, user.ID, constants.PaymentMethodCashOnDelivery); !errors.Is(err, ErrOrderAlreadyPaid) {
		t.Fatalf("expected already paid, got: %v", err)
	}
}

func TestBankTransferStaysPending(t *testing.T) {
	env := setupPaymentServiceTest(t)
	user, _ := createCheckoutUser(t, env.db, "bank@example.com")
	order := createPayableOrder(t, env, user.ID, 80)

	payment, err := env.svc.CreatePayment(context.Background(), order.ID, user.ID, constants.PaymentMethodBankTransfer)
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if payment.Status != constants.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", payment.Status)
	}
	fresh, _ := env.orderRepo.GetByID(order.ID)
	if fresh.PaymentStatus != constants.OrderPaymentStatusUnpaid {
		t.Fatalf("pending payment must not cover the order, got %s", fresh.PaymentStatus)
	}
}

func TestGatewayChargeSyncCompleted(t *testing.T) {
	env := setupPaymentServiceTest(t)
	user, _ := createCheckoutUser(t, env.db, "card@example.com")
	order := createPayableOrder(t, env, user.ID, 200)
	env.gw.chargeResult = &gateway.ChargeResult{
		GatewayRef: "ch_sync_1",
		Status:     gateway.StatusCompleted,
		Raw:        map[string]interface{}{"id": "ch_sync_1"},
	}

	payment, err := env.svc.CreatePayment(context.Background(), order.ID, user.ID, constants.PaymentMethodCreditCard)
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if payment.Status != constants.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %s", payment.Status)
	}
	if payment.GatewayRef != "ch_sync_1" {
		t.Fatalf("unexpected gateway ref: %s", payment.GatewayRef)
	}
	fresh, _ := env.orderRepo.GetByID(order.ID)
	if fresh.PaymentStatus != constants.OrderPaymentStatusPaid || fresh.Status != constants.OrderStatusConfirmed {
		t.Fatalf("unexpected order state: %s / %s", fresh.PaymentStatus, fresh.Status)
	}
}

func TestGatewayChargeFailure(t *testing.T) {
	env := setupPaymentServiceTest(t)
	user, _ := createCheckoutUser(t, env.db, "declined@example.com")
	order := createPayableOrder(t, env, user.ID, 200)
	env.gw.chargeErr = fmt.Errorf("%w: card declined", gateway.ErrRequestFailed)

	payment, err := env.svc.CreatePayment(context.Background(), order.ID, user.ID, constants.PaymentMethodCreditCard)
	if !errors.Is(err, ErrGatewayFailed) {
		t.Fatalf("expected gateway failed, got: %v", err)
	}
	if payment == nil || payment.Status != constants.PaymentStatusFailed {
		t.Fatalf("expected failed payment record, got: %+v", payment)
	}
	if payment.FailureReason == "" {
		t.Fatalf("expected failure reason recorded")
	}

	fresh, _ := env.orderRepo.GetByID(order.ID)
	if fresh.PaymentStatus != constants.OrderPaymentStatusUnpaid {
		t.Fatalf("failed payment must not cover the order, got %s", fresh.PaymentStatus)
	}
}

func TestWebhookCompletedIsIdempotent(t *testing.T) {
	env := setupPaymentServiceTest(t)
	user, _ := createCheckoutUser(t, env.db, "webhook@example.com")
	order := createPayableOrder(t, env, user.ID, 200)
	env.gw.chargeResult = &gateway.ChargeResult{
		GatewayRef: "ch_async_1",
		Status:     gateway.StatusPending,
		Raw:        map[string]interface{}{"id": "ch_async_1"},
	}

	payment, err := env.svc.CreatePayment(context.Background(), order.ID, user.ID, constants.PaymentMethodCreditCard)
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if payment.Status != constants.PaymentStatusProcessing {
		t.Fatalf("expected processing, got %s", payment.Status)
	}

	env.gw.event = &gateway.Event{
		EventID:    "evt_1",
		EventType:  "charge.succeeded",
		GatewayRef: "ch_async_1",
		Status:     gateway.StatusCompleted,
		Raw:        map[string]interface{}{"id": "evt_1"},
	}

	for i := 0; i < 3; i++ {
		if _, err := env.svc.HandleWebhook(context.Background(), constants.PaymentMethodCreditCard, nil, nil); err != nil {
			t.Fatalf("webhook %d failed: %v", i, err)
		}
	}

	// 回放只刷新回执：交易仅记一笔，订单状态不漂移
	txs, err := env.paymentRepo.ListTransactions(payment.ID)
	if err != nil {
		t.Fatalf("list transactions failed: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected exactly 1 transaction after replay, got %d", len(txs))
	}
	fresh, _ := env.orderRepo.GetByID(order.ID)
	if fresh.PaymentStatus != constants.OrderPaymentStatusPaid || fresh.Status != constants.OrderStatusConfirmed {
		t.Fatalf("unexpected order state after replay: %s / %s", fresh.PaymentStatus, fresh.Status)
	}
	history, _ := env.orderRepo.ListHistory(order.ID)
	if len(history) != 1 {
		t.Fatalf("expected single confirmation history entry, got %d", len(history))
	}
}

func TestWebhookPartialRefundReplayIsIdempotent(t *testing.T) {
	env := setupPaymentServiceTest(t)
	user, _ := createCheckoutUser(t, env.db, "refundreplay@example.com")
	order := createPayableOrder(t, env, user.ID, 300)
	env.gw.chargeResult = &gateway.ChargeResult{
		GatewayRef: "ch_replay_1",
		Status:     gateway.StatusCompleted,
		Raw:        map[string]interface{}{"id": "ch_replay_1"},
	}

	payment, err := env.svc.CreatePayment(context.Background(), order.ID, user.ID, constants.PaymentMethodCreditCard)
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	// 部分退款事件重复投递三次：金额只记一次
	env.gw.event = &gateway.Event{
		EventID:    "evt_refund_1",
		EventType:  "charge.refunded",
		GatewayRef: "ch_replay_1",
		Status:     gateway.StatusRefunded,
		Amount:     "100",
		Raw:        map[string]interface{}{"id": "evt_refund_1"},
	}
	for i := 0; i < 3; i++ {
		if _, err := env.svc.HandleWebhook(context.Background(), constants.PaymentMethodCreditCard, nil, nil); err != nil {
			t.Fatalf("webhook %d failed: %v", i, err)
		}
	}

	fresh, _ := env.paymentRepo.GetByID(payment.ID)
	if fresh.Status != constants.PaymentStatusPartiallyRefunded {
		t.Fatalf("expected partially refunded, got %s", fresh.Status)
	}
	if !fresh.RefundedAmount.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected refunded amount 100, got %s", fresh.RefundedAmount.String())
	}
	txs, _ := env.paymentRepo.ListTransactions(payment.ID)
	if len(txs) != 2 {
		t.Fatalf("expected payment + 1 refund transaction after replay, got %d", len(txs))
	}

	// 迟到的 completed 事件不得把已退款流水拉回 completed
	env.gw.event = &gateway.Event{
		EventID:    "evt_late_completed",
		EventType:  "charge.succeeded",
		GatewayRef: "ch_replay_1",
		Status:     gateway.StatusCompleted,
		Raw:        map[string]interface{}{"id": "evt_late_completed"},
	}
	if _, err := env.svc.HandleWebhook(context.Background(), constants.PaymentMethodCreditCard, nil, nil); err != nil {
		t.Fatalf("late webhook failed: %v", err)
	}
	fresh, _ = env.paymentRepo.GetByID(payment.ID)
	if fresh.Status != constants.PaymentStatusPartiallyRefunded {
		t.Fatalf("late completed must not regress status, got %s", fresh.Status)
	}
	txs, _ = env.paymentRepo.ListTransactions(payment.ID)
	if len(txs) != 2 {
		t.Fatalf("late completed must not add a transaction, got %d", len(txs))
	}
	freshOrder, _ := env.orderRepo.GetByID(order.ID)
	if freshOrder.PaymentStatus != constants.OrderPaymentStatusPartiallyRefunded {
		t.Fatalf("expected order partially refunded, got %s", freshOrder.PaymentStatus)
	}
}

func TestWebhookUnknownRef(t *testing.T) {
	env := setupPaymentServiceTest(t)
	env.gw.event = &gateway.Event{
		EventID:    "evt_ghost",
		GatewayRef: "ch_ghost",
		Status:     gateway.StatusCompleted,
	}
	if _, err := env.svc.HandleWebhook(context.Background(), constants.PaymentMethodCreditCard, nil, nil); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected payment not found, got: %v", err)
	}
}

func TestRefundLifecycle(t *testing.T) {
	env := setupPaymentServiceTest(t)
	user, _ := createCheckoutUser(t, env.db, "refund@example.com")
	order := createPayableOrder(t, env, user.ID, 300)

	payment, err := env.svc.CreatePayment(context.Background(), order.ID, user.ID, constants.PaymentMethodCashOnDelivery)
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	// 第一笔部分退款
	refunded, err := env.svc.Refund(context.Background(), payment.ID, money(100), "damaged item")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.Status != constants.PaymentStatusPartiallyRefunded {
		t.Fatalf("expected partially refunded, got %s", refunded.Status)
	}
	fresh, _ := env.orderRepo.GetByID(order.ID)
	if fresh.PaymentStatus != constants.OrderPaymentStatusPartiallyRefunded {
		t.Fatalf("expected order partially refunded, got %s", fresh.PaymentStatus)
	}

	// 超出可退余额被拒绝
	if _, err := env.svc.Refund(context.Background(), payment.ID, money(250), ""); !errors.Is(err, ErrRefundAmountInvalid) {
		t.Fatalf("expected refund amount invalid, got: %v", err)
	}

	// 退完剩余金额
	refunded, err = env.svc.Refund(context.Background(), payment.ID, money(200), "order cancelled")
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if refunded.Status != constants.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", refunded.Status)
	}
	if !refunded.RefundedAmount.Decimal.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("unexpected refunded amount: %s", refunded.RefundedAmount.String())
	}
	fresh, _ = env.orderRepo.GetByID(order.ID)
	if fresh.PaymentStatus != constants.OrderPaymentStatusRefunded {
		t.Fatalf("expected order refunded, got %s", fresh.PaymentStatus)
	}

	txs, _ := env.paymentRepo.ListTransactions(payment.ID)
	if len(txs) != 3 {
		t.Fatalf("expected payment + 2 refund transactions, got %d", len(txs))
	}

	// 已退完的流水不可再退
	if _, err := env.svc.Refund(context.Background(), payment.ID, money(1), ""); !errors.Is(err, ErrRefundNotAllowed) {
		t.Fatalf("expected refund not allowed, got: %v", err)
	}
}

func TestRefundRejectedForPendingPayment(t *testing.T) {
	env := setupPaymentServiceTest(t)
	user, _ := createCheckoutUser(t, env.db, "pendingrefund@example.com")
	order := createPayableOrder(t, env, user.ID, 90)

	payment, err := env.svc.CreatePayment(context.Background(), order.ID, user.ID, constants.PaymentMethodBankTransfer)
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if _, err := env.svc.Refund(context.Background(), payment.ID, money(10), ""); !errors.Is(err, ErrRefundNotAllowed) {
		t.Fatalf("expected refund not allowed, got: %v", err)
	}
}

func TestCreatePaymentGuards(t *testing.T) {
	env := setupPaymentServiceTest(t)
	user, _ := createCheckoutUser(t, env.db, "guards@example.com")
	order := createPayableOrder(t, env, user.ID, 50)

	if _, err := env.svc.CreatePayment(context.Background(), order.ID, user.ID, "sea-shells"); !errors.Is(err, ErrPaymentMethodInvalid) {
		t.Fatalf("expected method invalid, got: %v", err)
	}
	if _, err := env.svc.CreatePayment(context.Background(), order.ID, user.ID+1, constants.PaymentMethodCashOnDelivery); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found for other user, got: %v", err)
	}

	env.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", constants.OrderStatusCancelled)
	if _, err := env.svc.CreatePayment(context.Background(), order.ID, user.ID, constants.PaymentMethodCashOnDelivery); !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("expected status invalid for cancelled order, got: %v", err)
	}
}
