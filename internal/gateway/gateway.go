package gateway

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConfigInvalid     = errors.New("gateway config invalid")
	ErrRequestFailed     = errors.New("gateway request failed")
	ErrResponseInvalid   = errors.New("gateway response invalid")
	ErrSignatureInvalid  = errors.New("gateway signature invalid")
	ErrMethodUnsupported = errors.New("payment method unsupported")
)

// 网关归一化状态
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)

// ChargeInput 创建扣款输入
type ChargeInput struct {
	OrderNo     string
	PaymentID   uint
	Amount      string
	Currency    string
	Description string
}

// ChargeResult 创建扣款返回
type ChargeResult struct {
	GatewayRef string
	Status     string
	Raw        map[string]interface{}
}

// RefundInput 退款输入
type RefundInput struct {
	GatewayRef string
	Amount     string
	Currency   string
	Reason     string
}

// RefundResult 退款返回
type RefundResult struct {
	RefundRef string
	Status    string
	Raw       map[string]interface{}
}

// Event 解析后的 webhook 事件
type Event struct {
	EventID    string
	EventType  string
	GatewayRef string
	Status     string
	Amount     string
	Currency   string
	OccurredAt *time.Time
	Raw        map[string]interface{}
}

// Gateway 支付网关适配器边界。
// 实现方负责协议细节与签名校验，返回归一化状态；
// 账本语义（幂等、状态推导）一律在服务层处理。
type Gateway interface {
	Name() string
	CreateCharge(ctx context.Context, input ChargeInput) (*ChargeResult, error)
	Refund(ctx context.Context, input RefundInput) (*RefundResult, error)
	ParseWebhookEvent(headers map[string]string, body []byte, now time.Time) (*Event, error)
}
