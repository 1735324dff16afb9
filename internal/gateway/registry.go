package gateway

import (
	"fmt"
	"strings"

	"github.com/bazaar-next/internal/config"
)

// Resolver 按支付方式解析网关
type Resolver interface {
	Resolve(method string) (Gateway, error)
}

// Registry 静态网关注册表，按封闭的支付方式集合分发。
// cash_on_delivery / bank_transfer 为线下方式，不经过网关。
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry 根据配置构建网关注册表
func NewRegistry(cfg *config.GatewaysConfig) (*Registry, error) {
	registry := &Registry{gateways: make(map[string]Gateway)}
	if cfg == nil {
		return registry, nil
	}

	if cfg.Card.Enabled {
		card, err := NewCardGateway(CardConfig{
			APIKey:        cfg.Card.APIKey,
			WebhookSecret: cfg.Card.WebhookSecret,
			BaseURL:       cfg.Card.BaseURL,
			TimeoutMS:     cfg.Card.TimeoutMS,
		})
		if err != nil {
			return nil, fmt.Errorf("card gateway: %w", err)
		}
		registry.gateways["credit_card"] = card
	}

	if cfg.Paypal.Enabled {
		paypal, err := NewPaypalGateway(PaypalConfig{
			ClientID:  cfg.Paypal.APIKey,
			Secret:    cfg.Paypal.APISecret,
			WebhookID: cfg.Paypal.WebhookSecret,
			BaseURL:   cfg.Paypal.BaseURL,
			TimeoutMS: cfg.Paypal.TimeoutMS,
		})
		if err != nil {
			return nil, fmt.Errorf("paypal gateway: %w", err)
		}
		registry.gateways["paypal"] = paypal
	}

	return registry, nil
}

// Register 注册网关（测试注入用）
func (r *Registry) Register(method string, gw Gateway) {
	if r.gateways == nil {
		r.gateways = make(map[string]Gateway)
	}
	r.gateways[strings.TrimSpace(method)] = gw
}

// Resolve 按支付方式解析网关
func (r *Registry) Resolve(method string) (Gateway, error) {
	gw, ok := r.gateways[strings.TrimSpace(method)]
	if !ok || gw == nil {
		return nil, fmt.Errorf("%w: %s", ErrMethodUnsupported, method)
	}
	return gw, nil
}
