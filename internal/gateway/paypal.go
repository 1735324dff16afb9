package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const paypalDefaultTimeout = 12 * time.Second

// PaypalConfig PayPal 网关配置
type PaypalConfig struct {
	ClientID  string
	Secret    string
	WebhookID string
	BaseURL   string
	TimeoutMS int
}

// PaypalGateway PayPal 网关适配器（OAuth2 + Orders v2 + 官方验签接口）
type PaypalGateway struct {
	cfg    PaypalConfig
	client *http.Client
}

// NewPaypalGateway 创建 PayPal 网关适配器
func NewPaypalGateway(cfg PaypalConfig) (*PaypalGateway, error) {
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	cfg.WebhookID = strings.TrimSpace(cfg.WebhookID)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.ClientID == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("%w: client_id and secret are required", ErrConfigInvalid)
	}
	if cfg.WebhookID == "" {
		return nil, fmt.Errorf("%w: webhook_id is required", ErrConfigInvalid)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base_url is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: base_url is invalid", ErrConfigInvalid)
	}
	timeout := paypalDefaultTimeout
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	return &PaypalGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name 网关标识
func (g *PaypalGateway) Name() string {
	return "paypal"
}

// CreateCharge 创建 PayPal 订单
func (g *PaypalGateway) CreateCharge(ctx context.Context, input ChargeInput) (*ChargeResult, error) {
	orderNo := strings.TrimSpace(input.OrderNo)
	if orderNo == "" {
		return nil, fmt.Errorf("%w: order_no is required", ErrConfigInvalid)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrConfigInvalid)
	}

	token, err := g.fetchAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"reference_id": orderNo,
				"custom_id":    fmt.Sprintf("%d", input.PaymentID),
				"description":  strings.TrimSpace(input.Description),
				"amount": map[string]interface{}{
					"currency_code": currency,
					"value":         strings.TrimSpace(input.Amount),
				},
			},
		},
	}

	respBody, statusCode, err := g.doJSONRequest(ctx, token, http.MethodPost, "/v2/checkout/orders", payload)
	if err != nil {
		return nil, err
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: create order status %d", ErrResponseInvalid, statusCode)
	}

	raw, err := decodeRawMap(respBody)
	if err != nil {
		return nil, err
	}
	result := &ChargeResult{
		GatewayRef: strings.TrimSpace(readString(raw, "id")),
		Status:     mapPaypalStatus(readString(raw, "status")),
		Raw:        raw,
	}
	if result.GatewayRef == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrResponseInvalid)
	}
	return result, nil
}

// Refund 对已捕获的交易退款
func (g *PaypalGateway) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	gatewayRef := strings.TrimSpace(input.GatewayRef)
	if gatewayRef == "" {
		return nil, fmt.Errorf("%w: gateway_ref is required", ErrConfigInvalid)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))

	token, err := g.fetchAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"amount": map[string]interface{}{
			"currency_code": currency,
			"value":         strings.TrimSpace(input.Amount),
		},
	}
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		payload["note_to_payer"] = reason
	}

	path := fmt.Sprintf("/v2/payments/captures/%s/refund", url.PathEscape(gatewayRef))
	respBody, statusCode, err := g.doJSONRequest(ctx, token, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: refund status %d", ErrResponseInvalid, statusCode)
	}

	raw, err := decodeRawMap(respBody)
	if err != nil {
		return nil, err
	}
	result := &RefundResult{
		RefundRef: strings.TrimSpace(readString(raw, "id")),
		Status:    mapPaypalStatus(readString(raw, "status")),
		Raw:       raw,
	}
	if result.RefundRef == "" {
		return nil, fmt.Errorf("%w: missing refund id", ErrResponseInvalid)
	}
	return result, nil
}

// ParseWebhookEvent 通过官方验签接口校验并解析 webhook 事件
func (g *PaypalGateway) ParseWebhookEvent(headers map[string]string, body []byte, now time.Time) (*Event, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: body is empty", ErrResponseInvalid)
	}

	var eventRaw map[string]interface{}
	if err := json.Unmarshal(body, &eventRaw); err != nil {
		return nil, fmt.Errorf("%w: decode event failed", ErrResponseInvalid)
	}

	if err := g.verifyWebhookSignature(headers, eventRaw); err != nil {
		return nil, err
	}

	eventType := strings.TrimSpace(readString(eventRaw, "event_type"))
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrResponseInvalid)
	}
	resource := readMap(eventRaw, "resource")
	if resource == nil {
		return nil, fmt.Errorf("%w: missing resource", ErrResponseInvalid)
	}

	event := &Event{
		EventID:    strings.TrimSpace(readString(eventRaw, "id")),
		EventType:  eventType,
		GatewayRef: strings.TrimSpace(readString(resource, "id")),
		Raw:        eventRaw,
	}
	if amount := readMap(resource, "amount"); amount != nil {
		event.Amount = strings.TrimSpace(readString(amount, "value"))
		event.Currency = strings.ToUpper(strings.TrimSpace(readString(amount, "currency_code")))
	}
	if createTime := strings.TrimSpace(readString(eventRaw, "create_time")); createTime != "" {
		if parsed, err := time.Parse(time.RFC3339, createTime); err == nil {
			event.OccurredAt = &parsed
		}
	}
	if event.GatewayRef == "" {
		return nil, fmt.Errorf("%w: missing resource id", ErrResponseInvalid)
	}

	switch strings.ToUpper(eventType) {
	case "PAYMENT.CAPTURE.COMPLETED", "CHECKOUT.ORDER.APPROVED":
		event.Status = StatusCompleted
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		event.Status = StatusFailed
	case "PAYMENT.CAPTURE.REFUNDED":
		event.Status = StatusRefunded
	case "PAYMENT.CAPTURE.PENDING":
		event.Status = StatusPending
	default:
		event.Status = mapPaypalStatus(readString(resource, "status"))
	}
	return event, nil
}

func (g *PaypalGateway) verifyWebhookSignature(headers map[string]string, eventRaw map[string]interface{}) error {
	payload := map[string]interface{}{
		"auth_algo":         getHeaderValue(headers, "Paypal-Auth-Algo"),
		"cert_url":          getHeaderValue(headers, "Paypal-Cert-Url"),
		"transmission_id":   getHeaderValue(headers, "Paypal-Transmission-Id"),
		"transmission_sig":  getHeaderValue(headers, "Paypal-Transmission-Sig"),
		"transmission_time": getHeaderValue(headers, "Paypal-Transmission-Time"),
		"webhook_id":        g.cfg.WebhookID,
		"webhook_event":     eventRaw,
	}
	for key, value := range payload {
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %s is missing", ErrSignatureInvalid, key)
		}
	}

	token, err := g.fetchAccessToken(context.Background())
	if err != nil {
		return err
	}
	respBody, statusCode, err := g.doJSONRequest(context.Background(), token, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload)
	if err != nil {
		return err
	}
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("%w: verify status %d", ErrSignatureInvalid, statusCode)
	}
	raw, err := decodeRawMap(respBody)
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(readString(raw, "verification_status")), "SUCCESS") {
		return fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}
	return nil
}

func (g *PaypalGateway) fetchAccessToken(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build token request failed", ErrRequestFailed)
	}
	req.SetBasicAuth(g.cfg.ClientID, g.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read token response failed", ErrResponseInvalid)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: token status %d", ErrResponseInvalid, resp.StatusCode)
	}
	raw, err := decodeRawMap(body)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(readString(raw, "access_token"))
	if token == "" {
		return "", fmt.Errorf("%w: missing access_token", ErrResponseInvalid)
	}
	return token, nil
}

func (g *PaypalGateway) doJSONRequest(ctx context.Context, token, method, path string, payload interface{}) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: marshal payload failed", ErrRequestFailed)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	return body, resp.StatusCode, nil
}

func mapPaypalStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "COMPLETED", "APPROVED":
		return StatusCompleted
	case "DECLINED", "DENIED", "VOIDED":
		return StatusFailed
	case "REFUNDED":
		return StatusRefunded
	default:
		return StatusPending
	}
}
