package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	cardDefaultTimeout    = 12 * time.Second
	cardWebhookToleranceS = 300
	cardSignatureHeader   = "Card-Signature"
)

// CardConfig 银行卡网关配置
type CardConfig struct {
	APIKey        string
	WebhookSecret string
	BaseURL       string
	TimeoutMS     int
}

// CardGateway 银行卡网关适配器（Stripe 风格的表单协议 + HMAC webhook 签名）
type CardGateway struct {
	cfg    CardConfig
	client *http.Client
}

// NewCardGateway 创建银行卡网关适配器
func NewCardGateway(cfg CardConfig) (*CardGateway, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.WebhookSecret = strings.TrimSpace(cfg.WebhookSecret)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api_key is required", ErrConfigInvalid)
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base_url is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: base_url is invalid", ErrConfigInvalid)
	}
	timeout := cardDefaultTimeout
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	return &CardGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name 网关标识
func (g *CardGateway) Name() string {
	return "card"
}

// CreateCharge 创建扣款
func (g *CardGateway) CreateCharge(ctx context.Context, input ChargeInput) (*ChargeResult, error) {
	orderNo := strings.TrimSpace(input.OrderNo)
	if orderNo == "" {
		return nil, fmt.Errorf("%w: order_no is required", ErrConfigInvalid)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrConfigInvalid)
	}

	form := url.Values{}
	form.Set("amount", strings.TrimSpace(input.Amount))
	form.Set("currency", strings.ToLower(currency))
	form.Set("description", strings.TrimSpace(input.Description))
	form.Set("metadata[payment_id]", strconv.FormatUint(uint64(input.PaymentID), 10))
	form.Set("metadata[order_no]", orderNo)

	respBody, statusCode, err := g.doFormRequest(ctx, http.MethodPost, "/v1/charges", form)
	if err != nil {
		return nil, err
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: create charge status %d", ErrResponseInvalid, statusCode)
	}

	raw, err := decodeRawMap(respBody)
	if err != nil {
		return nil, err
	}
	result := &ChargeResult{
		GatewayRef: strings.TrimSpace(readString(raw, "id")),
		Status:     mapCardStatus(readString(raw, "status")),
		Raw:        raw,
	}
	if result.GatewayRef == "" {
		return nil, fmt.Errorf("%w: missing charge id", ErrResponseInvalid)
	}
	return result, nil
}

// Refund 创建退款
func (g *CardGateway) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	gatewayRef := strings.TrimSpace(input.GatewayRef)
	if gatewayRef == "" {
		return nil, fmt.Errorf("%w: gateway_ref is required", ErrConfigInvalid)
	}

	form := url.Values{}
	form.Set("charge", gatewayRef)
	form.Set("amount", strings.TrimSpace(input.Amount))
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		form.Set("reason", reason)
	}

	respBody, statusCode, err := g.doFormRequest(ctx, http.MethodPost, "/v1/refunds", form)
	if err != nil {
		return nil, err
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: create refund status %d", ErrResponseInvalid, statusCode)
	}

	raw, err := decodeRawMap(respBody)
	if err != nil {
		return nil, err
	}
	result := &RefundResult{
		RefundRef: strings.TrimSpace(readString(raw, "id")),
		Status:    mapCardStatus(readString(raw, "status")),
		Raw:       raw,
	}
	if result.RefundRef == "" {
		return nil, fmt.Errorf("%w: missing refund id", ErrResponseInvalid)
	}
	return result, nil
}

// ParseWebhookEvent 校验签名并解析 webhook 事件。
// 签名头格式：t=<unix>,v1=<hex hmac-sha256("<t>.<body>")>
func (g *CardGateway) ParseWebhookEvent(headers map[string]string, body []byte, now time.Time) (*Event, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: body is empty", ErrResponseInvalid)
	}
	if now.IsZero() {
		now = time.Now()
	}

	signatureHeader := getHeaderValue(headers, cardSignatureHeader)
	if signatureHeader == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrSignatureInvalid, cardSignatureHeader)
	}
	timestamp, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, err
	}
	if delta := math.Abs(float64(now.Unix() - timestamp)); delta > cardWebhookToleranceS {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
	}

	expected := computeSignature(g.cfg.WebhookSecret, timestamp, body)
	matched := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(strings.ToLower(sig)), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
	}

	raw, err := decodeRawMap(body)
	if err != nil {
		return nil, err
	}
	eventType := strings.TrimSpace(readString(raw, "type"))
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrResponseInvalid)
	}
	objectRaw := readMap(raw, "data")
	if objectRaw == nil {
		return nil, fmt.Errorf("%w: missing data object", ErrResponseInvalid)
	}

	event := &Event{
		EventID:    strings.TrimSpace(readString(raw, "id")),
		EventType:  eventType,
		GatewayRef: strings.TrimSpace(readString(objectRaw, "id")),
		Amount:     strings.TrimSpace(readString(objectRaw, "amount")),
		Currency:   strings.ToUpper(strings.TrimSpace(readString(objectRaw, "currency"))),
		Raw:        raw,
	}
	if event.GatewayRef == "" {
		return nil, fmt.Errorf("%w: missing charge id", ErrResponseInvalid)
	}
	if created := readInt64(objectRaw, "created"); created > 0 {
		occurredAt := time.Unix(created, 0)
		event.OccurredAt = &occurredAt
	}

	switch strings.ToLower(eventType) {
	case "charge.succeeded":
		event.Status = StatusCompleted
	case "charge.failed":
		event.Status = StatusFailed
	case "charge.refunded":
		event.Status = StatusRefunded
	case "charge.pending":
		event.Status = StatusPending
	default:
		event.Status = mapCardStatus(readString(objectRaw, "status"))
	}
	return event, nil
}

func (g *CardGateway) doFormRequest(ctx context.Context, method, path string, form url.Values) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := g.cfg.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

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

func mapCardStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded":
		return StatusCompleted
	case "failed", "canceled":
		return StatusFailed
	case "refunded":
		return StatusRefunded
	default:
		return StatusPending
	}
}

func computeSignature(secret string, timestamp int64, body []byte) string {
	payload := strconv.FormatInt(timestamp, 10) + "." + string(body)
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(payload))
	return strings.ToLower(hex.EncodeToString(h.Sum(nil)))
}

func parseSignatureHeader(signatureHeader string) (int64, []string, error) {
	timestamp := int64(0)
	signatures := make([]string, 0)
	for _, part := range strings.Split(signatureHeader, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil || parsed <= 0 {
				return 0, nil, fmt.Errorf("%w: invalid timestamp", ErrSignatureInvalid)
			}
			timestamp = parsed
		case "v1":
			if value != "" {
				signatures = append(signatures, strings.ToLower(value))
			}
		}
	}
	if timestamp <= 0 {
		return 0, nil, fmt.Errorf("%w: timestamp is missing", ErrSignatureInvalid)
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: v1 signature is missing", ErrSignatureInvalid)
	}
	return timestamp, signatures, nil
}

func getHeaderValue(headers map[string]string, key string) string {
	if len(headers) == 0 || strings.TrimSpace(key) == "" {
		return ""
	}
	for h, value := range headers {
		if strings.EqualFold(strings.TrimSpace(h), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func decodeRawMap(body []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

func readString(raw map[string]interface{}, key string) string {
	if raw == nil || strings.TrimSpace(key) == "" {
		return ""
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case float64:
		return strings.TrimSpace(strconv.FormatFloat(typed, 'f', -1, 64))
	case int64:
		return strings.TrimSpace(strconv.FormatInt(typed, 10))
	case int:
		return strings.TrimSpace(strconv.Itoa(typed))
	default:
		return ""
	}
}

func readMap(raw map[string]interface{}, key string) map[string]interface{} {
	if raw == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return nil
	}
	mapped, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	return mapped
}

func readInt64(raw map[string]interface{}, key string) int64 {
	if raw == nil || strings.TrimSpace(key) == "" {
		return 0
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return 0
	}
	switch typed := value.(type) {
	case int64:
		return typed
	case int:
		return int64(typed)
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatVal, err := typed.Float64()
		if err != nil {
			return 0
		}
		return int64(floatVal)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
