package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shopcheckout/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type Config struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

// RazorpayClient はRazorpay互換のOrders APIと署名検証
type RazorpayClient struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[usecase.RemoteOrder]
}

var _ usecase.PaymentGateway = (*RazorpayClient)(nil)

// 4xxはゲートウェイ障害として数えない
type requestError struct {
	status int
	body   string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("gateway rejected request: status=%d body=%s", e.status, e.body)
}

func NewRazorpayClient(cfg Config, log *zap.Logger) *RazorpayClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	st := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var re *requestError
			return err == nil || errors.As(err, &re)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &RazorpayClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[usecase.RemoteOrder](st),
	}
}

func (c *RazorpayClient) KeyID() string {
	return c.cfg.KeyID
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// CreateRemoteOrder は金額を最小単位に直してゲートウェイ側の注文を作る
func (c *RazorpayClient) CreateRemoteOrder(ctx context.Context, amount decimal.Decimal, currency string, receipt string) (usecase.RemoteOrder, error) {
	if !amount.IsPositive() {
		return usecase.RemoteOrder{}, fmt.Errorf("amount must be positive: %s", amount)
	}
	payload := createOrderRequest{
		Amount:   amount.Shift(2).Round(0).IntPart(),
		Currency: currency,
		Receipt:  receipt,
	}
	return c.breaker.Execute(func() (usecase.RemoteOrder, error) {
		return c.createOrder(ctx, payload)
	})
}

func (c *RazorpayClient) createOrder(ctx context.Context, payload createOrderRequest) (usecase.RemoteOrder, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return usecase.RemoteOrder{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return usecase.RemoteOrder{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return usecase.RemoteOrder{}, fmt.Errorf("create order: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return usecase.RemoteOrder{}, fmt.Errorf("read order response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return usecase.RemoteOrder{}, fmt.Errorf("gateway error: status=%d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return usecase.RemoteOrder{}, &requestError{status: resp.StatusCode, body: string(raw)}
	}

	var out orderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return usecase.RemoteOrder{}, fmt.Errorf("decode order response: %w", err)
	}
	if out.ID == "" {
		return usecase.RemoteOrder{}, errors.New("gateway returned order without id")
	}
	return usecase.RemoteOrder{
		ID:       out.ID,
		Amount:   out.Amount,
		Currency: out.Currency,
		Receipt:  out.Receipt,
	}, nil
}

// VerifyPaymentSignature はcheckout画面から返る "order_id|payment_id" の署名を確かめる
func (c *RazorpayClient) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return verifyHMAC([]byte(orderID+"|"+paymentID), c.cfg.KeySecret, signature)
}

// VerifyWebhookSignature は生のbodyに対する署名
func (c *RazorpayClient) VerifyWebhookSignature(body []byte, signature string) bool {
	if len(body) == 0 || signature == "" {
		return false
	}
	return verifyHMAC(body, c.cfg.WebhookSecret, signature)
}

type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

func (c *RazorpayClient) ParseWebhookEvent(body []byte) (usecase.WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return usecase.WebhookEvent{}, fmt.Errorf("decode webhook: %w", err)
	}
	if p.Event == "" {
		return usecase.WebhookEvent{}, errors.New("webhook event is missing")
	}

	ev := usecase.WebhookEvent{Type: usecase.WebhookEventType(p.Event)}
	if p.Payload.Payment != nil {
		ev.GatewayPaymentID = p.Payload.Payment.Entity.ID
		ev.GatewayOrderID = p.Payload.Payment.Entity.OrderID
	}
	//order.paidはorder側にもIDが入る
	if ev.GatewayOrderID == "" && p.Payload.Order != nil {
		ev.GatewayOrderID = p.Payload.Order.Entity.ID
	}
	return ev, nil
}

// Sign はテストやローカル検証用に同じ方式で署名を作る
func Sign(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHMAC(message []byte, secret string, signature string) bool {
	want, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hmac.Equal(mac.Sum(nil), want)
}
