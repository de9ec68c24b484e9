package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"shopcheckout/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *RazorpayClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewRazorpayClient(Config{
		BaseURL:       srv.URL + "/",
		KeyID:         "rzp_test_key",
		KeySecret:     "key-secret",
		WebhookSecret: "hook-secret",
		Timeout:       2 * time.Second,
	}, zap.NewNop())
}

func TestRazorpayClient_CreateRemoteOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "key-secret", pass)

		var req createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(90050), req.Amount)
		assert.Equal(t, "INR", req.Currency)
		assert.Equal(t, "chk-1", req.Receipt)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_abc","entity":"order","amount":90050,"currency":"INR","receipt":"chk-1","status":"created"}`))
	})

	got, err := c.CreateRemoteOrder(context.Background(), decimal.RequireFromString("900.50"), "INR", "chk-1")
	require.NoError(t, err)
	assert.Equal(t, usecase.RemoteOrder{ID: "order_abc", Amount: 90050, Currency: "INR", Receipt: "chk-1"}, got)
	assert.Equal(t, "rzp_test_key", c.KeyID())
}

func TestRazorpayClient_CreateRemoteOrder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusBadGateway, body: `{}`},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"description":"amount too small"}}`},
		{name: "broken json", status: http.StatusOK, body: `{"id":`},
		{name: "no id", status: http.StatusOK, body: `{"amount":100}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.CreateRemoteOrder(context.Background(), decimal.NewFromInt(10), "INR", "chk-1")
			assert.Error(t, err)
		})
	}
}

func TestRazorpayClient_CreateRemoteOrder_RejectsZeroAmount(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	_, err := c.CreateRemoteOrder(context.Background(), decimal.Zero, "INR", "chk-1")
	assert.Error(t, err)
	assert.Zero(t, calls.Load())
}

func TestRazorpayClient_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.CreateRemoteOrder(ctx, decimal.NewFromInt(10), "INR", "chk-1")
		require.Error(t, err)
	}
	_, err := c.CreateRemoteOrder(ctx, decimal.NewFromInt(10), "INR", "chk-1")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), calls.Load())
}

func TestRazorpayClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	for i := 0; i < 7; i++ {
		_, err := c.CreateRemoteOrder(context.Background(), decimal.NewFromInt(10), "INR", "chk-1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.Equal(t, int32(7), calls.Load())
}

func TestRazorpayClient_CreateRemoteOrder_ContextCancel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.CreateRemoteOrder(ctx, decimal.NewFromInt(10), "INR", "chk-1")
	assert.Error(t, err)
}

func TestRazorpayClient_VerifyPaymentSignature(t *testing.T) {
	c := NewRazorpayClient(Config{KeySecret: "key-secret", WebhookSecret: "hook-secret"}, zap.NewNop())
	sig := Sign([]byte("order_abc|pay_xyz"), "key-secret")

	assert.True(t, c.VerifyPaymentSignature("order_abc", "pay_xyz", sig))
	assert.False(t, c.VerifyPaymentSignature("order_abc", "pay_other", sig))
	assert.False(t, c.VerifyPaymentSignature("order_abc", "pay_xyz", Sign([]byte("order_abc|pay_xyz"), "hook-secret")))
	assert.False(t, c.VerifyPaymentSignature("order_abc", "pay_xyz", "not-hex"))
	assert.False(t, c.VerifyPaymentSignature("", "pay_xyz", sig))
}

func TestRazorpayClient_VerifyWebhookSignature(t *testing.T) {
	c := NewRazorpayClient(Config{KeySecret: "key-secret", WebhookSecret: "hook-secret"}, zap.NewNop())
	body := []byte(`{"event":"payment.captured"}`)

	assert.True(t, c.VerifyWebhookSignature(body, Sign(body, "hook-secret")))
	assert.False(t, c.VerifyWebhookSignature(body, Sign(body, "key-secret")))
	assert.False(t, c.VerifyWebhookSignature([]byte(`{"event":"order.paid"}`), Sign(body, "hook-secret")))
	assert.False(t, c.VerifyWebhookSignature(body, ""))
}

func TestRazorpayClient_ParseWebhookEvent(t *testing.T) {
	c := NewRazorpayClient(Config{}, zap.NewNop())

	tests := []struct {
		name string
		body string
		want usecase.WebhookEvent
	}{
		{
			name: "payment captured",
			body: `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","status":"captured"}}}}`,
			want: usecase.WebhookEvent{Type: usecase.WebhookPaymentCaptured, GatewayOrderID: "order_1", GatewayPaymentID: "pay_1"},
		},
		{
			name: "order paid",
			body: `{"event":"order.paid","payload":{"order":{"entity":{"id":"order_2"}},"payment":{"entity":{"id":"pay_2","order_id":"order_2"}}}}`,
			want: usecase.WebhookEvent{Type: usecase.WebhookOrderPaid, GatewayOrderID: "order_2", GatewayPaymentID: "pay_2"},
		},
		{
			name: "order only",
			body: `{"event":"order.paid","payload":{"order":{"entity":{"id":"order_3"}}}}`,
			want: usecase.WebhookEvent{Type: usecase.WebhookOrderPaid, GatewayOrderID: "order_3"},
		},
		{
			name: "unknown event",
			body: `{"event":"refund.created","payload":{}}`,
			want: usecase.WebhookEvent{Type: "refund.created"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ParseWebhookEvent([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := c.ParseWebhookEvent([]byte(`not json`))
	assert.Error(t, err)
	_, err = c.ParseWebhookEvent([]byte(`{"payload":{}}`))
	assert.Error(t, err)
}
