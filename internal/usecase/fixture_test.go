package usecase_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"shopcheckout/internal/domain/model"
	"shopcheckout/internal/domain/pricing"
	"shopcheckout/internal/usecase"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =====================
// Clock / IDGenerator
// =====================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type uuidGen struct{}

func (uuidGen) NewID() string { return uuid.NewString() }

// =====================
// Port mocks
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) KeyID() string {
	return m.Called().String(0)
}

func (m *GatewayMock) CreateRemoteOrder(ctx context.Context, amount decimal.Decimal, currency string, receipt string) (usecase.RemoteOrder, error) {
	args := m.Called(ctx, amount, currency, receipt)
	o, _ := args.Get(0).(usecase.RemoteOrder)
	return o, args.Error(1)
}

func (m *GatewayMock) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return m.Called(orderID, paymentID, signature).Bool(0)
}

func (m *GatewayMock) VerifyWebhookSignature(body []byte, signature string) bool {
	return m.Called(body, signature).Bool(0)
}

func (m *GatewayMock) ParseWebhookEvent(body []byte) (usecase.WebhookEvent, error) {
	args := m.Called(body)
	ev, _ := args.Get(0).(usecase.WebhookEvent)
	return ev, args.Error(1)
}

type CartCacheMock struct{ mock.Mock }

func (m *CartCacheMock) Get(ctx context.Context, owner model.OwnerKey) (model.Cart, error) {
	args := m.Called(ctx, owner)
	c, _ := args.Get(0).(model.Cart)
	return c, args.Error(1)
}

func (m *CartCacheMock) Generation(ctx context.Context, owner model.OwnerKey) (int64, error) {
	args := m.Called(ctx, owner)
	gen, _ := args.Get(0).(int64)
	return gen, args.Error(1)
}

func (m *CartCacheMock) Set(ctx context.Context, cart model.Cart, generation int64) error {
	return m.Called(ctx, cart, generation).Error(0)
}

func (m *CartCacheMock) Delete(ctx context.Context, owners ...model.OwnerKey) error {
	return m.Called(ctx, owners).Error(0)
}

// 常にミスするキャッシュ
func newMissCache() *CartCacheMock {
	c := new(CartCacheMock)
	c.On("Get", mock.Anything, mock.Anything).Return(model.Cart{}, usecase.ErrCacheMiss).Maybe()
	c.On("Generation", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()
	c.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	c.On("Delete", mock.Anything, mock.Anything).Return(nil).Maybe()
	return c
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) PublishOrderFinalized(ctx context.Context, order model.Order) error {
	return m.Called(ctx, order).Error(0)
}

// =====================
// fixture
// =====================

const testKeyID = "rzp_test_key"

type fixture struct {
	store   *memStore
	clock   *fakeClock
	gateway *GatewayMock
	cache   *CartCacheMock
	events  *PublisherMock

	carts     *usecase.CartUsecase
	checkouts *usecase.CheckoutUsecase
	payments  *usecase.PaymentUsecase
	finalizer *usecase.OrderFinalizer
	orders    *usecase.OrderUsecase
	admin     *usecase.AdminOrderUsecase
	audits    *usecase.AuditLogUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:   newMemStore(),
		clock:   &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		gateway: new(GatewayMock),
		cache:   newMissCache(),
		events:  new(PublisherMock),
	}
	f.gateway.On("KeyID").Return(testKeyID).Maybe()
	f.events.On("PublishOrderFinalized", mock.Anything, mock.Anything).Return(nil).Maybe()

	log := zap.NewNop()
	const retries = 3

	f.carts = usecase.NewCartUsecase(f.store, f.cache, uuidGen{}, f.clock, retries, log)
	f.checkouts = usecase.NewCheckoutUsecase(f.store, f.gateway, uuidGen{}, f.clock, usecase.CheckoutOptions{
		Policy:         pricing.DefaultShippingPolicy(),
		Currency:       "INR",
		GatewayTimeout: time.Second,
		MaxRetries:     retries,
	}, log)
	f.finalizer = usecase.NewOrderFinalizer(f.store, f.cache, f.events, uuidGen{}, f.clock, retries, log)
	f.payments = usecase.NewPaymentUsecase(f.store, f.gateway, f.finalizer, f.clock, retries, log)
	f.orders = usecase.NewOrderUsecase(f.store)
	f.admin = usecase.NewAdminOrderUsecase(f.store, f.clock)
	f.audits = usecase.NewAuditLogUsecase(f.store)

	f.seedProduct(1, "Linen Shirt", "500", 100)
	f.seedProduct(2, "Canvas Cap", "150.50", 5)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) seedProduct(id int64, name, price string, stock int64) {
	f.store.products[id] = model.Product{ID: id, Name: name, Price: dec(price), Stock: stock, IsActive: true}
}

func (f *fixture) setPrice(id int64, price string) {
	f.store.view(func() {
		p := f.store.products[id]
		p.Price = dec(price)
		f.store.products[id] = p
	})
}

func (f *fixture) addToCart(t *testing.T, owner model.OwnerKey, productID int64, qty int64) usecase.CartResponse {
	t.Helper()
	out, err := f.carts.AddItem(context.Background(), owner, usecase.AddCartInput{
		ProductID: productID, Size: "M", Color: "black", Quantity: qty,
	})
	require.NoError(t, err)
	return out
}

// 次のCreateRemoteOrderが返す注文
func (f *fixture) expectRemoteOrder(orderID string) *mock.Call {
	return f.gateway.On("CreateRemoteOrder", mock.Anything, mock.Anything, "INR", mock.Anything).
		Return(usecase.RemoteOrder{ID: orderID, Currency: "INR"}, nil).Once()
}

func testAddress() *model.ShippingAddress {
	return &model.ShippingAddress{
		Name:       "Asha Rao",
		Address:    "12 MG Road",
		City:       "Bengaluru",
		PostalCode: "560001",
		Country:    "IN",
	}
}

// カートに入れてPAYMENT_PENDINGまで進める
func (f *fixture) pendingCheckout(t *testing.T, owner model.OwnerKey, gatewayOrderID string) model.Checkout {
	t.Helper()
	f.addToCart(t, owner, 1, 2)
	f.expectRemoteOrder(gatewayOrderID)

	out, err := f.checkouts.Create(context.Background(), owner, usecase.CreateCheckoutInput{ShippingAddress: testAddress()})
	require.NoError(t, err)
	require.Equal(t, model.CheckoutStatusPaymentPending, out.Checkout.Status)
	return out.Checkout
}

// 署名OKでPAIDまで進める
func (f *fixture) paidCheckout(t *testing.T, owner model.OwnerKey, gatewayOrderID string) model.Checkout {
	t.Helper()
	c := f.pendingCheckout(t, owner, gatewayOrderID)
	f.gateway.On("VerifyPaymentSignature", gatewayOrderID, "pay_"+gatewayOrderID, "good").Return(true)

	paid, err := f.payments.RecordClientPayment(context.Background(), owner, c.ID, usecase.PaymentDetails{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: "pay_" + gatewayOrderID,
		Signature:        "good",
	})
	require.NoError(t, err)
	require.Equal(t, model.CheckoutStatusPaid, paid.Status)
	return paid
}

func (f *fixture) checkout(id string) model.Checkout {
	var c model.Checkout
	f.store.view(func() { c = cloneCheckout(f.store.checkouts[id]) })
	return c
}

func (f *fixture) auditLogs(action model.AuditAction) []model.AuditLog {
	var out []model.AuditLog
	f.store.view(func() {
		for _, l := range f.store.audits {
			if l.Action == action {
				out = append(out, l)
			}
		}
	})
	return out
}

// =====================
// Helper: error status
// =====================

func assertHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	if assert.True(t, ok, "err=%v is not HTTPError", err) {
		assert.Equal(t, want, he.Status, "err=%q", he.Message)
	}
}

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}
