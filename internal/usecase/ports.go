package usecase

import (
	"context"
	"time"

	"shopcheckout/internal/domain/model"

	"github.com/shopspring/decimal"
)

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// オーナー単位のカート読み取りキャッシュ。正はDB
type CartCache interface {
	//無ければErrCacheMiss
	Get(ctx context.Context, owner model.OwnerKey) (model.Cart, error)
	//DB読み込みの前に取る。Deleteのたびに進む
	Generation(ctx context.Context, owner model.OwnerKey) (int64, error)
	//generationが進んでいたら書かない
	Set(ctx context.Context, cart model.Cart, generation int64) error
	Delete(ctx context.Context, owners ...model.OwnerKey) error
}

// ゲートウェイ側で作った決済用の注文
type RemoteOrder struct {
	ID       string
	Amount   int64 // 最小単位（paise）
	Currency string
	Receipt  string
}

type WebhookEventType string

const (
	WebhookPaymentCaptured WebhookEventType = "payment.captured"
	WebhookOrderPaid       WebhookEventType = "order.paid"
	WebhookPaymentFailed   WebhookEventType = "payment.failed"
)

type WebhookEvent struct {
	Type             WebhookEventType
	GatewayOrderID   string
	GatewayPaymentID string
}

type PaymentGateway interface {
	//クライアントが決済画面を開くときに使う公開キー
	KeyID() string
	CreateRemoteOrder(ctx context.Context, amount decimal.Decimal, currency string, receipt string) (RemoteOrder, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
	ParseWebhookEvent(body []byte) (WebhookEvent, error)
}

// 注文確定イベントの送信（送れなくても注文は確定済み）
type OrderEventPublisher interface {
	PublishOrderFinalized(ctx context.Context, order model.Order) error
}
