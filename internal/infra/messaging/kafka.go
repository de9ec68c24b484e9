package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shopcheckout/internal/domain/model"
	"shopcheckout/internal/usecase"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const EventOrderFinalized = "order.finalized"

// kafka.Writerのうち使う分だけ
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// 確定1件ごとに同期で送るので、既定の1秒バッチは待たない
const publishBatchTimeout = 10 * time.Millisecond

// KafkaOrderPublisher は確定した注文をorder-eventsトピックに流す
type KafkaOrderPublisher struct {
	writer messageWriter
}

var _ usecase.OrderEventPublisher = (*KafkaOrderPublisher)(nil)

func NewKafkaOrderPublisher(topic string, brokers ...string) *KafkaOrderPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           publishBatchTimeout,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaOrderPublisher{writer: w}
}

type orderItemEvent struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
}

// ゲストトークンは載せない
type orderFinalizedEvent struct {
	EventType   string           `json:"event_type"`
	OrderID     string           `json:"order_id"`
	CheckoutID  string           `json:"checkout_id"`
	UserID      *int64           `json:"user_id,omitempty"`
	Guest       bool             `json:"guest"`
	Items       []orderItemEvent `json:"items"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
	Shipping    decimal.Decimal  `json:"shipping"`
	Discount    decimal.Decimal  `json:"discount"`
	TotalAmount decimal.Decimal  `json:"total_amount"`
	Currency    string           `json:"currency"`
	PaymentID   string           `json:"payment_id"`
	FinalizedAt time.Time        `json:"finalized_at"`
}

func newOrderFinalizedEvent(o model.Order) orderFinalizedEvent {
	ev := orderFinalizedEvent{
		EventType:   EventOrderFinalized,
		OrderID:     o.ID,
		CheckoutID:  o.CheckoutID,
		Guest:       o.Owner().IsGuest(),
		Items:       make([]orderItemEvent, 0, len(o.Items)),
		Subtotal:    o.Subtotal,
		Shipping:    o.Shipping,
		Discount:    o.Discount,
		TotalAmount: o.TotalPrice,
		Currency:    o.Currency,
		PaymentID:   o.PaymentID,
		FinalizedAt: o.CreatedAt,
	}
	if !ev.Guest {
		ev.UserID = o.UserID
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, orderItemEvent{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Size:      it.Size,
			Color:     it.Color,
			UnitPrice: it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
	}
	return ev
}

func (p *KafkaOrderPublisher) PublishOrderFinalized(ctx context.Context, order model.Order) error {
	payload, err := json.Marshal(newOrderFinalizedEvent(order))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.CheckoutID), // checkout_id単位で順序を保つ
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderFinalized)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", EventOrderFinalized, err)
	}
	return nil
}

func (p *KafkaOrderPublisher) Close() error {
	return p.writer.Close()
}
