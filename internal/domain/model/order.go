package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type FulfillmentStatus string

const (
	FulfillmentPending    FulfillmentStatus = "PENDING"
	FulfillmentProcessing FulfillmentStatus = "PROCESSING"
	FulfillmentShipped    FulfillmentStatus = "SHIPPED"
	FulfillmentDelivered  FulfillmentStatus = "DELIVERED"
	FulfillmentCancelled  FulfillmentStatus = "CANCELLED"
)

func (s FulfillmentStatus) Valid() bool {
	switch s {
	case FulfillmentPending, FulfillmentProcessing, FulfillmentShipped, FulfillmentDelivered, FulfillmentCancelled:
		return true
	}
	return false
}

// PENDING→PROCESSING→SHIPPED→DELIVERED。出荷前ならCANCELLEDにできる
var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentPending:    {FulfillmentProcessing, FulfillmentCancelled},
	FulfillmentProcessing: {FulfillmentShipped, FulfillmentCancelled},
	FulfillmentShipped:    {FulfillmentDelivered},
}

func (s FulfillmentStatus) CanTransitionTo(next FulfillmentStatus) bool {
	for _, to := range fulfillmentTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPaid PaymentStatus = "PAID"
)

// checkout_idはユニーク（1チェックアウトにつき注文は1件）
type Order struct {
	ID                string            `gorm:"type:uuid;primaryKey" json:"id"`
	CheckoutID        string            `gorm:"type:uuid;not null;uniqueIndex" json:"checkout_id"`
	UserID            *int64            `gorm:"index" json:"user_id,omitempty"`
	GuestToken        *string           `gorm:"type:varchar(64);index" json:"-"`
	Subtotal          decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Shipping          decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"shipping"`
	Discount          decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"discount"`
	TotalPrice        decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Currency          string            `gorm:"type:varchar(3);not null" json:"currency"`
	ShippingAddress   ShippingAddress   `gorm:"type:jsonb;not null" json:"shipping_address"`
	PaymentStatus     PaymentStatus     `gorm:"type:varchar(20);not null" json:"payment_status"`
	PaymentID         string            `gorm:"type:varchar(64)" json:"payment_id,omitempty"`
	FulfillmentStatus FulfillmentStatus `gorm:"type:varchar(20);not null;index" json:"fulfillment_status"`
	Items             []OrderItem       `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt         time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null" json:"updated_at"`
}

func (o Order) Owner() OwnerKey {
	return ownerFromColumns(o.UserID, o.GuestToken)
}
