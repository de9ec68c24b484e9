package model

import "time"

type PaymentAttemptStatus string

const (
	PaymentAttemptInitiated PaymentAttemptStatus = "INITIATED"
	PaymentAttemptConfirmed PaymentAttemptStatus = "CONFIRMED"
	PaymentAttemptFailed    PaymentAttemptStatus = "FAILED"
)

// 決済の試行。失敗したら同じチェックアウトで作り直せる。
// CONFIRMEDになれるのは1チェックアウトにつき1件だけ。
type PaymentAttempt struct {
	ID                   string               `gorm:"type:uuid;primaryKey" json:"id"`
	CheckoutID           string               `gorm:"type:uuid;not null;index" json:"checkout_id"`
	GatewayCorrelationID string               `gorm:"type:varchar(64);not null;uniqueIndex" json:"gateway_correlation_id"`
	GatewayPaymentID     string               `gorm:"type:varchar(64)" json:"gateway_payment_id,omitempty"`
	Status               PaymentAttemptStatus `gorm:"type:varchar(20);not null" json:"status"`
	RawCallbackPayload   string               `gorm:"type:text" json:"-"`
	CreatedAt            time.Time            `gorm:"not null" json:"created_at"`
	UpdatedAt            time.Time            `gorm:"not null" json:"updated_at"`
}
