package model

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutStatus string

const (
	CheckoutStatusCreated        CheckoutStatus = "CREATED"
	CheckoutStatusPaymentPending CheckoutStatus = "PAYMENT_PENDING"
	CheckoutStatusPaid           CheckoutStatus = "PAID"
	CheckoutStatusFinalized      CheckoutStatus = "FINALIZED"
	CheckoutStatusAbandoned      CheckoutStatus = "ABANDONED"
	CheckoutStatusCancelled      CheckoutStatus = "CANCELLED"
)

// 許可する遷移。FINALIZED/CANCELLEDは終端。
// ABANDONED→PAIDは時間切れ後に署名検証済みの入金が届いたとき。
var checkoutTransitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusCreated:        {CheckoutStatusPaymentPending, CheckoutStatusCancelled},
	CheckoutStatusPaymentPending: {CheckoutStatusPaid, CheckoutStatusAbandoned, CheckoutStatusCancelled},
	CheckoutStatusAbandoned:      {CheckoutStatusPaid},
	CheckoutStatusPaid:           {CheckoutStatusFinalized, CheckoutStatusCancelled},
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusFinalized || s == CheckoutStatusCancelled
}

func (s CheckoutStatus) CanTransitionTo(next CheckoutStatus) bool {
	for _, to := range checkoutTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

func (s CheckoutStatus) String() string {
	return string(s)
}

// 配送先
type ShippingAddress struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

func (a ShippingAddress) IsComplete() bool {
	return strings.TrimSpace(a.Name) != "" &&
		strings.TrimSpace(a.Address) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.PostalCode) != ""
}

func (a ShippingAddress) Value() (driver.Value, error) { return jsonValue(a) }
func (a *ShippingAddress) Scan(src any) error         { return jsonScan(src, a) }

// チェックアウト時点で価格を確定した明細
type LineItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type LineItems []LineItem

func (l LineItems) Value() (driver.Value, error) { return jsonValue(l) }
func (l *LineItems) Scan(src any) error         { return jsonScan(src, l) }

// カートのスナップショット＋配送先。作成後に明細と金額は書き換えない。
type Checkout struct {
	ID                    string          `gorm:"type:uuid;primaryKey" json:"id"`
	SourceCartID          string          `gorm:"type:uuid;not null;index" json:"source_cart_id"`
	UserID                *int64          `gorm:"index" json:"user_id,omitempty"`
	GuestToken            *string         `gorm:"type:varchar(64);index" json:"-"`
	Items                 LineItems       `gorm:"type:jsonb;not null" json:"items"`
	ShippingAddress       ShippingAddress `gorm:"type:jsonb;not null" json:"shipping_address"`
	CouponCode            string          `gorm:"type:varchar(64)" json:"coupon_code,omitempty"`
	Subtotal              decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Shipping              decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping"`
	Discount              decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount"`
	TotalPrice            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Currency              string          `gorm:"type:varchar(3);not null" json:"currency"`
	Status                CheckoutStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentGatewayOrderID string          `gorm:"type:varchar(64)" json:"payment_gateway_order_id,omitempty"`
	PaidAt                *time.Time      `json:"paid_at,omitempty"`
	Version               int64           `gorm:"not null" json:"version"`
	CreatedAt             time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"not null" json:"updated_at"`
}

func (c Checkout) Owner() OwnerKey {
	return ownerFromColumns(c.UserID, c.GuestToken)
}

func (c Checkout) OwnedBy(owner OwnerKey) bool {
	return c.Owner() == owner
}

// 入金確定済み（キャンセル後に確定した入金も含む）
func (c Checkout) IsPaymentConfirmed() bool {
	return c.PaidAt != nil
}

// PAIDか、PAID後にキャンセルされたが入金は確定しているもの
func (c Checkout) CanFinalize() bool {
	if c.Status == CheckoutStatusPaid {
		return true
	}
	return c.Status == CheckoutStatusCancelled && c.IsPaymentConfirmed()
}
