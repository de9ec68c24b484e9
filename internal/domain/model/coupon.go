package model

import (
	"errors"
	"time"

	"shopcheckout/internal/domain/pricing"

	"github.com/shopspring/decimal"
)

var (
	ErrCouponNotStarted = errors.New("coupon is not valid yet")
	ErrCouponExpired    = errors.New("coupon expired")
	ErrCouponUsedUp     = errors.New("coupon usage limit reached")
)

// クーポン（percent / fixed）。UsageLimitが0なら無制限。
type Coupon struct {
	Code       string             `gorm:"type:varchar(64);primaryKey" json:"code"`
	Type       pricing.CouponType `gorm:"type:varchar(10);not null" json:"type"`
	Value      decimal.Decimal    `gorm:"type:numeric(12,2);not null" json:"value"`
	ValidFrom  *time.Time         `json:"valid_from,omitempty"`
	ValidTo    *time.Time         `json:"valid_to,omitempty"`
	UsageLimit int64              `gorm:"not null;default:0" json:"usage_limit"`
	Used       int64              `gorm:"not null;default:0" json:"used"`
	CreatedAt  time.Time          `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time          `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 期間と利用回数のチェック
func (c Coupon) CheckUsable(now time.Time) error {
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return ErrCouponNotStarted
	}
	if c.ValidTo != nil && now.After(*c.ValidTo) {
		return ErrCouponExpired
	}
	if c.UsageLimit > 0 && c.Used >= c.UsageLimit {
		return ErrCouponUsedUp
	}
	return nil
}

func (c Coupon) Pricing() pricing.Coupon {
	return pricing.Coupon{Type: c.Type, Value: c.Value}
}
