// Package pricing は明細から小計・送料・割引・合計を計算する。
// 副作用なし。同じ入力なら必ず同じ結果になる（チェックアウト作成時の再計算で使う）。
package pricing

import (
	"github.com/shopspring/decimal"
)

type CouponType string

const (
	CouponPercent CouponType = "percent"
	CouponFixed   CouponType = "fixed"
)

func (t CouponType) Valid() bool {
	return t == CouponPercent || t == CouponFixed
}

type Coupon struct {
	Type  CouponType
	Value decimal.Decimal
}

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int64
}

// 小計がFreeThreshold以上なら送料0、それ以外はFlatFee
type ShippingPolicy struct {
	FreeThreshold decimal.Decimal
	FlatFee       decimal.Decimal
}

func DefaultShippingPolicy() ShippingPolicy {
	return ShippingPolicy{
		FreeThreshold: decimal.NewFromInt(1000),
		FlatFee:       decimal.NewFromInt(100),
	}
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// total = subtotal - discount + shipping
func ComputeTotals(lines []Line, coupon *Coupon, policy ShippingPolicy) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
	}

	shipping := policy.FlatFee
	if subtotal.GreaterThanOrEqual(policy.FreeThreshold) {
		shipping = decimal.Zero
	}

	discount := decimal.Zero
	if coupon != nil {
		discount = coupon.DiscountOn(subtotal)
	}

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Discount: discount,
		Total:    subtotal.Sub(discount).Add(shipping),
	}
}

// 割引額。小計を超えない（割引後の小計は0で下げ止まり）。
func (c Coupon) DiscountOn(subtotal decimal.Decimal) decimal.Decimal {
	if c.Value.IsNegative() || subtotal.IsNegative() {
		return decimal.Zero
	}

	var d decimal.Decimal
	switch c.Type {
	case CouponPercent:
		d = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2)
	case CouponFixed:
		d = c.Value
	default:
		return decimal.Zero
	}

	if d.GreaterThan(subtotal) {
		return subtotal
	}
	return d
}
