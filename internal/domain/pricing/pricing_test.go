package pricing

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s got %s", want, got)
}

func TestComputeTotals_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		lines        []Line
		coupon       *Coupon
		wantSubtotal string
		wantShipping string
		wantDiscount string
		wantTotal    string
	}{
		{
			name:         "subtotal at threshold ships free",
			lines:        []Line{{UnitPrice: dec("500"), Quantity: 2}},
			wantSubtotal: "1000", wantShipping: "0", wantDiscount: "0", wantTotal: "1000",
		},
		{
			name:         "subtotal below threshold pays flat fee",
			lines:        []Line{{UnitPrice: dec("400"), Quantity: 2}},
			wantSubtotal: "800", wantShipping: "100", wantDiscount: "0", wantTotal: "900",
		},
		{
			name:         "empty lines",
			lines:        nil,
			wantSubtotal: "0", wantShipping: "100", wantDiscount: "0", wantTotal: "100",
		},
		{
			name:         "percent coupon",
			lines:        []Line{{UnitPrice: dec("999"), Quantity: 1}, {UnitPrice: dec("1"), Quantity: 1}},
			coupon:       &Coupon{Type: CouponPercent, Value: dec("15")},
			wantSubtotal: "1000", wantShipping: "0", wantDiscount: "150", wantTotal: "850",
		},
		{
			name:         "percent coupon rounds to cents",
			lines:        []Line{{UnitPrice: dec("333.33"), Quantity: 1}},
			coupon:       &Coupon{Type: CouponPercent, Value: dec("10")},
			wantSubtotal: "333.33", wantShipping: "100", wantDiscount: "33.33", wantTotal: "400",
		},
		{
			name:         "fixed coupon",
			lines:        []Line{{UnitPrice: dec("250"), Quantity: 2}},
			coupon:       &Coupon{Type: CouponFixed, Value: dec("50")},
			wantSubtotal: "500", wantShipping: "100", wantDiscount: "50", wantTotal: "550",
		},
		{
			name:         "fixed coupon floored at zero",
			lines:        []Line{{UnitPrice: dec("30"), Quantity: 1}},
			coupon:       &Coupon{Type: CouponFixed, Value: dec("80")},
			wantSubtotal: "30", wantShipping: "100", wantDiscount: "30", wantTotal: "100",
		},
		{
			name:         "unknown coupon type is ignored",
			lines:        []Line{{UnitPrice: dec("100"), Quantity: 1}},
			coupon:       &Coupon{Type: "bogo", Value: dec("80")},
			wantSubtotal: "100", wantShipping: "100", wantDiscount: "0", wantTotal: "200",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.lines, tt.coupon, DefaultShippingPolicy())

			assertDecimal(t, tt.wantSubtotal, got.Subtotal)
			assertDecimal(t, tt.wantShipping, got.Shipping)
			assertDecimal(t, tt.wantDiscount, got.Discount)
			assertDecimal(t, tt.wantTotal, got.Total)
		})
	}
}

func TestComputeTotals_Properties(t *testing.T) {
	policy := DefaultShippingPolicy()

	for i := 0; i < 200; i++ {
		n := gofakeit.IntRange(1, 5)
		lines := make([]Line, 0, n)
		for j := 0; j < n; j++ {
			lines = append(lines, Line{
				UnitPrice: decimal.NewFromFloat(gofakeit.Price(1, 900)).Round(2),
				Quantity:  int64(gofakeit.IntRange(1, 4)),
			})
		}
		var coupon *Coupon
		if gofakeit.Bool() {
			coupon = &Coupon{Type: CouponPercent, Value: decimal.NewFromInt(int64(gofakeit.IntRange(0, 100)))}
		}

		got := ComputeTotals(lines, coupon, policy)

		// 決定的
		again := ComputeTotals(lines, coupon, policy)
		assert.True(t, got.Total.Equal(again.Total))
		assert.True(t, got.Discount.Equal(again.Discount))

		// total = subtotal - discount + shipping
		assert.True(t, got.Total.Equal(got.Subtotal.Sub(got.Discount).Add(got.Shipping)))

		if got.Subtotal.GreaterThanOrEqual(policy.FreeThreshold) {
			assert.True(t, got.Shipping.IsZero())
		} else {
			assert.True(t, got.Shipping.Equal(policy.FlatFee))
		}
		assert.False(t, got.Discount.GreaterThan(got.Subtotal))
	}
}
