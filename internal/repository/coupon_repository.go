package repository

import (
	"context"

	"shopcheckout/internal/domain/model"
)

type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (model.Coupon, error)

	//注文確定時に利用回数を+1
	IncrementUsed(ctx context.Context, code string) error
}
