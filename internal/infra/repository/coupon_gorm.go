package repository

import (
	"context"
	"errors"
	"fmt"

	"shopcheckout/internal/domain/model"
	repo "shopcheckout/internal/repository"

	"gorm.io/gorm"
)

type CouponGormRepository struct {
	db *gorm.DB
}

func NewCouponGormRepository(db *gorm.DB) *CouponGormRepository {
	return &CouponGormRepository{db: db}
}

func (r *CouponGormRepository) FindByCode(ctx context.Context, code string) (model.Coupon, error) {
	var c model.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Coupon{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Coupon{}, fmt.Errorf("find coupon: %w", err)
	}
	return c, nil
}

// 入金済みの注文は上限を超えても確定させるので、ここでは上限を見ない
func (r *CouponGormRepository) IncrementUsed(ctx context.Context, code string) error {
	res := r.db.WithContext(ctx).
		Model(&model.Coupon{}).
		Where("code = ?", code).
		UpdateColumn("used", gorm.Expr("used + 1"))
	if res.Error != nil {
		return fmt.Errorf("increment coupon usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
