package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopcheckout/internal/domain/model"
	repo "shopcheckout/internal/repository"

	"gorm.io/gorm"
)

type CheckoutGormRepository struct {
	db *gorm.DB
}

func NewCheckoutGormRepository(db *gorm.DB) *CheckoutGormRepository {
	return &CheckoutGormRepository{db: db}
}

func (r *CheckoutGormRepository) Create(ctx context.Context, checkout model.Checkout) (model.Checkout, error) {
	checkout.Version = 1
	if err := r.db.WithContext(ctx).Create(&checkout).Error; err != nil {
		if isUniqueViolation(err) {
			return model.Checkout{}, repo.ErrDuplicate
		}
		return model.Checkout{}, fmt.Errorf("create checkout: %w", err)
	}
	return checkout, nil
}

func (r *CheckoutGormRepository) FindByID(ctx context.Context, checkoutID string) (model.Checkout, error) {
	var c model.Checkout
	err := r.db.WithContext(ctx).Where("id = ?", checkoutID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Checkout{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Checkout{}, fmt.Errorf("find checkout: %w", err)
	}
	return c, nil
}

// 明細と金額は作成時のまま。動くのはstatusと決済関連だけ
func (r *CheckoutGormRepository) Save(ctx context.Context, checkout model.Checkout) (model.Checkout, error) {
	now := time.Now()

	res := r.db.WithContext(ctx).
		Model(&model.Checkout{}).
		Where("id = ? AND version = ?", checkout.ID, checkout.Version).
		Updates(map[string]any{
			"status":                   checkout.Status,
			"payment_gateway_order_id": checkout.PaymentGatewayOrderID,
			"paid_at":                  checkout.PaidAt,
			"version":                  gorm.Expr("version + 1"),
			"updated_at":               now,
		})
	if res.Error != nil {
		return model.Checkout{}, fmt.Errorf("save checkout: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.Checkout{}, repo.ErrVersionConflict
	}

	checkout.Version++
	checkout.UpdatedAt = now
	return checkout, nil
}

func (r *CheckoutGormRepository) ListStale(ctx context.Context, status model.CheckoutStatus, before time.Time, limit int) ([]model.Checkout, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var items []model.Checkout
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, before).
		Order("updated_at asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return []model.Checkout{}, fmt.Errorf("list stale checkouts: %w", err)
	}
	return items, nil
}
