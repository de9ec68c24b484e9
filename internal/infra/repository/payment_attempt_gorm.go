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

type PaymentAttemptGormRepository struct {
	db *gorm.DB
}

func NewPaymentAttemptGormRepository(db *gorm.DB) *PaymentAttemptGormRepository {
	return &PaymentAttemptGormRepository{db: db}
}

func (r *PaymentAttemptGormRepository) Create(ctx context.Context, attempt model.PaymentAttempt) error {
	if err := r.db.WithContext(ctx).Create(&attempt).Error; err != nil {
		if isUniqueViolation(err) {
			return repo.ErrDuplicate
		}
		return fmt.Errorf("create payment attempt: %w", err)
	}
	return nil
}

func (r *PaymentAttemptGormRepository) first(q *gorm.DB) (model.PaymentAttempt, error) {
	var a model.PaymentAttempt
	err := q.First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PaymentAttempt{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PaymentAttempt{}, fmt.Errorf("find payment attempt: %w", err)
	}
	return a, nil
}

func (r *PaymentAttemptGormRepository) FindByCorrelationID(ctx context.Context, correlationID string) (model.PaymentAttempt, error) {
	return r.first(r.db.WithContext(ctx).Where("gateway_correlation_id = ?", correlationID))
}

func (r *PaymentAttemptGormRepository) FindLatestByCheckoutID(ctx context.Context, checkoutID string) (model.PaymentAttempt, error) {
	return r.first(r.db.WithContext(ctx).
		Where("checkout_id = ?", checkoutID).
		Order("created_at desc"))
}

func (r *PaymentAttemptGormRepository) FindConfirmedByCheckoutID(ctx context.Context, checkoutID string) (model.PaymentAttempt, error) {
	return r.first(r.db.WithContext(ctx).
		Where("checkout_id = ? AND status = ?", checkoutID, model.PaymentAttemptConfirmed))
}

func (r *PaymentAttemptGormRepository) Update(ctx context.Context, attempt model.PaymentAttempt) error {
	res := r.db.WithContext(ctx).
		Model(&model.PaymentAttempt{}).
		Where("id = ?", attempt.ID).
		Updates(map[string]any{
			"status":               attempt.Status,
			"gateway_payment_id":   attempt.GatewayPaymentID,
			"raw_callback_payload": attempt.RawCallbackPayload,
			"updated_at":           time.Now(),
		})
	if res.Error != nil {
		//payment_attempts_one_confirmed（部分ユニーク）
		if isUniqueViolation(res.Error) {
			return repo.ErrDuplicate
		}
		return fmt.Errorf("update payment attempt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
