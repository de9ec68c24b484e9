package repository

import (
	"context"

	"shopcheckout/internal/domain/model"
)

type PaymentAttemptRepository interface {
	Create(ctx context.Context, attempt model.PaymentAttempt) error

	//ゲートウェイ側の注文IDで検索
	FindByCorrelationID(ctx context.Context, correlationID string) (model.PaymentAttempt, error)

	//一番新しい試行
	FindLatestByCheckoutID(ctx context.Context, checkoutID string) (model.PaymentAttempt, error)
	FindConfirmedByCheckoutID(ctx context.Context, checkoutID string) (model.PaymentAttempt, error)

	//CONFIRMEDが既にあるチェックアウトで別の試行をCONFIRMEDにしようとするとErrDuplicate
	Update(ctx context.Context, attempt model.PaymentAttempt) error
}
