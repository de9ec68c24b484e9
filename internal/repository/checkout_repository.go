package repository

import (
	"context"
	"time"

	"shopcheckout/internal/domain/model"
)

type CheckoutRepository interface {
	//version 1で作成
	Create(ctx context.Context, checkout model.Checkout) (model.Checkout, error)
	FindByID(ctx context.Context, checkoutID string) (model.Checkout, error)

	//status / 決済関連の列をCASで更新。明細と金額は書き換えない
	Save(ctx context.Context, checkout model.Checkout) (model.Checkout, error)

	//statusのままupdated_atがbeforeより古いもの（古い順）
	ListStale(ctx context.Context, status model.CheckoutStatus, before time.Time, limit int) ([]model.Checkout, error)
}
