package repository

import (
	"context"
	"time"

	"shopcheckout/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page              int
	Limit             int
	FulfillmentStatus string
	UserID            *int64
	From              *time.Time
	To                *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (model.Order, error)
	FindByCheckoutID(ctx context.Context, checkoutID string) (model.Order, error)
	ListByOwner(ctx context.Context, owner model.OwnerKey, page int, limit int) ([]model.Order, int64, error)

	//明細は別（OrderItemRepository.CreateBulk）。checkout_idが重複したらErrDuplicate
	Create(ctx context.Context, order model.Order) error
	UpdateFulfillmentStatus(ctx context.Context, orderID string, status model.FulfillmentStatus) error

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
