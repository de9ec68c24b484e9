package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"shopcheckout/internal/domain/model"
	repo "shopcheckout/internal/repository"
)

// 注文の参照（確定後の読み取り専用）
type OrderUsecase struct {
	tx repo.TransactionManager
}

func NewOrderUsecase(tx repo.TransactionManager) *OrderUsecase {
	return &OrderUsecase{tx: tx}
}

type OrderListOutput struct {
	Items []model.Order `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// 新しい順
func (u *OrderUsecase) ListMyOrders(ctx context.Context, owner model.OwnerKey, page int, limit int) (OrderListOutput, error) {
	if !owner.Valid() {
		return OrderListOutput{}, ErrUnauthorized
	}
	if page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	out := OrderListOutput{Page: page, Limit: limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByOwner(ctx, owner, page, limit)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		out.Items = orders
		out.Total = total
		return nil
	})
	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, owner model.OwnerKey, orderID string) (model.Order, error) {
	if !owner.Valid() {
		return model.Order{}, ErrUnauthorized
	}
	if !isUUID(orderID) {
		return model.Order{}, ErrNotFound
	}

	var out model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("find order: %w", err)
		}
		if o.Owner() != owner {
			//他人の注文は「存在しない扱い」にする
			return ErrNotFound
		}
		out = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return out, nil
}
