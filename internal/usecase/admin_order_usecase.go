package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shopcheckout/internal/domain/model"
	repo "shopcheckout/internal/repository"
)

type AdminOrderUsecase struct {
	tx    repo.TransactionManager
	clock Clock
}

func NewAdminOrderUsecase(tx repo.TransactionManager, clock Clock) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, clock: clock}
}

type AdminUpdateFulfillmentInput struct {
	Status string
}

// 注文一覧（出荷ステータスで絞り込み）
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.FulfillmentStatus != "" && !model.FulfillmentStatus(f.FulfillmentStatus).Valid() {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	out := OrderListOutput{Page: f.Page, Limit: f.Limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
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

// 出荷ステータス更新（監査ログつき）
func (u *AdminOrderUsecase) UpdateFulfillmentStatus(ctx context.Context, actorAdminUserID int64, orderID string, in AdminUpdateFulfillmentInput) (model.Order, error) {
	if actorAdminUserID <= 0 {
		return model.Order{}, ErrUnauthorized
	}
	if !isUUID(orderID) {
		return model.Order{}, ErrNotFound
	}

	newStatus := model.FulfillmentStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	if !newStatus.Valid() {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid status")
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

		// すでに同じなら何もしない（200）
		if o.FulfillmentStatus == newStatus {
			out = o
			return nil
		}
		if !o.FulfillmentStatus.CanTransitionTo(newStatus) {
			return NewHTTPError(http.StatusConflict, "cannot change "+strings.ToLower(string(o.FulfillmentStatus))+" order to "+strings.ToLower(string(newStatus)))
		}

		before := o.FulfillmentStatus
		if err := r.Orders().UpdateFulfillmentStatus(ctx, orderID, newStatus); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("update fulfillment status: %w", err)
		}

		beforeJSON, _ := json.Marshal(map[string]string{"fulfillment_status": string(before)})
		afterJSON, _ := json.Marshal(map[string]string{"fulfillment_status": string(newStatus)})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  &actorAdminUserID,
			Action:       model.AuditActionUpdateFulfillmentStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   string(beforeJSON),
			AfterJSON:    string(afterJSON),
			CreatedAt:    u.clock.Now(),
		}); err != nil {
			return fmt.Errorf("create audit log: %w", err)
		}

		o.FulfillmentStatus = newStatus
		out = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return out, nil
}

// 期間パラメータ（RFC3339）。空なら指定なし
func ParseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
