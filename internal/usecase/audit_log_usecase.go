package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"shopcheckout/internal/domain/model"
	repo "shopcheckout/internal/repository"
)

// AuditLogUsecase は管理者向けの監査ログ閲覧。
// 署名を拒否した決済通知やキャンセル、出荷ステータス変更の記録を追える。
type AuditLogUsecase struct {
	tx repo.TransactionManager
}

func NewAuditLogUsecase(tx repo.TransactionManager) *AuditLogUsecase {
	return &AuditLogUsecase{tx: tx}
}

type AuditLogListOutput struct {
	Items []model.AuditLog `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func (u *AuditLogUsecase) List(ctx context.Context, f repo.AuditTrailFilter) (AuditLogListOutput, error) {
	if f.Page < 1 {
		return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	f.Action = model.AuditAction(strings.ToUpper(strings.TrimSpace(string(f.Action))))
	if f.Action != "" && !f.Action.Valid() {
		return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid action")
	}
	f.ResourceType = model.AuditResourceType(strings.ToLower(strings.TrimSpace(string(f.ResourceType))))
	if f.ResourceType != "" && !f.ResourceType.Valid() {
		return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid resource_type")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "from must be before to")
	}

	out := AuditLogListOutput{Page: f.Page, Limit: f.Limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		entries, total, err := r.AuditLogs().ListTrail(ctx, f)
		if err != nil {
			return fmt.Errorf("list audit logs: %w", err)
		}
		out.Items = entries
		out.Total = total
		return nil
	})
	if err != nil {
		return AuditLogListOutput{}, err
	}
	return out, nil
}
