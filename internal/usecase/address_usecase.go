package usecase

import (
	"context"
	"fmt"
	"time"

	"shopcheckout/internal/domain/model"
	repo "shopcheckout/internal/repository"
)

type AddressDTO struct {
	ID         int64  `json:"id"`
	PostalCode string `json:"postal_code"`
	Prefecture string `json:"prefecture"`
	City       string `json:"city"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	IsDefault  bool   `json:"is_default"`
	CreatedAt  string `json:"created_at"`
}

// 保存済み住所の一覧（チェックアウトでaddress_idを選ぶため）
type AddressUsecase struct {
	tx repo.TransactionManager
}

func NewAddressUsecase(tx repo.TransactionManager) *AddressUsecase {
	return &AddressUsecase{tx: tx}
}

func (u *AddressUsecase) List(ctx context.Context, owner model.OwnerKey) ([]AddressDTO, error) {
	// ゲストは住所を持たない
	if !owner.Valid() || owner.IsGuest() {
		return nil, ErrUnauthorized
	}

	var out []AddressDTO
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		list, err := r.Addresses().ListByUserID(ctx, owner.UserID)
		if err != nil {
			return fmt.Errorf("list addresses: %w", err)
		}
		out = make([]AddressDTO, 0, len(list))
		for _, a := range list {
			out = append(out, toAddressDTO(a))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func toAddressDTO(a model.Address) AddressDTO {
	return AddressDTO{
		ID:         a.ID,
		PostalCode: a.PostalCode,
		Prefecture: a.Prefecture,
		City:       a.City,
		Line1:      a.Line1,
		Line2:      a.Line2,
		Name:       a.Name,
		Phone:      a.Phone,
		IsDefault:  a.IsDefault,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}
