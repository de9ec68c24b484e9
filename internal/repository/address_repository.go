package repository

import (
	"context"

	"shopcheckout/internal/domain/model"
)

// 保存済み住所の読み取り（チェックアウトでaddress_idを指定されたとき）
type AddressRepository interface {
	//住所IDから住所を1件取得
	FindByID(ctx context.Context, addressID int64) (model.Address, error)

	//ユーザーが持つ住所一覧を返す
	ListByUserID(ctx context.Context, userID int64) ([]model.Address, error)
}
