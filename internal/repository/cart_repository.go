package repository

import (
	"context"

	"shopcheckout/internal/domain/model"
)

// カートは明細ごと1集約として保存する。
type CartRepository interface {
	//オーナーのカートを明細つきで取得。無ければErrNotFound
	FindByOwner(ctx context.Context, owner model.OwnerKey) (model.Cart, error)

	//version 1で新規作成。同じオーナーのカートが先に作られていたらErrVersionConflict
	Create(ctx context.Context, cart model.Cart) (model.Cart, error)

	//cart.Versionが一致するときだけ明細を置き換えてversion+1
	Save(ctx context.Context, cart model.Cart) (model.Cart, error)

	//versionが一致するときだけ削除（マージでゲストカートを消費する）
	Delete(ctx context.Context, cartID string, version int64) error

	//明細を全削除してversion+1。カートが無ければ何もしない
	Clear(ctx context.Context, cartID string) error
}
