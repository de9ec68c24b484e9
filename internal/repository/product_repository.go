package repository

import (
	"context"

	"shopcheckout/internal/domain/model"
)

// 商品カタログの読み取り。価格と在庫の正はここ。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)

	//見つからないIDは結果に含まれない
	FindByIDs(ctx context.Context, ids []int64) ([]model.Product, error)
}
