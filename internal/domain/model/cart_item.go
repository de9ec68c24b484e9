package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 明細の一意キー
type LineKey struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// カートの明細
// 追加時点の価格を必ず保存（チェックアウト時には使わず再取得する）。
type CartItem struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	CartID            string          `gorm:"type:uuid;not null;index" json:"-"`
	ProductID         int64           `gorm:"not null" json:"product_id"`
	Size              string          `gorm:"type:varchar(32);not null" json:"size"`
	Color             string          `gorm:"type:varchar(32);not null" json:"color"`
	Quantity          int64           `gorm:"not null" json:"quantity"`
	UnitPriceSnapshot decimal.Decimal `gorm:"type:numeric(12,2);not null;column:unit_price_snapshot" json:"unit_price_snapshot"`
	CreatedAt         time.Time       `gorm:"not null" json:"-"`
	UpdatedAt         time.Time       `gorm:"not null" json:"-"`
}

func (i CartItem) Key() LineKey {
	return LineKey{ProductID: i.ProductID, Size: i.Size, Color: i.Color}
}
