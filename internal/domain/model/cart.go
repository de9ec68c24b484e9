package model

import (
	"errors"
	"time"
)

var ErrLineItemNotFound = errors.New("line item not found")

// 1オーナーにつきカートは1つ。
// versionは楽観ロック用で、変更がコミットされるたびに+1。
type Cart struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *int64     `gorm:"index" json:"user_id,omitempty"`
	GuestToken *string    `gorm:"type:varchar(64);index" json:"-"`
	Version    int64      `gorm:"not null" json:"version"`
	Items      []CartItem `gorm:"foreignKey:CartID" json:"items"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`
}

// まだ保存していない空カート（version 0）
func NewCart(id string, owner OwnerKey, now time.Time) Cart {
	userID, guestToken := owner.Columns()
	return Cart{
		ID:         id,
		UserID:     userID,
		GuestToken: guestToken,
		Items:      []CartItem{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (c Cart) Owner() OwnerKey {
	return ownerFromColumns(c.UserID, c.GuestToken)
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) find(key LineKey) int {
	for i, it := range c.Items {
		if it.Key() == key {
			return i
		}
	}
	return -1
}

// 同じ商品・サイズ・色なら数量を足す。価格スナップショットは新しい方。
func (c *Cart) AddItem(item CartItem) {
	if i := c.find(item.Key()); i >= 0 {
		c.Items[i].Quantity += item.Quantity
		c.Items[i].UnitPriceSnapshot = item.UnitPriceSnapshot
		return
	}
	item.CartID = c.ID
	c.Items = append(c.Items, item)
}

// 1未満なら明細を消す
func (c *Cart) SetQuantity(key LineKey, qty int64) error {
	i := c.find(key)
	if i < 0 {
		return ErrLineItemNotFound
	}
	if qty < 1 {
		c.removeAt(i)
		return nil
	}
	c.Items[i].Quantity = qty
	return nil
}

func (c *Cart) RemoveItem(key LineKey) error {
	i := c.find(key)
	if i < 0 {
		return ErrLineItemNotFound
	}
	c.removeAt(i)
	return nil
}

func (c *Cart) removeAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// ゲストカートの中身を取り込む（同じ明細は数量合算、無ければ追加）
func (c *Cart) MergeFrom(guest Cart) {
	for _, it := range guest.Items {
		it.ID = 0
		it.CartID = c.ID
		if i := c.find(it.Key()); i >= 0 {
			c.Items[i].Quantity += it.Quantity
			continue
		}
		c.Items = append(c.Items, it)
	}
}
