package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopcheckout/internal/domain/model"
	repo "shopcheckout/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("id asc")
}

// オーナーのカートを明細つきで取得
func (r *CartGormRepository) FindByOwner(ctx context.Context, owner model.OwnerKey) (model.Cart, error) {
	q := r.db.WithContext(ctx).Preload("Items", orderedItems)
	if owner.IsGuest() {
		q = q.Where("guest_token = ?", owner.GuestToken)
	} else {
		q = q.Where("user_id = ?", owner.UserID)
	}

	var cart model.Cart
	err := q.First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, fmt.Errorf("find cart by owner: %w", err)
	}
	return cart, nil
}

// 遅延作成。オーナーごとの部分ユニークインデックスに当たったら、
// 別リクエストが先に作ったのでversion競合として扱う
func (r *CartGormRepository) Create(ctx context.Context, cart model.Cart) (model.Cart, error) {
	items := cart.Items
	cart.Items = nil
	cart.Version = 1

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&cart).Error; err != nil {
		if isUniqueViolation(err) {
			return model.Cart{}, repo.ErrVersionConflict
		}
		return model.Cart{}, fmt.Errorf("create cart: %w", err)
	}

	saved, err := r.insertItems(ctx, cart.ID, items, cart.UpdatedAt)
	if err != nil {
		return model.Cart{}, err
	}
	cart.Items = saved
	return cart, nil
}

// version一致のときだけ明細を丸ごと置き換える
func (r *CartGormRepository) Save(ctx context.Context, cart model.Cart) (model.Cart, error) {
	now := time.Now()

	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ? AND version = ?", cart.ID, cart.Version).
		Updates(map[string]any{
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if res.Error != nil {
		return model.Cart{}, fmt.Errorf("bump cart version: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.Cart{}, repo.ErrVersionConflict
	}

	if err := r.db.WithContext(ctx).Where("cart_id = ?", cart.ID).Delete(&model.CartItem{}).Error; err != nil {
		return model.Cart{}, fmt.Errorf("delete cart items: %w", err)
	}

	saved, err := r.insertItems(ctx, cart.ID, cart.Items, now)
	if err != nil {
		return model.Cart{}, err
	}

	cart.Items = saved
	cart.Version++
	cart.UpdatedAt = now
	return cart, nil
}

func (r *CartGormRepository) insertItems(ctx context.Context, cartID string, items []model.CartItem, now time.Time) ([]model.CartItem, error) {
	out := make([]model.CartItem, 0, len(items))
	for _, it := range items {
		it.ID = 0
		it.CartID = cartID
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		it.UpdatedAt = now
		out = append(out, it)
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := r.db.WithContext(ctx).Create(&out).Error; err != nil {
		return nil, fmt.Errorf("insert cart items: %w", err)
	}
	return out, nil
}

// 明細はON DELETE CASCADEで消える
func (r *CartGormRepository) Delete(ctx context.Context, cartID string, version int64) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND version = ?", cartID, version).
		Delete(&model.Cart{})
	if res.Error != nil {
		return fmt.Errorf("delete cart: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrVersionConflict
	}
	return nil
}

// 注文確定時に元カートを空にする。versionは無条件で進める
func (r *CartGormRepository) Clear(ctx context.Context, cartID string) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("bump cart version: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		//マージ済みなどでカートが無い
		return nil
	}

	if err := r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error; err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	return nil
}
