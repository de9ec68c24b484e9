package usecase

import (
	"context"
	"errors"
	"fmt"

	"shopcheckout/internal/domain/model"
	repo "shopcheckout/internal/repository"

	"go.uber.org/zap"
)

// 別のリクエストが先に注文を作った（checkout_id重複）
var errOrderExists = errors.New("order already exists for checkout")

// OrderFinalizer は入金済みチェックアウトから注文を1件だけ作る。
// Webhookとクライアントの /finalize の両方から呼ばれる。
type OrderFinalizer struct {
	tx         repo.TransactionManager
	cache      CartCache
	events     OrderEventPublisher
	ids        IDGenerator
	clock      Clock
	maxRetries uint64
	log        *zap.Logger
}

func NewOrderFinalizer(
	tx repo.TransactionManager,
	cache CartCache,
	events OrderEventPublisher,
	ids IDGenerator,
	clock Clock,
	maxRetries uint64,
	log *zap.Logger,
) *OrderFinalizer {
	return &OrderFinalizer{
		tx:         tx,
		cache:      cache,
		events:     events,
		ids:        ids,
		clock:      clock,
		maxRetries: maxRetries,
		log:        log,
	}
}

// FinalizeForOwner はオーナー本人からの確定依頼（POST /checkout/:id/finalize）
func (f *OrderFinalizer) FinalizeForOwner(ctx context.Context, owner model.OwnerKey, checkoutID string) (model.Order, error) {
	if !owner.Valid() {
		return model.Order{}, ErrUnauthorized
	}
	err := f.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := findOwnedCheckout(ctx, r, owner, checkoutID)
		return err
	})
	if err != nil {
		return model.Order{}, err
	}
	return f.Finalize(ctx, checkoutID)
}

// Finalize は何度呼んでも同じ注文を返す。
// 注文作成・チェックアウトのFINALIZED・カートのクリアは1トランザクション。
func (f *OrderFinalizer) Finalize(ctx context.Context, checkoutID string) (model.Order, error) {
	var (
		order   model.Order
		created bool
		owner   model.OwnerKey
	)

	err := retryOnConflict(ctx, f.maxRetries, func() error {
		created = false
		return f.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			c, err := r.Checkouts().FindByID(ctx, checkoutID)
			if errors.Is(err, repo.ErrNotFound) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("find checkout: %w", err)
			}

			if c.Status == model.CheckoutStatusFinalized {
				existing, err := r.Orders().FindByCheckoutID(ctx, c.ID)
				if err != nil {
					return fmt.Errorf("find order: %w", err)
				}
				order = existing
				return nil
			}
			if !c.CanFinalize() {
				return ErrCheckoutNotPaid
			}

			paymentID := ""
			attempt, err := r.PaymentAttempts().FindConfirmedByCheckoutID(ctx, c.ID)
			if err == nil {
				paymentID = attempt.GatewayPaymentID
			} else if !errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("find confirmed attempt: %w", err)
			}

			o := f.buildOrder(c, paymentID)
			if err := r.Orders().Create(ctx, o); err != nil {
				if errors.Is(err, repo.ErrDuplicate) {
					return errOrderExists
				}
				return fmt.Errorf("create order: %w", err)
			}
			items := append([]model.OrderItem(nil), o.Items...)
			if err := r.OrderItems().CreateBulk(ctx, o.ID, items); err != nil {
				return fmt.Errorf("create order items: %w", err)
			}

			//キャンセル後に入金が確定したものもここで確定させる
			c.Status = model.CheckoutStatusFinalized
			if _, err := r.Checkouts().Save(ctx, c); err != nil {
				return err
			}

			if err := r.Carts().Clear(ctx, c.SourceCartID); err != nil {
				return fmt.Errorf("clear cart: %w", err)
			}

			if c.CouponCode != "" {
				if err := r.Coupons().IncrementUsed(ctx, c.CouponCode); err != nil && !errors.Is(err, repo.ErrNotFound) {
					return fmt.Errorf("increment coupon usage: %w", err)
				}
			}

			order = o
			created = true
			owner = c.Owner()
			return nil
		})
	})

	if errors.Is(err, errOrderExists) {
		//ロールバック済み。先に作られた注文を返す
		return f.existingOrder(ctx, checkoutID)
	}
	if err != nil {
		return model.Order{}, err
	}

	if created {
		f.afterCommit(ctx, owner, order)
	}
	return order, nil
}

func (f *OrderFinalizer) existingOrder(ctx context.Context, checkoutID string) (model.Order, error) {
	var order model.Order
	err := f.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByCheckoutID(ctx, checkoutID)
		if err != nil {
			return fmt.Errorf("find order: %w", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return order, nil
}

// コミット後。失敗しても注文は確定しているのでログだけ
func (f *OrderFinalizer) afterCommit(ctx context.Context, owner model.OwnerKey, order model.Order) {
	if err := f.cache.Delete(ctx, owner); err != nil {
		f.log.Warn("cart cache invalidate failed", zap.String("owner", owner.String()), zap.Error(err))
	}
	if err := f.events.PublishOrderFinalized(ctx, order); err != nil {
		f.log.Error("order event publish failed", zap.String("order_id", order.ID), zap.Error(err))
	}

	f.log.Info("order finalized",
		zap.String("order_id", order.ID),
		zap.String("checkout_id", order.CheckoutID),
		zap.String("total", order.TotalPrice.StringFixed(2)),
	)
}

func (f *OrderFinalizer) buildOrder(c model.Checkout, paymentID string) model.Order {
	now := f.clock.Now()
	id := f.ids.NewID()

	items := make([]model.OrderItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, model.OrderItem{
			OrderID:             id,
			ProductID:           it.ProductID,
			ProductNameSnapshot: it.Name,
			Size:                it.Size,
			Color:               it.Color,
			UnitPriceSnapshot:   it.UnitPrice,
			Quantity:            it.Quantity,
			CreatedAt:           now,
		})
	}

	return model.Order{
		ID:                id,
		CheckoutID:        c.ID,
		UserID:            c.UserID,
		GuestToken:        c.GuestToken,
		Subtotal:          c.Subtotal,
		Shipping:          c.Shipping,
		Discount:          c.Discount,
		TotalPrice:        c.TotalPrice,
		Currency:          c.Currency,
		ShippingAddress:   c.ShippingAddress,
		PaymentStatus:     model.PaymentStatusPaid,
		PaymentID:         paymentID,
		FulfillmentStatus: model.FulfillmentPending,
		Items:             items,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
