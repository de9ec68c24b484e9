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
	"shopcheckout/internal/domain/pricing"
	repo "shopcheckout/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutUsecase はカートから決済待ちまで。
// 金額は作成時にカタログ価格で計算し、以後は書き換えない。
type CheckoutUsecase struct {
	tx             repo.TransactionManager
	gateway        PaymentGateway
	ids            IDGenerator
	clock          Clock
	policy         pricing.ShippingPolicy
	currency       string
	gatewayTimeout time.Duration
	maxRetries     uint64
	log            *zap.Logger
}

type CheckoutOptions struct {
	Policy         pricing.ShippingPolicy
	Currency       string
	GatewayTimeout time.Duration
	MaxRetries     uint64
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	gateway PaymentGateway,
	ids IDGenerator,
	clock Clock,
	opts CheckoutOptions,
	log *zap.Logger,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:             tx,
		gateway:        gateway,
		ids:            ids,
		clock:          clock,
		policy:         opts.Policy,
		currency:       opts.Currency,
		gatewayTimeout: opts.GatewayTimeout,
		maxRetries:     opts.MaxRetries,
		log:            log,
	}
}

type CreateCheckoutInput struct {
	ShippingAddress *model.ShippingAddress
	AddressID       int64
	CouponCode      string
}

// クライアントが決済画面を開くのに必要なもの
type PaymentOrderOutput struct {
	KeyID    string `json:"key_id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type CheckoutOutput struct {
	Checkout     model.Checkout      `json:"checkout"`
	PaymentOrder *PaymentOrderOutput `json:"payment_order,omitempty"`
}

// Create はカートを凍結してチェックアウトを作り、決済用の注文をゲートウェイに依頼する。
// ゲートウェイが落ちていたらCREATEDのまま返す（ErrGatewayUnavailable）。
// 合計0円ならゲートウェイを呼ばずにPAIDで作る。
// /checkout/:id/payment-order で同じチェックアウトのまま再依頼できる。
func (u *CheckoutUsecase) Create(ctx context.Context, owner model.OwnerKey, in CreateCheckoutInput) (CheckoutOutput, error) {
	if !owner.Valid() {
		return CheckoutOutput{}, ErrUnauthorized
	}
	if in.AddressID > 0 && owner.IsGuest() {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "address_id requires login")
	}
	if in.AddressID <= 0 && (in.ShippingAddress == nil || !in.ShippingAddress.IsComplete()) {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid shipping_address")
	}
	couponCode := strings.ToUpper(strings.TrimSpace(in.CouponCode))

	var checkout model.Checkout
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindByOwner(ctx, owner)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return fmt.Errorf("find cart: %w", err)
		}
		if cart.IsEmpty() {
			return ErrEmptyCart
		}

		address, err := u.resolveAddress(ctx, r, owner, in)
		if err != nil {
			return err
		}

		items, lines, err := u.priceItems(ctx, r, cart.Items)
		if err != nil {
			return err
		}

		var coupon *pricing.Coupon
		if couponCode != "" {
			c, err := r.Coupons().FindByCode(ctx, couponCode)
			if errors.Is(err, repo.ErrNotFound) {
				return ErrInvalidCoupon
			}
			if err != nil {
				return fmt.Errorf("find coupon: %w", err)
			}
			if err := c.CheckUsable(u.clock.Now()); err != nil {
				return NewHTTPError(http.StatusUnprocessableEntity, "invalid coupon: "+err.Error())
			}
			pc := c.Pricing()
			coupon = &pc
		}

		totals := pricing.ComputeTotals(lines, coupon, u.policy)

		now := u.clock.Now()
		status := model.CheckoutStatusCreated
		var paidAt *time.Time
		//割引で0円になったものは決済が要らない。そのまま確定できる
		if !totals.Total.IsPositive() {
			status = model.CheckoutStatusPaid
			paidAt = &now
		}

		userID, guestToken := owner.Columns()
		created, err := r.Checkouts().Create(ctx, model.Checkout{
			ID:              u.ids.NewID(),
			SourceCartID:    cart.ID,
			UserID:          userID,
			GuestToken:      guestToken,
			Items:           items,
			ShippingAddress: address,
			CouponCode:      couponCode,
			Subtotal:        totals.Subtotal,
			Shipping:        totals.Shipping,
			Discount:        totals.Discount,
			TotalPrice:      totals.Total,
			Currency:        u.currency,
			Status:          status,
			PaidAt:          paidAt,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		if err != nil {
			return fmt.Errorf("create checkout: %w", err)
		}
		checkout = created
		return nil
	})
	if err != nil {
		return CheckoutOutput{}, err
	}

	u.log.Info("checkout created",
		zap.String("checkout_id", checkout.ID),
		zap.String("owner", owner.String()),
		zap.String("total", checkout.TotalPrice.StringFixed(2)),
	)

	if checkout.Status == model.CheckoutStatusPaid {
		return CheckoutOutput{Checkout: checkout}, nil
	}

	updated, po, err := u.requestPaymentOrder(ctx, checkout)
	if err != nil {
		//チェックアウト自体は作れているので一緒に返す
		return CheckoutOutput{Checkout: checkout}, err
	}
	return CheckoutOutput{Checkout: updated, PaymentOrder: &po}, nil
}

func (u *CheckoutUsecase) resolveAddress(ctx context.Context, r repo.TxRepos, owner model.OwnerKey, in CreateCheckoutInput) (model.ShippingAddress, error) {
	if in.AddressID <= 0 {
		return *in.ShippingAddress, nil
	}

	a, err := r.Addresses().FindByID(ctx, in.AddressID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.ShippingAddress{}, NewHTTPError(http.StatusNotFound, "address not found")
	}
	if err != nil {
		return model.ShippingAddress{}, fmt.Errorf("find address: %w", err)
	}
	//他人の住所は存在しない扱い
	if a.UserID != owner.UserID {
		return model.ShippingAddress{}, NewHTTPError(http.StatusNotFound, "address not found")
	}
	return a.ToShippingAddress(), nil
}

// カートの価格スナップショットは使わず、カタログの現在価格で明細を作る
func (u *CheckoutUsecase) priceItems(ctx context.Context, r repo.TxRepos, cartItems []model.CartItem) (model.LineItems, []pricing.Line, error) {
	ids := make([]int64, 0, len(cartItems))
	for _, it := range cartItems {
		ids = append(ids, it.ProductID)
	}

	products, err := r.Products().FindByIDs(ctx, ids)
	if err != nil {
		u.log.Error("catalog lookup failed", zap.Error(err))
		return nil, nil, ErrPricingUnavailable
	}
	byID := make(map[int64]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	//同じ商品がサイズ違いで複数行あるときの在庫チェック用
	wanted := map[int64]int64{}

	items := make(model.LineItems, 0, len(cartItems))
	lines := make([]pricing.Line, 0, len(cartItems))
	for _, it := range cartItems {
		p, ok := byID[it.ProductID]
		if !ok || !p.IsActive {
			return nil, nil, ErrProductUnavailable
		}
		wanted[p.ID] += it.Quantity
		if wanted[p.ID] > p.Stock {
			return nil, nil, ErrOutOfStock
		}

		items = append(items, model.LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Size:      it.Size,
			Color:     it.Color,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
			LineTotal: p.Price.Mul(decimal.NewFromInt(it.Quantity)),
		})
		lines = append(lines, pricing.Line{UnitPrice: p.Price, Quantity: it.Quantity})
	}
	return items, lines, nil
}

// ゲートウェイに注文を作らせ、試行(INITIATED)を記録してPAYMENT_PENDINGへ
func (u *CheckoutUsecase) requestPaymentOrder(ctx context.Context, checkout model.Checkout) (model.Checkout, PaymentOrderOutput, error) {
	gctx, cancel := context.WithTimeout(ctx, u.gatewayTimeout)
	defer cancel()

	remote, err := u.gateway.CreateRemoteOrder(gctx, checkout.TotalPrice, checkout.Currency, checkout.ID)
	if err != nil {
		u.log.Warn("payment order request failed", zap.String("checkout_id", checkout.ID), zap.Error(err))
		return checkout, PaymentOrderOutput{}, ErrGatewayUnavailable
	}

	var saved model.Checkout
	err = retryOnConflict(ctx, u.maxRetries, func() error {
		return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			c, err := r.Checkouts().FindByID(ctx, checkout.ID)
			if err != nil {
				return fmt.Errorf("find checkout: %w", err)
			}
			if c.Status != model.CheckoutStatusCreated && c.Status != model.CheckoutStatusPaymentPending {
				return ErrIllegalTransition
			}

			now := u.clock.Now()
			if err := r.PaymentAttempts().Create(ctx, model.PaymentAttempt{
				ID:                   u.ids.NewID(),
				CheckoutID:           c.ID,
				GatewayCorrelationID: remote.ID,
				Status:               model.PaymentAttemptInitiated,
				CreatedAt:            now,
				UpdatedAt:            now,
			}); err != nil {
				return fmt.Errorf("create payment attempt: %w", err)
			}

			if c.Status == model.CheckoutStatusCreated {
				c.Status = model.CheckoutStatusPaymentPending
			}
			c.PaymentGatewayOrderID = remote.ID
			s, err := r.Checkouts().Save(ctx, c)
			if err != nil {
				return err
			}
			saved = s
			return nil
		})
	})
	if err != nil {
		return checkout, PaymentOrderOutput{}, err
	}

	return saved, u.paymentOrderOutput(remote.ID, saved), nil
}

func (u *CheckoutUsecase) paymentOrderOutput(orderID string, c model.Checkout) PaymentOrderOutput {
	return PaymentOrderOutput{
		KeyID:    u.gateway.KeyID(),
		OrderID:  orderID,
		Amount:   c.TotalPrice.Shift(2).IntPart(),
		Currency: c.Currency,
	}
}

// Get はオーナー本人のチェックアウトだけ返す
func (u *CheckoutUsecase) Get(ctx context.Context, owner model.OwnerKey, checkoutID string) (model.Checkout, error) {
	if !owner.Valid() {
		return model.Checkout{}, ErrUnauthorized
	}

	var out model.Checkout
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		c, err := findOwnedCheckout(ctx, r, owner, checkoutID)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return model.Checkout{}, err
	}
	return out, nil
}

// RetryPaymentOrder はCREATEDのまま残ったもの、または直近の試行がFAILEDのものに
// 決済用の注文を作り直す。INITIATEDの試行があればそれをそのまま返す。
func (u *CheckoutUsecase) RetryPaymentOrder(ctx context.Context, owner model.OwnerKey, checkoutID string) (CheckoutOutput, error) {
	if !owner.Valid() {
		return CheckoutOutput{}, ErrUnauthorized
	}

	var (
		checkout model.Checkout
		pending  *model.PaymentAttempt
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		c, err := findOwnedCheckout(ctx, r, owner, checkoutID)
		if err != nil {
			return err
		}
		checkout = c

		switch c.Status {
		case model.CheckoutStatusCreated:
			return nil
		case model.CheckoutStatusPaymentPending:
			latest, err := r.PaymentAttempts().FindLatestByCheckoutID(ctx, c.ID)
			if errors.Is(err, repo.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("find payment attempt: %w", err)
			}
			if latest.Status == model.PaymentAttemptInitiated {
				pending = &latest
			}
			return nil
		default:
			return ErrIllegalTransition
		}
	})
	if err != nil {
		return CheckoutOutput{}, err
	}

	if pending != nil {
		po := u.paymentOrderOutput(pending.GatewayCorrelationID, checkout)
		return CheckoutOutput{Checkout: checkout, PaymentOrder: &po}, nil
	}

	updated, po, err := u.requestPaymentOrder(ctx, checkout)
	if err != nil {
		return CheckoutOutput{Checkout: checkout}, err
	}
	return CheckoutOutput{Checkout: updated, PaymentOrder: &po}, nil
}

// Cancel はオーナーによるキャンセル。決済前（CREATED / PAYMENT_PENDING）だけ。
func (u *CheckoutUsecase) Cancel(ctx context.Context, owner model.OwnerKey, checkoutID string) (model.Checkout, error) {
	if !owner.Valid() {
		return model.Checkout{}, ErrUnauthorized
	}

	var actor *int64
	if !owner.IsGuest() {
		id := owner.UserID
		actor = &id
	}

	return u.cancel(ctx, checkoutID, actor, func(r repo.TxRepos) (model.Checkout, error) {
		c, err := findOwnedCheckout(ctx, r, owner, checkoutID)
		if err != nil {
			return model.Checkout{}, err
		}
		if c.Status == model.CheckoutStatusPaid {
			return model.Checkout{}, NewHTTPError(http.StatusConflict, "checkout is already paid")
		}
		return c, nil
	})
}

// CancelByAdmin は管理者によるキャンセル。PAIDからも可（確定はまだできる）。
func (u *CheckoutUsecase) CancelByAdmin(ctx context.Context, actorAdminUserID int64, checkoutID string) (model.Checkout, error) {
	if actorAdminUserID <= 0 {
		return model.Checkout{}, ErrUnauthorized
	}

	return u.cancel(ctx, checkoutID, &actorAdminUserID, func(r repo.TxRepos) (model.Checkout, error) {
		if !isUUID(checkoutID) {
			return model.Checkout{}, ErrNotFound
		}
		c, err := r.Checkouts().FindByID(ctx, checkoutID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.Checkout{}, ErrNotFound
		}
		if err != nil {
			return model.Checkout{}, fmt.Errorf("find checkout: %w", err)
		}
		return c, nil
	})
}

func (u *CheckoutUsecase) cancel(ctx context.Context, checkoutID string, actor *int64, load func(r repo.TxRepos) (model.Checkout, error)) (model.Checkout, error) {
	var out model.Checkout
	err := retryOnConflict(ctx, u.maxRetries, func() error {
		return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			c, err := load(r)
			if err != nil {
				return err
			}
			//既にキャンセル済みならそのまま
			if c.Status == model.CheckoutStatusCancelled {
				out = c
				return nil
			}
			if !c.Status.CanTransitionTo(model.CheckoutStatusCancelled) {
				return ErrIllegalTransition
			}

			before := c.Status
			c.Status = model.CheckoutStatusCancelled
			saved, err := r.Checkouts().Save(ctx, c)
			if err != nil {
				return err
			}

			if err := r.AuditLogs().Create(ctx, model.AuditLog{
				ActorUserID:  actor,
				Action:       model.AuditActionCheckoutCancelled,
				ResourceType: model.AuditResourceCheckout,
				ResourceID:   c.ID,
				BeforeJSON:   statusJSON(before),
				AfterJSON:    statusJSON(saved.Status),
				CreatedAt:    u.clock.Now(),
			}); err != nil {
				return fmt.Errorf("create audit log: %w", err)
			}

			out = saved
			return nil
		})
	})
	if err != nil {
		return model.Checkout{}, err
	}

	u.log.Info("checkout cancelled", zap.String("checkout_id", checkoutID))
	return out, nil
}

// AbandonStale はbeforeより前から決済待ちのままのものをABANDONEDにする。
// 他の更新と競合したものは次の回に回す。
func (u *CheckoutUsecase) AbandonStale(ctx context.Context, before time.Time, limit int) (int, error) {
	var stale []model.Checkout
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		list, err := r.Checkouts().ListStale(ctx, model.CheckoutStatusPaymentPending, before, limit)
		if err != nil {
			return err
		}
		stale = list
		return nil
	})
	if err != nil {
		return 0, err
	}

	abandoned := 0
	for _, c := range stale {
		if ctx.Err() != nil {
			return abandoned, ctx.Err()
		}

		c.Status = model.CheckoutStatusAbandoned
		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			_, err := r.Checkouts().Save(ctx, c)
			return err
		})
		if errors.Is(err, repo.ErrVersionConflict) {
			u.log.Debug("abandon skipped, checkout changed", zap.String("checkout_id", c.ID))
			continue
		}
		if err != nil {
			u.log.Warn("abandon failed", zap.String("checkout_id", c.ID), zap.Error(err))
			continue
		}
		abandoned++
	}
	return abandoned, nil
}

// 他人のものは存在しない扱い（404）
func findOwnedCheckout(ctx context.Context, r repo.TxRepos, owner model.OwnerKey, checkoutID string) (model.Checkout, error) {
	if !isUUID(checkoutID) {
		return model.Checkout{}, ErrNotFound
	}

	c, err := r.Checkouts().FindByID(ctx, checkoutID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Checkout{}, ErrNotFound
	}
	if err != nil {
		return model.Checkout{}, fmt.Errorf("find checkout: %w", err)
	}
	if !c.OwnedBy(owner) {
		return model.Checkout{}, ErrNotFound
	}
	return c, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func statusJSON(s model.CheckoutStatus) string {
	b, _ := json.Marshal(map[string]string{"status": string(s)})
	return string(b)
}
