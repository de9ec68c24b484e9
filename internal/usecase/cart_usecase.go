package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"shopcheckout/internal/domain/model"
	repo "shopcheckout/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CartUsecase は /cart の業務ロジックです。
// 変更はすべてversionのCASで保存し、競合したらバックオフしてやり直します。
type CartUsecase struct {
	tx         repo.TransactionManager
	cache      CartCache
	sfg        singleflight.Group
	ids        IDGenerator
	clock      Clock
	maxRetries uint64
	log        *zap.Logger
}

func NewCartUsecase(
	tx repo.TransactionManager,
	cache CartCache,
	ids IDGenerator,
	clock Clock,
	maxRetries uint64,
	log *zap.Logger,
) *CartUsecase {
	return &CartUsecase{
		tx:         tx,
		cache:      cache,
		ids:        ids,
		clock:      clock,
		maxRetries: maxRetries,
		log:        log,
	}
}

type CartItemResponse struct {
	ProductID int64           `json:"product_id"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// priceはunit_price_snapshot（追加時点の価格）。
// チェックアウトではカタログから取り直すので目安の金額
type CartResponse struct {
	ID       string             `json:"id,omitempty"`
	Version  int64              `json:"version"`
	Items    []CartItemResponse `json:"items"`
	Subtotal decimal.Decimal    `json:"subtotal"`
}

type AddCartInput struct {
	ProductID int64
	Size      string
	Color     string
	Quantity  int64
}

type UpdateCartItemInput struct {
	Size     string
	Color    string
	Quantity int64
}

// ゲスト用トークンを発行する（DBにはまだ何も作らない）
func (u *CartUsecase) IssueGuestToken() string {
	return u.ids.NewID()
}

// GetCart はカート取得。無ければversion 0の空カート。
func (u *CartUsecase) GetCart(ctx context.Context, owner model.OwnerKey) (CartResponse, error) {
	if !owner.Valid() {
		return CartResponse{}, ErrUnauthorized
	}

	cart, err := u.loadCart(ctx, owner)
	if err != nil {
		return CartResponse{}, err
	}
	return toCartResponse(cart), nil
}

func (u *CartUsecase) loadCart(ctx context.Context, owner model.OwnerKey) (model.Cart, error) {
	cart, err := u.cache.Get(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		u.log.Warn("cart cache get failed", zap.String("owner", owner.String()), zap.Error(err))
	}

	//同じオーナーの同時ミスは1回のDB読み込みにまとめる
	v, err, _ := u.sfg.Do(owner.String(), func() (any, error) {
		//読み込み中に無効化されたら古いカートを戻さない
		gen, genErr := u.cache.Generation(ctx, owner)
		if genErr != nil {
			u.log.Warn("cart cache generation failed", zap.String("owner", owner.String()), zap.Error(genErr))
		}

		var found model.Cart
		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			c, err := r.Carts().FindByOwner(ctx, owner)
			if errors.Is(err, repo.ErrNotFound) {
				found = model.NewCart("", owner, u.clock.Now())
				return nil
			}
			if err != nil {
				return err
			}
			found = c
			return nil
		})
		if err != nil {
			return model.Cart{}, err
		}

		if found.ID != "" && genErr == nil {
			if err := u.cache.Set(ctx, found, gen); err != nil {
				u.log.Warn("cart cache set failed", zap.String("owner", owner.String()), zap.Error(err))
			}
		}
		return found, nil
	})
	if err != nil {
		return model.Cart{}, err
	}
	return v.(model.Cart), nil
}

// AddItem は同じ商品・サイズ・色なら数量を足す。
func (u *CartUsecase) AddItem(ctx context.Context, owner model.OwnerKey, in AddCartInput) (CartResponse, error) {
	if !owner.Valid() {
		return CartResponse{}, ErrUnauthorized
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	item := model.CartItem{
		ProductID: in.ProductID,
		Size:      strings.TrimSpace(in.Size),
		Color:     strings.TrimSpace(in.Color),
		Quantity:  in.Quantity,
	}

	cart, err := u.mutate(ctx, owner, func(r repo.TxRepos, cart *model.Cart) error {
		p, err := activeProduct(ctx, r, item.ProductID)
		if err != nil {
			return err
		}

		//在庫は上限チェックだけ（引き当てはしない）
		if quantityOf(*cart, item.Key())+item.Quantity > p.Stock {
			return ErrOutOfStock
		}

		item.UnitPriceSnapshot = p.Price
		item.CreatedAt = u.clock.Now()
		cart.AddItem(item)
		return nil
	})
	if err != nil {
		return CartResponse{}, err
	}
	return toCartResponse(cart), nil
}

// UpdateQuantity は数量を上書き。0なら明細を削除。
func (u *CartUsecase) UpdateQuantity(ctx context.Context, owner model.OwnerKey, productID int64, in UpdateCartItemInput) (CartResponse, error) {
	if !owner.Valid() {
		return CartResponse{}, ErrUnauthorized
	}
	if productID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	key := model.LineKey{ProductID: productID, Size: strings.TrimSpace(in.Size), Color: strings.TrimSpace(in.Color)}

	cart, err := u.mutate(ctx, owner, func(r repo.TxRepos, cart *model.Cart) error {
		if in.Quantity > 0 {
			p, err := activeProduct(ctx, r, productID)
			if err != nil {
				return err
			}
			if in.Quantity > p.Stock {
				return ErrOutOfStock
			}
		}
		if err := cart.SetQuantity(key, in.Quantity); err != nil {
			return mapCartError(err)
		}
		return nil
	})
	if err != nil {
		return CartResponse{}, err
	}
	return toCartResponse(cart), nil
}

func (u *CartUsecase) RemoveItem(ctx context.Context, owner model.OwnerKey, key model.LineKey) (CartResponse, error) {
	if !owner.Valid() {
		return CartResponse{}, ErrUnauthorized
	}
	if key.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	key.Size = strings.TrimSpace(key.Size)
	key.Color = strings.TrimSpace(key.Color)

	cart, err := u.mutate(ctx, owner, func(_ repo.TxRepos, cart *model.Cart) error {
		return mapCartError(cart.RemoveItem(key))
	})
	if err != nil {
		return CartResponse{}, err
	}
	return toCartResponse(cart), nil
}

// Merge はログイン直後にゲストカートをユーザーカートへ取り込む。
// ゲストカートは消費（削除）するので、2回目以降は何も変わらない。
func (u *CartUsecase) Merge(ctx context.Context, userID int64, guestToken string) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, ErrUnauthorized
	}
	guestToken = strings.TrimSpace(guestToken)
	if guestToken == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid guest_token")
	}

	userOwner := model.UserOwner(userID)
	guestOwner := model.GuestOwner(guestToken)

	var out model.Cart
	err := retryOnConflict(ctx, u.maxRetries, func() error {
		return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			userCart, isNew, err := u.findOrNewCart(ctx, r, userOwner)
			if err != nil {
				return err
			}

			guestCart, err := r.Carts().FindByOwner(ctx, guestOwner)
			if errors.Is(err, repo.ErrNotFound) {
				out = userCart
				return nil
			}
			if err != nil {
				return fmt.Errorf("find guest cart: %w", err)
			}

			if !guestCart.IsEmpty() {
				userCart.MergeFrom(guestCart)
				if userCart, err = u.persist(ctx, r, userCart, isNew); err != nil {
					return err
				}
			}

			//トークンを引退させる
			if err := r.Carts().Delete(ctx, guestCart.ID, guestCart.Version); err != nil {
				return err
			}
			out = userCart
			return nil
		})
	})
	if err != nil {
		return CartResponse{}, err
	}

	u.invalidate(ctx, userOwner, guestOwner)
	return toCartResponse(out), nil
}

// 1回の変更 = 読む→メモリ上で変更→CASで書く、をTx内で。
// 競合したら最初からやり直す
func (u *CartUsecase) mutate(ctx context.Context, owner model.OwnerKey, fn func(r repo.TxRepos, cart *model.Cart) error) (model.Cart, error) {
	var out model.Cart
	err := retryOnConflict(ctx, u.maxRetries, func() error {
		return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			cart, isNew, err := u.findOrNewCart(ctx, r, owner)
			if err != nil {
				return err
			}
			if err := fn(r, &cart); err != nil {
				return err
			}
			saved, err := u.persist(ctx, r, cart, isNew)
			if err != nil {
				return err
			}
			out = saved
			return nil
		})
	})
	if err != nil {
		return model.Cart{}, err
	}

	u.invalidate(ctx, owner)
	return out, nil
}

// 無ければ未保存の新しいカート（初回の書き込みで作る）
func (u *CartUsecase) findOrNewCart(ctx context.Context, r repo.TxRepos, owner model.OwnerKey) (model.Cart, bool, error) {
	cart, err := r.Carts().FindByOwner(ctx, owner)
	if errors.Is(err, repo.ErrNotFound) {
		return model.NewCart(u.ids.NewID(), owner, u.clock.Now()), true, nil
	}
	if err != nil {
		return model.Cart{}, false, fmt.Errorf("find cart: %w", err)
	}
	return cart, false, nil
}

func (u *CartUsecase) persist(ctx context.Context, r repo.TxRepos, cart model.Cart, isNew bool) (model.Cart, error) {
	if isNew {
		return r.Carts().Create(ctx, cart)
	}
	return r.Carts().Save(ctx, cart)
}

func (u *CartUsecase) invalidate(ctx context.Context, owners ...model.OwnerKey) {
	if err := u.cache.Delete(ctx, owners...); err != nil {
		u.log.Warn("cart cache invalidate failed", zap.Error(err))
	}
}

func activeProduct(ctx context.Context, r repo.TxRepos, productID int64) (model.Product, error) {
	p, err := r.Products().FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, ErrProductUnavailable
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("find product: %w", err)
	}
	if !p.IsActive {
		return model.Product{}, ErrProductUnavailable
	}
	return p, nil
}

func quantityOf(cart model.Cart, key model.LineKey) int64 {
	for _, it := range cart.Items {
		if it.Key() == key {
			return it.Quantity
		}
	}
	return 0
}

func mapCartError(err error) error {
	if errors.Is(err, model.ErrLineItemNotFound) {
		return ErrCartItemNotFound
	}
	return err
}

func toCartResponse(cart model.Cart) CartResponse {
	items := make([]CartItemResponse, 0, len(cart.Items))
	subtotal := decimal.Zero
	for _, it := range cart.Items {
		line := it.UnitPriceSnapshot.Mul(decimal.NewFromInt(it.Quantity))
		subtotal = subtotal.Add(line)
		items = append(items, CartItemResponse{
			ProductID: it.ProductID,
			Size:      it.Size,
			Color:     it.Color,
			Quantity:  it.Quantity,
			Price:     it.UnitPriceSnapshot,
			LineTotal: line,
		})
	}

	out := CartResponse{
		Version:  cart.Version,
		Items:    items,
		Subtotal: subtotal,
	}
	//未保存のカートにはIDを出さない
	if cart.Version > 0 {
		out.ID = cart.ID
	}
	return out
}
