package usecase_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"shopcheckout/internal/domain/model"
	repo "shopcheckout/internal/repository"
)

// memStore はリポジトリのインメモリ実装。
// WithinTxは1本ずつ直列に実行し、エラーならスナップショットに戻す（ロールバック）。
type memStore struct {
	mu sync.Mutex

	carts      map[string]model.Cart
	checkouts  map[string]model.Checkout
	attempts   []model.PaymentAttempt
	orders     map[string]model.Order
	orderItems map[string][]model.OrderItem
	products   map[int64]model.Product
	coupons    map[string]model.Coupon
	addresses  map[int64]model.Address
	audits     []model.AuditLog
	nextItemID int64

	// 障害注入
	productsErr       error
	cartSaveConflicts int
	txCount           int
}

func newMemStore() *memStore {
	return &memStore{
		carts:      map[string]model.Cart{},
		checkouts:  map[string]model.Checkout{},
		orders:     map[string]model.Order{},
		orderItems: map[string][]model.OrderItem{},
		products:   map[int64]model.Product{},
		coupons:    map[string]model.Coupon{},
		addresses:  map[int64]model.Address{},
	}
}

type memSnapshot struct {
	carts      map[string]model.Cart
	checkouts  map[string]model.Checkout
	attempts   []model.PaymentAttempt
	orders     map[string]model.Order
	orderItems map[string][]model.OrderItem
	coupons    map[string]model.Coupon
	audits     []model.AuditLog
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		carts:      map[string]model.Cart{},
		checkouts:  map[string]model.Checkout{},
		attempts:   append([]model.PaymentAttempt(nil), s.attempts...),
		orders:     map[string]model.Order{},
		orderItems: map[string][]model.OrderItem{},
		coupons:    map[string]model.Coupon{},
		audits:     append([]model.AuditLog(nil), s.audits...),
	}
	for k, v := range s.carts {
		snap.carts[k] = cloneCart(v)
	}
	for k, v := range s.checkouts {
		snap.checkouts[k] = cloneCheckout(v)
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	for k, v := range s.orderItems {
		snap.orderItems[k] = append([]model.OrderItem(nil), v...)
	}
	for k, v := range s.coupons {
		snap.coupons[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.carts = snap.carts
	s.checkouts = snap.checkouts
	s.attempts = snap.attempts
	s.orders = snap.orders
	s.orderItems = snap.orderItems
	s.coupons = snap.coupons
	s.audits = snap.audits
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCount++
	snap := s.snapshot()
	if err := fn(memTx{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// テストから直接見るとき用
func (s *memStore) view(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func cloneCart(c model.Cart) model.Cart {
	c.Items = append([]model.CartItem{}, c.Items...)
	return c
}

func cloneCheckout(c model.Checkout) model.Checkout {
	c.Items = append(model.LineItems{}, c.Items...)
	if c.PaidAt != nil {
		t := *c.PaidAt
		c.PaidAt = &t
	}
	return c
}

type memTx struct{ s *memStore }

func (t memTx) Carts() repo.CartRepository                     { return memCarts(t) }
func (t memTx) Checkouts() repo.CheckoutRepository             { return memCheckouts(t) }
func (t memTx) PaymentAttempts() repo.PaymentAttemptRepository { return memAttempts(t) }
func (t memTx) Orders() repo.OrderRepository                   { return memOrders(t) }
func (t memTx) OrderItems() repo.OrderItemRepository           { return memOrderItems(t) }
func (t memTx) Products() repo.ProductRepository               { return memProducts(t) }
func (t memTx) Coupons() repo.CouponRepository                 { return memCoupons(t) }
func (t memTx) Addresses() repo.AddressRepository              { return memAddresses(t) }
func (t memTx) AuditLogs() repo.AuditLogRepository             { return memAudits(t) }

// ---- carts

type memCarts memTx

func (r memCarts) FindByOwner(_ context.Context, owner model.OwnerKey) (model.Cart, error) {
	for _, c := range r.s.carts {
		if c.Owner() == owner {
			return cloneCart(c), nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (r memCarts) Create(ctx context.Context, cart model.Cart) (model.Cart, error) {
	if _, err := r.FindByOwner(ctx, cart.Owner()); err == nil {
		return model.Cart{}, repo.ErrVersionConflict
	}
	cart.Version = 1
	r.assignIDs(&cart)
	r.s.carts[cart.ID] = cloneCart(cart)
	return cart, nil
}

func (r memCarts) Save(_ context.Context, cart model.Cart) (model.Cart, error) {
	stored, ok := r.s.carts[cart.ID]
	if !ok || stored.Version != cart.Version {
		return model.Cart{}, repo.ErrVersionConflict
	}
	if r.s.cartSaveConflicts > 0 {
		r.s.cartSaveConflicts--
		return model.Cart{}, repo.ErrVersionConflict
	}
	cart.Version++
	r.assignIDs(&cart)
	r.s.carts[cart.ID] = cloneCart(cart)
	return cart, nil
}

func (r memCarts) assignIDs(cart *model.Cart) {
	for i := range cart.Items {
		r.s.nextItemID++
		cart.Items[i].ID = r.s.nextItemID
		cart.Items[i].CartID = cart.ID
	}
}

func (r memCarts) Delete(_ context.Context, cartID string, version int64) error {
	stored, ok := r.s.carts[cartID]
	if !ok || stored.Version != version {
		return repo.ErrVersionConflict
	}
	delete(r.s.carts, cartID)
	return nil
}

func (r memCarts) Clear(_ context.Context, cartID string) error {
	stored, ok := r.s.carts[cartID]
	if !ok {
		return nil
	}
	stored.Items = []model.CartItem{}
	stored.Version++
	r.s.carts[cartID] = stored
	return nil
}

// ---- checkouts

type memCheckouts memTx

func (r memCheckouts) Create(_ context.Context, c model.Checkout) (model.Checkout, error) {
	if _, ok := r.s.checkouts[c.ID]; ok {
		return model.Checkout{}, repo.ErrDuplicate
	}
	c.Version = 1
	r.s.checkouts[c.ID] = cloneCheckout(c)
	return c, nil
}

func (r memCheckouts) FindByID(_ context.Context, id string) (model.Checkout, error) {
	c, ok := r.s.checkouts[id]
	if !ok {
		return model.Checkout{}, repo.ErrNotFound
	}
	return cloneCheckout(c), nil
}

func (r memCheckouts) Save(_ context.Context, c model.Checkout) (model.Checkout, error) {
	stored, ok := r.s.checkouts[c.ID]
	if !ok || stored.Version != c.Version {
		return model.Checkout{}, repo.ErrVersionConflict
	}
	stored.Status = c.Status
	stored.PaymentGatewayOrderID = c.PaymentGatewayOrderID
	stored.PaidAt = c.PaidAt
	stored.Version++
	r.s.checkouts[c.ID] = cloneCheckout(stored)

	c.Version = stored.Version
	return c, nil
}

func (r memCheckouts) ListStale(_ context.Context, status model.CheckoutStatus, before time.Time, limit int) ([]model.Checkout, error) {
	out := []model.Checkout{}
	for _, c := range r.s.checkouts {
		if c.Status == status && c.UpdatedAt.Before(before) {
			out = append(out, cloneCheckout(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- payment attempts

type memAttempts memTx

func (r memAttempts) Create(_ context.Context, a model.PaymentAttempt) error {
	for _, x := range r.s.attempts {
		if x.GatewayCorrelationID == a.GatewayCorrelationID {
			return repo.ErrDuplicate
		}
	}
	r.s.attempts = append(r.s.attempts, a)
	return nil
}

func (r memAttempts) find(match func(model.PaymentAttempt) bool) (model.PaymentAttempt, error) {
	for i := len(r.s.attempts) - 1; i >= 0; i-- {
		if match(r.s.attempts[i]) {
			return r.s.attempts[i], nil
		}
	}
	return model.PaymentAttempt{}, repo.ErrNotFound
}

func (r memAttempts) FindByCorrelationID(_ context.Context, id string) (model.PaymentAttempt, error) {
	return r.find(func(a model.PaymentAttempt) bool { return a.GatewayCorrelationID == id })
}

func (r memAttempts) FindLatestByCheckoutID(_ context.Context, checkoutID string) (model.PaymentAttempt, error) {
	return r.find(func(a model.PaymentAttempt) bool { return a.CheckoutID == checkoutID })
}

func (r memAttempts) FindConfirmedByCheckoutID(_ context.Context, checkoutID string) (model.PaymentAttempt, error) {
	return r.find(func(a model.PaymentAttempt) bool {
		return a.CheckoutID == checkoutID && a.Status == model.PaymentAttemptConfirmed
	})
}

func (r memAttempts) Update(_ context.Context, a model.PaymentAttempt) error {
	idx := -1
	for i, x := range r.s.attempts {
		if x.ID == a.ID {
			idx = i
		}
		if a.Status == model.PaymentAttemptConfirmed && x.ID != a.ID &&
			x.CheckoutID == a.CheckoutID && x.Status == model.PaymentAttemptConfirmed {
			return repo.ErrDuplicate
		}
	}
	if idx < 0 {
		return repo.ErrNotFound
	}
	r.s.attempts[idx] = a
	return nil
}

// ---- orders

type memOrders memTx

func (r memOrders) withItems(o model.Order) model.Order {
	o.Items = append([]model.OrderItem{}, r.s.orderItems[o.ID]...)
	return o
}

func (r memOrders) FindByID(_ context.Context, id string) (model.Order, error) {
	o, ok := r.s.orders[id]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return r.withItems(o), nil
}

func (r memOrders) FindByCheckoutID(_ context.Context, checkoutID string) (model.Order, error) {
	for _, o := range r.s.orders {
		if o.CheckoutID == checkoutID {
			return r.withItems(o), nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (r memOrders) sorted(match func(model.Order) bool) []model.Order {
	out := []model.Order{}
	for _, o := range r.s.orders {
		if match(o) {
			out = append(out, r.withItems(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func page(list []model.Order, p, limit int) []model.Order {
	start := (p - 1) * limit
	if start >= len(list) {
		return []model.Order{}
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

func (r memOrders) ListByOwner(_ context.Context, owner model.OwnerKey, p int, limit int) ([]model.Order, int64, error) {
	all := r.sorted(func(o model.Order) bool { return o.Owner() == owner })
	return page(all, p, limit), int64(len(all)), nil
}

func (r memOrders) Create(_ context.Context, o model.Order) error {
	for _, x := range r.s.orders {
		if x.CheckoutID == o.CheckoutID {
			return repo.ErrDuplicate
		}
	}
	o.Items = nil
	r.s.orders[o.ID] = o
	return nil
}

func (r memOrders) UpdateFulfillmentStatus(_ context.Context, id string, status model.FulfillmentStatus) error {
	o, ok := r.s.orders[id]
	if !ok {
		return repo.ErrNotFound
	}
	o.FulfillmentStatus = status
	r.s.orders[id] = o
	return nil
}

func (r memOrders) ListAdmin(_ context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	all := r.sorted(func(o model.Order) bool {
		return f.FulfillmentStatus == "" || string(o.FulfillmentStatus) == f.FulfillmentStatus
	})
	return page(all, f.Page, f.Limit), int64(len(all)), nil
}

type memOrderItems memTx

func (r memOrderItems) CreateBulk(_ context.Context, orderID string, items []model.OrderItem) error {
	for i := range items {
		r.s.nextItemID++
		items[i].ID = r.s.nextItemID
		items[i].OrderID = orderID
	}
	r.s.orderItems[orderID] = append(r.s.orderItems[orderID], items...)
	return nil
}

func (r memOrderItems) ListByOrderID(_ context.Context, orderID string) ([]model.OrderItem, error) {
	return append([]model.OrderItem{}, r.s.orderItems[orderID]...), nil
}

// ---- catalog / coupons / addresses / audit

type memProducts memTx

func (r memProducts) FindByID(_ context.Context, id int64) (model.Product, error) {
	if r.s.productsErr != nil {
		return model.Product{}, r.s.productsErr
	}
	p, ok := r.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r memProducts) FindByIDs(_ context.Context, ids []int64) ([]model.Product, error) {
	if r.s.productsErr != nil {
		return nil, r.s.productsErr
	}
	out := []model.Product{}
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memCoupons memTx

func (r memCoupons) FindByCode(_ context.Context, code string) (model.Coupon, error) {
	c, ok := r.s.coupons[code]
	if !ok {
		return model.Coupon{}, repo.ErrNotFound
	}
	return c, nil
}

func (r memCoupons) IncrementUsed(_ context.Context, code string) error {
	c, ok := r.s.coupons[code]
	if !ok {
		return repo.ErrNotFound
	}
	c.Used++
	r.s.coupons[code] = c
	return nil
}

type memAddresses memTx

func (r memAddresses) FindByID(_ context.Context, id int64) (model.Address, error) {
	a, ok := r.s.addresses[id]
	if !ok {
		return model.Address{}, repo.ErrNotFound
	}
	return a, nil
}

func (r memAddresses) ListByUserID(_ context.Context, userID int64) ([]model.Address, error) {
	out := []model.Address{}
	for _, a := range r.s.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memAudits memTx

func (r memAudits) Create(_ context.Context, log model.AuditLog) error {
	log.ID = int64(len(r.s.audits) + 1)
	r.s.audits = append(r.s.audits, log)
	return nil
}

func (r memAudits) ListTrail(_ context.Context, f repo.AuditTrailFilter) ([]model.AuditLog, int64, error) {
	hit := []model.AuditLog{}
	for _, l := range r.s.audits {
		if f.Action != "" && l.Action != f.Action {
			continue
		}
		if f.ResourceType != "" && l.ResourceType != f.ResourceType {
			continue
		}
		if f.ResourceID != "" && l.ResourceID != f.ResourceID {
			continue
		}
		hit = append(hit, l)
	}
	sort.Slice(hit, func(i, j int) bool { return hit[i].ID > hit[j].ID })

	total := int64(len(hit))
	start := (f.Page - 1) * f.Limit
	if start >= len(hit) {
		return []model.AuditLog{}, total, nil
	}
	end := start + f.Limit
	if end > len(hit) {
		end = len(hit)
	}
	return hit[start:end], total, nil
}
