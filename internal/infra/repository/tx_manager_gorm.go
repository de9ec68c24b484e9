package repository

import (
	"context"

	repo "shopcheckout/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	carts           repo.CartRepository
	checkouts       repo.CheckoutRepository
	paymentAttempts repo.PaymentAttemptRepository
	orders          repo.OrderRepository
	orderItems      repo.OrderItemRepository
	products        repo.ProductRepository
	coupons         repo.CouponRepository
	addresses       repo.AddressRepository
	auditLogs       repo.AuditLogRepository
}

func (r *txReposGorm) Carts() repo.CartRepository                     { return r.carts }
func (r *txReposGorm) Checkouts() repo.CheckoutRepository             { return r.checkouts }
func (r *txReposGorm) PaymentAttempts() repo.PaymentAttemptRepository { return r.paymentAttempts }
func (r *txReposGorm) Orders() repo.OrderRepository                   { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository           { return r.orderItems }
func (r *txReposGorm) Products() repo.ProductRepository               { return r.products }
func (r *txReposGorm) Coupons() repo.CouponRepository                 { return r.coupons }
func (r *txReposGorm) Addresses() repo.AddressRepository              { return r.addresses }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository             { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		return fn(newTxRepos(tx))
	})
}

func newTxRepos(db *gorm.DB) *txReposGorm {
	return &txReposGorm{
		carts:           NewCartGormRepository(db),
		checkouts:       NewCheckoutGormRepository(db),
		paymentAttempts: NewPaymentAttemptGormRepository(db),
		orders:          NewOrderGormRepository(db),
		orderItems:      NewOrderItemGormRepository(db),
		products:        NewProductGormRepository(db),
		coupons:         NewCouponGormRepository(db),
		addresses:       NewAddressGormRepository(db),
		auditLogs:       NewAuditLogGormRepository(db),
	}
}
