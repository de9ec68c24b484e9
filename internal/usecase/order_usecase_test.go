package usecase_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"shopcheckout/internal/domain/model"
	"shopcheckout/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) finalizedOrder(t *testing.T, owner model.OwnerKey, gatewayOrderID string) model.Order {
	t.Helper()
	c := f.paidCheckout(t, owner, gatewayOrderID)
	o, err := f.finalizer.Finalize(context.Background(), c.ID)
	require.NoError(t, err)
	return o
}

func TestOrderUsecase_ListMyOrders_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := model.UserOwner(7)

	first := f.finalizedOrder(t, owner, "order_1")
	f.clock.Advance(time.Hour)
	second := f.finalizedOrder(t, owner, "order_2")
	f.finalizedOrder(t, model.UserOwner(8), "order_3")

	out, err := f.orders.ListMyOrders(ctx, owner, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Total)
	require.Len(t, out.Items, 2)
	assert.Equal(t, second.ID, out.Items[0].ID)
	assert.Equal(t, first.ID, out.Items[1].ID)

	paged, err := f.orders.ListMyOrders(ctx, owner, 2, 1)
	require.NoError(t, err)
	require.Len(t, paged.Items, 1)
	assert.Equal(t, first.ID, paged.Items[0].ID)
	assert.Equal(t, int64(2), paged.Total)
}

func TestOrderUsecase_ListMyOrders_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orders.ListMyOrders(ctx, model.OwnerKey{}, 1, 10)
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)

	_, err = f.orders.ListMyOrders(ctx, model.UserOwner(7), 0, 10)
	assertHTTPStatus(t, err, http.StatusBadRequest)

	_, err = f.orders.ListMyOrders(ctx, model.UserOwner(7), 1, 101)
	assertErrContains(t, err, "invalid limit")
}

func TestOrderUsecase_GetMyOrderDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := model.GuestOwner("g-1")
	o := f.finalizedOrder(t, owner, "order_1")

	got, err := f.orders.GetMyOrderDetail(ctx, owner, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.CheckoutID, got.CheckoutID)
	assert.Len(t, got.Items, 1)

	_, err = f.orders.GetMyOrderDetail(ctx, model.GuestOwner("g-2"), o.ID)
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	_, err = f.orders.GetMyOrderDetail(ctx, owner, "123")
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestAddressUsecase_List(t *testing.T) {
	f := newFixture(t)
	f.store.addresses[1] = model.Address{ID: 1, UserID: 7, Name: "home"}
	f.store.addresses[2] = model.Address{ID: 2, UserID: 8, Name: "other"}
	f.store.addresses[3] = model.Address{ID: 3, UserID: 7, Name: "office"}
	uc := usecase.NewAddressUsecase(f.store)

	out, err := uc.List(context.Background(), model.UserOwner(7))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, int64(3), out[1].ID)

	_, err = uc.List(context.Background(), model.GuestOwner("g-1"))
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)
}
