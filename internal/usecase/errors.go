package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// errors.Isで判定できるよう、よく返すものは変数にしておく
var (
	ErrUnauthorized = NewHTTPError(http.StatusUnauthorized, "unauthorized")
	ErrNotFound     = NewHTTPError(http.StatusNotFound, "not found")

	ErrEmptyCart          = NewHTTPError(http.StatusUnprocessableEntity, "cart is empty")
	ErrCartItemNotFound   = NewHTTPError(http.StatusNotFound, "cart item not found")
	ErrProductUnavailable = NewHTTPError(http.StatusUnprocessableEntity, "product unavailable")
	ErrOutOfStock         = NewHTTPError(http.StatusUnprocessableEntity, "out of stock")
	ErrInvalidCoupon      = NewHTTPError(http.StatusUnprocessableEntity, "invalid coupon")
	ErrCheckoutNotPaid    = NewHTTPError(http.StatusUnprocessableEntity, "checkout is not paid")

	ErrConcurrentModification = NewHTTPError(http.StatusConflict, "your cart changed, please retry")
	ErrIllegalTransition      = NewHTTPError(http.StatusConflict, "checkout status does not allow this operation")

	ErrInvalidSignature = NewHTTPError(http.StatusUnauthorized, "invalid signature")
	ErrPaymentMismatch  = NewHTTPError(http.StatusBadRequest, "payment does not belong to this checkout")

	ErrPricingUnavailable = NewHTTPError(http.StatusServiceUnavailable, "pricing unavailable, please retry")
	ErrGatewayUnavailable = NewHTTPError(http.StatusServiceUnavailable, "payment gateway unavailable, please retry")
)

// キャッシュに無い
var ErrCacheMiss = errors.New("cache miss")
