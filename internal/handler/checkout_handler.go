package handler

import (
	"errors"
	"net/http"

	"shopcheckout/internal/config"
	"shopcheckout/internal/domain/model"
	"shopcheckout/internal/middleware"
	"shopcheckout/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /checkout のHTTP。作成から確定まで
type CheckoutHandler struct {
	checkouts *usecase.CheckoutUsecase
	payments  *usecase.PaymentUsecase
	finalizer *usecase.OrderFinalizer
}

func NewCheckoutHandler(checkouts *usecase.CheckoutUsecase, payments *usecase.PaymentUsecase, finalizer *usecase.OrderFinalizer) *CheckoutHandler {
	return &CheckoutHandler{checkouts: checkouts, payments: payments, finalizer: finalizer}
}

type CheckoutCreateRequest struct {
	ShippingAddress *model.ShippingAddress `json:"shipping_address"`
	AddressID       int64                  `json:"address_id"`
	CouponCode      string                 `json:"coupon_code"`
}

type PayRequest struct {
	PaymentDetails usecase.PaymentDetails `json:"payment_details"`
}

// ゲートウェイが落ちていてもチェックアウトは作れているので一緒に返す
type GatewayUnavailableResponse struct {
	Error    string         `json:"error"`
	Checkout model.Checkout `json:"checkout"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/checkout")
	g.Use(middleware.ResolveOwner(cfg.JWTSecret))

	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.POST("/:id/payment-order", h.retryPaymentOrder)
	g.PUT("/:id/pay", h.pay)
	g.POST("/:id/finalize", h.finalize)
	g.POST("/:id/cancel", h.cancel)
}

func (h *CheckoutHandler) create(c echo.Context) error {
	var req CheckoutCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.checkouts.Create(c.Request().Context(), middleware.OwnerFrom(c), usecase.CreateCheckoutInput{
		ShippingAddress: req.ShippingAddress,
		AddressID:       req.AddressID,
		CouponCode:      req.CouponCode,
	})
	if err != nil {
		return writeCheckoutError(c, out, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) get(c echo.Context) error {
	out, err := h.checkouts.Get(c.Request().Context(), middleware.OwnerFrom(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) retryPaymentOrder(c echo.Context) error {
	out, err := h.checkouts.RetryPaymentOrder(c.Request().Context(), middleware.OwnerFrom(c), c.Param("id"))
	if err != nil {
		return writeCheckoutError(c, out, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) pay(c echo.Context) error {
	var req PayRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.payments.RecordClientPayment(c.Request().Context(), middleware.OwnerFrom(c), c.Param("id"), req.PaymentDetails)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 何度呼んでも同じ注文が返る
func (h *CheckoutHandler) finalize(c echo.Context) error {
	out, err := h.finalizer.FinalizeForOwner(c.Request().Context(), middleware.OwnerFrom(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) cancel(c echo.Context) error {
	out, err := h.checkouts.Cancel(c.Request().Context(), middleware.OwnerFrom(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func writeCheckoutError(c echo.Context, out usecase.CheckoutOutput, err error) error {
	if errors.Is(err, usecase.ErrGatewayUnavailable) && out.Checkout.ID != "" {
		he, _ := usecase.AsHTTPError(err)
		return c.JSON(he.Status, GatewayUnavailableResponse{Error: he.Message, Checkout: out.Checkout})
	}
	return writeError(c, err)
}
