package server

import (
	"net/http"

	"shopcheckout/internal/config"
	"shopcheckout/internal/handler"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Cart       *handler.CartHandler
	Checkout   *handler.CheckoutHandler
	Webhook    *handler.WebhookHandler
	Order      *handler.OrderHandler
	AdminOrder *handler.AdminOrderHandler
	Address    *handler.AddressHandler
	AuditLog   *handler.AdminAuditHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, handler.SuccessResponse{Message: "ok"})
	})

	h.Cart.RegisterRoutes(e, cfg)
	h.Checkout.RegisterRoutes(e, cfg)
	h.Webhook.RegisterRoutes(e)
	h.Order.RegisterRoutes(e, cfg)
	h.AdminOrder.RegisterRoutes(e, cfg)
	h.Address.RegisterRoutes(e, cfg)
	h.AuditLog.RegisterRoutes(e, cfg)
}
