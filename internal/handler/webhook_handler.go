package handler

import (
	"io"
	"net/http"

	"shopcheckout/internal/usecase"

	"github.com/labstack/echo/v4"
)

const (
	HeaderPaymentSignature = "X-Razorpay-Signature"
	maxWebhookBody         = 1 << 20
)

// ゲートウェイからのwebhook。署名は生のbodyで検証する
type WebhookHandler struct {
	uc *usecase.PaymentUsecase
}

func NewWebhookHandler(uc *usecase.PaymentUsecase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/payment", h.receive)
}

func (h *WebhookHandler) receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.HandleWebhook(c.Request().Context(), body, c.Request().Header.Get(HeaderPaymentSignature))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
