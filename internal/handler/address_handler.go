package handler

import (
	"net/http"

	"shopcheckout/internal/config"
	"shopcheckout/internal/middleware"
	"shopcheckout/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 保存済み住所（チェックアウトのaddress_idで使う）
type AddressHandler struct {
	uc *usecase.AddressUsecase
}

func NewAddressHandler(uc *usecase.AddressUsecase) *AddressHandler {
	return &AddressHandler{uc: uc}
}

func (h *AddressHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	e.GET("/addresses", h.List, middleware.AuthJWT(cfg.JWTSecret))
}

func (h *AddressHandler) List(c echo.Context) error {
	list, err := h.uc.List(c.Request().Context(), middleware.OwnerFrom(c))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, list)
}
