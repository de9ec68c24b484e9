package middleware

import (
	"net/http"
	"strings"

	"shopcheckout/internal/domain/model"

	"github.com/labstack/echo/v4"
)

const HeaderGuestToken = "X-Guest-Token"

const maxGuestTokenLen = 64

// ResolveOwner はカート・チェックアウトの持ち主を決める。
// Bearerがあればユーザー（不正なら401）、無ければX-Guest-Tokenのゲスト。
// どちらも無ければ何も入れずに通す（usecase側で401）。
func ResolveOwner(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if authz := c.Request().Header.Get("Authorization"); authz != "" {
				userID, role, err := parseBearer(authz, secret)
				if err != nil {
					return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
				}
				setUser(c, userID, role)
				return next(c)
			}

			token := strings.TrimSpace(c.Request().Header.Get(HeaderGuestToken))
			if token != "" {
				if len(token) > maxGuestTokenLen {
					return c.JSON(http.StatusBadRequest, errorJSON("invalid guest token"))
				}
				c.Set(CtxOwnerKey, model.GuestOwner(token))
			}
			return next(c)
		}
	}
}

// RequireUser はログイン必須のルート用（ResolveOwnerの後ろに置く）
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := c.Get(CtxUserIDKey).(int64)
			if !ok || id <= 0 {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			return next(c)
		}
	}
}

// OwnerFrom は未解決ならゼロ値（Valid()がfalse）
func OwnerFrom(c echo.Context) model.OwnerKey {
	owner, _ := c.Get(CtxOwnerKey).(model.OwnerKey)
	return owner
}

func setUser(c echo.Context, userID int64, role string) {
	c.Set(CtxUserIDKey, userID)
	c.Set(CtxUserRoleKey, role)
	c.Set(CtxOwnerKey, model.UserOwner(userID))
}
