package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// The refresh cookie is scoped to the auth routes so it never rides along
// with calls to other services on the same host.
const (
	refreshCookieName = "refreshToken"
	refreshCookiePath = "/api/auth"
)

func setRefreshCookie(c echo.Context, token string, exp time.Time) {
	maxAge := int(time.Until(exp).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetCookie(refreshCookie(token, exp, maxAge))
}

func clearRefreshCookie(c echo.Context) {
	c.SetCookie(refreshCookie("", time.Unix(0, 0), -1))
}

func refreshTokenFromCookie(c echo.Context) string {
	ck, err := c.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}

func refreshCookie(value string, exp time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     refreshCookiePath,
		Expires:  exp,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}
