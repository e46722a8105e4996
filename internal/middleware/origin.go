package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

// SameOriginForCookie refuses a request that carries the named cookie unless
// it comes from the host it is addressed to. Origin is preferred over Referer.
// Requests without the cookie pass untouched.
func SameOriginForCookie(cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if ck, err := req.Cookie(cookieName); err != nil || ck.Value == "" {
				return next(c)
			}

			src, ok := claimedOrigin(req)
			if !ok || !strings.EqualFold(src.Host, req.Host) || !strings.EqualFold(src.Scheme, requestScheme(req)) {
				return echo.NewHTTPError(http.StatusForbidden, "invalid origin")
			}
			return next(c)
		}
	}
}

func claimedOrigin(r *http.Request) (*url.URL, bool) {
	raw := r.Header.Get(echo.HeaderOrigin)
	if raw == "" {
		raw = r.Header.Get("Referer")
	}
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

func requestScheme(r *http.Request) string {
	if p := r.Header.Get(echo.HeaderXForwardedProto); p != "" {
		return p
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
