// Package csrf guards cookie-authenticated writes with a double-submit token.
package csrf

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type Config struct {
	CookieName string
	HeaderName string
	// SessionCookie is the auth cookie whose presence turns the check on.
	SessionCookie string

	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration

	SkipPaths []string
}

func DefaultConfig() Config {
	return Config{
		CookieName:    "XSRF-TOKEN",
		HeaderName:    "X-CSRF-Token",
		SessionCookie: "accessToken",
		Secure:        true,
		SameSite:      http.SameSiteLaxMode,
		MaxAge:        24 * time.Hour,
	}
}

// Middleware applies the check only to requests that carry the session cookie. Kiosk
// terminals send a bearer header and guests send nothing, so neither needs a token.
func Middleware(cfg Config) echo.MiddlewareFunc {
	def := DefaultConfig()
	if cfg.CookieName == "" {
		cfg.CookieName = def.CookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = def.HeaderName
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = def.SessionCookie
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = def.SameSite
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return echomw.CSRFWithConfig(echomw.CSRFConfig{
		TokenLookup:    "header:" + cfg.HeaderName,
		CookieName:     cfg.CookieName,
		CookiePath:     "/",
		CookieSecure:   cfg.Secure,
		CookieSameSite: cfg.SameSite,
		CookieMaxAge:   int(cfg.MaxAge.Seconds()),
		Skipper: func(c echo.Context) bool {
			if _, ok := skip[c.Request().URL.Path]; ok {
				return true
			}
			ck, err := c.Cookie(cfg.SessionCookie)
			return err != nil || ck.Value == ""
		},
	})
}
