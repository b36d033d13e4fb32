package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Skotchmaster/kiosk_order/pkg/authclient"
	jwthelp "github.com/Skotchmaster/kiosk_order/pkg/jwt"
	"github.com/Skotchmaster/kiosk_order/pkg/tokens"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

type AutoRefreshMiddleware struct {
	JWTSecret  []byte
	AuthClient *authclient.Client
	Cookies    jwthelp.CookiePolicy
}

func NewAutoRefreshMiddleware(secret []byte, authClient *authclient.Client) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{
		JWTSecret:  secret,
		AuthClient: authClient,
		Cookies:    jwthelp.DefaultCookiePolicy(),
	}
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

var errNoToken = errors.New("missing access token")

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *AutoRefreshMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
		if claims.Role != tokens.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return nil
	})
}

// OptionalAuth lets guests through without a token but still rejects a broken one.
func (m *AutoRefreshMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.authenticate(c)
		if errors.Is(err, errNoToken) {
			return next(c)
		}
		if err != nil {
			return err
		}
		setUserContext(c, claims)
		return next(c)
	}
}

func (m *AutoRefreshMiddleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.authenticate(c)
		if errors.Is(err, errNoToken) {
			return echo.NewHTTPError(http.StatusUnauthorized, errNoToken.Error())
		}
		if err != nil {
			return err
		}

		if validator != nil {
			if validationErr := validator(claims); validationErr != nil {
				return validationErr
			}
		}

		setUserContext(c, claims)
		return next(c)
	}
}

func (m *AutoRefreshMiddleware) authenticate(c echo.Context) (*tokens.AccessClaims, error) {
	accessToken, fromCookie := accessTokenFrom(c)
	if accessToken == "" {
		return nil, errNoToken
	}

	claims, err := tokens.AccessClaimsFromToken(accessToken, m.JWTSecret)
	if err == nil && claims != nil {
		return claims, nil
	}

	if !errors.Is(err, jwt.ErrTokenExpired) || !fromCookie || m.AuthClient == nil {
		if fromCookie {
			m.clearAuthCookies(c)
		}
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}

	refreshCookie, rErr := c.Cookie(refreshCookieName)
	if rErr != nil || refreshCookie.Value == "" {
		m.clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	refreshResp, refErr := m.AuthClient.RefreshTokens(c.Request().Context(), refreshCookie.Value, accessToken)
	if refErr != nil {
		m.clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "refresh failed: "+refErr.Error())
	}

	c.SetCookie(m.Cookies.Issue(accessCookieName, refreshResp.AccessToken, time.Unix(refreshResp.AccessExp, 0)))
	c.SetCookie(m.Cookies.Issue(refreshCookieName, refreshResp.RefreshToken, time.Unix(refreshResp.RefreshExp, 0)))

	newClaims, pErr := tokens.AccessClaimsFromToken(refreshResp.AccessToken, m.JWTSecret)
	if pErr != nil || newClaims == nil {
		m.clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "new access token invalid")
	}
	return newClaims, nil
}

// accessTokenFrom prefers the cookie; kiosk terminals send a bearer header instead.
func accessTokenFrom(c echo.Context) (string, bool) {
	if ck, err := c.Cookie(accessCookieName); err == nil && ck.Value != "" {
		return ck.Value, true
	}
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if v, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(v), false
	}
	return "", false
}

func (m *AutoRefreshMiddleware) clearAuthCookies(c echo.Context) {
	c.SetCookie(m.Cookies.Expire(accessCookieName))
	c.SetCookie(m.Cookies.Expire(refreshCookieName))
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	c.Set("user_id", claims.Subject)
	c.Set("role", claims.Role)
}
