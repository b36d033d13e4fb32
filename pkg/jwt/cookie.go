package jwt

import (
	"net/http"
	"time"
)

// CookiePolicy decides how session cookies are written back to the browser.
// Kiosk terminals on plain http inside the store run with Secure off.
type CookiePolicy struct {
	Path     string
	Secure   bool
	SameSite http.SameSite
}

func DefaultCookiePolicy() CookiePolicy {
	return CookiePolicy{Path: "/", Secure: true, SameSite: http.SameSiteLaxMode}
}

func (p CookiePolicy) Issue(name, value string, exp time.Time) *http.Cookie {
	ck := p.base(name)
	ck.Value = value
	ck.Expires = exp
	return ck
}

func (p CookiePolicy) Expire(name string) *http.Cookie {
	ck := p.base(name)
	ck.Expires = time.Unix(0, 0)
	ck.MaxAge = -1
	return ck
}

func (p CookiePolicy) base(name string) *http.Cookie {
	path := p.Path
	if path == "" {
		path = "/"
	}
	sameSite := p.SameSite
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	return &http.Cookie{
		Name:     name,
		Path:     path,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: sameSite,
	}
}
