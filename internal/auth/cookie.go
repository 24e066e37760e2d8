// ABOUTME: Auth cookie construction for issued and revoked session tokens
// ABOUTME: The cookie is HttpOnly, SameSite=Lax and lives as long as the session

package auth

import (
	"net/http"
	"time"
)

// CookieName is the cookie carrying the session token.
const CookieName = "auth-token"

// CookieOptions controls the attributes of the auth cookie.
type CookieOptions struct {
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

func (o CookieOptions) normalize() CookieOptions {
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

func (o CookieOptions) build(token string, validity time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     o.Path,
		Domain:   o.Domain,
		MaxAge:   int(validity / time.Second),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
}

func (o CookieOptions) clear() *http.Cookie {
	c := o.build("", 0)
	c.MaxAge = -1
	return c
}
