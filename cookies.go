package authkit

import (
	"net/http"
	"strings"
	"time"
)

// SetAuthCookies writes the access and refresh tokens as HttpOnly
// cookies. The refresh cookie lives as long as the session record; the
// access cookie carries no Max-Age and dies with the browser session,
// since its real lifetime is inside the token.
func (e *Engine) SetAuthCookies(w http.ResponseWriter, tokens TokenPair) {
	e.setCookies(w, tokens, false)
}

// SetFederatedAuthCookies is SetAuthCookies for the federated redirect
// landing. With Cookie.RelaxFederated set it drops Secure and strict
// SameSite so cross-origin development setups can complete the redirect.
func (e *Engine) SetFederatedAuthCookies(w http.ResponseWriter, tokens TokenPair) {
	e.setCookies(w, tokens, e.config.Cookie.RelaxFederated)
}

func (e *Engine) setCookies(w http.ResponseWriter, tokens TokenPair, relaxed bool) {
	if e == nil || w == nil {
		return
	}
	cfg := e.config.Cookie

	secure := cfg.Secure
	sameSite := cfg.SameSite
	if relaxed {
		secure = false
		sameSite = http.SameSiteLaxMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cfg.AccessName,
		Value:    tokens.Access,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Secure:   secure,
		HttpOnly: true,
		SameSite: sameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.RefreshName,
		Value:    tokens.Refresh,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   int(e.sessions.TTL() / time.Second),
		Secure:   secure,
		HttpOnly: true,
		SameSite: sameSite,
	})
}

// ClearAuthCookies expires both auth cookies. Safe to call whether or not
// the client had them.
func (e *Engine) ClearAuthCookies(w http.ResponseWriter) {
	if e == nil || w == nil {
		return
	}
	cfg := e.config.Cookie
	for _, name := range []string{cfg.AccessName, cfg.RefreshName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     cfg.Path,
			Domain:   cfg.Domain,
			MaxAge:   -1,
			Secure:   cfg.Secure,
			HttpOnly: true,
			SameSite: cfg.SameSite,
		})
	}
}

// AccessTokenFromRequest extracts the access token, preferring the
// Authorization bearer header over the cookie.
func (e *Engine) AccessTokenFromRequest(r *http.Request) string {
	if e == nil || r == nil {
		return ""
	}
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return auth[7:]
	}
	if c, err := r.Cookie(e.config.Cookie.AccessName); err == nil {
		return c.Value
	}
	return ""
}

// RefreshTokenFromRequest extracts the refresh token cookie.
func (e *Engine) RefreshTokenFromRequest(r *http.Request) string {
	if e == nil || r == nil {
		return ""
	}
	if c, err := r.Cookie(e.config.Cookie.RefreshName); err == nil {
		return c.Value
	}
	return ""
}
