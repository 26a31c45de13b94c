package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/storefront-iam/internal/infra/config"
)

// SessionCookies writes and clears the access and refresh token cookies.
type SessionCookies struct {
	cfg      config.CookieSettings
	sameSite http.SameSite
}

// NewSessionCookies builds a cookie writer from configuration.
func NewSessionCookies(cfg config.CookieSettings) *SessionCookies {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.AccessTokenName == "" {
		cfg.AccessTokenName = "access_token"
	}
	if cfg.RefreshTokenName == "" {
		cfg.RefreshTokenName = "refresh_token"
	}
	return &SessionCookies{cfg: cfg, sameSite: parseSameSite(cfg.SameSite)}
}

// AccessName returns the access token cookie name.
func (s *SessionCookies) AccessName() string { return s.cfg.AccessTokenName }

// RefreshName returns the refresh token cookie name.
func (s *SessionCookies) RefreshName() string { return s.cfg.RefreshTokenName }

// SetAccess stores the access token until expiresAt.
func (s *SessionCookies) SetAccess(c *gin.Context, token string, expiresAt time.Time) {
	s.write(c, s.cfg.AccessTokenName, token, expiresAt)
}

// SetRefresh stores the refresh token until expiresAt.
func (s *SessionCookies) SetRefresh(c *gin.Context, token string, expiresAt time.Time) {
	s.write(c, s.cfg.RefreshTokenName, token, expiresAt)
}

// Clear overwrites both cookies with empty values expiring at the Unix epoch.
func (s *SessionCookies) Clear(c *gin.Context) {
	for _, name := range []string{s.cfg.AccessTokenName, s.cfg.RefreshTokenName} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     s.cfg.Path,
			Domain:   s.cfg.Domain,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			Secure:   s.cfg.Secure,
			HttpOnly: true,
			SameSite: s.sameSite,
		})
	}
}

func (s *SessionCookies) write(c *gin.Context, name, value string, expiresAt time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.cfg.Path,
		Domain:   s.cfg.Domain,
		Expires:  expiresAt.UTC(),
		Secure:   s.cfg.Secure,
		HttpOnly: true,
		SameSite: s.sameSite,
	})
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
