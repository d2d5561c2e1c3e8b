package visits

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

// CookieCodec signs and verifies the visitor token cookie.
type CookieCodec struct {
	name   string
	maxAge time.Duration
	secure bool
	codec  *securecookie.SecureCookie
}

// NewCookieCodec creates a codec signing with hashKey. The cookie value is
// signed and timestamped, not encrypted; it only carries a random token.
func NewCookieCodec(name string, hashKey []byte, maxAge time.Duration, secure bool) *CookieCodec {
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(maxAge.Seconds()))
	return &CookieCodec{
		name:   name,
		maxAge: maxAge,
		secure: secure,
		codec:  codec,
	}
}

func (c *CookieCodec) Name() string {
	return c.name
}

// Token returns the verified token carried by r, if any. Tampered or
// expired cookies are treated as absent.
func (c *CookieCodec) Token(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return "", false
	}
	var token string
	if err := c.codec.Decode(c.name, cookie.Value, &token); err != nil || token == "" {
		return "", false
	}
	return token, true
}

// Issue generates a fresh token and sets it on w.
func (c *CookieCodec) Issue(w http.ResponseWriter) (string, error) {
	token := uuid.NewString()
	encoded, err := c.codec.Encode(c.name, token)
	if err != nil {
		return "", fmt.Errorf("encode visitor cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(c.maxAge.Seconds()),
		Expires:  time.Now().Add(c.maxAge),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}
