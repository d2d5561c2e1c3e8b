package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libreria/internal/visits"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Categories CategoryGetter
	Books      BookResolver
	Ingester   BookIngester
	Visits     VisitRegister
	Database   Pinger
	Payloads   Pinger // payload directory; optional

	// Visitor identity
	VisitorCookie *visits.CookieCodec
	AddressKey    []byte // keys the digest of client addresses
	IssueCookies  bool

	// Proxies whose X-Forwarded-For is trusted; nil trusts none
	TrustedProxies []string

	// Limits
	MaxUploadBytes  int64
	UploadMaxMemory int64
	RequestTimeout  time.Duration
	UploadTimeout   time.Duration

	// Metrics (optional)
	Observer       Observer
	MetricsHandler http.Handler
	MetricsPath    string
	Middleware     []gin.HandlerFunc

	// Application info
	Version string
}
