package entrypoint

import (
	"encoding/hex"
	"fmt"
	"log"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/blake2b"

	"github.com/mrlokans/libreria/internal/config"
	"github.com/mrlokans/libreria/internal/scheduler"
)

const cookieKeyLength = 32

// Validate rejects configurations that cannot start.
func Validate(cfg *config.Config) error {
	switch cfg.Storage.PayloadMode {
	case config.PayloadModeBlob, config.PayloadModeDisk:
	default:
		return fmt.Errorf("invalid PAYLOAD_MODE %q: must be %q or %q",
			cfg.Storage.PayloadMode, config.PayloadModeBlob, config.PayloadModeDisk)
	}
	if cfg.Storage.UploadsDir == "" {
		return fmt.Errorf("UPLOADS_DIR must not be empty")
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH must not be empty")
	}
	if cfg.Uploads.MaxBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", cfg.Uploads.MaxBytes)
	}
	if cfg.Visits.CookieName == "" {
		return fmt.Errorf("VISIT_COOKIE_NAME must not be empty")
	}
	if cfg.Sweep.Enabled {
		if err := scheduler.ValidateCronSchedule(cfg.Sweep.Schedule); err != nil {
			return fmt.Errorf("invalid SWEEP_SCHEDULE %q: %w", cfg.Sweep.Schedule, err)
		}
	}
	return nil
}

// CookieSecret decodes VISIT_COOKIE_SECRET. Hex is tried first, anything
// else is used as raw bytes. An empty secret yields a random key, which
// invalidates issued cookies on every restart.
func CookieSecret(raw string) ([]byte, error) {
	if raw == "" {
		key := securecookie.GenerateRandomKey(cookieKeyLength)
		if key == nil {
			return nil, fmt.Errorf("failed to generate visit cookie secret")
		}
		log.Printf("Generated visit cookie secret (set VISIT_COOKIE_SECRET to persist)")
		return key, nil
	}
	if key, err := hex.DecodeString(raw); err == nil && len(key) > 0 {
		return key, nil
	}
	return []byte(raw), nil
}

// AddressKey derives the key for client address digests from the cookie
// secret, so one secret configures both.
func AddressKey(cookieKey []byte) []byte {
	sum := blake2b.Sum256(append([]byte("libreria visit address\x00"), cookieKey...))
	return sum[:]
}
