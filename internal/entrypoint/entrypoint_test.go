package entrypoint

import (
	"context"
	"encoding/hex"
	"net"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/libreria/internal/catalog"
	"github.com/mrlokans/libreria/internal/config"
	"github.com/mrlokans/libreria/internal/visits"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		HTTP:       config.HTTP{Host: "127.0.0.1", Port: 0},
		Global:     config.Global{ShutdownTimeoutInSeconds: 1},
		Database:   config.Database{Path: filepath.Join(dir, "libreria.db"), LogLevel: "silent"},
		Storage:    config.Storage{PayloadMode: config.PayloadModeBlob, UploadsDir: filepath.Join(dir, "uploads")},
		Uploads:    config.Uploads{MaxBytes: 1 << 20, MaxMemory: 1 << 20, Timeout: time.Minute},
		Categories: config.Categories{CacheTTL: time.Minute},
		Visits:     config.Visits{CookieName: "visitId", CookieMaxAge: time.Hour, IssueCookies: true},
		Sweep:      config.Sweep{Schedule: "30 * * * *", GracePeriod: time.Hour},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"unknown payload mode", func(c *config.Config) { c.Storage.PayloadMode = "s3" }, "PAYLOAD_MODE"},
		{"empty uploads dir", func(c *config.Config) { c.Storage.UploadsDir = "" }, "UPLOADS_DIR"},
		{"empty database path", func(c *config.Config) { c.Database.Path = "" }, "DATABASE_PATH"},
		{"zero upload ceiling", func(c *config.Config) { c.Uploads.MaxBytes = 0 }, "MAX_UPLOAD_BYTES"},
		{"empty cookie name", func(c *config.Config) { c.Visits.CookieName = "" }, "VISIT_COOKIE_NAME"},
		{"bad schedule when sweeping", func(c *config.Config) {
			c.Sweep.Enabled = true
			c.Sweep.Schedule = "every hour"
		}, "SWEEP_SCHEDULE"},
		{"bad schedule ignored when not sweeping", func(c *config.Config) { c.Sweep.Schedule = "every hour" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCookieSecret(t *testing.T) {
	t.Run("hex", func(t *testing.T) {
		key, err := CookieSecret("00ff10")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0xff, 0x10}, key)
	})

	t.Run("raw", func(t *testing.T) {
		key, err := CookieSecret("not hex at all")
		require.NoError(t, err)
		assert.Equal(t, []byte("not hex at all"), key)
	})

	t.Run("generated", func(t *testing.T) {
		a, err := CookieSecret("")
		require.NoError(t, err)
		b, err := CookieSecret("")
		require.NoError(t, err)

		assert.Len(t, a, cookieKeyLength)
		assert.NotEqual(t, hex.EncodeToString(a), hex.EncodeToString(b))
	})
}

func TestAddressKey(t *testing.T) {
	a := AddressKey([]byte("secret"))
	assert.Len(t, a, 32)
	assert.Equal(t, a, AddressKey([]byte("secret")))
	assert.NotEqual(t, a, AddressKey([]byte("other")))
	assert.NotEqual(t, []byte("secret"), a)
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.PayloadMode = "ftp"

	_, err := Open(cfg)
	assert.Error(t, err)
}

func TestApp_IngestorFollowsPayloadMode(t *testing.T) {
	for _, mode := range []config.PayloadMode{config.PayloadModeBlob, config.PayloadModeDisk} {
		t.Run(string(mode), func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Storage.PayloadMode = mode

			app, err := Open(cfg)
			require.NoError(t, err)
			defer app.Close()

			assert.Equal(t, mode, app.Ingestor().Mode())
		})
	}
}

func TestApp_Stats(t *testing.T) {
	cfg := testConfig(t)
	app, err := Open(cfg)
	require.NoError(t, err)
	defer app.Close()
	ctx := context.Background()

	ingestor := app.Ingestor()
	_, err = ingestor.IngestPrimary(ctx, catalog.PrimaryUpload{
		Name:     "Dune",
		Category: "Fiction",
		File:     catalog.Part{Filename: "dune.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4\n")},
		Image:    catalog.Part{Filename: "dune.png", ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\n")},
	})
	require.NoError(t, err)
	_, err = ingestor.IngestLinked(ctx, catalog.LinkedUpload{
		Name:     "SICP",
		Category: "CS",
		URI:      "https://example.com/sicp.pdf",
	})
	require.NoError(t, err)
	_, err = visits.NewRegister(app.DB).RegisterVisit(ctx, visits.Identity("token"))
	require.NoError(t, err)

	stats, err := app.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PrimaryBooks)
	assert.Equal(t, int64(1), stats.LinkedBooks)
	assert.Equal(t, []string{"CS", "Fiction"}, stats.Categories)
	assert.Equal(t, int64(1), stats.Visitors)
}

func TestApp_SweeperKeepsFreshFiles(t *testing.T) {
	cfg := testConfig(t)
	app, err := Open(cfg)
	require.NoError(t, err)
	defer app.Close()
	ctx := context.Background()

	_, err = app.Payloads.Save(ctx, ".pdf", strings.NewReader("orphan"))
	require.NoError(t, err)

	result, err := app.Sweeper().Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 0, result.Removed)
}

func TestServe_StopsWhenContextCancelled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	var shutdownCalled atomic.Bool

	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, gin.New(), cfg, func(context.Context) { shutdownCalled.Store(true) })
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.True(t, shutdownCalled.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_ReturnsListenError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testConfig(t)
	cfg.HTTP.Port = int32(taken.Addr().(*net.TCPAddr).Port)

	err = Serve(context.Background(), gin.New(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}
