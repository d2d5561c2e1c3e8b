package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libreria/internal/catalog"
	"github.com/mrlokans/libreria/internal/config"
	http_controllers "github.com/mrlokans/libreria/internal/http"
	"github.com/mrlokans/libreria/internal/scheduler"
	"github.com/mrlokans/libreria/internal/tasks"
	"github.com/mrlokans/libreria/internal/visits"
)

const readHeaderTimeout = 10 * time.Second

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// within the configured timeout.
func Serve(ctx context.Context, router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		if onShutdown != nil {
			onShutdown(context.Background())
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Printf("Shutdown Server, waiting %v before killing", timeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work first so no sweep races the final requests.
	if onShutdown != nil {
		onShutdown(shutdownCtx)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Println("Server exiting")
	return nil
}

// Run wires every component from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, version string) error {
	log.Printf("Starting Libreria v%s", version)

	app, err := Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("Error closing application: %v", err)
		}
	}()

	if cfg.Storage.PayloadMode == config.PayloadModeDisk {
		log.Printf("Payload mode: disk (%s)", app.Payloads.Root())
	} else {
		log.Printf("Payload mode: blob")
	}

	cookieKey, err := CookieSecret(cfg.Visits.CookieSecret)
	if err != nil {
		return err
	}

	var cacheOpts []catalog.CacheOption
	var registerOpts []visits.Option
	if app.Metrics != nil {
		cacheOpts = append(cacheOpts, catalog.WithCacheObserver(app.Metrics.ObserveCategoryCache))
		registerOpts = append(registerOpts, visits.WithObserver(app.Metrics.ObserveVisit))
	}

	categories := catalog.NewCategoryCache(app.DB, cfg.Categories.CacheTTL, cacheOpts...)
	resolver := catalog.NewResolver(app.DB, app.Payloads)
	ingestor := app.Ingestor()
	register := visits.NewRegister(app.DB, registerOpts...)
	cookie := visits.NewCookieCodec(cfg.Visits.CookieName, cookieKey, cfg.Visits.CookieMaxAge, cfg.Visits.SecureCookie)

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	var sweepScheduler *scheduler.SweepScheduler
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg))
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(tasks.NewSweepOrphanUploadsQueue(app.Sweeper()))

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		if cfg.Sweep.Enabled {
			sweepScheduler = scheduler.NewSweepScheduler(taskClient, cfg.Sweep.Schedule)
			if err := sweepScheduler.Start(ctx); err != nil {
				taskCtxCancel()
				return err
			}
		}
	} else if cfg.Sweep.Enabled {
		log.Printf("WARNING: SWEEP_ENABLED is set but the task queue is disabled; orphan payloads will only be removed by 'sweep-uploads'")
	}

	routerCfg := http_controllers.RouterConfig{
		Categories:      categories,
		Books:           resolver,
		Ingester:        ingestor,
		Visits:          register,
		Database:        app.DB,
		Payloads:        app.Payloads,
		VisitorCookie:   cookie,
		AddressKey:      AddressKey(cookieKey),
		IssueCookies:    cfg.Visits.IssueCookies,
		TrustedProxies:  cfg.HTTP.TrustedProxies,
		MaxUploadBytes:  cfg.Uploads.MaxBytes,
		UploadMaxMemory: cfg.Uploads.MaxMemory,
		RequestTimeout:  cfg.HTTP.RequestTimeout,
		UploadTimeout:   cfg.Uploads.Timeout,
		Version:         version,
	}
	if app.Metrics != nil {
		routerCfg.Observer = app.Metrics
		routerCfg.MetricsHandler = app.Metrics.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
		routerCfg.Middleware = []gin.HandlerFunc{app.Metrics.Middleware()}
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if sweepScheduler != nil {
			sweepScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	return Serve(ctx, router, cfg, onShutdown)
}
