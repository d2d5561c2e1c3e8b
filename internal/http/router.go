package http

import (
	"log"

	"github.com/gin-gonic/gin"
)

const defaultMetricsPath = "/metrics"

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cfg.Middleware...)

	// ClientIP only honours X-Forwarded-For from these peers.
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Printf("Invalid trusted proxies %v, trusting none: %v", cfg.TrustedProxies, err)
		_ = router.SetTrustedProxies(nil)
	}

	health := NewHealthController(cfg.Version,
		HealthCheck{Name: "database", Target: cfg.Database},
		HealthCheck{Name: "payloads", Target: cfg.Payloads},
	)
	categories := NewCategoriesController(cfg.Categories, cfg.Books)
	uploads := NewUploadController(cfg.Ingester, cfg.Observer, cfg.UploadMaxMemory)
	downloads := NewDownloadController(cfg.Books, cfg.Observer)
	visitsController := NewVisitsController(cfg.Visits, cfg.VisitorCookie, cfg.AddressKey, cfg.IssueCookies)

	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = defaultMetricsPath
		}
		router.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	api := router.Group("", RequestTimeout(cfg.RequestTimeout))
	{
		api.GET("/categorias/filtrar", categories.Categories)
		api.GET("/categorias/libros", categories.Books)

		api.GET("/descargar/libros1/:id", downloads.DownloadLinked)
		api.GET("/descargar/:id", downloads.Download)

		api.GET("/visitar", visitsController.Visit)
		api.GET("/contar-usuario", visitsController.Visit)
		api.GET("/obtener-contador", visitsController.Count)
		api.GET("/total-usuarios", visitsController.Count)
		api.GET("/total-visitas", visitsController.Count)
	}

	// Uploads get their own, longer deadline and the body ceiling.
	upload := router.Group("", RequestTimeout(cfg.UploadTimeout), BodyLimit(cfg.MaxUploadBytes))
	{
		upload.POST("/subir-libro", uploads.UploadPrimary)
		upload.POST("/cargar-libro", uploads.UploadPrimary)
		upload.POST("/subir-libro-forma2", uploads.UploadLinked)
	}

	return router
}
