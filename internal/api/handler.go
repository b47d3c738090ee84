package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/config"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/service"
	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	catalog   *service.CatalogService
	directory *service.DirectoryService
	ledger    *service.LedgerService
	engine    *service.ApprovalEngine
	stats     *service.StatsService
	auth      config.AuthConfig
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalog *service.CatalogService,
	directory *service.DirectoryService,
	ledger *service.LedgerService,
	engine *service.ApprovalEngine,
	stats *service.StatsService,
	auth config.AuthConfig,
) *Handler {
	return &Handler{
		catalog:   catalog,
		directory: directory,
		ledger:    ledger,
		engine:    engine,
		stats:     stats,
		auth:      auth,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/ping", h.ping)
	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	proveedor := router.Group("/api/proveedor")
	{
		proveedor.POST("/login", h.supplierLogin)

		proveedor.GET("/productos", h.listProducts)
		proveedor.POST("/productos", h.createProduct)
		proveedor.PUT("/productos/:id", h.updateProduct)
		proveedor.DELETE("/productos/:id", h.deleteProduct)

		proveedor.GET("/tiendas", h.listStores)
		proveedor.POST("/tiendas", h.createStore)
		proveedor.DELETE("/tiendas/:id", h.deleteStore)

		proveedor.GET("/solicitudes", h.listRequests)
		proveedor.GET("/solicitudes/:id", h.getRequest)
		proveedor.PUT("/solicitudes/:id", h.transitionRequest)

		proveedor.GET("/estadisticas", h.getStats)
	}

	tienda := router.Group("/api/tienda")
	{
		tienda.POST("/login", h.storeLogin)
		tienda.GET("/productos", h.listProducts)
		tienda.POST("/solicitudes", h.createRequest)
		tienda.GET("/:id/solicitudes", h.listStoreRequests)
		tienda.GET("/:id/productos-aprobados", h.listApprovedProducts)
		tienda.GET("/:id/registro-actividades", h.getActivityLog)
	}

	router.NoRoute(h.notFound)
}

func (h *Handler) ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the record store can be read
func (h *Handler) readinessCheck(c *gin.Context) {
	if _, err := h.stats.Stats(c.Request.Context()); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success":   false,
		"error":     "Ruta no encontrada",
		"path":      c.Request.URL.Path,
		"method":    c.Request.Method,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}
