package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	// Set Gin mode (can be controlled via GIN_MODE environment variable)
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Middleware
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/ws"},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/feed.xml", handler.GetFeed)
	r.GET("/health", handler.GetHealth)
	if handler.hub != nil {
		r.GET("/ws", gin.WrapH(handler.hub))
	}

	api := r.Group("/api")
	if apiAccessKey != "" {
		api.Use(authMiddleware(apiAccessKey))
		slog.Info("API endpoints require authentication")
	} else {
		slog.Warn("API endpoints are open (API_ACCESS_KEY not set)")
	}
	{
		api.GET("/items/today", handler.APITodayItems)
		api.GET("/items", handler.APIItemsByCategory)
		api.POST("/items/:id/seen", handler.APIMarkSeen)
		api.POST("/items/:id/saved", handler.APIToggleSaved)
		api.GET("/stats/today", handler.APITodayStats)
		api.GET("/summary", handler.APISummary)

		api.POST("/consume", handler.APIConsume)
		api.GET("/pending", handler.APIPending)
		api.POST("/prune", handler.APIPrune)

		api.GET("/diagnostics", handler.APIRecentDiagnostics)
		api.POST("/diagnostics", handler.APILogEvent)
		api.DELETE("/diagnostics", handler.APIClearDiagnostics)
		api.GET("/diagnostics/summary", handler.APIDiagnosticSummary)
		api.GET("/diagnostics/providers", handler.APIProviderHealth)

		api.POST("/crawl", handler.APITriggerCrawl)
		api.GET("/knobs", handler.APIGetKnobs)
		api.PUT("/knobs", handler.APISetKnobs)
		api.PUT("/lifecycle", handler.APISetLifecycle)
		api.GET("/state/last-active", handler.APIGetLastActive)
		api.PUT("/state/last-active", handler.APISetLastActive)
	}

	// Root endpoint with basic information
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "cazzmachine",
			"version":     handler.version,
			"description": "Doomscrolls the internet so you don't have to",
			"endpoints": map[string]string{
				"feed":        "/feed.xml",
				"health":      "/health",
				"websocket":   "/ws",
				"items":       "/api/items/today",
				"summary":     "/api/summary",
				"consume":     "/api/consume (POST)",
				"diagnostics": "/api/diagnostics",
				"crawl":       "/api/crawl (POST)",
				"knobs":       "/api/knobs (GET, PUT)",
			},
			"api_status": map[string]interface{}{
				"auth_required": apiAccessKey != "",
				"header":        "X-API-Key",
			},
		})
	})

	// Favicon handler (return 204 to avoid 404s)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware creates authentication middleware for API endpoints
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
