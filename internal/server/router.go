package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/specimenhub-backend/internal/handlers"
)

type RouterConfig struct {
	HealthHandler     *handlers.HealthHandler
	IdentifierHandler *handlers.IdentifierHandler
	SampleHandler     *handlers.SampleHandler
	MetricsHandler    http.Handler
	AllowOrigins      []string
	Mode              string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Cors
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := router.Group("/api/v1")
	{
		api.GET("/identifier-sets", cfg.IdentifierHandler.ListSets)
		api.POST("/identifier-sets/:name/identifiers", cfg.IdentifierHandler.Mint)
		api.GET("/barcodes/:barcode", cfg.IdentifierHandler.Verify)
		api.POST("/samples", cfg.SampleHandler.Upsert)
	}

	return router
}
