// Package app wires the API server: logger, database, warehouse core,
// metrics, handlers, and router.
package app

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/specimenhub-backend/internal/data/db"
	"github.com/yungbote/specimenhub-backend/internal/data/session"
	"github.com/yungbote/specimenhub-backend/internal/data/warehouse"
	"github.com/yungbote/specimenhub-backend/internal/handlers"
	"github.com/yungbote/specimenhub-backend/internal/metrics"
	"github.com/yungbote/specimenhub-backend/internal/platform/logger"
	"github.com/yungbote/specimenhub-backend/internal/server"
)

type App struct {
	Log       *logger.Logger
	DB        *gorm.DB
	Router    *gin.Engine
	Cfg       Config
	Warehouse *warehouse.Warehouse
	Metrics   *metrics.Metrics
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	sess := session.New(theDB, log)

	m := metrics.New()
	m.Register(metrics.NewDatabaseCollector(sess, log))

	wh := warehouse.New(warehouse.Deps{
		Log:          log,
		Hooks:        m,
		MintRetryCap: cfg.MintRetryCap,
	})

	router := server.NewRouter(server.RouterConfig{
		HealthHandler:     handlers.NewHealthHandler(theDB),
		IdentifierHandler: handlers.NewIdentifierHandler(log, wh, sess),
		SampleHandler:     handlers.NewSampleHandler(log, wh, sess),
		MetricsHandler:    m.Handler(),
		AllowOrigins:      cfg.AllowOrigins,
		Mode:              cfg.GinMode,
	})

	return &App{
		Log:       log,
		DB:        theDB,
		Router:    router,
		Cfg:       cfg,
		Warehouse: wh,
		Metrics:   m,
	}, nil
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Server listening", "port", a.Cfg.Port)
	return a.Router.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
