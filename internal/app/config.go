package app

import (
	"strings"

	"github.com/yungbote/specimenhub-backend/internal/platform/envutil"
	"github.com/yungbote/specimenhub-backend/internal/platform/logger"
)

type Config struct {
	Port         string
	GinMode      string
	AllowOrigins []string
	// MintRetryCap aborts a minting batch after this many barcode
	// collisions on a single slot. Zero retries forever.
	MintRetryCap int
}

func LoadConfig(log *logger.Logger) Config {
	origins := strings.Split(envutil.String("CORS_ALLOW_ORIGINS", "http://localhost:3000"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	cfg := Config{
		Port:         envutil.String("PORT", "8080"),
		GinMode:      envutil.String("GIN_MODE", "debug"),
		AllowOrigins: origins,
		MintRetryCap: envutil.Int("MINT_RETRY_CAP", 0),
	}
	log.Info("Loaded config",
		"port", cfg.Port,
		"gin_mode", cfg.GinMode,
		"mint_retry_cap", cfg.MintRetryCap,
	)
	return cfg
}
