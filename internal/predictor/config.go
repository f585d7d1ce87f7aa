// internal/predictor/config.go
package predictor

import (
	"time"

	"career-predictor/internal/common/config"
)

type Config struct {
	EncodingMode   string
	HandleInvalid  string
	MaxBatchSize   int
	Timeout        time.Duration
	CacheEnabled   bool
	CacheTTL       time.Duration
	CacheKeyPrefix string
	AuditTimeout   time.Duration
}

// LoadConfig maps the application configuration onto predictor settings.
func LoadConfig(cfg *config.Config) Config {
	return Config{
		EncodingMode:   cfg.Model.EncodingMode,
		HandleInvalid:  cfg.Model.HandleInvalid,
		MaxBatchSize:   cfg.Predictor.MaxBatchSize,
		Timeout:        config.GetDuration(cfg.Predictor.Timeout),
		CacheEnabled:   cfg.Cache.Enabled,
		CacheTTL:       time.Duration(cfg.Cache.TTL) * time.Second,
		CacheKeyPrefix: cfg.Cache.KeyPrefix,
		AuditTimeout:   config.GetDuration(cfg.Audit.Timeout),
	}
}
