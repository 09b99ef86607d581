package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Database holds libsql database configuration. Both values are optional:
// without a URL the engine runs purely in memory.
type Database struct {
	URL       string `envconfig:"SPLITLAB_DATABASE_URL"`
	AuthToken string `envconfig:"SPLITLAB_AUTH_TOKEN"`
}

// Server holds configuration for the splitlab service.
type Server struct {
	Port              int           `envconfig:"SPLITLAB_PORT" default:"8080"`
	SchedulerInterval time.Duration `envconfig:"SPLITLAB_SCHEDULER_INTERVAL" default:"60s"`
	MinSampleSize     int64         `envconfig:"SPLITLAB_MIN_SAMPLE_SIZE" default:"100"`
	SubjectCacheSize  int           `envconfig:"SPLITLAB_SUBJECT_CACHE_SIZE" default:"100000"`
	SubjectTTL        time.Duration `envconfig:"SPLITLAB_SUBJECT_TTL" default:"24h"`
	FlagRingSize      int           `envconfig:"SPLITLAB_FLAG_RING_SIZE" default:"256"`
	Database          Database
}

// LoadServer loads server configuration from environment variables.
func LoadServer() (*Server, error) {
	var cfg Server
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process("", &cfg.Database); err != nil {
		return nil, err
	}
	return &cfg, nil
}
