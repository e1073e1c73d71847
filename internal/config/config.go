package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL       string `env:"RABBITMQ_URL,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	InvoicingAPIURL   string `env:"INVOICING_API_URL,required=true"`
	InvoicingAPIToken string `env:"INVOICING_API_TOKEN"`
	// InvoicingMode selects the real HTTP client ("live") or the built-in
	// simulator ("simulated").
	InvoicingMode     string `env:"INVOICING_MODE,default=live"`
	UploadDir         string `env:"UPLOAD_DIR,default=/tmp/invoice-uploads"`
	RateLimitPerSec   int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=4"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.InvoicingMode != "live" && cfg.InvoicingMode != "simulated" {
		return nil, fmt.Errorf("invalid INVOICING_MODE %q, want live or simulated", cfg.InvoicingMode)
	}
	return &cfg, nil
}

// Simulated reports whether outbound invoicing calls should be faked.
func (c *Config) Simulated() bool {
	return c.InvoicingMode == "simulated"
}
