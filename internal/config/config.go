package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server    ServerConfig
	Inference InferenceConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	History   HistoryConfig
}

type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:"8080"`
	Timeout         time.Duration `env:"SERVER_TIMEOUT" envDefault:"2m"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ThrottleLimit   int           `env:"SERVER_THROTTLE_LIMIT" envDefault:"50"`
}

type InferenceConfig struct {
	APIKey       string        `env:"INFERENCE_API_KEY"`
	BackupAPIKey string        `env:"INFERENCE_BACKUP_API_KEY"`
	BaseURL      string        `env:"INFERENCE_BASE_URL" envDefault:"https://api-inference.huggingface.co/models"`
	MaxRetries   int           `env:"INFERENCE_MAX_RETRIES" envDefault:"3"`
	RetryDelay   time.Duration `env:"INFERENCE_RETRY_DELAY" envDefault:"2s"`
}

type RateLimitConfig struct {
	Window      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	Quota       int           `env:"RATE_LIMIT_QUOTA" envDefault:"5"`
	Distributed bool          `env:"RATE_LIMIT_DISTRIBUTED"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"redis:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type HistoryConfig struct {
	Enable bool   `env:"HISTORY_ENABLE" envDefault:"true"`
	DBPath string `env:"HISTORY_DB_PATH" envDefault:"history.db"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
