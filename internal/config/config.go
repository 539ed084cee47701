package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN         string `env:"DATABASE_DSN,required=true"`
	RedisURL            string `env:"REDIS_URL,required=true"`
	RelayURL            string `env:"RELAY_URL,required=true"`
	FunctionEndpointURL string `env:"FUNCTION_ENDPOINT_URL"`

	CheckIntervalSeconds  int    `env:"CHECK_INTERVAL_SECONDS,default=60"`
	LookbackWindowSeconds int    `env:"LOOKBACK_WINDOW_SECONDS,default=300"`
	BatchSize             int    `env:"BATCH_SIZE,default=50"`
	MaxRetries            int    `env:"MAX_RETRIES,default=3"`
	RetryDelaySeconds     int    `env:"RETRY_DELAY_SECONDS,default=300"`
	EnableTracking        bool   `env:"ENABLE_TRACKING,default=true"`
	SendTimeoutSeconds    int    `env:"SEND_TIMEOUT_SECONDS,default=5"`
	TargetUserID          string `env:"TARGET_USER_ID"`

	RateLimitPerSec int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	AdminPort       int    `env:"ADMIN_PORT,default=8080"`
	LogLevel        string `env:"LOG_LEVEL,default=info"`

	PlatformName    string `env:"PLATFORM_NAME,default=CupidLink"`
	BaseURL         string `env:"BASE_URL,default=https://cupidlink.example"`
	SupportEmail    string `env:"SUPPORT_EMAIL,default=support@cupidlink.example"`
	ContactEmail    string `env:"CONTACT_EMAIL,default=contact@cupidlink.example"`
	DefaultLanguage string `env:"DEFAULT_LANGUAGE,default=en"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

func (c *Config) LookbackWindow() time.Duration {
	return time.Duration(c.LookbackWindowSeconds) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}
