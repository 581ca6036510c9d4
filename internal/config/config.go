package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	DatabaseURL            string `env:"DATABASE_URL,required"`
	RedisURL               string `env:"REDIS_URL,required"`
	UserTokenSecret        string `env:"USER_TOKEN_SECRET"`
	DeviceTokenSecret      string `env:"DEVICE_TOKEN_SECRET"`
	PairingTTLSeconds      int    `env:"PAIRING_TTL_SECONDS" envDefault:"600"`
	DeviceTokenTTLDays     int    `env:"DEVICE_TOKEN_TTL_DAYS" envDefault:"365"`
	ThrottleWindowSeconds  int    `env:"THROTTLE_WINDOW_SECONDS" envDefault:"5"`
	TelemetryRateLimit     int    `env:"TELEMETRY_RATE_LIMIT_PER_MIN" envDefault:"120"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) PairingTTL() time.Duration {
	return time.Duration(c.PairingTTLSeconds) * time.Second
}

func (c *Config) DeviceTokenTTL() time.Duration {
	return time.Duration(c.DeviceTokenTTLDays) * 24 * time.Hour
}

func (c *Config) ThrottleWindow() time.Duration {
	return time.Duration(c.ThrottleWindowSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if isProduction {
		if err := validateSecret("USER_TOKEN_SECRET", c.UserTokenSecret); err != nil {
			return err
		}
		if err := validateSecret("DEVICE_TOKEN_SECRET", c.DeviceTokenSecret); err != nil {
			return err
		}
		if c.UserTokenSecret == c.DeviceTokenSecret {
			return fmt.Errorf("USER_TOKEN_SECRET and DEVICE_TOKEN_SECRET must differ: device tokens must never verify as user tokens")
		}
		if c.ThrottleWindowSeconds <= 0 {
			log.Warn().Msg("THROTTLE_WINDOW_SECONDS is disabled in production: every ping will be persisted")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
