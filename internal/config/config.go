package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

type Config struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	Host     string `envconfig:"HOST" default:"0.0.0.0"`
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	AuthKey  string        `envconfig:"AUTH_KEY" required:"true"`
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"5h"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	BadgerPath  string `envconfig:"BADGER_PATH" default:"./data/badger"`

	SendBufferSize   int           `envconfig:"SEND_BUFFER_SIZE" default:"256"`
	MaxPayloadBytes  int64         `envconfig:"MAX_PAYLOAD_BYTES" default:"0"`
	RateLimit        float64       `envconfig:"RATE_LIMIT" default:"0"`
	RateBurst        int           `envconfig:"RATE_BURST" default:"5"`
	HandshakeTimeout time.Duration `envconfig:"HANDSHAKE_TIMEOUT" default:"5s"`
	PersistTimeout   time.Duration `envconfig:"PERSIST_TIMEOUT" default:"5s"`
	WriteTimeout     time.Duration `envconfig:"WRITE_TIMEOUT" default:"5s"`
	PongWait         time.Duration `envconfig:"PONG_WAIT" default:"60s"`

	StatsSchedule   string        `envconfig:"STATS_SCHEDULE" default:"@every 1m"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads an optional .env file, then the process environment.
// It reports whether a .env file was found so the caller can log it.
func Load() (*Config, bool, error) {
	dotenv := godotenv.Load() == nil

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, dotenv, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, dotenv, err
	}
	return &cfg, dotenv, nil
}

func (c *Config) validate() error {
	if c.AuthKey == "" {
		return fmt.Errorf("config: AUTH_KEY is required")
	}
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required when STORE_DRIVER=%s", DriverPostgres)
		}
	case DriverBadger:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.SendBufferSize <= 0 {
		return fmt.Errorf("config: SEND_BUFFER_SIZE must be positive, got %d", c.SendBufferSize)
	}
	if c.MaxPayloadBytes < 0 || c.RateLimit < 0 {
		return fmt.Errorf("config: MAX_PAYLOAD_BYTES and RATE_LIMIT must not be negative")
	}
	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// PingPeriod must stay below PongWait so a healthy peer always answers in time.
func (c *Config) PingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// MaskedDatabaseURL hides credentials for logging.
func (c *Config) MaskedDatabaseURL() string {
	return maskDBSource(c.DatabaseURL)
}

func maskDBSource(dsn string) string {
	parts := strings.Split(dsn, "@")
	if len(parts) < 2 {
		return "invalid-dsn-format"
	}
	return "postgres://****:****@" + parts[len(parts)-1]
}
