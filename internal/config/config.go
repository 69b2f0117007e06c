package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	LogJSON  bool   `env:"LOG_JSON" env-default:"true"`

	DBURI string `env:"ORDERS_DB_URI" env-required:"true"`

	RedisAddress     string        `env:"REDIS_ADDRESS" env-default:"redis:6379"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisMaxIdle     int           `env:"REDIS_MAX_IDLE" env-default:"10"`
	RedisIdleTimeout time.Duration `env:"REDIS_IDLE_TIMEOUT" env-default:"240s"`
	RedisConnTimeout time.Duration `env:"REDIS_CONN_TIMEOUT" env-default:"2s"`

	NATSURL        string        `env:"NATS_URL" env-default:"nats://nats:4222"`
	NATSUser       string        `env:"NATS_USER"`
	NATSPassword   string        `env:"NATS_PASS"`
	NATSQueue      string        `env:"NATS_QUEUE" env-default:"ms-orders"`
	RequestTimeout time.Duration `env:"COLLABORATOR_TIMEOUT" env-default:"3s"`
	NotifyTimeout  time.Duration `env:"NOTIFY_TIMEOUT" env-default:"2s"`

	MetricsAddress string `env:"METRICS_ADDRESS" env-default:":9102"`

	Engine  EngineConfig
	Breaker CircuitBreakerConfig
}

// CircuitBreakerConfig guards calls to the account service.
type CircuitBreakerConfig struct {
	MaxRequests uint32        `env:"BREAKER_MAX_REQUESTS" env-default:"3"`
	Interval    time.Duration `env:"BREAKER_INTERVAL" env-default:"60s"`
	Timeout     time.Duration `env:"BREAKER_TIMEOUT" env-default:"30s"`
	MaxFailures uint32        `env:"BREAKER_MAX_FAILURES" env-default:"5"`
}

// EngineConfig carries the knobs the matching core treats as deployment
// configuration: minimum notional and rounding precision.
type EngineConfig struct {
	MinOrderTotal       string `env:"ORDER_MIN_TOTAL" env-default:"5"`
	QuotePriceDecimals  int32  `env:"QUOTE_PRICE_DECIMALS" env-default:"2"`
	AmountDecimals      int32  `env:"AMOUNT_DECIMALS" env-default:"8"`
	StrictQuoteDecimals bool   `env:"STRICT_QUOTE_DECIMALS" env-default:"true"`
}

// Load reads configuration from the given env file when it exists,
// falling back to process environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
