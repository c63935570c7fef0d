package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// AppConfig is the process configuration, read from the environment.
type AppConfig struct {
	Environment string `validate:"oneof=development production test"`

	// Blockchain. All three are required for discovery and submission;
	// when any is missing the process degrades to health-check-only mode
	// instead of crashing.
	RPCURL           string `validate:"omitempty,url"`
	OraclePrivateKey string `validate:"omitempty,startswith=0x"`
	FactoryAddress   string `validate:"omitempty,startswith=0x"`

	// Weather provider credentials. Open-Meteo needs no key.
	OpenWeatherAPIKey string
	TomorrowAPIKey    string

	// Outbound HTTP request timeout for provider calls.
	HTTPTimeout time.Duration

	// Overall bound on one aggregation fan-out.
	AggregationTimeout time.Duration

	// Wait past a market's resolution time before resolving.
	GraceDelay time.Duration

	// Bound on one whole resolution attempt.
	FireTimeout time.Duration

	// How often to re-scan the chain for newly created markets.
	DiscoveryInterval time.Duration

	Port      string
	LogLevel  string
	LogFormat string `validate:"oneof=console json"`
}

var validate = validator.New()

// Load reads configuration from the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: no .env file found: %v", err)
	}

	cfg := &AppConfig{
		Environment:       getenvDefault("ORACLE_ENV", "development"),
		RPCURL:            os.Getenv("RPC_URL"),
		OraclePrivateKey:  os.Getenv("ORACLE_PRIVATE_KEY"),
		FactoryAddress:    os.Getenv("MARKET_FACTORY_ADDRESS"),
		OpenWeatherAPIKey: os.Getenv("OPENWEATHERMAP_API_KEY"),
		TomorrowAPIKey:    os.Getenv("TOMORROW_API_KEY"),
		Port:              getenvDefault("PORT", "8080"),
		LogLevel:          getenvDefault("LOG_LEVEL", "info"),
		LogFormat:         getenvDefault("LOG_FORMAT", "console"),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.AggregationTimeout, err = getenvDuration("AGGREGATION_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.GraceDelay, err = getenvDuration("GRACE_DELAY", time.Minute); err != nil {
		return nil, err
	}
	if cfg.FireTimeout, err = getenvDuration("FIRE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DiscoveryInterval, err = getenvDuration("DISCOVERY_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ChainEnabled reports whether discovery and submission can run. Missing
// values are reported by the caller, not fatal.
func (c *AppConfig) ChainEnabled() bool {
	return c.RPCURL != "" && c.OraclePrivateKey != "" && c.FactoryAddress != ""
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
