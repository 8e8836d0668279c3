package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Storage drivers understood by the ledger store factory.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config defines the charging service configuration.
type Config struct {
	API struct {
		Port string `yaml:"port" env:"API_HTTP_PORT"`
	} `yaml:"api"`
	OCPP struct {
		Port         string `yaml:"port" env:"OCPP_PORT"`
		PingSeconds  int    `yaml:"pingSeconds" env:"OCPP_PING_SECONDS"`
		WriteSeconds int    `yaml:"writeSeconds" env:"OCPP_WRITE_SECONDS"`
	} `yaml:"ocpp"`
	Storage struct {
		Driver string `yaml:"driver" env:"STORAGE_DRIVER"`
		DSN    string `yaml:"dsn" env:"STORAGE_POSTGRES_DSN"`
		Path   string `yaml:"path" env:"STORAGE_SQLITE_PATH"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		TTL      int    `yaml:"ttlSeconds" env:"REDIS_TTL"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret" env:"AUTH_JWT_SECRET"`
	} `yaml:"auth"`
	Pricing struct {
		RatePerKWh float64 `yaml:"ratePerKwh" env:"PRICE_PER_KWH"`
	} `yaml:"pricing"`
}

// Load reads configuration via the env/yaml helper and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.API.Port = "8080"
	cfg.OCPP.Port = "9000"
	cfg.OCPP.PingSeconds = 30
	cfg.OCPP.WriteSeconds = 10
	cfg.Storage.Driver = DriverPostgres
	cfg.Redis.TTL = 86400
	cfg.Pricing.RatePerKWh = 0.2

	if err := loadInto(cfg); err != nil {
		return nil, err
	}

	switch strings.TrimSpace(cfg.Storage.Driver) {
	case DriverPostgres:
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return nil, errors.New("config: postgres dsn required")
		}
	case DriverSQLite:
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return nil, errors.New("config: sqlite path required")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("config: unknown storage driver %q", cfg.Storage.Driver)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("config: jwt secret required")
	}
	if cfg.Pricing.RatePerKWh < 0 {
		return nil, errors.New("config: rate per kWh must not be negative")
	}
	return cfg, nil
}

// APIAddress returns :port style listen address for the HTTP API.
func (c *Config) APIAddress() string {
	return address(c.API.Port, "8080")
}

// OCPPAddress returns :port style listen address for the charge point link.
func (c *Config) OCPPAddress() string {
	return address(c.OCPP.Port, "9000")
}

// PingInterval returns the websocket keepalive interval.
func (c *Config) PingInterval() time.Duration {
	if c.OCPP.PingSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.OCPP.PingSeconds) * time.Second
}

// WriteTimeout returns the websocket write deadline.
func (c *Config) WriteTimeout() time.Duration {
	if c.OCPP.WriteSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.OCPP.WriteSeconds) * time.Second
}

// ActiveSessionTTL returns ttl for cached active sessions.
func (c *Config) ActiveSessionTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}

func address(port, fallback string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		port = fallback
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
