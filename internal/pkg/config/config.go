package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// CatalogConfig selects where the route catalogue is loaded from at
// startup. "file" reads a GeoJSON FeatureCollection; "postgres" reads
// the imported tables. The status feed path is optional either way.
type CatalogConfig struct {
	Source     string `mapstructure:"source"` // file | postgres
	Path       string `mapstructure:"path"`
	StatusPath string `mapstructure:"status_path"`
}

// LedgerConfig selects the pass-mark store. "file" is the default
// single-document JSON store; "valkey" keeps the marks server-side for
// hosts without a durable filesystem. Timezone is the IANA location the
// calendar day is evaluated in; empty means system local.
type LedgerConfig struct {
	Store    string `mapstructure:"store"` // file | valkey
	Path     string `mapstructure:"path"`
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the configured timezone.
func (l LedgerConfig) Location() (*time.Location, error) {
	if l.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("ledger.timezone: %w", err)
	}
	return loc, nil
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("catalog.source", "file")
	v.SetDefault("catalog.path", "data/paid_routes.geojson")
	v.SetDefault("catalog.status_path", "data/route_status.json")
	v.SetDefault("ledger.store", "file")
	v.SetDefault("ledger.path", "data/passes.json")
	v.SetDefault("ledger.timezone", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "trails")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "madeirapass")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", false)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: MADEIRAPASS_CATALOG_PATH → catalog.path
	v.SetEnvPrefix("MADEIRAPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Catalog.Source {
	case "file":
		if c.Catalog.Path == "" {
			errs = append(errs, "catalog.path is required with catalog.source=file")
		}
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required with catalog.source=postgres")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required with catalog.source=postgres")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required with catalog.source=postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("catalog.source must be file or postgres, got %q", c.Catalog.Source))
	}

	switch c.Ledger.Store {
	case "file":
		if c.Ledger.Path == "" {
			errs = append(errs, "ledger.path is required with ledger.store=file")
		}
	case "valkey":
		if c.Valkey.Addr == "" {
			errs = append(errs, "valkey.addr is required with ledger.store=valkey")
		}
	default:
		errs = append(errs, fmt.Sprintf("ledger.store must be file or valkey, got %q", c.Ledger.Store))
	}

	if _, err := c.Ledger.Location(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required with nats.enabled=true")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required with valkey.enabled=true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
