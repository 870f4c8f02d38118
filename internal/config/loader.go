package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load, e.g.
// BOOKING_HTTP_PORT for http.port.
const EnvPrefix = "BOOKING"

// ConfigFileEnv names an optional yaml, toml or json file merged under the
// environment.
const ConfigFileEnv = "BOOKING_CONFIG_FILE"

// Config captures the settings of the booking service.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Storage StorageConfig `mapstructure:"storage"`
	Booking BookingConfig `mapstructure:"booking"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Events  EventsConfig  `mapstructure:"events"`
	AMQP    AMQPConfig    `mapstructure:"amqp"`
	Sweeper SweeperConfig `mapstructure:"sweeper"`
	Log     LogConfig     `mapstructure:"log"`
	Seed    SeedConfig    `mapstructure:"seed"`
}

type HTTPConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ProbeRate      float64       `mapstructure:"probe_rate"`
	ProbeBurst     int           `mapstructure:"probe_burst"`
}

type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type BookingConfig struct {
	LeadTime  time.Duration `mapstructure:"lead_time"`
	Increment time.Duration `mapstructure:"increment"`
	Timezone  string        `mapstructure:"timezone"`
}

// Location resolves Timezone. It is only valid after Load succeeded.
func (c BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type CatalogConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type EventsConfig struct {
	Workers int `mapstructure:"workers"`
	Buffer  int `mapstructure:"buffer"`
}

// AMQPConfig configures the broker. An empty URL disables publishing to the
// broker and the payment consumer.
type AMQPConfig struct {
	URL          string `mapstructure:"url"`
	Exchange     string `mapstructure:"exchange"`
	PaymentQueue string `mapstructure:"payment_queue"`
}

type SweeperConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SeedConfig lists catalog entries upserted into storage at startup.
type SeedConfig struct {
	Grounds   []SeedGround   `mapstructure:"grounds"`
	Customers []SeedCustomer `mapstructure:"customers"`
}

type SeedGround struct {
	ID               string `mapstructure:"id"`
	Name             string `mapstructure:"name"`
	SlotCount        int    `mapstructure:"slot_count"`
	PricePerSlotHour int64  `mapstructure:"price_per_slot_hour"`
	Currency         string `mapstructure:"currency"`
}

type SeedCustomer struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

var defaults = map[string]any{
	"http.port":            8080,
	"http.request_timeout": 15 * time.Second,
	"http.probe_rate":      5.0,
	"http.probe_burst":     10,
	"storage.driver":       "sqlite",
	"storage.sqlite_path":  "data/booking.db",
	"storage.postgres_dsn": "",
	"booking.lead_time":    24 * time.Hour,
	"booking.increment":    time.Hour,
	"booking.timezone":     "UTC",
	"catalog.cache_ttl":    5 * time.Minute,
	"events.workers":       2,
	"events.buffer":        256,
	"amqp.url":             "",
	"amqp.exchange":        "bookings",
	"amqp.payment_queue":   "booking.payments",
	"sweeper.enabled":      true,
	"sweeper.schedule":     "@every 5m",
	"log.level":            "info",
	"log.format":           "json",
}

// Load reads configuration from the environment and, when BOOKING_CONFIG_FILE
// is set, from that file. Environment variables win over the file.
func Load() (Config, error) {
	v := viper.New()
	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return LoadFrom(v)
}

// LoadFrom applies defaults and environment overrides to v, then decodes and
// validates it.
func LoadFrom(v *viper.Viper) (Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Storage.SQLitePath = strings.TrimSpace(c.Storage.SQLitePath)
	c.Storage.PostgresDSN = strings.TrimSpace(c.Storage.PostgresDSN)
	c.AMQP.URL = strings.TrimSpace(c.AMQP.URL)
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Sweeper.Schedule = strings.TrimSpace(c.Sweeper.Schedule)
}

// Validate reports every missing and invalid key at once.
func (c Config) Validate() error {
	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		invalid = append(invalid, "http.port")
	}
	if c.HTTP.RequestTimeout <= 0 {
		invalid = append(invalid, "http.request_timeout")
	}
	if c.HTTP.ProbeRate <= 0 {
		invalid = append(invalid, "http.probe_rate")
	}
	if c.HTTP.ProbeBurst <= 0 {
		invalid = append(invalid, "http.probe_burst")
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			missing = append(missing, "storage.sqlite_path")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			missing = append(missing, "storage.postgres_dsn")
		}
	case "memory":
	default:
		invalid = append(invalid, "storage.driver")
	}

	if c.Booking.LeadTime < 0 {
		invalid = append(invalid, "booking.lead_time")
	}
	if c.Booking.Increment < time.Minute || c.Booking.Increment%time.Minute != 0 {
		invalid = append(invalid, "booking.increment")
	}
	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		invalid = append(invalid, "booking.timezone")
	}
	if c.Catalog.CacheTTL <= 0 {
		invalid = append(invalid, "catalog.cache_ttl")
	}
	if c.Events.Workers <= 0 {
		invalid = append(invalid, "events.workers")
	}
	if c.Events.Buffer < 0 {
		invalid = append(invalid, "events.buffer")
	}
	if c.AMQP.URL != "" && strings.TrimSpace(c.AMQP.Exchange) == "" {
		missing = append(missing, "amqp.exchange")
	}
	if c.Sweeper.Enabled {
		if _, err := cron.ParseStandard(c.Sweeper.Schedule); err != nil {
			invalid = append(invalid, "sweeper.schedule")
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "log.level")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		invalid = append(invalid, "log.format")
	}
	for i, ground := range c.Seed.Grounds {
		if strings.TrimSpace(ground.ID) == "" || ground.SlotCount <= 0 || ground.PricePerSlotHour < 0 {
			invalid = append(invalid, fmt.Sprintf("seed.grounds[%d]", i))
		}
	}
	for i, customer := range c.Seed.Customers {
		if strings.TrimSpace(customer.ID) == "" || strings.TrimSpace(customer.Name) == "" {
			invalid = append(invalid, fmt.Sprintf("seed.customers[%d]", i))
		}
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing required configuration: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid configuration values: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}
