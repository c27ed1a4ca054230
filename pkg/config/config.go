// Package config reads etc/app.yml and the secrets from .env.
package config

import (
	"os"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/napryag/clinic_booking_bot/pkg/domain/availability"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "etc/app.yml"

const (
	DriverTables   = "tables"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

type Config struct {
	HTTPPort int    `yaml:"http_port" validate:"required,min=1,max=65535"`
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error"`

	Store    StoreConfig    `yaml:"store"`
	Sessions SessionsConfig `yaml:"sessions"`
	Clinic   ClinicConfig   `yaml:"clinic"`

	// from .env
	BotToken      string `yaml:"-"`
	ChannelID     string `yaml:"-"`
	DatabaseURL   string `yaml:"-"`
	RedisPassword string `yaml:"-"`
}

type StoreConfig struct {
	Driver    string        `yaml:"driver" validate:"required,oneof=tables postgres memory"`
	TablesURL string        `yaml:"tables_url" validate:"required_if=Driver tables"`
	Timeout   time.Duration `yaml:"timeout"`
	SeedPath  string        `yaml:"seed_path"`
}

type SessionsConfig struct {
	Driver    string        `yaml:"driver" validate:"omitempty,oneof=memory redis postgres"`
	RedisAddr string        `yaml:"redis_addr" validate:"required_if=Driver redis"`
	RedisDB   int           `yaml:"redis_db" validate:"min=0"`
	TTL       time.Duration `yaml:"ttl"`
}

type ClinicConfig struct {
	Timezone            string `yaml:"timezone" validate:"required"`
	BookingWindowMonths int    `yaml:"booking_window_months" validate:"min=0,max=24"`
	SupportPhone        string `yaml:"support_phone" validate:"required"`
}

// LoadConfig reads the YAML file at path (DefaultPath when empty), applies
// defaults, validates it and adds the secrets from the environment. A
// missing .env file is not an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.New("failed to read config file").Arg("path", path).Wrap(err)
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.New("failed to unmarshal YAML").Wrap(err)
	}
	cfg.setDefaults()

	// Validate
	if err = validator.New().Struct(cfg); err != nil {
		return nil, errs.Validation("config validation failed").Wrap(err)
	}
	if _, err = time.LoadLocation(cfg.Clinic.Timezone); err != nil {
		return nil, errs.Validation("unknown clinic timezone").Arg("timezone", cfg.Clinic.Timezone).Wrap(err)
	}

	_ = godotenv.Load()
	cfg.BotToken = os.Getenv("TG_TOKEN")
	cfg.ChannelID = os.Getenv("TG_CHANNEL_ID")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if cfg.NeedsPostgres() && cfg.DatabaseURL == "" {
		return nil, errs.Validation("DATABASE_URL is required for the postgres store")
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Store.Timeout <= 0 {
		c.Store.Timeout = 10 * time.Second
	}
	if c.Sessions.Driver == "" {
		c.Sessions.Driver = DriverMemory
	}
	if c.Sessions.TTL <= 0 {
		c.Sessions.TTL = 24 * time.Hour
	}
	if c.Clinic.BookingWindowMonths == 0 {
		c.Clinic.BookingWindowMonths = 3
	}
}

// NeedsPostgres reports whether records or sessions live in PostgreSQL.
func (c *Config) NeedsPostgres() bool {
	return c.Store.Driver == DriverPostgres || c.Sessions.Driver == DriverPostgres
}

// Location is the clinic time zone. LoadConfig has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Clinic.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Window is the booking window in the clinic time zone.
func (c *Config) Window() availability.Window {
	return availability.Window{Months: c.Clinic.BookingWindowMonths, Loc: c.Location()}
}
