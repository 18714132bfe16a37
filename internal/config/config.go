package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Library   LibraryConfig
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	SMTP      SMTPConfig
}

type ServerConfig struct {
	Port      string
	AppName   string `mapstructure:"app_name"`
	BodyLimit int    `mapstructure:"body_limit"`
}

type DatabaseConfig struct {
	Driver      string // postgres | sqlite
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	TimeZone    string
	TablePrefix string `mapstructure:"table_prefix"`
	Path        string // sqlite file
}

// RedisConfig is optional; an empty Addr disables every Redis-backed feature.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type AuthConfig struct {
	JWTSecret             string `mapstructure:"jwt_secret"`
	JWTExpireHours        int    `mapstructure:"jwt_expire_hours"`
	AdminRegistrationCode string `mapstructure:"admin_registration_code"`
	AutoVerify            bool   `mapstructure:"auto_verify"`
	BcryptCost            int    `mapstructure:"bcrypt_cost"`
}

func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpireHours) * time.Hour
}

// LibraryConfig holds the lending rules.
type LibraryConfig struct {
	BorrowLimit        int     `mapstructure:"borrow_limit"`
	BorrowDurationDays int     `mapstructure:"borrow_duration_days"`
	FinePerDay         float64 `mapstructure:"fine_per_day"`
	DefaultPageSize    int     `mapstructure:"default_page_size"`
	MaxPageSize        int     `mapstructure:"max_page_size"`
}

func (c LibraryConfig) LoanPeriod() time.Duration {
	return time.Duration(c.BorrowDurationDays) * 24 * time.Hour
}

type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

// SMTPConfig is parsed for completeness; no component sends mail.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":3000")
	v.SetDefault("server.app_name", "libraryhub")
	v.SetDefault("server.body_limit", 4*1024*1024)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.table_prefix", "")
	v.SetDefault("database.dbname", "library")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.path", "library.db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_expire_hours", 24)
	v.SetDefault("auth.admin_registration_code", "")
	v.SetDefault("auth.auto_verify", false)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("library.borrow_limit", 5)
	v.SetDefault("library.borrow_duration_days", 14)
	v.SetDefault("library.fine_per_day", 1.0)
	v.SetDefault("library.default_page_size", 10)
	v.SetDefault("library.max_page_size", 100)

	v.SetDefault("rate_limit.max", 100)
	v.SetDefault("rate_limit.window", 15*time.Minute)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
}

// Load reads config.yaml from path (or "." and "./config" when path is empty)
// and applies LIBRARY_* environment overrides, e.g. LIBRARY_AUTH_JWT_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("LIBRARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("Warning: no config file found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in defaults without reading files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode default config: %v", err)
	}
	return &cfg
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt_secret is required")
	}
	if c.Auth.JWTExpireHours <= 0 {
		return errors.New("config: auth.jwt_expire_hours must be positive")
	}
	if c.Library.BorrowLimit < 1 {
		return errors.New("config: library.borrow_limit must be at least 1")
	}
	if c.Library.BorrowDurationDays < 1 {
		return errors.New("config: library.borrow_duration_days must be at least 1")
	}
	if c.Library.FinePerDay < 0 {
		return errors.New("config: library.fine_per_day must not be negative")
	}
	if c.Library.DefaultPageSize < 1 || c.Library.MaxPageSize < c.Library.DefaultPageSize {
		return errors.New("config: invalid pagination bounds")
	}
	if c.RateLimit.Max < 1 || c.RateLimit.Window <= 0 {
		return errors.New("config: invalid rate limit")
	}
	return nil
}
