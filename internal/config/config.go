package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InsecureDefaultSecret is used when JWT_SECRET is unset. Tokens signed with
// it can be forged by anyone who has read this file.
const InsecureDefaultSecret = "your-secret-key"

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

type Config struct {
	Port          string   `mapstructure:"API_PORT"`
	JWTSecret     string   `mapstructure:"JWT_SECRET"`
	StoreDriver   string   `mapstructure:"STORE_DRIVER"`
	MongoURI      string   `mapstructure:"MONGO_URI"`
	MongoDatabase string   `mapstructure:"MONGO_DATABASE"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int      `mapstructure:"DB_MAX_CONNS"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`
	LogLevel      string   `mapstructure:"LOG_LEVEL"`
	LogDev        bool     `mapstructure:"LOG_DEV"`
	LogFile       string   `mapstructure:"LOG_FILE"`
	SnowflakeNode int64    `mapstructure:"SNOWFLAKE_NODE"`
	BcryptCost    int      `mapstructure:"BCRYPT_COST"`
	CookieSecure  bool     `mapstructure:"COOKIE_SECURE"`
}

var keys = []string{
	"API_PORT", "JWT_SECRET", "STORE_DRIVER", "MONGO_URI", "MONGO_DATABASE",
	"DATABASE_URL", "DB_MAX_CONNS", "CORS_ORIGINS", "LOG_LEVEL", "LOG_DEV",
	"LOG_FILE", "SNOWFLAKE_NODE", "BCRYPT_COST", "COOKIE_SECURE",
}

// Load reads configuration from the process environment. Call godotenv.Load
// first if a .env file should be honoured.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("API_PORT", "8080")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("STORE_DRIVER", DriverMemory)
	v.SetDefault("DB_MAX_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEV", false)
	v.SetDefault("SNOWFLAKE_NODE", 1)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("COOKIE_SECURE", false)

	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = InsecureDefaultSecret
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// UsingInsecureSecret reports whether tokens are signed with the built-in fallback.
func (c *Config) UsingInsecureSecret() bool {
	return c.JWTSecret == InsecureDefaultSecret
}

// Validate checks that the selected store has what it needs to connect.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" {
			return fmt.Errorf("MONGO_URI and MONGO_DATABASE are required when STORE_DRIVER is %q", DriverMongo)
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", DriverPostgres)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q, %q or %q, got %q", DriverMemory, DriverMongo, DriverPostgres, c.StoreDriver)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	return nil
}
