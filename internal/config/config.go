package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=doka port=5432 sslmode=disable"

type Config struct {
	HTTPPort    string
	AppEnv      string
	LogLevel    string
	CORSOrigins string

	DatabaseDSN     string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnMaxLife   time.Duration
	JWTSecret       string
	JWTTTL          time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ConfirmWrites   bool
	WriteTimeout    time.Duration
	OwnerUsername   string
	OwnerPassword   string
	EURRate         decimal.Decimal
	defaultsApplied []string
}

// Load reads an optional .env file and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		AppEnv:        getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CORSOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		DatabaseDSN:   getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		OwnerUsername: getEnv("OWNER_USERNAME", "admin"),
		OwnerPassword: getEnv("OWNER_PASSWORD", "admin123"),
	}

	var errs []error
	var err error
	if cfg.DBMaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 20); err != nil {
		errs = append(errs, err)
	}
	if cfg.DBMaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		errs = append(errs, err)
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.DBConnMaxLife, err = getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.JWTTTL, err = getEnvDuration("JWT_TTL", 24*time.Hour); err != nil {
		errs = append(errs, err)
	}
	if cfg.WriteTimeout, err = getEnvDuration("LEDGER_WRITE_TIMEOUT", 5*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.ConfirmWrites, err = getEnvBool("LEDGER_CONFIRM_WRITES", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.EURRate, err = decimal.NewFromString(getEnv("EUR_RATE", "61")); err != nil {
		errs = append(errs, fmt.Errorf("EUR_RATE: %w", err))
	} else if !cfg.EURRate.IsPositive() {
		errs = append(errs, errors.New("EUR_RATE must be positive"))
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	} else if len(cfg.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.DatabaseDSN == defaultDSN {
		cfg.defaultsApplied = append(cfg.defaultsApplied, "DATABASE_DSN")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		cfg.defaultsApplied = append(cfg.defaultsApplied, "CORS_ALLOWED_ORIGINS")
	}
	if os.Getenv("OWNER_PASSWORD") == "" {
		cfg.defaultsApplied = append(cfg.defaultsApplied, "OWNER_PASSWORD")
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// CORSOriginList splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) CORSOriginList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WarnDefaults logs settings that still carry their development default.
func (c *Config) WarnDefaults(log *zap.Logger) {
	for _, key := range c.defaultsApplied {
		log.Warn("using development default, set it explicitly for production", zap.String("key", key))
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
