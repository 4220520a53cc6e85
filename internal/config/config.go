// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreFile  = "file"
	StoreMySQL = "mysql"
	StoreRedis = "redis"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.
type Config struct {
	Env            string        // APP_ENV, e.g. "dev" or "prod"
	Port           string        // APP_PORT
	LogLevel       string        // LOG_LEVEL
	StoreDriver    string        // STORE_DRIVER: file, mysql or redis
	DataFile       string        // DATA_FILE, used by the file store
	PersistTimeout time.Duration // PERSIST_TIMEOUT, bound on one snapshot save
	CatalogFile    string        // BUS_CATALOG_FILE, empty means built-in catalog

	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string

	RedisLedgerKey string // REDIS_LEDGER_KEY

	JWTSecret         string // JWT_SECRET
	AdminPasswordHash string // ADMIN_PASSWORD_HASH, bcrypt
	AccessTTLMin      int    // ACCESS_TOKEN_TTL_MIN

	AMQPURL       string // RABBITMQ_URL or AMQP_URL, empty disables events
	AuditConsumer bool   // AUDIT_CONSUMER_ENABLED
	AuditLogDir   string // AUDIT_LOG_DIR
}

// LoadDotEnv seeds the environment from the given files (".env" when none
// are named).  Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration.  Every missing or invalid required
// variable is reported in the returned error.
func Load() (Config, error) {
	var errs []error
	must := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", key))
		}
		return v
	}

	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		StoreDriver:    strings.ToLower(envStr("STORE_DRIVER", StoreFile)),
		DataFile:       envStr("DATA_FILE", "reservations.json"),
		PersistTimeout: envDur("PERSIST_TIMEOUT", 3*time.Second),
		CatalogFile:    envStr("BUS_CATALOG_FILE", ""),
		RedisLedgerKey: envStr("REDIS_LEDGER_KEY", "bus:reservations"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 30),
		AMQPURL:        envStr("RABBITMQ_URL", envStr("AMQP_URL", "")),
		AuditConsumer:  envBool("AUDIT_CONSUMER_ENABLED", false),
		AuditLogDir:    envStr("AUDIT_LOG_DIR", "logs"),
	}

	cfg.AdminPasswordHash = must("ADMIN_PASSWORD_HASH")

	switch cfg.StoreDriver {
	case StoreFile, StoreRedis:
	case StoreMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = must("DB_NAME")
	default:
		errs = append(errs, fmt.Errorf("invalid STORE_DRIVER %q: want file, mysql or redis", cfg.StoreDriver))
	}
	if cfg.PersistTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid PERSIST_TIMEOUT %s: must be positive", cfg.PersistTimeout))
	}
	if cfg.AccessTTLMin <= 0 {
		errs = append(errs, fmt.Errorf("invalid ACCESS_TOKEN_TTL_MIN %d: must be positive", cfg.AccessTTLMin))
	}
	if cfg.AuditConsumer && cfg.AMQPURL == "" {
		errs = append(errs, errors.New("AUDIT_CONSUMER_ENABLED requires RABBITMQ_URL or AMQP_URL"))
	}
	return cfg, errors.Join(errs...)
}
