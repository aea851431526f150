package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	Environment string
	HTTPAddr    string
	LogLevel    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string

	Gateway    GatewayConfig
	Saga       SagaConfig
	Stores     StoresConfig
	Reconciler ReconcilerConfig
}

// GatewayConfig configures the external card-payment gateway client.
type GatewayConfig struct {
	URL            string
	APIKey         string
	CallbackSecret string
	RequestTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
}

// SagaConfig configures the order-orchestration client.
type SagaConfig struct {
	URL            string
	RequestTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
}

// StoresConfig configures the catalog/stores client.
type StoresConfig struct {
	URL            string
	RequestTimeout time.Duration
}

// ReconcilerConfig controls sweep intervals and thresholds.
type ReconcilerConfig struct {
	Enabled        bool
	RunInterval    time.Duration
	BatchSize      int
	ReconcileAge   time.Duration
	ReservationTTL time.Duration
	JobTimeout     time.Duration
	LockTTL        time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "billing"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "billing"),
		DBUser:            getenv("DATABASE_USER", "billing"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		Gateway: GatewayConfig{
			URL:            getenv("GATEWAY_URL", "http://localhost:8100"),
			APIKey:         strings.TrimSpace(getenv("GATEWAY_API_KEY", "")),
			CallbackSecret: strings.TrimSpace(getenv("GATEWAY_CALLBACK_SECRET", "")),
			RequestTimeout: getenvDuration("GATEWAY_REQUEST_TIMEOUT", 10*time.Second),
			MaxAttempts:    getenvInt("GATEWAY_MAX_ATTEMPTS", 4),
			BackoffBase:    getenvDuration("GATEWAY_BACKOFF_BASE", 500*time.Millisecond),
			BackoffCap:     getenvDuration("GATEWAY_BACKOFF_CAP", 8*time.Second),
		},
		Saga: SagaConfig{
			URL:            getenv("SAGA_URL", "http://localhost:8200"),
			RequestTimeout: getenvDuration("SAGA_REQUEST_TIMEOUT", 5*time.Second),
			MaxAttempts:    getenvInt("SAGA_MAX_ATTEMPTS", 5),
			BackoffBase:    getenvDuration("SAGA_BACKOFF_BASE", 300*time.Millisecond),
			BackoffCap:     getenvDuration("SAGA_BACKOFF_CAP", 5*time.Second),
		},
		Stores: StoresConfig{
			URL:            getenv("STORES_URL", "http://localhost:8300"),
			RequestTimeout: getenvDuration("STORES_REQUEST_TIMEOUT", 5*time.Second),
		},
		Reconciler: ReconcilerConfig{
			Enabled:        getenvBool("RECONCILER_ENABLED", true),
			RunInterval:    getenvDuration("RECONCILER_RUN_INTERVAL", time.Minute),
			BatchSize:      getenvInt("RECONCILER_BATCH_SIZE", 50),
			ReconcileAge:   getenvDuration("RECONCILER_RECONCILE_AGE", 5*time.Minute),
			ReservationTTL: getenvDuration("RECONCILER_RESERVATION_TTL", 24*time.Hour),
			JobTimeout:     getenvDuration("RECONCILER_JOB_TIMEOUT", 30*time.Second),
			LockTTL:        getenvDuration("RECONCILER_LOCK_TTL", 2*time.Minute),
		},
	}
}

// Module provides the configuration to the fx graph.
var Module = fx.Module("config", fx.Provide(Load))

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
