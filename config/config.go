package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Redis             RedisConfig
	Kafka             KafkaConfig
	Log               LogConfig
	Auth              AuthConfig
	InternalEndpoints InternalEndpointsConfig
	MercadoPago       MercadoPagoConfig
	Payments          PaymentsConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers     []string
	StatusTopic string
}

type LogConfig struct {
	Level string
}

type AuthConfig struct {
	JWTSecret string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type MercadoPagoConfig struct {
	AccessToken   string
	WebhookSecret string
	BaseURL       string
	HTTPTimeout   time.Duration
}

type PaymentsConfig struct {
	WebhookBaseURL      string
	SuccessURL          string
	FailureURL          string
	PendingURL          string
	MonitorMaxAttempts  int
	MonitorInterval     time.Duration
	BonusPoints         int64
	WebhookDedupeTTL    time.Duration
	ReconcileStaleAfter time.Duration
	JobBatchSize        int32
	ResumeMonitoring    bool
}

type JobsConfig struct {
	ReconcileInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "wellness-payments-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:     getListEnv("KAFKA_BROKERS"),
			StatusTopic: getEnv("KAFKA_PAYMENT_STATUS_TOPIC", "payments.status_changed"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		MercadoPago: MercadoPagoConfig{
			AccessToken:   getEnv("MERCADO_PAGO_ACCESS_TOKEN", ""),
			WebhookSecret: getEnv("MERCADO_PAGO_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("MERCADO_PAGO_BASE_URL", "https://api.mercadopago.com"),
			HTTPTimeout:   getSecondsEnv("MERCADO_PAGO_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Payments: PaymentsConfig{
			WebhookBaseURL:      getEnv("PAYMENTS_WEBHOOK_BASE_URL", ""),
			SuccessURL:          getEnv("PAYMENTS_SUCCESS_URL", ""),
			FailureURL:          getEnv("PAYMENTS_FAILURE_URL", ""),
			PendingURL:          getEnv("PAYMENTS_PENDING_URL", ""),
			MonitorMaxAttempts:  getIntEnv("PAYMENTS_MONITOR_MAX_ATTEMPTS", 20),
			MonitorInterval:     getSecondsEnv("PAYMENTS_MONITOR_INTERVAL_SECONDS", 30*time.Second),
			BonusPoints:         int64(getIntEnv("PAYMENTS_BONUS_POINTS", 500)),
			WebhookDedupeTTL:    getMinutesEnv("PAYMENTS_WEBHOOK_DEDUPE_TTL_MINUTES", 24*time.Hour),
			ReconcileStaleAfter: getMinutesEnv("PAYMENTS_RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			JobBatchSize:        int32(getIntEnv("PAYMENTS_JOB_BATCH_SIZE", 100)),
			ResumeMonitoring:    getBoolEnv("PAYMENTS_RESUME_MONITORING", true),
		},
		Jobs: JobsConfig{
			ReconcileInterval: getMinutesEnv("PAYMENTS_RECONCILE_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	items := make([]string, 0, 2)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
