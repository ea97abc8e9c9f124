// Package config reads service settings from the environment. A .env file in
// the working directory is loaded first when present.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceVersion string
	Server         ServerConfig
	Postgres       PostgresConfig
	Kafka          KafkaConfig
	Stripe         StripeConfig
	Checkout       CheckoutConfig
	Auth           AuthConfig
	Email          EmailConfig
	Services       ServicesConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Addr listens on PORT when set, otherwise on the service's own default.
func (s ServerConfig) Addr(defaultPort string) string {
	if s.Port != "" {
		return ":" + s.Port
	}
	return ":" + defaultPort
}

type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsPath  string
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
	// RequiredAcks follows kafka-go: -1 all replicas, 1 leader only.
	RequiredAcks int
	WriteTimeout time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
}

type CheckoutConfig struct {
	Currency         string
	AllowedCountries []string
	FrontendURL      string
	VerifyTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

type EmailConfig struct {
	ResendAPIKey  string
	From          string
	OverrideEmail string
	OpsEmail      string
}

type ServicesConfig struct {
	APIURL   string
	EmailURL string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceVersion: getEnv("SERVICE_VERSION", "1.0.0"),
		Server: ServerConfig{
			Port:            getEnv("PORT", ""),
			ReadTimeout:     getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			URL:             getEnv("POSTGRES_URL", ""),
			MaxOpenConns:    getInt("POSTGRES_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("POSTGRES_CONN_MAX_LIFETIME", 30*time.Minute),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "file://migrations"),
		},
		Kafka: KafkaConfig{
			Brokers:      getList("KAFKA_BROKERS", nil),
			GroupID:      getEnv("KAFKA_GROUP_ID", "foodhub-worker"),
			RequiredAcks: getInt("KAFKA_REQUIRED_ACKS", -1),
			WriteTimeout: getDuration("KAFKA_WRITE_TIMEOUT", 10*time.Second),
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Checkout: CheckoutConfig{
			Currency:         strings.ToLower(getEnv("CHECKOUT_CURRENCY", "inr")),
			AllowedCountries: getList("CHECKOUT_ALLOWED_COUNTRIES", []string{"GB", "US", "CA", "IN"}),
			FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:5173"),
			VerifyTimeout:    getDuration("VERIFY_TIMEOUT", 20*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Email: EmailConfig{
			ResendAPIKey:  getEnv("RESEND_API_KEY", ""),
			From:          "Food Hub <" + getEnv("RESEND_FROM_EMAIL", "onboarding@resend.dev") + ">",
			OverrideEmail: getEnv("RESEND_OVERRIDE_EMAIL", ""),
			OpsEmail:      getEnv("OPS_EMAIL", ""),
		},
		Services: ServicesConfig{
			APIURL:   getEnv("API_SERVICE_URL", ""),
			EmailURL: getEnv("EMAIL_SERVICE_URL", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return d
}

func getList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
