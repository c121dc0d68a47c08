package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	GatewayDelay   time.Duration
	MetricsEnabled bool
	AdminJWTSecret string

	CORSAllowedOrigins []string

	// Redis backs the velocity guards; an empty address disables them.
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	VelocityEnabled              bool
	VelocityMaxPaymentsPerPatron int
	VelocityPaymentWindow        time.Duration
	VelocityMaxRefundsPerTxn     int
	VelocityRefundWindow         time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		GatewayDelay:       getEnvAsDuration("GATEWAY_DELAY", 500*time.Millisecond),
		MetricsEnabled:     getEnvAsBool("METRICS_ENABLED", true),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		VelocityEnabled:              getEnvAsBool("VELOCITY_ENABLED", true),
		VelocityMaxPaymentsPerPatron: getEnvAsInt("VELOCITY_MAX_PAYMENTS_PER_PATRON", 5),
		VelocityPaymentWindow:        getEnvAsDuration("VELOCITY_PAYMENT_WINDOW", time.Hour),
		VelocityMaxRefundsPerTxn:     getEnvAsInt("VELOCITY_MAX_REFUNDS_PER_TRANSACTION", 1),
		VelocityRefundWindow:         getEnvAsDuration("VELOCITY_REFUND_WINDOW", 7*24*time.Hour),
	}
}

// IsProduction reports whether the service runs in a production environment
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "production", "prod":
		return true
	}
	return false
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
