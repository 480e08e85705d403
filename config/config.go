package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Database configuration
	DatabasePath string

	// Redis configuration
	RedisURL string

	// Admission token configuration
	TokenSigningKey   string
	TokenPreviousKeys []string
	SerialPrefix      string

	// Auth configuration
	JWTSecret string

	// Payment configuration
	PaymentProvider string
	PaymentTimeout  time.Duration
	WaveBaseURL     string
	WaveAPIKey      string
	WaveMerchantID  string
	Currency        string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Expiry sweeper configuration
	ExpirySweepInterval time.Duration

	// Rate limiting
	ScanRatePerMinute     int
	PurchaseRatePerMinute int

	// Monitoring
	EnableMetrics bool
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Database
		DatabasePath: getEnv("DATABASE_PATH", "data/tickets.db"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "localhost:6379"),

		// Admission tokens
		TokenSigningKey:   getEnv("TOKEN_SIGNING_KEY", ""),
		TokenPreviousKeys: getEnvAsSlice("TOKEN_PREVIOUS_KEYS"),
		SerialPrefix:      getEnv("SERIAL_PREFIX", "GM"),

		// Auth
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Payments
		PaymentProvider: getEnv("PAYMENT_PROVIDER", "mock"),
		PaymentTimeout:  getEnvAsDuration("PAYMENT_TIMEOUT", "15s"),
		WaveBaseURL:     getEnv("WAVE_BASE_URL", "https://api.wave.com"),
		WaveAPIKey:      getEnv("WAVE_API_KEY", ""),
		WaveMerchantID:  getEnv("WAVE_MERCHANT_ID", ""),
		Currency:        getEnv("CURRENCY", "XOF"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Expiry sweeper
		ExpirySweepInterval: getEnvAsDuration("EXPIRY_SWEEP_INTERVAL", "15m"),

		// Rate limiting
		ScanRatePerMinute:     getEnvAsInt("SCAN_RATE_PER_MINUTE", 120),
		PurchaseRatePerMinute: getEnvAsInt("PURCHASE_RATE_PER_MINUTE", 10),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsSlice(key string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return nil
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
