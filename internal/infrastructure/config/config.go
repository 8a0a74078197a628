package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Signing key configuration
	JWTKeyPath string

	// Shared secret the login/consent frontend signs session tokens with
	SessionSecret string

	// Outbound HTTP configuration for request_uri fetching and
	// backchannel notification delivery
	GatewayTimeout     time.Duration
	RequestURIMaxBytes int64

	// Server configuration
	ServerPort int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env from project root
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, err
	}

	gatewayTimeout, err := time.ParseDuration(getEnv("GATEWAY_TIMEOUT", "5s"))
	if err != nil {
		return nil, err
	}

	maxBytes, err := strconv.ParseInt(getEnv("REQUEST_URI_MAX_BYTES", "65536"), 10, 64)
	if err != nil {
		return nil, err
	}

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "owner"),
		DBPassword: getEnv("DB_PASSWORD", "ownerTest"),
		DBName:     getEnv("DB_NAME", "authorization"),

		// The signer generates a key pair here on first start, so an
		// unset JWT_KEY_PATH must still be a writable location
		JWTKeyPath: getEnv("JWT_KEY_PATH", "certs/jwt-signing.pem"),

		SessionSecret: getEnv("SESSION_JWT_SECRET", ""),

		GatewayTimeout:     gatewayTimeout,
		RequestURIMaxBytes: maxBytes,

		ServerPort: getEnvInt("PORT", 8080),
	}, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
