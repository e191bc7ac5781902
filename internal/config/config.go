package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// GoogleConfig holds Google Sign-In verification configuration.
type GoogleConfig struct {
	ClientID string // OAuth client ID the ID tokens are issued for
}

// TokenConfig holds session token signing configuration.
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
}

// SMTPConfig holds outbound mail configuration.
// All fields are optional; when Host or User is missing the mailer
// falls back to a log-only transport.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type Config struct {
	Port        string
	Environment string
	Database    DatabaseConfig
	Google      GoogleConfig
	Token       TokenConfig
	SMTP        SMTPConfig
}

// IsProduction reports whether the server runs in production mode.
// Controls cookie security attributes.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads configuration from environment variables.
// It fails fast with clear errors for missing required values.
func Load() (*Config, error) {
	var missing []string

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "staging" && env != "production" {
		return nil, fmt.Errorf("invalid ENV value %q: must be development, staging, or production", env)
	}

	// Database configuration (required)
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	// Google Sign-In configuration (required)
	googleClientID := os.Getenv("GOOGLE_CLIENT_ID")
	if googleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	// Session token signing secret (required)
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	// Validate database URL format
	if err := validateDatabaseURL(databaseURL); err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	dbConfig := DatabaseConfig{
		URL:             databaseURL,
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
	}

	tokenConfig := TokenConfig{
		Secret:     jwtSecret,
		AccessTTL:  time.Duration(getEnvInt("ACCESS_TOKEN_TTL", 15)) * time.Minute,
		RefreshTTL: time.Duration(getEnvInt("REFRESH_TOKEN_TTL", 168)) * time.Hour,
	}

	from := os.Getenv("FROM_EMAIL")
	if from == "" {
		from = "no-reply@example.com"
	}

	smtpConfig := SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     getEnvInt("SMTP_PORT", 587),
		User:     os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASS"),
		From:     from,
	}

	return &Config{
		Port:        port,
		Environment: env,
		Database:    dbConfig,
		Google: GoogleConfig{
			ClientID: googleClientID,
		},
		Token: tokenConfig,
		SMTP:  smtpConfig,
	}, nil
}

// validateDatabaseURL ensures the database URL is a valid PostgreSQL connection string.
func validateDatabaseURL(dbURL string) error {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return fmt.Errorf("URL must use postgres or postgresql scheme, got %q", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	return nil
}

// getEnvInt reads an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return intVal
}
