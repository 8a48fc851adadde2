package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       *AppConfig       `yaml:"app"`
	Store     *StoreConfig     `yaml:"store"`
	Sync      *SyncConfig      `yaml:"sync"`
	Firebase  *FirebaseConfig  `yaml:"firebase"`
	Database  *DatabaseConfig  `yaml:"database"`
	WebSocket *WebSocketConfig `yaml:"websocket"`
	Push      *PushConfig      `yaml:"push"`
	Security  *SecurityConfig  `yaml:"security"`
	Redis     *RedisConfig     `yaml:"redis"`
	RateLimit *RateLimitConfig `yaml:"rate_limit"`
}

type AppConfig struct {
	Name            string        `yaml:"name"`
	Version         string        `yaml:"version"`
	Environment     string        `yaml:"environment"`
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	Debug           bool          `yaml:"debug"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	LogOutput       string        `yaml:"log_output"`
	LogMaxSizeMB    int           `yaml:"log_max_size_mb"`
	LogMaxBackups   int           `yaml:"log_max_backups"`
	LogMaxAgeDays   int           `yaml:"log_max_age_days"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type SecurityConfig struct {
	// AuthProvider is "firebase" or "jwt".
	AuthProvider       string        `yaml:"auth_provider"`
	JWTSecret          string        `yaml:"jwt_secret"`
	JWTIssuer          string        `yaml:"jwt_issuer"`
	JWTAccessTokenTTL  time.Duration `yaml:"jwt_access_token_ttl"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	TrustedProxies     []string      `yaml:"trusted_proxies"`
}

// Load reads the environment. A .env file in the working directory, when
// present, fills in variables that are not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	store := loadStoreConfig()

	config := &Config{
		App:       loadAppConfig(),
		Store:     store,
		Sync:      loadSyncConfig(store),
		Firebase:  loadFirebaseConfig(),
		Database:  loadDatabaseConfig(),
		WebSocket: loadWebSocketConfig(),
		Push:      loadPushConfig(),
		Security:  loadSecurityConfig(),
		Redis:     loadRedisConfig(),
		RateLimit: loadRateLimitConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects combinations that cannot start.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "firestore", "mongodb", "memory":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Security.AuthProvider {
	case "firebase":
	case "jwt":
		if c.Security.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_PROVIDER=jwt")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.Security.AuthProvider)
	}

	switch c.RateLimit.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown RATE_LIMIT_STORE %q", c.RateLimit.Store)
	}

	if c.Store.RequestsCollection == "" || c.Store.SOSCollection == "" {
		return fmt.Errorf("collection names must not be empty")
	}
	return nil
}

// NeedsFirebase reports whether any configured component uses the firebase app.
func (c *Config) NeedsFirebase() bool {
	return c.Store.Backend == "firestore" ||
		c.Security.AuthProvider == "firebase" ||
		(c.Push.Enabled && c.Push.Provider == "fcm")
}

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Name:            getEnv("APP_NAME", "GuideDesk"),
		Version:         getEnv("APP_VERSION", "1.0.0"),
		Environment:     getEnv("APP_ENV", "development"),
		Port:            getEnvAsInt("APP_PORT", 8080),
		Host:            getEnv("APP_HOST", "0.0.0.0"),
		Debug:           getEnvAsBool("APP_DEBUG", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		LogOutput:       getEnv("LOG_OUTPUT", "stdout"),
		LogMaxSizeMB:    getEnvAsInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups:   getEnvAsInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays:   getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
		MetricsEnabled:  getEnvAsBool("METRICS_ENABLED", true),
		ShutdownTimeout: getEnvAsDuration("APP_SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func loadSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		AuthProvider:       getEnv("AUTH_PROVIDER", "firebase"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", "guidedesk"),
		JWTAccessTokenTTL:  getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		TrustedProxies:     getEnvAsSlice("TRUSTED_PROXIES", []string{}),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func IsProduction() bool {
	return getEnv("APP_ENV", "development") == "production"
}

func IsDevelopment() bool {
	return getEnv("APP_ENV", "development") == "development"
}
