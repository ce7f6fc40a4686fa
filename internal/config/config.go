package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	domainoauth "github.com/daisinet/securetools/internal/domain/oauth"
)

// Config contains runtime configuration values.
type Config struct {
	Environment          string
	HTTPPort             string
	OperatorAuthKey      string
	DatabaseURL          string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	Providers            map[string]domainoauth.ProviderConfig
	ProviderTimeout      time.Duration
	ServiceName          string
	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
// DATABASE_URL and REDIS_ADDR are optional; when either is empty the
// corresponding in-memory implementation is used instead.
func Load() (Config, error) {
	_ = godotenv.Load()

	operatorKey := strings.TrimSpace(os.Getenv("DAISI_AUTH_KEY"))
	if operatorKey == "" {
		return Config{}, fmt.Errorf("DAISI_AUTH_KEY is required")
	}

	providers, err := loadProviders()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		OperatorAuthKey:      operatorKey,
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		Providers:            providers,
		ProviderTimeout:      getDuration("OAUTH_PROVIDER_TIMEOUT", 10*time.Second),
		ServiceName:          getEnv("SERVICE_NAME", "daisi-securetools"),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type", "X-Daisi-Auth"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	return cfg, nil
}

// loadProviders parses OAuth provider settings, a JSON object keyed by
// service name, from OAUTH_PROVIDERS or the file named by
// OAUTH_PROVIDERS_FILE.
func loadProviders() (map[string]domainoauth.ProviderConfig, error) {
	raw := strings.TrimSpace(os.Getenv("OAUTH_PROVIDERS"))
	if raw == "" {
		path := strings.TrimSpace(os.Getenv("OAUTH_PROVIDERS_FILE"))
		if path == "" {
			return map[string]domainoauth.ProviderConfig{}, nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read OAUTH_PROVIDERS_FILE: %w", err)
		}
		raw = string(data)
	}

	var providers map[string]domainoauth.ProviderConfig
	if err := json.Unmarshal([]byte(raw), &providers); err != nil {
		return nil, fmt.Errorf("parse OAuth provider settings: %w", err)
	}
	for name, provider := range providers {
		if provider.ClientID == "" || provider.AuthorizeURL == "" || provider.TokenURL == "" {
			return nil, fmt.Errorf("provider %q is missing client_id, authorize_url or token_url", name)
		}
	}
	return providers, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
