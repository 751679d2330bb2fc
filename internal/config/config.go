package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the immutable startup configuration. It is loaded once in main
// and passed by reference; nothing in the request path reads the environment.
type Config struct {
	DatabaseURL    string `yaml:"database_url"`
	HTTPListenAddr string `yaml:"http_listen_addr"`
	LogLevel       string `yaml:"log_level"`
	ServiceName    string `yaml:"service_name"`

	// Identity provider (OAuth2 token introspection).
	IntrospectURL      string        `yaml:"introspect_url"`
	OAuth2ClientID     string        `yaml:"oauth2_client_id"`
	OAuth2ClientSecret string        `yaml:"oauth2_client_secret"`
	IntrospectTimeout  time.Duration `yaml:"introspect_timeout"`

	// Token integration (local JWT issuance for the admin integration).
	JWTSecret            string        `yaml:"jwt_secret"`
	JWTExpiration        time.Duration `yaml:"jwt_expiration"`
	JWTRefreshExpiration time.Duration `yaml:"jwt_refresh_expiration"`
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:          getEnv("GATEWAY_DATABASE_URL", ""),
		HTTPListenAddr:       getEnv("HTTP_LISTEN_ADDR", ":8001"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		ServiceName:          getEnv("SERVICE_NAME", "gateway-api"),
		IntrospectURL:        getEnv("OAUTH2_INTROSPECT_URL", "http://127.0.0.1:8000/auth/oauth2/introspect/"),
		OAuth2ClientID:       getEnv("OAUTH2_CLIENT_ID", ""),
		OAuth2ClientSecret:   getEnv("OAUTH2_CLIENT_SECRET", ""),
		IntrospectTimeout:    getEnvDuration("INTROSPECT_TIMEOUT", 5*time.Second),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		JWTExpiration:        getEnvDuration("JWT_EXPIRATION", time.Hour),
		JWTRefreshExpiration: getEnvDuration("JWT_REFRESH_EXPIRATION", 24*time.Hour),
	}

	// An optional YAML file overlays the environment; env values stand only
	// where the file leaves a field empty.
	if path := os.Getenv("GATEWAY_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	overlayString(&c.DatabaseURL, file.DatabaseURL)
	overlayString(&c.HTTPListenAddr, file.HTTPListenAddr)
	overlayString(&c.LogLevel, file.LogLevel)
	overlayString(&c.ServiceName, file.ServiceName)
	overlayString(&c.IntrospectURL, file.IntrospectURL)
	overlayString(&c.OAuth2ClientID, file.OAuth2ClientID)
	overlayString(&c.OAuth2ClientSecret, file.OAuth2ClientSecret)
	overlayString(&c.JWTSecret, file.JWTSecret)
	if file.IntrospectTimeout != 0 {
		c.IntrospectTimeout = file.IntrospectTimeout
	}
	if file.JWTExpiration != 0 {
		c.JWTExpiration = file.JWTExpiration
	}
	if file.JWTRefreshExpiration != 0 {
		c.JWTRefreshExpiration = file.JWTRefreshExpiration
	}
	return nil
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks that the fields required by the given command are set.
func (c *Config) Validate(command string) error {
	switch command {
	case "gateway-api":
		if c.DatabaseURL == "" {
			return fmt.Errorf("GATEWAY_DATABASE_URL is required")
		}
		if c.OAuth2ClientID == "" || c.OAuth2ClientSecret == "" {
			return fmt.Errorf("OAUTH2_CLIENT_ID and OAUTH2_CLIENT_SECRET are required")
		}
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required")
		}
	case "create-api-key":
		if c.DatabaseURL == "" {
			return fmt.Errorf("GATEWAY_DATABASE_URL is required")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvDuration accepts either a Go duration string ("5s") or a bare number
// of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
