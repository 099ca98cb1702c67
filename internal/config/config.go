package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the dashboard coordination core.
type Config struct {
	BindAddr         string
	MetricsNamespace string
	ShutdownTimeout  time.Duration

	HubWSURL      string
	HubAPIBaseURL string

	ReconnectDelay       time.Duration
	ReconnectMaxAttempts int

	NotificationDedupWindow time.Duration
	SessionHTTPTimeout      time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "dayflow"),
		HubWSURL:             envOrDefault("HUB_WS_URL", "ws://127.0.0.1:8090/ws"),
		HubAPIBaseURL:        envOrDefault("HUB_API_BASE_URL", "http://127.0.0.1:8090"),
		DatabaseURL:          stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:      15 * time.Second,
		ReconnectDelay:       time.Second,
		ReconnectMaxAttempts: 5,
		SessionHTTPTimeout:   30 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReconnectDelay, err = durationFromEnv("HUB_RECONNECT_DELAY", cfg.ReconnectDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.ReconnectMaxAttempts, err = intFromEnv("HUB_RECONNECT_MAX_ATTEMPTS", cfg.ReconnectMaxAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.NotificationDedupWindow, err = durationFromEnv("NOTIFY_DEDUP_WINDOW", cfg.NotificationDedupWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionHTTPTimeout, err = durationFromEnv("SESSION_HTTP_TIMEOUT", cfg.SessionHTTPTimeout)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.HubWSURL) == "" {
		return Config{}, fmt.Errorf("HUB_WS_URL must not be empty")
	}
	if strings.TrimSpace(cfg.HubAPIBaseURL) == "" {
		return Config{}, fmt.Errorf("HUB_API_BASE_URL must not be empty")
	}
	if cfg.ReconnectDelay <= 0 {
		return Config{}, fmt.Errorf("HUB_RECONNECT_DELAY must be positive")
	}
	if cfg.ReconnectMaxAttempts < 1 {
		return Config{}, fmt.Errorf("HUB_RECONNECT_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.NotificationDedupWindow < 0 {
		return Config{}, fmt.Errorf("NOTIFY_DEDUP_WINDOW must not be negative")
	}
	if cfg.SessionHTTPTimeout <= 0 {
		return Config{}, fmt.Errorf("SESSION_HTTP_TIMEOUT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
