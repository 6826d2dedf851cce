package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	DatabaseURL           string
	DatabaseMaxOpenConns  int
	DatabaseMaxIdleConns  int
	RedisURL              string
	NATSURL               string
	RealtimeChannel       string
	JWTSecret             string
	JWTTTL                time.Duration
	StripeSecretKey       string
	PaymentCurrency       string
	LatestCacheTTL        time.Duration
	DashboardCacheTTL     time.Duration
	RequestTimeout        time.Duration
	NotificationQueueSize int
	LoginRateLimit        int
	LoginRateWindow       time.Duration
	CORSAllowOrigins      string
	LogLevel              string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether internal error details must be withheld.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TUTORLINK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "TutorLink API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("realtime.channel", "tutorlink")
	v.SetDefault("jwt.ttl", "168h")
	v.SetDefault("payment.currency", "bdt")
	v.SetDefault("cache.latest_ttl", "2m")
	v.SetDefault("cache.dashboard_ttl", "5m")
	v.SetDefault("http.request_timeout", "15s")
	v.SetDefault("notification.queue_size", 256)
	v.SetDefault("rate_limit.login_max", 10)
	v.SetDefault("rate_limit.login_window", "1m")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("log.level", "info")

	durations := map[string]time.Duration{}
	for _, key := range []string{"jwt.ttl", "cache.latest_ttl", "cache.dashboard_ttl", "http.request_timeout", "rate_limit.login_window"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseURL:           v.GetString("database.url"),
		DatabaseMaxOpenConns:  v.GetInt("database.max_open_conns"),
		DatabaseMaxIdleConns:  v.GetInt("database.max_idle_conns"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		RealtimeChannel:       v.GetString("realtime.channel"),
		JWTSecret:             v.GetString("jwt.secret"),
		JWTTTL:                durations["jwt.ttl"],
		StripeSecretKey:       v.GetString("stripe.secret_key"),
		PaymentCurrency:       strings.ToLower(v.GetString("payment.currency")),
		LatestCacheTTL:        durations["cache.latest_ttl"],
		DashboardCacheTTL:     durations["cache.dashboard_ttl"],
		RequestTimeout:        durations["http.request_timeout"],
		NotificationQueueSize: v.GetInt("notification.queue_size"),
		LoginRateLimit:        v.GetInt("rate_limit.login_max"),
		LoginRateWindow:       durations["rate_limit.login_window"],
		CORSAllowOrigins:      v.GetString("cors.allow_origins"),
		LogLevel:              strings.ToLower(v.GetString("log.level")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.JWTTTL <= 0 {
		cfg.JWTTTL = 7 * 24 * time.Hour
	}

	if cfg.NotificationQueueSize <= 0 {
		cfg.NotificationQueueSize = 256
	}

	return cfg, nil
}
