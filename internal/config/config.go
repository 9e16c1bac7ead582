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
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseDriver     string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	EventChannel       string
	JWTSecret          string
	CORSOrigins        string
	QuestionCacheTTL   time.Duration
	AutosaveRateLimit  int
	AutosaveRateWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Exam API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("events.channel", "gema")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("questions.cache_ttl", "10m")
	v.SetDefault("autosave.rate_limit", 30)
	v.SetDefault("autosave.rate_window", "1m")

	cacheTTL, err := parseDuration(v, "questions.cache_ttl", "10m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid question cache ttl: %w", err)
	}

	rateWindow, err := parseDuration(v, "autosave.rate_window", "1m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid autosave rate window: %w", err)
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseDriver:     strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		EventChannel:       v.GetString("events.channel"),
		JWTSecret:          v.GetString("jwt.secret"),
		CORSOrigins:        v.GetString("cors.origins"),
		QuestionCacheTTL:   cacheTTL,
		AutosaveRateLimit:  v.GetInt("autosave.rate_limit"),
		AutosaveRateWindow: rateWindow,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.AutosaveRateLimit <= 0 {
		cfg.AutosaveRateLimit = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = fallback
	}
	return time.ParseDuration(raw)
}
