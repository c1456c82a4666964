package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins []string

	DatabaseURL string
	DBHost      string
	DBUser      string
	DBPass      string
	DBName      string
	DBPort      string
	DBSlowQuery time.Duration

	RedisURL string

	MeiliSearchHost string
	MeiliMasterKey  string

	DiscordToken   string
	DiscordAppID   string
	DiscordGuildID string
	AdminRoleID    string

	JWTSecret string

	LogLevel  string
	LogFormat string

	LeaderboardCacheTTL time.Duration
	ReconcileInterval   time.Duration
	PlatformTimeout     time.Duration
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      os.Getenv("DB_HOST"),
		DBUser:      os.Getenv("DB_USER"),
		DBPass:      os.Getenv("DB_PASS"),
		DBName:      os.Getenv("DB_NAME"),
		DBPort:      os.Getenv("DB_PORT"),

		RedisURL: os.Getenv("REDIS_URL"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		DiscordToken:   os.Getenv("DISCORD_TOKEN"),
		DiscordAppID:   os.Getenv("DISCORD_APP_ID"),
		DiscordGuildID: os.Getenv("DISCORD_GUILD_ID"),
		AdminRoleID:    os.Getenv("ADMIN_ROLE_ID"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"LEADERBOARD_CACHE_TTL", "30s", &cfg.LeaderboardCacheTTL},
		{"RECONCILE_INTERVAL", "1h", &cfg.ReconcileInterval},
		{"PLATFORM_TIMEOUT", "10s", &cfg.PlatformTimeout},
		{"DB_SLOW_QUERY", "200ms", &cfg.DBSlowQuery},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret"
	}
	if cfg.MeiliSearchHost != "" && !strings.HasPrefix(cfg.MeiliSearchHost, "http") {
		cfg.MeiliSearchHost = "http://" + cfg.MeiliSearchHost + ":7700"
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
