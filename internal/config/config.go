package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set outside dev")

// only ever used when APP_ENV=dev and JWT_SECRET is unset
const devJWTSecret = "careerhub-dev-secret"

type Config struct {
	Env   string
	Port  int
	DBURL string

	JWTSecret     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTokenTTL time.Duration
	BcryptCost    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	GeminiAPIKey    string
	GeminiModel     string
	GenerateTimeout time.Duration

	OTLPEndpoint   string
	AllowedOrigins []string
	MaxBodyBytes   int64

	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Load reads the process environment, after merging a local .env file if one exists.
func Load() Config {
	// a missing .env is the normal case in containers
	_ = godotenv.Load()

	cfg := Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 5000),
		DBURL: getEnv("DB_URL", "mongodb://127.0.0.1:27017/careerhub"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		AccessTTL:     getEnvDuration("JWT_ACCESS_TTL", 7*24*time.Hour),
		RefreshTTL:    getEnvDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
		ResetTokenTTL: getEnvDuration("RESET_TOKEN_TTL", time.Hour),
		BcryptCost:    getEnvInt("BCRYPT_COST", 10),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GenerateTimeout: getEnvDuration("GENERATE_TIMEOUT", 30*time.Second),

		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MaxBodyBytes:   int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),
	}

	if cfg.JWTSecret == "" && cfg.Env == "dev" {
		cfg.JWTSecret = devJWTSecret
	}

	return cfg
}

// Validate rejects configurations that would let the server start in an unsafe state.
func (c Config) Validate() error {
	if c.JWTSecret == "" && c.Env != "dev" {
		return ErrMissingJWTSecret
	}
	return nil
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer in env, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)

		if err != nil || d <= 0 {
			slog.Warn("invalid duration in env, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}

		return d
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}

	if len(out) == 0 {
		return fallback
	}
	return out
}
