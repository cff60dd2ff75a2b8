package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	Token    TokenConfig
	Mail     MailConfig
	CORS     CORSConfig
	Log      LogConfig
	Cache    CacheConfig
	Exports  ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TokenConfig governs signing material and every token lifespan the API
// hands out: the JWT access/refresh pair plus the single-use action
// tokens used for email verification and password reset.
type TokenConfig struct {
	PrivateKeyPath            string
	PublicKeyPath             string
	Issuer                    string
	Audience                  string
	AccessLifespan            time.Duration
	RefreshLifespan           time.Duration
	EmailVerificationLifespan time.Duration
	PasswordResetLifespan     time.Duration
	RevokedSweepInterval      time.Duration
}

// MailConfig configures the SMTP relay for action emails.
type MailConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	WorkerCount int
	MaxRetries  int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig tunes the Redis cache-aside layer for list endpoints.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ExportsConfig gates the task export endpoint.
type ExportsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Token = TokenConfig{
		PrivateKeyPath:            v.GetString("JWT_PRIVATE_KEY_PATH"),
		PublicKeyPath:             v.GetString("JWT_PUBLIC_KEY_PATH"),
		Issuer:                    v.GetString("JWT_ISSUER"),
		Audience:                  v.GetString("JWT_AUDIENCE"),
		AccessLifespan:            parseDuration(v.GetString("ACCESS_TOKEN_LIFESPAN"), 15*time.Minute),
		RefreshLifespan:           parseDuration(v.GetString("REFRESH_TOKEN_LIFESPAN"), 30*24*time.Hour),
		EmailVerificationLifespan: parseDuration(v.GetString("EMAIL_VERIFICATION_TOKEN_LIFESPAN"), 24*time.Hour),
		PasswordResetLifespan:     parseDuration(v.GetString("PASSWORD_RESET_TOKEN_LIFESPAN"), time.Hour),
		RevokedSweepInterval:      parseDuration(v.GetString("REVOKED_TOKEN_SWEEP_INTERVAL"), 24*time.Hour),
	}

	cfg.Mail = MailConfig{
		Host:        v.GetString("SMTP_HOST"),
		Port:        v.GetInt("SMTP_PORT"),
		Username:    v.GetString("SMTP_USERNAME"),
		Password:    v.GetString("SMTP_PASSWORD"),
		From:        v.GetString("SMTP_FROM"),
		WorkerCount: v.GetInt("SMTP_WORKER_COUNT"),
		MaxRetries:  v.GetInt("SMTP_MAX_RETRIES"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "dotask")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_PRIVATE_KEY_PATH", "keys/private.pem")
	v.SetDefault("JWT_PUBLIC_KEY_PATH", "keys/public.pem")
	v.SetDefault("JWT_ISSUER", "http://localhost:8080")
	v.SetDefault("JWT_AUDIENCE", "dotask-api")
	v.SetDefault("ACCESS_TOKEN_LIFESPAN", "15m")
	v.SetDefault("REFRESH_TOKEN_LIFESPAN", "720h")
	v.SetDefault("EMAIL_VERIFICATION_TOKEN_LIFESPAN", "24h")
	v.SetDefault("PASSWORD_RESET_TOKEN_LIFESPAN", "1h")
	v.SetDefault("REVOKED_TOKEN_SWEEP_INTERVAL", "24h")

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 1025)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@dotask.local")
	v.SetDefault("SMTP_WORKER_COUNT", 1)
	v.SetDefault("SMTP_MAX_RETRIES", 3)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("ENABLE_EXPORTS", false)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
