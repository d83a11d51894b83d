package config

import (
	"errors"
	"io/fs"
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
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Tables   TablesConfig
	AI       AIConfig
	Metrics  MetricsConfig
	Sync     SyncConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TablesConfig tunes the virtual classroom seating and messaging endpoints.
type TablesConfig struct {
	// Capacity is the maximum number of seated students per table. Zero means unbounded.
	Capacity        int
	CacheTTL        time.Duration
	MessagePageSize int
}

// AIConfig configures the discussion prompt and grading provider.
type AIConfig struct {
	BaseURL            string
	APIKey             string
	Model              string
	Timeout            time.Duration
	DefaultQuestions   int
	GenerateConcurrent int
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// SyncConfig is read by the classroom-sync client.
type SyncConfig struct {
	BaseURL          string
	ClassroomID      string
	AssignmentID     string
	TablesInterval   time.Duration
	MessagesInterval time.Duration
	PromptsInterval  time.Duration
	RequestTimeout   time.Duration
	MaxBackoff       time.Duration
	TokenFile        string
}

// Load reads configuration from .env and the process environment.
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith reads configuration using a caller-provided viper instance so that
// command line flags bound to it take precedence over the environment.
func LoadWith(v *viper.Viper) (*Config, error) {
	_ = godotenv.Load()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
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
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 15*time.Minute),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Tables = TablesConfig{
		Capacity:        v.GetInt("TABLE_CAPACITY"),
		CacheTTL:        parseDuration(v.GetString("TABLES_CACHE_TTL"), 2*time.Second),
		MessagePageSize: v.GetInt("TABLE_MESSAGE_PAGE_SIZE"),
	}

	cfg.AI = AIConfig{
		BaseURL:            v.GetString("AI_BASE_URL"),
		APIKey:             v.GetString("AI_API_KEY"),
		Model:              v.GetString("AI_MODEL"),
		Timeout:            parseDuration(v.GetString("AI_TIMEOUT"), 60*time.Second),
		DefaultQuestions:   v.GetInt("AI_DEFAULT_QUESTIONS"),
		GenerateConcurrent: v.GetInt("AI_GENERATE_CONCURRENCY"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	cfg.Sync = SyncConfig{
		BaseURL:          v.GetString("SYNC_BASE_URL"),
		ClassroomID:      v.GetString("SYNC_CLASSROOM_ID"),
		AssignmentID:     v.GetString("SYNC_ASSIGNMENT_ID"),
		TablesInterval:   parseDuration(v.GetString("SYNC_TABLES_INTERVAL"), 3*time.Second),
		MessagesInterval: parseDuration(v.GetString("SYNC_MESSAGES_INTERVAL"), 5*time.Second),
		PromptsInterval:  parseDuration(v.GetString("SYNC_PROMPTS_INTERVAL"), 15*time.Second),
		RequestTimeout:   parseDuration(v.GetString("SYNC_REQUEST_TIMEOUT"), 10*time.Second),
		MaxBackoff:       parseDuration(v.GetString("SYNC_MAX_BACKOFF"), 2*time.Minute),
		TokenFile:        v.GetString("SYNC_TOKEN_FILE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8000)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "worksmarter")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "worksmarter")
	v.SetDefault("JWT_EXPIRATION", "15m")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TABLE_CAPACITY", 0)
	v.SetDefault("TABLES_CACHE_TTL", "2s")
	v.SetDefault("TABLE_MESSAGE_PAGE_SIZE", 200)

	v.SetDefault("AI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("AI_API_KEY", "")
	v.SetDefault("AI_MODEL", "gpt-4o-mini")
	v.SetDefault("AI_TIMEOUT", "60s")
	v.SetDefault("AI_DEFAULT_QUESTIONS", 3)
	v.SetDefault("AI_GENERATE_CONCURRENCY", 4)

	v.SetDefault("ENABLE_METRICS", true)

	v.SetDefault("SYNC_BASE_URL", "http://localhost:8000")
	v.SetDefault("SYNC_CLASSROOM_ID", "")
	v.SetDefault("SYNC_ASSIGNMENT_ID", "")
	v.SetDefault("SYNC_TABLES_INTERVAL", "3s")
	v.SetDefault("SYNC_MESSAGES_INTERVAL", "5s")
	v.SetDefault("SYNC_PROMPTS_INTERVAL", "15s")
	v.SetDefault("SYNC_REQUEST_TIMEOUT", "10s")
	v.SetDefault("SYNC_MAX_BACKOFF", "2m")
	v.SetDefault("SYNC_TOKEN_FILE", ".worksmarter-session.json")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
