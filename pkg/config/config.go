package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port          string
		Env           string
		Timeout       time.Duration
		BaseURL       string
		MaxUploadSize int64
	}

	// Database configuration
	Database struct {
		Driver   string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		Path     string
		MaxConns int
		Retries  int
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Admin bootstrap account, skipped when the password is empty
	Admin struct {
		Username string
		Password string
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		TrustedProxies []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Gemini model settings
	Gemini struct {
		APIKey         string
		DefaultModel   string
		Timeout        time.Duration
		ThinkingBudget int
		ResponseShape  string
		Locale         string
		BreakerMax     int
		BreakerTimeout time.Duration
	}

	// TTS settings
	TTS struct {
		Endpoint        string
		ProjectID       string
		AccessToken     string
		RefreshCommand  []string
		Timeout         time.Duration
		DefaultLanguage string
		DefaultVoice    string
	}

	// Redis holds the shared TTS credential when URL is set
	Redis struct {
		URL           string
		CredentialKey string
	}

	// Vault settings, disabled when Address is empty
	Vault struct {
		Address    string
		Token      string
		MountPath  string
		SecretPath string
	}

	// Observability settings
	Observability struct {
		ServiceName    string
		TracingEnabled bool
		MetricsEnabled bool
	}

	OpenAPI struct {
		SchemaPath string
		Validate   bool
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		_ = godotenv.Load()
		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// LoadEnvFile loads the given env files into the process environment.
// Variables already set are left untouched.
func LoadEnvFile(paths ...string) error {
	return godotenv.Load(paths...)
}

// Load builds a fresh Config from the current environment
func Load() *Config {
	cfg := &Config{}

	// Server config
	cfg.Server.Port = getEnvString("PORT", "8000")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.Server.Port)
	cfg.Server.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 10<<20) // 10MB

	// Database config
	cfg.Database.Driver = getEnvString("DB_DRIVER", "sqlite")
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "vision_assist")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.Path = getEnvString("DB_PATH", "vision_assist.db")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Retries = getEnvInt("DB_RETRIES", 5)

	// JWT config
	cfg.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
	cfg.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

	cfg.Admin.Username = getEnvString("ADMIN_USERNAME", "admin")
	cfg.Admin.Password = getEnvString("ADMIN_PASSWORD", "")

	// Security config
	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})

	// Logging config
	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	// Gemini config
	cfg.Gemini.APIKey = getEnvString("GOOGLE_API_KEY", "")
	cfg.Gemini.DefaultModel = getEnvString("GEMINI_MODEL", "gemini-2.5-flash-lite")
	cfg.Gemini.Timeout = getEnvDuration("GEMINI_TIMEOUT", 30*time.Second)
	cfg.Gemini.ThinkingBudget = getEnvInt("GEMINI_THINKING_BUDGET", 0)
	cfg.Gemini.ResponseShape = getEnvString("GEMINI_RESPONSE_SHAPE", "speech")
	cfg.Gemini.Locale = getEnvString("PROMPT_LOCALE", "zh-TW")
	cfg.Gemini.BreakerMax = getEnvInt("GEMINI_BREAKER_FAILURES", 5)
	cfg.Gemini.BreakerTimeout = getEnvDuration("GEMINI_BREAKER_TIMEOUT", 30*time.Second)

	// TTS config
	cfg.TTS.Endpoint = getEnvString("TTS_ENDPOINT", "https://texttospeech.googleapis.com/v1/text:synthesize")
	cfg.TTS.ProjectID = getEnvString("GOOGLE_PROJECT_ID", "")
	cfg.TTS.AccessToken = getEnvString("GOOGLE_ACCESS_TOKEN", "")
	cfg.TTS.RefreshCommand = getEnvStringSlice("TTS_TOKEN_COMMAND", []string{"gcloud", "auth", "print-access-token"})
	cfg.TTS.Timeout = getEnvDuration("TTS_TIMEOUT", 30*time.Second)
	cfg.TTS.DefaultLanguage = getEnvString("TTS_LANGUAGE_CODE", "cmn-CN")
	cfg.TTS.DefaultVoice = getEnvString("TTS_VOICE_NAME", "cmn-CN-Chirp3-HD-Achernar")

	// The default write timeout covers one model call, both TTS attempts and
	// the token refresh in between, plus time to write the error.
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT",
		cfg.Gemini.Timeout+2*cfg.TTS.Timeout+2*writeMargin)

	cfg.Redis.URL = getEnvString("REDIS_URL", "")
	cfg.Redis.CredentialKey = getEnvString("REDIS_TTS_TOKEN_KEY", "tts:access_token")

	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.MountPath = getEnvString("VAULT_MOUNT", "secret")
	cfg.Vault.SecretPath = getEnvString("VAULT_SECRET_PATH", "vision-assist")

	cfg.Observability.ServiceName = getEnvString("OTEL_SERVICE_NAME", "vision-assist-backend")
	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", false)
	cfg.Observability.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)

	cfg.OpenAPI.SchemaPath = getEnvString("OPENAPI_SCHEMA", "api/openapi.yaml")
	cfg.OpenAPI.Validate = getEnvBool("OPENAPI_VALIDATE", false)

	return cfg
}

// writeMargin is kept between a request's deadline and the write timeout
const writeMargin = 5 * time.Second

// RequestDeadline bounds the work of a single request so a failure can still
// be written before the server's write timeout drops the connection
func (c *Config) RequestDeadline() time.Duration {
	if c.Server.Timeout <= 0 {
		return 0
	}
	if c.Server.Timeout > 2*writeMargin {
		return c.Server.Timeout - writeMargin
	}
	return c.Server.Timeout / 2
}

// IsProduction reports whether the server runs with APP_ENV=production
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if strings.Contains(value, ",") {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return parts
		}
		return strings.Fields(value)
	}
	return defaultValue
}
