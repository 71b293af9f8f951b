package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"launchpad-ai-pipeline/internal/models"
	"launchpad-ai-pipeline/internal/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	HTTP     HTTPConfig
	Gemini   GeminiConfig
	Tavily   TavilyConfig
	Redis    RedisConfig
	Pipeline PipelineConfig
	Output   OutputConfig
	Log      logger.Config
}

type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type GeminiConfig struct {
	APIKey       string
	ModeOverride string
	Model        string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

type TavilyConfig struct {
	APIKey       string
	ModeOverride string
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	MaxResults   int
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration
	StateTTL     time.Duration
}

type PipelineConfig struct {
	MaxTextLength    int
	MaxPDFPages      int
	CallLogLimit     int
	InvestorDataPath string
	TopInvestors     int
	FetchSources     bool
}

type OutputConfig struct {
	Dir string
}

func Load() (*Config, error) {
	// .env is optional; real deployments supply plain environment variables.
	_ = godotenv.Load()

	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}

	geminiTimeout, err := getEnvDuration("GEMINI_TIMEOUT", 45*time.Second)
	if err != nil {
		return nil, err
	}

	geminiRetries, err := getEnvInt("GEMINI_MAX_RETRIES", 1)
	if err != nil {
		return nil, err
	}

	geminiRetryDelay, err := getEnvDuration("GEMINI_RETRY_DELAY", 2*time.Second)
	if err != nil {
		return nil, err
	}

	geminiMaxTokens, err := getEnvInt("GEMINI_MAX_TOKENS", 8192)
	if err != nil {
		return nil, err
	}

	geminiTemperature, err := getEnvFloat("GEMINI_TEMPERATURE", 0.4)
	if err != nil {
		return nil, err
	}

	tavilyTimeout, err := getEnvDuration("TAVILY_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}

	tavilyRetries, err := getEnvInt("TAVILY_MAX_RETRIES", 2)
	if err != nil {
		return nil, err
	}

	tavilyResults, err := getEnvInt("TAVILY_MAX_RESULTS", 3)
	if err != nil {
		return nil, err
	}

	maxTextLength, err := getEnvInt("MAX_TEXT_LENGTH", 10000)
	if err != nil {
		return nil, err
	}

	maxPDFPages, err := getEnvInt("MAX_PDF_PAGES", 50)
	if err != nil {
		return nil, err
	}

	callLogLimit, err := getEnvInt("CALL_LOG_LIMIT", 1024)
	if err != nil {
		return nil, err
	}

	topInvestors, err := getEnvInt("TOP_INVESTOR_MATCHES", 5)
	if err != nil {
		return nil, err
	}

	redisPoolSize, err := getEnvInt("REDIS_POOL_SIZE", 10)
	if err != nil {
		return nil, err
	}

	stateTTL, err := getEnvDuration("RUN_STATE_TTL", 6*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		HTTP: HTTPConfig{
			Port:         port,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Gemini: GeminiConfig{
			APIKey:       os.Getenv("GEMINI_API_KEY"),
			ModeOverride: os.Getenv("GEMINI_MODE"),
			Model:        getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			MaxTokens:    geminiMaxTokens,
			Temperature:  geminiTemperature,
			Timeout:      geminiTimeout,
			MaxRetries:   geminiRetries,
			RetryDelay:   geminiRetryDelay,
		},
		Tavily: TavilyConfig{
			APIKey:       os.Getenv("TAVILY_API_KEY"),
			ModeOverride: os.Getenv("TAVILY_MODE"),
			BaseURL:      getEnv("TAVILY_BASE_URL", "https://api.tavily.com"),
			Timeout:      tavilyTimeout,
			MaxRetries:   tavilyRetries,
			MaxResults:   tavilyResults,
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     redisPoolSize,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			DialTimeout:  5 * time.Second,
			StateTTL:     stateTTL,
		},
		Pipeline: PipelineConfig{
			MaxTextLength:    maxTextLength,
			MaxPDFPages:      maxPDFPages,
			CallLogLimit:     callLogLimit,
			InvestorDataPath: getEnv("INVESTOR_DATA_PATH", "data/investors.json"),
			TopInvestors:     topInvestors,
			FetchSources:     getEnvBool("FETCH_SOURCES", false),
		},
		Output: OutputConfig{
			Dir: getEnv("OUTPUT_DIR", "output"),
		},
		Log: logger.Config{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			FilePath:   getEnv("LOG_FILE_PATH", "logs/pipeline.log"),
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return models.NewConfigError("INVALID_PORT", fmt.Sprintf("port %d out of range", cfg.HTTP.Port))
	}

	if override := strings.ToLower(cfg.Gemini.ModeOverride); override != "" &&
		override != string(models.ModeDemo) && override != string(models.ModeProduction) {
		return models.NewConfigError("INVALID_GEMINI_MODE", fmt.Sprintf("GEMINI_MODE must be demo or production, got %q", cfg.Gemini.ModeOverride))
	}

	if cfg.Pipeline.MaxTextLength < 100 {
		return models.NewConfigError("INVALID_MAX_TEXT_LENGTH", "MAX_TEXT_LENGTH must be at least 100")
	}

	if cfg.Pipeline.MaxPDFPages <= 0 {
		return models.NewConfigError("INVALID_MAX_PDF_PAGES", "MAX_PDF_PAGES must be positive")
	}

	return nil
}

// GeminiMode resolves the operating mode for the Gemini collaborator.
func (cfg *Config) GeminiMode() models.OperatingMode {
	return models.ResolveMode(cfg.Gemini.APIKey, cfg.Gemini.ModeOverride)
}

// TavilyMode resolves the operating mode for the optional Tavily collaborator.
func (cfg *Config) TavilyMode() models.OperatingMode {
	return models.ResolveMode(cfg.Tavily.APIKey, cfg.Tavily.ModeOverride)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, models.NewConfigError("INVALID_ENV_INT", fmt.Sprintf("%s must be an integer, got %q", key, value)).WithCause(err)
	}
	return parsed, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, models.NewConfigError("INVALID_ENV_FLOAT", fmt.Sprintf("%s must be a number, got %q", key, value)).WithCause(err)
	}
	return parsed, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, models.NewConfigError("INVALID_ENV_DURATION", fmt.Sprintf("%s must be seconds or a duration, got %q", key, value)).WithCause(err)
	}
	return parsed, nil
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
