package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-pos/utils"
)

type Config struct {
	Port    string
	GinMode string

	DBDriver   string
	DBDSN      string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret string
	JWTTTL    time.Duration

	DefaultTaxRate decimal.Decimal

	RateLimitRPS   float64
	RateLimitBurst int

	AMQPURL string

	PlatformPollInterval time.Duration
	PlatformHTTPTimeout  time.Duration
	Platforms            map[string]PlatformConfig

	CORSOrigins []string

	LogLevel  string
	LogFormat string
}

// PlatformConfig holds the endpoint and key of one delivery platform.
type PlatformConfig struct {
	BaseURL string
	APIKey  string
}

// Load reads .env (when present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Warnf(".env file not loaded: %v", err)
	}

	return &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBDSN:      os.Getenv("DB_DSN"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "restaurant_pos"),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),
		JWTTTL:    getDuration("JWT_TTL", 24*time.Hour),

		DefaultTaxRate: getDecimal("DEFAULT_TAX_RATE", decimal.RequireFromString("0.05")),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 40),

		AMQPURL: os.Getenv("AMQP_URL"),

		PlatformPollInterval: getDuration("PLATFORM_POLL_INTERVAL", 0),
		PlatformHTTPTimeout:  getDuration("PLATFORM_HTTP_TIMEOUT", 30*time.Second),
		Platforms: map[string]PlatformConfig{
			"swiggy": {
				BaseURL: getEnv("SWIGGY_BASE_URL", "https://partner-api.swiggy.com"),
				APIKey:  os.Getenv("SWIGGY_API_KEY"),
			},
			"zomato": {
				BaseURL: getEnv("ZOMATO_BASE_URL", "https://api.zomato.com"),
				APIKey:  os.Getenv("ZOMATO_API_KEY"),
			},
		},

		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "*"), ","),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		utils.ErrorLogger.Warnf("invalid duration for %s: %q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		utils.ErrorLogger.Warnf("invalid decimal for %s: %q", key, raw)
		return fallback
	}
	return d
}
