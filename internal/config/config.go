package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API server and supporting services.
type Config struct {
	ListenAddr      string
	PublicBaseURL   string
	LogLevel        string
	MySQLDSN        string
	RequestTimeout  time.Duration
	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiModel     string
	ProviderTimeout time.Duration

	ValuationCostCredits   int
	ValuationMinImages     int
	ValuationMaxImages     int
	ValuationMaxImageBytes int
	MaxRangeRatio          float64
	MinConfidence          float64
	SignupBonusCredits     int
	PromoBonusCredits      int
	InflightLockTTL        time.Duration
	RatePerMinute          float64
	RateBurst              int

	AuthJWKSURL   string
	AuthJWTSecret string
	AuthIssuer    string
	AuthAudience  string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeSuccessURL    string
	StripeCancelURL     string
	PaymentCurrency     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AlertBotToken string
	AlertChatID   int64

	AdminUsername string
	AdminPassword string

	S3Enabled       bool
	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

	cfg := Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RequestTimeout:  getDuration("HTTP_TIMEOUT", 2*time.Minute),
		GeminiBaseURL:   normalizeBaseURL(getEnv("GEMINI_BASE_URL", defaultGeminiBaseURL), defaultGeminiBaseURL),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		ProviderTimeout: getDuration("GEMINI_TIMEOUT", 90*time.Second),

		ValuationCostCredits:   getInt("VALUATION_COST_CREDITS", 5),
		ValuationMinImages:     getInt("VALUATION_MIN_IMAGES", 3),
		ValuationMaxImages:     getInt("VALUATION_MAX_IMAGES", 10),
		ValuationMaxImageBytes: getInt("VALUATION_MAX_IMAGE_BYTES", 8<<20),
		MaxRangeRatio:          getFloat("VALUATION_MAX_RANGE_RATIO", 0.6),
		MinConfidence:          getFloat("VALUATION_MIN_CONFIDENCE", 40),
		SignupBonusCredits:     getInt("SIGNUP_BONUS_CREDITS", 0),
		PromoBonusCredits:      getInt("PROMO_BONUS_CREDITS", 10),
		InflightLockTTL:        getDuration("INFLIGHT_LOCK_TTL", 3*time.Minute),
		RatePerMinute:          getFloat("VALUATION_RATE_PER_MINUTE", 6),
		RateBurst:              getInt("VALUATION_RATE_BURST", 3),

		AuthJWKSURL:   getEnv("AUTH_JWKS_URL", ""),
		AuthJWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		AuthIssuer:    getEnv("AUTH_ISSUER", ""),
		AuthAudience:  getEnv("AUTH_AUDIENCE", "authenticated"),

		StripeSuccessURL: getEnv("STRIPE_SUCCESS_URL", ""),
		StripeCancelURL:  getEnv("STRIPE_CANCEL_URL", ""),
		PaymentCurrency:  strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		AlertBotToken: os.Getenv("ALERT_TELEGRAM_BOT_TOKEN"),
		AlertChatID:   getInt64("ALERT_TELEGRAM_CHAT_ID", 0),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "change-me"),

		S3Enabled:       getBool("S3_ENABLED", false),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3Region:        os.Getenv("S3_REGION"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3PublicBaseURL: os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:  getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:        getEnv("S3_PREFIX", "previews"),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")

	if cfg.StripeSuccessURL == "" {
		cfg.StripeSuccessURL = cfg.PublicBaseURL + "/dashboard?purchase=success&session_id={CHECKOUT_SESSION_ID}"
	}
	if cfg.StripeCancelURL == "" {
		cfg.StripeCancelURL = cfg.PublicBaseURL + "/dashboard?purchase=cancelled"
	}

	var missing []string
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if cfg.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if cfg.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if cfg.AuthJWKSURL == "" && cfg.AuthJWTSecret == "" {
		missing = append(missing, "AUTH_JWKS_URL or AUTH_JWT_SECRET")
	}
	if cfg.S3Enabled {
		if cfg.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if cfg.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
		if cfg.S3Bucket == "" {
			missing = append(missing, "S3_BUCKET")
		}
		if cfg.S3PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if cfg.ValuationMinImages < 1 {
		cfg.ValuationMinImages = 1
	}
	if cfg.ValuationMaxImages < cfg.ValuationMinImages {
		cfg.ValuationMaxImages = cfg.ValuationMinImages
	}

	return cfg, nil
}

// normalizeBaseURL adds a scheme to bare hosts and drops trailing slashes.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	return strings.TrimRight(parsed.String(), "/")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// loadEnvFile applies the first dotenv file found. Running without one is fine.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
