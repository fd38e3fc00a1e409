package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Refund backends selectable with REFUND_MODE.
const (
	RefundModeRazorpay = "razorpay"
	RefundModeEndpoint = "endpoint"
	RefundModeOffline  = "offline"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	GeminiAPIKey string
	GeminiModel  string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RefundMode        string
	RefundEndpoint    string
	AutoRefund        bool

	AllowedOrigins []string

	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	CheckoutTimeout   time.Duration
	CheckoutExpiry    time.Duration
	GenerationTimeout time.Duration
	RefundTimeout     time.Duration
	SessionTTL        time.Duration
	RateLimitPerMin   int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		RazorpayKeyID:     os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: os.Getenv("RAZORPAY_KEY_SECRET"),
		RefundMode:        strings.ToLower(getEnv("REFUND_MODE", RefundModeRazorpay)),
		RefundEndpoint:    os.Getenv("REFUND_ENDPOINT"),
		AutoRefund:        getEnvBool("AUTO_REFUND", false),
		AllowedOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		CheckoutTimeout:   time.Second * time.Duration(getEnvInt("CHECKOUT_TIMEOUT_SECONDS", 15)),
		CheckoutExpiry:    time.Minute * time.Duration(getEnvInt("CHECKOUT_EXPIRY_MINUTES", 10)),
		GenerationTimeout: time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 90)),
		RefundTimeout:     time.Second * time.Duration(getEnvInt("REFUND_TIMEOUT_SECONDS", 20)),
		SessionTTL:        time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	switch cfg.RefundMode {
	case RefundModeRazorpay, RefundModeOffline:
	case RefundModeEndpoint:
		if cfg.RefundEndpoint == "" {
			return nil, fmt.Errorf("REFUND_ENDPOINT is required when REFUND_MODE=%s", RefundModeEndpoint)
		}
	default:
		return nil, fmt.Errorf("REFUND_MODE %q is not one of razorpay, endpoint, offline", cfg.RefundMode)
	}

	if (cfg.RazorpayKeyID == "") != (cfg.RazorpayKeySecret == "") {
		return nil, fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET must be set together")
	}

	return cfg, nil
}

// Validate checks the provider keys. It runs after keys missing from the
// environment have been filled from the credential store. Production needs
// a Gemini key and a live Razorpay key pair; without them the service would
// charge for locally rendered images or run checkout in sandbox mode.
func (c *Config) Validate() error {
	if (c.RazorpayKeyID == "") != (c.RazorpayKeySecret == "") {
		return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET must be set together")
	}
	if c.AppEnv != "production" {
		return nil
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required in production")
	}
	if c.RazorpayKeyID == "" {
		return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required in production")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
