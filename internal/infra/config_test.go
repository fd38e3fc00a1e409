package infra

import (
	"strings"
	"testing"
	"time"
)

func clearStudioEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "PORT", "DATABASE_URL", "REDIS_URL", "GEMINI_API_KEY", "GEMINI_MODEL",
		"RAZORPAY_KEY_ID", "RAZORPAY_KEY_SECRET", "REFUND_MODE", "REFUND_ENDPOINT", "AUTO_REFUND",
		"CORS_ALLOWED_ORIGINS", "GENERATION_TIMEOUT_SECONDS", "SESSION_TTL_MINUTES", "CHECKOUT_EXPIRY_MINUTES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearStudioEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" || cfg.AppEnv != "development" {
		t.Fatalf("unexpected defaults: port=%q env=%q", cfg.Port, cfg.AppEnv)
	}
	if cfg.GeminiModel != "gemini-2.5-flash-image" {
		t.Fatalf("GeminiModel = %q", cfg.GeminiModel)
	}
	if cfg.RefundMode != RefundModeRazorpay || cfg.AutoRefund {
		t.Fatalf("unexpected refund defaults: mode=%q auto=%v", cfg.RefundMode, cfg.AutoRefund)
	}
	if cfg.GenerationTimeout != 90*time.Second || cfg.RefundTimeout != 20*time.Second {
		t.Fatalf("unexpected timeouts: %v %v", cfg.GenerationTimeout, cfg.RefundTimeout)
	}
	if cfg.CheckoutExpiry != 10*time.Minute {
		t.Fatalf("CheckoutExpiry = %v", cfg.CheckoutExpiry)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("SessionTTL = %v", cfg.SessionTTL)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("AllowedOrigins = %#v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	clearStudioEnv(t)
	t.Setenv("AUTO_REFUND", "true")
	t.Setenv("REFUND_MODE", "Endpoint")
	t.Setenv("REFUND_ENDPOINT", "https://studio.example.com/api/refund")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com ,")
	t.Setenv("GENERATION_TIMEOUT_SECONDS", "30")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.AutoRefund || cfg.RefundMode != RefundModeEndpoint {
		t.Fatalf("unexpected refund config: %#v", cfg)
	}
	if cfg.GenerationTimeout != 30*time.Second {
		t.Fatalf("GenerationTimeout = %v", cfg.GenerationTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("AllowedOrigins = %#v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigRejectsInvalidCombinations(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "endpoint without url", env: map[string]string{"REFUND_MODE": "endpoint"}},
		{name: "unknown refund mode", env: map[string]string{"REFUND_MODE": "carrier-pigeon"}},
		{name: "half razorpay keys", env: map[string]string{"RAZORPAY_KEY_ID": "rzp_test_x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearStudioEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestProductionKeysCheckedAfterLoad(t *testing.T) {
	clearStudioEnv(t)
	t.Setenv("APP_ENV", "production")

	// Keys may come from the credential store, so loading alone succeeds.
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error without provider keys")
	}

	cfg.RazorpayKeyID, cfg.RazorpayKeySecret = "rzp_live_x", "secret"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected missing gemini key error, got %v", err)
	}

	cfg.GeminiAPIKey = "AIza-live"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error with all keys: %v", err)
	}

	cfg.RazorpayKeySecret = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected an error for half a razorpay key pair")
	}
}

func TestValidateAllowsDevelopmentWithoutKeys(t *testing.T) {
	clearStudioEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error in development: %v", err)
	}
}
