package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, key := range []string{"STATE_PRIMARY_BACKEND", "AUTOSAVE_DEBOUNCE", "PAYMENTS_SUBJECT", "BACKEND_BASE_URL", "API_RATE_LIMIT_RPS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.StatePrimaryBackend != "redis" || cfg.StateSecondaryBackend != "postgres" {
		t.Fatalf("unexpected state backends %q/%q", cfg.StatePrimaryBackend, cfg.StateSecondaryBackend)
	}
	if cfg.AutosaveDebounce != time.Second {
		t.Fatalf("expected default debounce 1s, got %s", cfg.AutosaveDebounce)
	}
	if cfg.PaymentsSubject != "payments.completed" {
		t.Fatalf("expected default subject, got %q", cfg.PaymentsSubject)
	}
	if cfg.BackendBaseURL != "https://backend-rakj.onrender.com/api/v1" {
		t.Fatalf("unexpected backend url %q", cfg.BackendBaseURL)
	}
	if cfg.APIRateLimitRPS != 20 {
		t.Fatalf("expected default rps 20, got %v", cfg.APIRateLimitRPS)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("STATE_PRIMARY_BACKEND", "Memory")
	t.Setenv("AUTOSAVE_DEBOUNCE", "1500")
	t.Setenv("SESSION_IDLE_TIMEOUT", "10m")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("RESILIENCE_BREAKER_ENABLED", "false")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("APP_ENV", "Production")

	cfg := Load()
	if cfg.StatePrimaryBackend != "memory" {
		t.Fatalf("expected memory backend, got %q", cfg.StatePrimaryBackend)
	}
	if cfg.AutosaveDebounce != 1500*time.Millisecond {
		t.Fatalf("expected 1500ms debounce, got %s", cfg.AutosaveDebounce)
	}
	if cfg.SessionIdleTimeout != 10*time.Minute {
		t.Fatalf("expected 10m idle timeout, got %s", cfg.SessionIdleTimeout)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.ResilienceBreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("expected fallback redis db 0, got %d", cfg.RedisDB)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production env")
	}
}

func TestLoadReadsEnvFileWithoutOverridingEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "RAZORPAY_KEY_ID=rzp_test_file\nPAYMENT_CURRENCY=USD\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("PAYMENT_CURRENCY", "INR")
	// godotenv sets variables process-wide; restore them after the test.
	t.Setenv("RAZORPAY_KEY_ID", "")
	os.Unsetenv("RAZORPAY_KEY_ID")

	cfg := Load()
	if cfg.RazorpayKeyID != "rzp_test_file" {
		t.Fatalf("expected key id from env file, got %q", cfg.RazorpayKeyID)
	}
	if cfg.PaymentCurrency != "INR" {
		t.Fatalf("expected environment to win, got %q", cfg.PaymentCurrency)
	}
}
