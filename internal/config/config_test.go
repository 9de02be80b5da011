package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9000" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9000")
	}
	if cfg.AzureOpenAIDeployment != "gpt-4o-realtime-preview" {
		t.Fatalf("AzureOpenAIDeployment = %q", cfg.AzureOpenAIDeployment)
	}
	if cfg.AzureAPIVersion != "2025-04-01-preview" {
		t.Fatalf("AzureAPIVersion = %q", cfg.AzureAPIVersion)
	}
	if cfg.ResponseDebounce != 100*time.Millisecond {
		t.Fatalf("ResponseDebounce = %v, want 100ms", cfg.ResponseDebounce)
	}
	if cfg.CollektoTimeout != 10*time.Second {
		t.Fatalf("CollektoTimeout = %v, want 10s", cfg.CollektoTimeout)
	}
	if cfg.MockMode() {
		t.Fatalf("MockMode() = true without MOCK_DATA_FILE")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("APP_RESPONSE_DEBOUNCE", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadRejectsNegativeDebounce(t *testing.T) {
	t.Setenv("APP_RESPONSE_DEBOUNCE", "-50ms")
	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestMockMode(t *testing.T) {
	t.Setenv("MOCK_DATA_FILE", "data.csv")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.MockMode() {
		t.Fatalf("MockMode() = false, want true")
	}
}
