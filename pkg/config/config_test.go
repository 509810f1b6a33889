package config

import (
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.CaptureSampleRate != 16000 {
		t.Fatalf("CaptureSampleRate=%d, want 16000", cfg.CaptureSampleRate)
	}
	if cfg.PlaybackSampleRate != 24000 {
		t.Fatalf("PlaybackSampleRate=%d, want 24000", cfg.PlaybackSampleRate)
	}
	if cfg.RefreshCooldown != 12*time.Second {
		t.Fatalf("RefreshCooldown=%v, want 12s", cfg.RefreshCooldown)
	}
	if cfg.ContextItems != 6 || cfg.ContextChars != 800 {
		t.Fatalf("context caps=%d/%d, want 6/800", cfg.ContextItems, cfg.ContextChars)
	}
	if cfg.Voice != "Orus" {
		t.Fatalf("Voice=%q, want Orus", cfg.Voice)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("VOXROOM_REFRESH_COOLDOWN", "30s")
	t.Setenv("VOXROOM_CONTEXT_ITEMS", "10")
	t.Setenv("VOXROOM_VOICE", "Kore")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.RefreshCooldown != 30*time.Second {
		t.Fatalf("RefreshCooldown=%v, want 30s", cfg.RefreshCooldown)
	}
	if cfg.ContextItems != 10 {
		t.Fatalf("ContextItems=%d, want 10", cfg.ContextItems)
	}
	if cfg.Voice != "Kore" {
		t.Fatalf("Voice=%q, want Kore", cfg.Voice)
	}
}

func TestLoadFromEnvRejectsBadRates(t *testing.T) {
	t.Setenv("VOXROOM_CAPTURE_RATE", "-1")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("want error for negative capture rate")
	}
}

func TestLoadFromEnvBadValueFallsBack(t *testing.T) {
	t.Setenv("VOXROOM_REFRESH_COOLDOWN", "soon")
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.RefreshCooldown != 12*time.Second {
		t.Fatalf("RefreshCooldown=%v, want default on parse failure", cfg.RefreshCooldown)
	}
}
