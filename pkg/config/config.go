// Package config loads voxroom settings from the environment. Every
// knob has a sensible default so a bare `voxroom` run only needs the
// API key and a database URL.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Gemini backend.
	GeminiAPIKey   string
	LiveModel      string
	TranslateModel string
	TTSModel       string
	Voice          string

	// Audio pipeline.
	CaptureSampleRate  int
	PlaybackSampleRate int

	// Context-refresh policy.
	RefreshCooldown time.Duration
	ContextItems    int
	ContextChars    int

	// Collaborators.
	DatabaseURL string
	RelayURL    string

	// Relay server operational settings.
	RelayAddr           string
	MetricsAddr         string
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		GeminiAPIKey:        envOr("VOXROOM_GEMINI_API_KEY", os.Getenv("GEMINI_API_KEY")),
		LiveModel:           envOr("VOXROOM_LIVE_MODEL", "gemini-2.5-flash-native-audio-preview-12-2025"),
		TranslateModel:      envOr("VOXROOM_TRANSLATE_MODEL", "gemini-2.0-flash-lite"),
		TTSModel:            envOr("VOXROOM_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		Voice:               envOr("VOXROOM_VOICE", "Orus"),
		CaptureSampleRate:   envIntOr("VOXROOM_CAPTURE_RATE", 16000),
		PlaybackSampleRate:  envIntOr("VOXROOM_PLAYBACK_RATE", 24000),
		RefreshCooldown:     envDurationOr("VOXROOM_REFRESH_COOLDOWN", 12*time.Second),
		ContextItems:        envIntOr("VOXROOM_CONTEXT_ITEMS", 6),
		ContextChars:        envIntOr("VOXROOM_CONTEXT_CHARS", 800),
		DatabaseURL:         envOr("VOXROOM_DATABASE_URL", ""),
		RelayURL:            envOr("VOXROOM_RELAY_URL", "ws://127.0.0.1:8090/ws"),
		RelayAddr:           envOr("VOXROOM_RELAY_ADDR", ":8090"),
		MetricsAddr:         envOr("VOXROOM_METRICS_ADDR", ":9105"),
		ShutdownGracePeriod: envDurationOr("VOXROOM_SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if cfg.CaptureSampleRate <= 0 {
		return Config{}, fmt.Errorf("VOXROOM_CAPTURE_RATE must be > 0")
	}
	if cfg.PlaybackSampleRate <= 0 {
		return Config{}, fmt.Errorf("VOXROOM_PLAYBACK_RATE must be > 0")
	}
	if cfg.RefreshCooldown < 0 {
		return Config{}, fmt.Errorf("VOXROOM_REFRESH_COOLDOWN must be >= 0")
	}
	if cfg.ContextItems <= 0 || cfg.ContextChars <= 0 {
		return Config{}, fmt.Errorf("VOXROOM_CONTEXT_ITEMS and VOXROOM_CONTEXT_CHARS must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
