package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"rapid-trivia-service/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
game:
  round_duration: 30s
  difficulty_weights:
    hard: 5
matching:
  threshold: 0.85
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Matching.Threshold != 0.85 || cfg.Matching.KeywordThreshold != 0.7 || cfg.Matching.Algorithm != "ratcliff" {
		t.Fatalf("unexpected matching config %+v", cfg.Matching)
	}

	game := cfg.GameConfig()
	if game.RoundDuration != 30*time.Second || game.Interlude != 10*time.Second || game.PollInterval != 2*time.Second {
		t.Fatalf("unexpected game config %+v", game)
	}
	if game.DifficultyWeights[domain.DifficultyHard] != 5 || len(game.DifficultyWeights) != 1 {
		t.Fatalf("unexpected weights %+v", game.DifficultyWeights)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("REDIS_ADDR", "localhost:6380")
	t.Setenv("DATABASE_URL", "postgres://trivia@localhost/trivia")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != "7000" || cfg.Redis.Addr != "localhost:6380" || cfg.Postgres.URL == "" || cfg.Log.Level != "debug" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"threshold":  "matching:\n  threshold: 1.5\n",
		"algorithm":  "matching:\n  algorithm: soundex\n",
		"log level":  "log:\n  level: loud\n",
		"duration":   "game:\n  interlude: soon\n",
		"difficulty": "game:\n  difficulty_weights:\n    brutal: 3\n",
		"batch":      "quiz:\n  batch_size: 80\n",
	}
	for name, body := range tests {
		cfg, err := Load(writeConfig(t, body))
		if err != nil {
			t.Fatalf("%s: load failed: %v", name, err)
		}
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("bogus", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for bad input, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}
