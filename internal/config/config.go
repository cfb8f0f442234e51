package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"rapid-trivia-service/internal/app"
	"rapid-trivia-service/internal/domain"
	"rapid-trivia-service/internal/matching"
)

var validate = validator.New()

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL       string `yaml:"ttl"`
		BatchSize int    `yaml:"batch_size" validate:"gte=0,lte=50"`
	} `yaml:"quiz"`
	Game struct {
		Channel           string         `yaml:"channel" validate:"required"`
		RoundDuration     string         `yaml:"round_duration"`
		Interlude         string         `yaml:"interlude"`
		PollInterval      string         `yaml:"poll_interval"`
		LeaderboardSize   int            `yaml:"leaderboard_size" validate:"gte=0"`
		NearMissLimit     int            `yaml:"near_miss_limit" validate:"gte=0"`
		DifficultyWeights map[string]int `yaml:"difficulty_weights" validate:"dive,keys,oneof=easy medium hard,endkeys,gte=0"`
	} `yaml:"game"`
	Matching struct {
		matching.Config `yaml:",inline"`
		NearMissFloor   float64 `yaml:"near_miss_floor" validate:"gte=0,lte=1"`
	} `yaml:"matching"`
	OpenTDB struct {
		Enabled bool   `yaml:"enabled"`
		BaseURL string `yaml:"base_url" validate:"omitempty,url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"opentdb"`
	Log struct {
		Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	} `yaml:"log"`
}

// Default returns the configuration used when a key is missing from the file.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Redis.TTL = "10m"
	cfg.Quiz.TTL = "10m"
	cfg.Quiz.BatchSize = 10
	cfg.Game.Channel = "general"
	cfg.Game.RoundDuration = "45s"
	cfg.Game.Interlude = "10s"
	cfg.Game.PollInterval = "2s"
	cfg.Game.LeaderboardSize = 3
	cfg.Game.NearMissLimit = app.DefaultNearMissLimit
	cfg.Matching.Config = matching.DefaultConfig()
	cfg.Matching.NearMissFloor = app.DefaultNearMissFloor
	cfg.OpenTDB.BaseURL = "https://opentdb.com/api.php"
	cfg.OpenTDB.Timeout = "10s"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies environment
// overrides. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks field ranges and that every duration parses.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	durations := map[string]string{
		"redis.ttl":           c.Redis.TTL,
		"quiz.ttl":            c.Quiz.TTL,
		"game.round_duration": c.Game.RoundDuration,
		"game.interlude":      c.Game.Interlude,
		"game.poll_interval":  c.Game.PollInterval,
		"opentdb.timeout":     c.OpenTDB.Timeout,
	}
	var errs []error
	for key, raw := range durations {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// GameConfig converts the game section into loop settings.
func (c Config) GameConfig() app.GameConfig {
	defaults := app.DefaultGameConfig()
	cfg := app.GameConfig{
		RoundDuration:   TTLDuration(c.Game.RoundDuration, defaults.RoundDuration),
		Interlude:       TTLDuration(c.Game.Interlude, defaults.Interlude),
		PollInterval:    TTLDuration(c.Game.PollInterval, defaults.PollInterval),
		LeaderboardSize: c.Game.LeaderboardSize,
	}
	if len(c.Game.DifficultyWeights) > 0 {
		cfg.DifficultyWeights = make(map[domain.Difficulty]int, len(c.Game.DifficultyWeights))
		for name, w := range c.Game.DifficultyWeights {
			cfg.DifficultyWeights[domain.Difficulty(name)] = w
		}
	}
	return cfg
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
