package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/playperu/walkquest/internal/geo"
	"github.com/playperu/walkquest/internal/puzzle"
	"github.com/playperu/walkquest/internal/session"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/walkquest.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	// RedisURL enables the summary stream. Empty disables Redis.
	RedisURL    string `env:"REDIS_URL"`
	RedisStream string `env:"REDIS_STREAM" envDefault:"walkquest:summaries"`
	// AdminKeyHash is a bcrypt hash of the key that unlocks answer reveal.
	AdminKeyHash string `env:"ADMIN_KEY_HASH"`
	SeedDemo     bool   `env:"SEED_DEMO" envDefault:"true"`
	// ContentDir, when set, is imported at startup and watched for changes.
	ContentDir string `env:"CONTENT_DIR"`
	// SPADir is served for every unmatched path when it exists.
	SPADir string `env:"SPA_DIR" envDefault:"web/dist"`

	Gameplay Gameplay
}

// Gameplay holds the tunable play constants.
type Gameplay struct {
	ArrivalRadius          float64       `env:"ARRIVAL_RADIUS_METERS" envDefault:"120"`
	RescueTravelTimeout    time.Duration `env:"RESCUE_TRAVEL_TIMEOUT" envDefault:"120s"`
	RescueNearbyMeters     float64       `env:"RESCUE_NEARBY_METERS" envDefault:"500"`
	RescueArrivalAttempts  int           `env:"RESCUE_ARRIVAL_ATTEMPTS" envDefault:"3"`
	RescueUnavailableAfter time.Duration `env:"RESCUE_UNAVAILABLE_AFTER" envDefault:"30s"`
	HintSuggestAttempts    int           `env:"HINT_SUGGEST_ATTEMPTS" envDefault:"3"`
	FormatHelpAttempts     int           `env:"FORMAT_HELP_ATTEMPTS" envDefault:"5"`
	CorrectAdvanceDelay    time.Duration `env:"CORRECT_ADVANCE_DELAY" envDefault:"1.5s"`
	SaveTimeout            time.Duration `env:"SAVE_TIMEOUT" envDefault:"5s"`
	LocationRetryInterval  time.Duration `env:"LOCATION_RETRY_INTERVAL" envDefault:"5s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	g := c.Gameplay
	switch {
	case g.ArrivalRadius <= 0:
		return fmt.Errorf("ARRIVAL_RADIUS_METERS must be positive")
	case g.HintSuggestAttempts > g.FormatHelpAttempts:
		return fmt.Errorf("HINT_SUGGEST_ATTEMPTS must not exceed FORMAT_HELP_ATTEMPTS")
	case g.CorrectAdvanceDelay < 0:
		return fmt.Errorf("CORRECT_ADVANCE_DELAY must not be negative")
	}
	return nil
}

// SessionOptions returns session defaults with the configured tunables.
func (c Config) SessionOptions(logger *slog.Logger) session.Options {
	g := c.Gameplay
	opts := session.DefaultOptions()
	opts.ArrivalRadius = g.ArrivalRadius
	opts.Rescue = geo.RescuePolicy{
		TravelTimeout:      g.RescueTravelTimeout,
		NearbyDistance:     g.RescueNearbyMeters,
		MaxArrivalAttempts: g.RescueArrivalAttempts,
		UnavailableAfter:   g.RescueUnavailableAfter,
	}
	opts.Puzzle = puzzle.Policy{
		HintSuggestAttempts: g.HintSuggestAttempts,
		FormatHelpAttempts:  g.FormatHelpAttempts,
	}
	opts.CorrectAdvanceDelay = g.CorrectAdvanceDelay
	opts.SaveTimeout = g.SaveTimeout
	opts.LocationRetry = g.LocationRetryInterval
	opts.Logger = logger
	return opts
}
