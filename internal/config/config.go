// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	StateTable  string `env:"STATE_TABLE,required"`
	ParamPrefix string `env:"PARAM_PREFIX,required"`

	MaxContextItems      int `env:"MAX_CONTEXT_ITEMS" envDefault:"20"`
	MaxMessageLength     int `env:"MAX_MESSAGE_LENGTH" envDefault:"1000"`
	MaxConversationTurns int `env:"MAX_CONVERSATION_TURNS" envDefault:"40"`

	// Optional: lead alerts are skipped when unset.
	NotifyWebhookURL string `env:"NOTIFY_WEBHOOK_URL"`
	// GSI over META# items used to list leads by category.
	LeadsIndex string `env:"LEADS_INDEX" envDefault:"category-score-index"`
	// Optional SSM parameter holding a YAML scoring rules overlay.
	ScoringRulesParam string `env:"SCORING_RULES_PARAM"`

	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.ParamPrefix == "" {
		errs = append(errs, errors.New("PARAM_PREFIX must not be empty"))
	}
	if c.MaxContextItems <= 0 {
		errs = append(errs, errors.New("MAX_CONTEXT_ITEMS must be positive"))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("MAX_MESSAGE_LENGTH must be positive"))
	}
	if c.MaxConversationTurns <= 0 {
		errs = append(errs, errors.New("MAX_CONVERSATION_TURNS must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
