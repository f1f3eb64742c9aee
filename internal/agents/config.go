// Package agents runs configured model accounts against open cycles:
// each agent scores the candidate slate with a deterministic strategy,
// submits ranked picks and stores per-candidate predictions.
package agents

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config describes one model agent from the YAML roster.
type Config struct {
	ID              string  `json:"id"`
	Provider        string  `json:"provider"`
	ModelName       string  `json:"model_name"`
	Enabled         bool    `json:"enabled"`
	StrategyProfile string  `json:"strategy_profile"`
	MaxDailyPicks   int     `json:"max_daily_picks"`
	Temperature     float64 `json:"temperature"`
}

// rawAgent uses pointers so absent keys can fall back to defaults
// that are not the zero value (enabled defaults to true).
type rawAgent struct {
	ID              string   `koanf:"id"`
	Provider        string   `koanf:"provider"`
	ModelName       string   `koanf:"model_name"`
	Enabled         *bool    `koanf:"enabled"`
	StrategyProfile string   `koanf:"strategy_profile"`
	MaxDailyPicks   *int     `koanf:"max_daily_picks"`
	Temperature     *float64 `koanf:"temperature"`
}

type rawRoster struct {
	Models []rawAgent `koanf:"models"`
}

// LoadConfigs reads the agent roster. A missing file is an empty
// roster, not an error, so deployments without agents need no config.
func LoadConfigs(path string) ([]Config, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load agent roster: %w", err)
	}
	var raw rawRoster
	if err := k.UnmarshalWithConf("", &raw, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("parse agent roster: %w", err)
	}
	out := make([]Config, 0, len(raw.Models))
	seen := make(map[string]struct{}, len(raw.Models))
	for i, m := range raw.Models {
		if m.ID == "" || m.Provider == "" || m.ModelName == "" {
			return nil, fmt.Errorf("agent entry %d: id, provider and model_name are required", i)
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("duplicate agent id %q", m.ID)
		}
		seen[m.ID] = struct{}{}
		cfg := Config{
			ID:              m.ID,
			Provider:        m.Provider,
			ModelName:       m.ModelName,
			Enabled:         true,
			StrategyProfile: "default",
			MaxDailyPicks:   10,
			Temperature:     0.2,
		}
		if m.Enabled != nil {
			cfg.Enabled = *m.Enabled
		}
		if m.StrategyProfile != "" {
			cfg.StrategyProfile = m.StrategyProfile
		}
		if m.MaxDailyPicks != nil {
			cfg.MaxDailyPicks = *m.MaxDailyPicks
		}
		if m.Temperature != nil {
			cfg.Temperature = *m.Temperature
		}
		out = append(out, cfg)
	}
	return out, nil
}
