package agents

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRoster(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model_agents.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	return path
}

func TestLoadConfigsDefaults(t *testing.T) {
	path := writeRoster(t, `
models:
  - id: gpt-news
    provider: openai
    model_name: gpt-news-1
`)
	configs, err := LoadConfigs(path)
	if err != nil {
		t.Fatalf("LoadConfigs: %v", err)
	}
	if len(configs) != 1 {
		t.Fatalf("got %d configs, want 1", len(configs))
	}
	cfg := configs[0]
	if !cfg.Enabled {
		t.Fatalf("enabled should default to true")
	}
	if cfg.StrategyProfile != "default" {
		t.Fatalf("strategy profile = %q, want default", cfg.StrategyProfile)
	}
	if cfg.MaxDailyPicks != 10 {
		t.Fatalf("max daily picks = %d, want 10", cfg.MaxDailyPicks)
	}
	if cfg.Temperature != 0.2 {
		t.Fatalf("temperature = %v, want 0.2", cfg.Temperature)
	}
}

func TestLoadConfigsExplicitValues(t *testing.T) {
	path := writeRoster(t, `
models:
  - id: claude-econ
    provider: anthropic
    model_name: claude-econ-2
    enabled: false
    strategy_profile: contrarian
    max_daily_picks: 4
    temperature: 0.7
  - id: gpt-news
    provider: openai
    model_name: gpt-news-1
`)
	configs, err := LoadConfigs(path)
	if err != nil {
		t.Fatalf("LoadConfigs: %v", err)
	}
	if len(configs) != 2 {
		t.Fatalf("got %d configs, want 2", len(configs))
	}
	cfg := configs[0]
	if cfg.Enabled {
		t.Fatalf("enabled: false was ignored")
	}
	if cfg.StrategyProfile != "contrarian" || cfg.MaxDailyPicks != 4 || cfg.Temperature != 0.7 {
		t.Fatalf("explicit values lost: %+v", cfg)
	}
}

func TestLoadConfigsMissingRequired(t *testing.T) {
	path := writeRoster(t, `
models:
  - id: nameless
    provider: openai
`)
	if _, err := LoadConfigs(path); err == nil {
		t.Fatalf("expected error for entry without model_name")
	}
}

func TestLoadConfigsDuplicateID(t *testing.T) {
	path := writeRoster(t, `
models:
  - id: twin
    provider: openai
    model_name: a
  - id: twin
    provider: openai
    model_name: b
`)
	if _, err := LoadConfigs(path); err == nil {
		t.Fatalf("expected error for duplicate agent ids")
	}
}

func TestLoadConfigsMissingFile(t *testing.T) {
	configs, err := LoadConfigs(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if len(configs) != 0 {
		t.Fatalf("missing file should yield empty roster, got %d", len(configs))
	}
	if configs, err = LoadConfigs(""); err != nil || len(configs) != 0 {
		t.Fatalf("blank path should yield empty roster, got %v / %v", configs, err)
	}
}
