package config

import (
	"testing"
	"time"
)

func TestLoadAPIFromEnvRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}

func TestLoadAPIFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/linkmarket")
	t.Setenv("LM_API_ADDR", "")
	t.Setenv("PORT", "")
	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("LoadAPIFromEnv: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.SessionTTL != 14*24*time.Hour {
		t.Fatalf("SessionTTL = %v, want 336h", cfg.SessionTTL)
	}
	if cfg.IngestLimit != 10 {
		t.Fatalf("IngestLimit = %d, want 10", cfg.IngestLimit)
	}
	if len(cfg.CurationCurve) != 3 || cfg.CurationCurve[0] != 40 {
		t.Fatalf("CurationCurve = %v, want [40 20 10]", cfg.CurationCurve)
	}
}

func TestPortOverridesAddr(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/linkmarket")
	t.Setenv("LM_API_ADDR", ":9000")
	t.Setenv("PORT", "3000")
	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("LoadAPIFromEnv: %v", err)
	}
	if cfg.Addr != ":3000" {
		t.Fatalf("Addr = %q, want :3000", cfg.Addr)
	}
}

func TestEnvCurveDefault(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []int64
	}{
		{"custom", "100,50,25,5", []int64{100, 50, 25, 5}},
		{"spaces tolerated", " 40 , 20 , 10 ", []int64{40, 20, 10}},
		{"rising curve rejected", "10,20,40", []int64{40, 20, 10}},
		{"garbage rejected", "forty,twenty", []int64{40, 20, 10}},
		{"negative rejected", "40,-5", []int64{40, 20, 10}},
		{"empty uses fallback", "", []int64{40, 20, 10}},
	}
	for _, tc := range tests {
		t.Setenv("LM_CURATION_CURVE", tc.value)
		got := envCurveDefault("LM_CURATION_CURVE", []int64{40, 20, 10})
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
			}
		}
	}
}

func TestEnvDurationDefault(t *testing.T) {
	t.Setenv("LM_WORKER_INTERVAL", "5m")
	if d := envDurationDefault("LM_WORKER_INTERVAL", time.Hour); d != 5*time.Minute {
		t.Fatalf("got %v, want 5m", d)
	}
	t.Setenv("LM_WORKER_INTERVAL", "not-a-duration")
	if d := envDurationDefault("LM_WORKER_INTERVAL", time.Hour); d != time.Hour {
		t.Fatalf("got %v, want fallback 1h", d)
	}
}
