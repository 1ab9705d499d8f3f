package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TURN_DURATION", "")
	t.Setenv("JUDGE_URL", "")
	cfg := Load()
	if cfg.TurnDuration != 2*time.Minute {
		t.Errorf("expected 2m turn, got %s", cfg.TurnDuration)
	}
	if cfg.Judge.Enabled() {
		t.Error("judge should be disabled without a URL")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TURN_DURATION", "90s")
	t.Setenv("JUDGE_URL", "http://judge.local")
	t.Setenv("JUDGE_API_KEY", "k")
	t.Setenv("JUDGE_RATE_PER_MIN", "not-a-number")
	t.Setenv("API_RATE_PER_SEC", "2.5")
	cfg := Load()
	if cfg.TurnDuration != 90*time.Second {
		t.Errorf("expected 90s, got %s", cfg.TurnDuration)
	}
	if !cfg.Judge.Enabled() || cfg.Judge.RatePerMin != 30 {
		t.Errorf("unexpected judge config %+v", cfg.Judge)
	}
	if cfg.APIRatePerSec != 2.5 {
		t.Errorf("expected 2.5 rps, got %v", cfg.APIRatePerSec)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")
	if err := Load().Validate(); err == nil {
		t.Error("expected dev secret to be rejected in production")
	}

	t.Setenv("JWT_SECRET", "real-secret")
	t.Setenv("TICK_INTERVAL", "10m")
	t.Setenv("TURN_DURATION", "1m")
	if err := Load().Validate(); err == nil {
		t.Error("expected tick longer than a turn to be rejected")
	}
}
