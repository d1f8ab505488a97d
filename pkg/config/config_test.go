package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Queue.PollInterval != 10*time.Second {
		t.Errorf("poll interval = %s", cfg.Queue.PollInterval)
	}
	if cfg.Session.AutosaveInterval != 15*time.Second {
		t.Errorf("autosave interval = %s", cfg.Session.AutosaveInterval)
	}
	if cfg.Telemed.DefaultDuration != 30*time.Minute {
		t.Errorf("telemed duration = %s", cfg.Telemed.DefaultDuration)
	}
	if !cfg.Queue.AutoAdvance {
		t.Error("auto-advance should default on")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUEUE_POLL_INTERVAL", "3s")
	t.Setenv("QUEUE_AUTO_ADVANCE", "false")
	t.Setenv("SESSION_AUTOSAVE_INTERVAL", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Queue.PollInterval != 3*time.Second {
		t.Errorf("poll interval = %s", cfg.Queue.PollInterval)
	}
	if cfg.Queue.AutoAdvance {
		t.Error("auto-advance not overridden")
	}
	if cfg.Session.AutosaveInterval != time.Minute {
		t.Errorf("autosave interval = %s", cfg.Session.AutosaveInterval)
	}
}

func TestValidateRejectsZeroIntervals(t *testing.T) {
	cfg := &Config{}
	cfg.API.BaseURL = "http://localhost:8080/api"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure for zero intervals")
	}
}
