package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Scheduler.PowerCheckInterval != 1800 {
		t.Errorf("power_check_interval = %v, want 1800", cfg.Scheduler.PowerCheckInterval)
	}
	if cfg.Scheduler.RecordInterval != 60 {
		t.Errorf("record_interval = %v, want 60", cfg.Scheduler.RecordInterval)
	}
	if cfg.Policy.Name != "queue_depth" || cfg.Policy.SpareNodes != 2 {
		t.Errorf("policy = %+v, want queue_depth with 2 spares", cfg.Policy)
	}
	if cfg.Output.RecordFile != "power_control_record.csv" {
		t.Errorf("record_file = %q", cfg.Output.RecordFile)
	}
	start, err := cfg.Start()
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	want := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
start_time: 2024-06-01T12:00:00Z
scheduler:
  power_check_interval: 900
  record_interval: 30
policy:
  name: noop
output:
  database: run.db
http:
  enabled: true
  listen: ":8080"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Scheduler.PowerCheckInterval != 900 || cfg.Scheduler.RecordInterval != 30 {
		t.Errorf("cadences = %v/%v, want 900/30",
			cfg.Scheduler.PowerCheckInterval, cfg.Scheduler.RecordInterval)
	}
	if cfg.Policy.Name != "noop" {
		t.Errorf("policy = %q, want noop", cfg.Policy.Name)
	}
	if cfg.Output.Database != "run.db" {
		t.Errorf("database = %q, want run.db", cfg.Output.Database)
	}
	if !cfg.HTTP.Enabled || cfg.HTTP.Listen != ":8080" {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	start, _ := cfg.Start()
	if start.Year() != 2024 || start.Month() != time.June {
		t.Errorf("start = %v, want June 2024", start)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative cadence", "scheduler:\n  record_interval: -5\n"},
		{"unknown policy", "policy:\n  name: clairvoyant\n"},
		{"bad start time", "start_time: yesterday\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("Load accepted an invalid config")
			}
		})
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("GREENSCHED_POLICY_SPARE_NODES", "7")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Policy.SpareNodes != 7 {
		t.Errorf("spare_nodes = %d, want env override 7", cfg.Policy.SpareNodes)
	}
}
