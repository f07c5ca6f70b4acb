package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.RateLimit.DelayBetweenMessages != 8*time.Second {
		t.Errorf("DelayBetweenMessages = %s, want 8s", cfg.RateLimit.DelayBetweenMessages)
	}
	if cfg.RateLimit.DelayBetweenUsers != 15*time.Second {
		t.Errorf("DelayBetweenUsers = %s, want 15s", cfg.RateLimit.DelayBetweenUsers)
	}
	if cfg.RateLimit.BackendProcessingWait != 30*time.Second {
		t.Errorf("BackendProcessingWait = %s, want 30s", cfg.RateLimit.BackendProcessingWait)
	}
	if cfg.RateLimit.MaxMessagesPerUser != 5 {
		t.Errorf("MaxMessagesPerUser = %d, want 5", cfg.RateLimit.MaxMessagesPerUser)
	}
	if cfg.Probes.ConcurrentRoundTrips != 10 {
		t.Errorf("ConcurrentRoundTrips = %d, want 10", cfg.Probes.ConcurrentRoundTrips)
	}
	if cfg.Probes.ConcurrencyThreshold != 0.8 {
		t.Errorf("ConcurrencyThreshold = %g, want 0.8", cfg.Probes.ConcurrencyThreshold)
	}
	if cfg.Readiness.MinorIssueLimit != 2 {
		t.Errorf("MinorIssueLimit = %d, want 2", cfg.Readiness.MinorIssueLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestNormalizeFast(t *testing.T) {
	cfg := Default()
	cfg.Fast = true
	cfg.Normalize()

	if cfg.RateLimit.DelayBetweenMessages != 0 {
		t.Errorf("fast mode kept DelayBetweenMessages = %s", cfg.RateLimit.DelayBetweenMessages)
	}
	if cfg.RateLimit.DelayBetweenUsers != 0 {
		t.Errorf("fast mode kept DelayBetweenUsers = %s", cfg.RateLimit.DelayBetweenUsers)
	}
	if cfg.RateLimit.BackendProcessingWait != 0 {
		t.Errorf("fast mode kept BackendProcessingWait = %s", cfg.RateLimit.BackendProcessingWait)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.DataDir = "" },
			wantErr: "data_dir",
		},
		{
			name:    "negative message delay",
			mutate:  func(c *Config) { c.RateLimit.DelayBetweenMessages = -time.Second },
			wantErr: "delay_between_messages",
		},
		{
			name:    "zero probe concurrency",
			mutate:  func(c *Config) { c.Probes.ConcurrentRoundTrips = 0 },
			wantErr: "concurrent_round_trips",
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.Probes.ConcurrencyThreshold = 1.5 },
			wantErr: "concurrency_threshold",
		},
		{
			name:    "negative minor issue limit",
			mutate:  func(c *Config) { c.Readiness.MinorIssueLimit = -1 },
			wantErr: "minor_issue_limit",
		},
		{
			name:    "bad trace sample rate",
			mutate:  func(c *Config) { c.Tracing.SampleRate = 2 },
			wantErr: "sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.wantErr)
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Validate() error type = %T, want ValidationError", err)
			}
		})
	}
}
