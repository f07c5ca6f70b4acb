// Package config provides configuration loading and parsing for the
// end-to-end harness.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds everything a harness run needs: where the sqlite stores
// live, the pacing policy for the throttled agent backend, probe
// tolerances, readiness tier thresholds, and tracing setup.
type Config struct {
	DataDir      string `mapstructure:"data_dir"`
	ScenarioFile string `mapstructure:"scenario"`
	JSONOutput   bool   `mapstructure:"json_output"`
	// Fast collapses every pacing delay to zero for smoke runs.
	Fast bool `mapstructure:"fast"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Probes    ProbeConfig     `mapstructure:"probes"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
	Tracing   TracingConfig   `mapstructure:"tracing"`

	ConfigFile string `mapstructure:"-"`
}

// RateLimitConfig paces outbound work against the rate-limited LLM backend.
// Durations are fixed waits; MaxMessagesPerUser truncates the processed
// prefix of each user's message list, it never skips within it.
type RateLimitConfig struct {
	DelayBetweenMessages  time.Duration `mapstructure:"delay_between_messages"`
	DelayBetweenUsers     time.Duration `mapstructure:"delay_between_users"`
	BackendProcessingWait time.Duration `mapstructure:"backend_processing_wait"`
	WorkerStartupWait     time.Duration `mapstructure:"worker_startup_wait"`
	MaxMessagesPerUser    int           `mapstructure:"max_messages_per_user"`
}

// ProbeConfig tunes the error-probe battery.
type ProbeConfig struct {
	ConcurrentRoundTrips int     `mapstructure:"concurrent_round_trips"`
	ConcurrencyThreshold float64 `mapstructure:"concurrency_threshold"`
	OversizedPayloadSize int     `mapstructure:"oversized_payload_size"`
}

// ReadinessConfig sets the tier boundaries for the final assessment:
// zero failed phases is ready, up to MinorIssueLimit is minor issues,
// anything beyond needs work.
type ReadinessConfig struct {
	MinorIssueLimit int `mapstructure:"minor_issue_limit"`
}

// TracingConfig configures the optional OTLP trace export.
type TracingConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// Default returns the configuration matching the production pacing
// constants for the agent backend.
func Default() *Config {
	return &Config{
		DataDir: "data",
		RateLimit: RateLimitConfig{
			DelayBetweenMessages:  8 * time.Second,
			DelayBetweenUsers:     15 * time.Second,
			BackendProcessingWait: 30 * time.Second,
			WorkerStartupWait:     10 * time.Second,
			MaxMessagesPerUser:    5,
		},
		Probes: ProbeConfig{
			ConcurrentRoundTrips: 10,
			ConcurrencyThreshold: 0.8,
			OversizedPayloadSize: 50_000,
		},
		Readiness: ReadinessConfig{MinorIssueLimit: 2},
		Tracing:   TracingConfig{SampleRate: 1.0},
	}
}

// Normalize applies derived settings, currently only fast mode.
func (c *Config) Normalize() {
	if c.Fast {
		c.RateLimit.DelayBetweenMessages = 0
		c.RateLimit.DelayBetweenUsers = 0
		c.RateLimit.BackendProcessingWait = 0
		c.RateLimit.WorkerStartupWait = 0
	}
}

// ValidationError aggregates every configuration issue found.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.DataDir) == "" {
		issues = append(issues, "data_dir is required")
	}
	if c.RateLimit.DelayBetweenMessages < 0 {
		issues = append(issues, "rate_limit: delay_between_messages must be >= 0")
	}
	if c.RateLimit.DelayBetweenUsers < 0 {
		issues = append(issues, "rate_limit: delay_between_users must be >= 0")
	}
	if c.RateLimit.BackendProcessingWait < 0 {
		issues = append(issues, "rate_limit: backend_processing_wait must be >= 0")
	}
	if c.RateLimit.WorkerStartupWait < 0 {
		issues = append(issues, "rate_limit: worker_startup_wait must be >= 0")
	}
	if c.RateLimit.MaxMessagesPerUser < 0 {
		issues = append(issues, "rate_limit: max_messages_per_user must be >= 0")
	}
	if c.Probes.ConcurrentRoundTrips < 1 {
		issues = append(issues, "probes: concurrent_round_trips must be >= 1")
	}
	if c.Probes.ConcurrencyThreshold < 0 || c.Probes.ConcurrencyThreshold > 1 {
		issues = append(issues, "probes: concurrency_threshold must be between 0 and 1")
	}
	if c.Probes.OversizedPayloadSize < 1 {
		issues = append(issues, "probes: oversized_payload_size must be >= 1")
	}
	if c.Readiness.MinorIssueLimit < 0 {
		issues = append(issues, "readiness: minor_issue_limit must be >= 0")
	}

	tracingIssues := validateTracingConfig(c.Tracing)
	if len(tracingIssues) > 0 {
		issues = append(issues, tracingIssues...)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing: sample_rate must be between 0.0 and 1.0")
	}
	if t.Enabled() {
		switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
		case "", "grpc", "http":
		default:
			issues = append(issues, fmt.Sprintf("tracing: protocol %q is not supported (use grpc or http)", t.Protocol))
		}
	}
	return issues
}
