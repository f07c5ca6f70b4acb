package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "e2eharness",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Run surface
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.String("data-dir", "data", "Directory holding the four sqlite stores")
	flags.String("scenario", "", "Path to a YAML scenario file overriding the built-in user catalog")
	flags.Bool("json-output", false, "Emit the final report as JSON")
	flags.Bool("fast", false, "Collapse all pacing delays to zero (smoke runs)")

	// Pacing against the rate-limited backend
	flags.Duration("delay-between-messages", 8*time.Second, "Wait between successive messages from the same user")
	flags.Duration("delay-between-users", 15*time.Second, "Wait between users during interaction injection")
	flags.Duration("backend-wait", 30*time.Second, "Wait after injection for backend workers to process")
	flags.Duration("worker-startup-wait", 10*time.Second, "Wait after starting backend workers before injecting")
	flags.IntP("max-messages", "m", 5, "Cap on messages injected per user")

	// Probe tolerances
	flags.Int("probe-concurrency", 10, "Number of concurrent round-trips in the stress probe")
	flags.Float64("probe-threshold", 0.8, "Fraction of concurrent round-trips that must succeed")

	// Readiness tiers
	flags.Int("minor-issue-limit", 2, "Max failed phases still classified as minor issues")

	// Tracing
	flags.String("trace-endpoint", "", "OTLP endpoint for trace export (empty disables tracing)")
	flags.String("trace-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("trace-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("trace-sample-rate", 1.0, "Trace sampling rate between 0.0 and 1.0")
}

// applyFlagOverrides copies changed flag values over the file-derived config.
func applyFlagOverrides(cfg *Config, flags *pflag.FlagSet) error {
	var err error

	stringFlag := func(name string, dst *string) {
		if err != nil || !flags.Changed(name) {
			return
		}
		var v string
		if v, err = flags.GetString(name); err == nil {
			*dst = v
		}
	}
	boolFlag := func(name string, dst *bool) {
		if err != nil || !flags.Changed(name) {
			return
		}
		var v bool
		if v, err = flags.GetBool(name); err == nil {
			*dst = v
		}
	}
	intFlag := func(name string, dst *int) {
		if err != nil || !flags.Changed(name) {
			return
		}
		var v int
		if v, err = flags.GetInt(name); err == nil {
			*dst = v
		}
	}
	durationFlag := func(name string, dst *time.Duration) {
		if err != nil || !flags.Changed(name) {
			return
		}
		var v time.Duration
		if v, err = flags.GetDuration(name); err == nil {
			*dst = v
		}
	}
	floatFlag := func(name string, dst *float64) {
		if err != nil || !flags.Changed(name) {
			return
		}
		var v float64
		if v, err = flags.GetFloat64(name); err == nil {
			*dst = v
		}
	}

	stringFlag("data-dir", &cfg.DataDir)
	stringFlag("scenario", &cfg.ScenarioFile)
	boolFlag("json-output", &cfg.JSONOutput)
	boolFlag("fast", &cfg.Fast)

	durationFlag("delay-between-messages", &cfg.RateLimit.DelayBetweenMessages)
	durationFlag("delay-between-users", &cfg.RateLimit.DelayBetweenUsers)
	durationFlag("backend-wait", &cfg.RateLimit.BackendProcessingWait)
	durationFlag("worker-startup-wait", &cfg.RateLimit.WorkerStartupWait)
	intFlag("max-messages", &cfg.RateLimit.MaxMessagesPerUser)

	intFlag("probe-concurrency", &cfg.Probes.ConcurrentRoundTrips)
	floatFlag("probe-threshold", &cfg.Probes.ConcurrencyThreshold)

	intFlag("minor-issue-limit", &cfg.Readiness.MinorIssueLimit)

	stringFlag("trace-endpoint", &cfg.Tracing.Endpoint)
	stringFlag("trace-protocol", &cfg.Tracing.Protocol)
	boolFlag("trace-insecure", &cfg.Tracing.Insecure)
	floatFlag("trace-sample-rate", &cfg.Tracing.SampleRate)

	if err != nil {
		return fmt.Errorf("applying flag overrides: %w", err)
	}
	return nil
}

func displayHelp(cmd *cobra.Command) {
	fmt.Fprintln(cmd.OutOrStdout(), "e2eharness drives the full multi-service scenario suite against local sqlite stores.")
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), "Flags:")
	fmt.Fprintln(cmd.OutOrStdout(), cmd.Flags().FlagUsages())
}
