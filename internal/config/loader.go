package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line
// arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and an optional configuration file
// to produce a Config. Flag values override file values.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Normalize()
	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "datadir", "data_dir", "data-dir"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("data_dir: %w", err)
		}
		cfg.DataDir = val
	}

	if raw, ok := lookupSetting(settings, "scenario"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("scenario: %w", err)
		}
		cfg.ScenarioFile = val
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("json_output: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "fast"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("fast: %w", err)
		}
		cfg.Fast = val
	}

	if raw, ok := lookupSetting(settings, "ratelimit", "rate_limit", "rate-limit"); ok {
		if err := applyRateLimitSettings(&cfg.RateLimit, raw); err != nil {
			return fmt.Errorf("rate_limit: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "probes"); ok {
		if err := applyProbeSettings(&cfg.Probes, raw); err != nil {
			return fmt.Errorf("probes: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "readiness"); ok {
		if err := applyReadinessSettings(&cfg.Readiness, raw); err != nil {
			return fmt.Errorf("readiness: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyRateLimitSettings(rl *RateLimitConfig, value interface{}) error {
	entry, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(entry, "delaybetweenmessages", "delay_between_messages", "delay-between-messages"); ok {
		d, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("delay_between_messages: %w", err)
		}
		rl.DelayBetweenMessages = d
	}
	if raw, ok := lookupSetting(entry, "delaybetweenusers", "delay_between_users", "delay-between-users"); ok {
		d, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("delay_between_users: %w", err)
		}
		rl.DelayBetweenUsers = d
	}
	if raw, ok := lookupSetting(entry, "backendprocessingwait", "backend_processing_wait", "backend-processing-wait"); ok {
		d, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("backend_processing_wait: %w", err)
		}
		rl.BackendProcessingWait = d
	}
	if raw, ok := lookupSetting(entry, "workerstartupwait", "worker_startup_wait", "worker-startup-wait"); ok {
		d, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("worker_startup_wait: %w", err)
		}
		rl.WorkerStartupWait = d
	}
	if raw, ok := lookupSetting(entry, "maxmessagesperuser", "max_messages_per_user", "max-messages-per-user"); ok {
		n, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_messages_per_user: %w", err)
		}
		rl.MaxMessagesPerUser = n
	}
	return nil
}

func applyProbeSettings(p *ProbeConfig, value interface{}) error {
	entry, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(entry, "concurrentroundtrips", "concurrent_round_trips", "concurrent-round-trips"); ok {
		n, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("concurrent_round_trips: %w", err)
		}
		p.ConcurrentRoundTrips = n
	}
	if raw, ok := lookupSetting(entry, "concurrencythreshold", "concurrency_threshold", "concurrency-threshold"); ok {
		f, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("concurrency_threshold: %w", err)
		}
		p.ConcurrencyThreshold = f
	}
	if raw, ok := lookupSetting(entry, "oversizedpayloadsize", "oversized_payload_size", "oversized-payload-size"); ok {
		n, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("oversized_payload_size: %w", err)
		}
		p.OversizedPayloadSize = n
	}
	return nil
}

func applyReadinessSettings(r *ReadinessConfig, value interface{}) error {
	entry, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(entry, "minorissuelimit", "minor_issue_limit", "minor-issue-limit"); ok {
		n, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("minor_issue_limit: %w", err)
		}
		r.MinorIssueLimit = n
	}
	return nil
}

func applyTracingSettings(t *TracingConfig, value interface{}) error {
	entry, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(entry, "servicename", "service_name", "service-name"); ok {
		v, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		t.ServiceName = v
	}
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		v, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = v
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		v, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = v
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		v, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = v
	}
	if raw, ok := lookupSetting(entry, "samplerate", "sample_rate", "sample-rate"); ok {
		v, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = v
	}
	return nil
}
