package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz            int `yaml:"tick_rate_hz"`
	PollingIntervalMs     int `yaml:"polling_interval_ms"`
	PresenceTTLMs         int `yaml:"presence_ttl_ms"`
	SettleDelayMs         int `yaml:"settle_delay_ms"`
	DefaultManualTimeoutS int `yaml:"default_manual_timeout_s"`

	BufferLimit int    `yaml:"buffer_limit"`
	BufferSlot  string `yaml:"buffer_slot"`

	// ActionNamespace scopes restricted-action signals to this engine's own
	// probes; ActionName is the restricted action probed with.
	ActionNamespace string `yaml:"action_namespace"`
	ActionName      string `yaml:"action_name"`

	ShowCompleted bool `yaml:"show_completed"`
	GroupOverride bool `yaml:"group_override"`

	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
}

func Default() Tuning {
	return Tuning{
		ProtocolVersion:       "1.0",
		TickRateHz:            20,
		PollingIntervalMs:     250,
		PresenceTTLMs:         2000,
		SettleDelayMs:         100,
		DefaultManualTimeoutS: 600,
		BufferLimit:           255,
		BufferSlot:            "QuestWatchTargets",
		ActionNamespace:       "QuestWatch",
		ActionName:            "ATTEMPT_INTERACT",
		SnapshotEveryTicks:    1200,
	}
}

func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tick_rate_hz must be positive")
	}
	if t.PollingIntervalMs <= 0 {
		return fmt.Errorf("polling_interval_ms must be positive")
	}
	// A TTL at or below one polling window makes a continuously-present
	// entity flicker absent between scans.
	if t.PresenceTTLMs <= t.PollingIntervalMs {
		return fmt.Errorf("presence_ttl_ms (%d) must exceed polling_interval_ms (%d)", t.PresenceTTLMs, t.PollingIntervalMs)
	}
	if t.DefaultManualTimeoutS <= 0 {
		return fmt.Errorf("default_manual_timeout_s must be positive")
	}
	if t.BufferLimit <= 0 {
		return fmt.Errorf("buffer_limit must be positive")
	}
	if t.BufferSlot == "" {
		return fmt.Errorf("buffer_slot must be set")
	}
	if t.ActionNamespace == "" || t.ActionName == "" {
		return fmt.Errorf("action_namespace and action_name must be set")
	}
	return nil
}

func (t Tuning) PollingInterval() time.Duration {
	return time.Duration(t.PollingIntervalMs) * time.Millisecond
}

func (t Tuning) PresenceTTL() time.Duration {
	return time.Duration(t.PresenceTTLMs) * time.Millisecond
}

func (t Tuning) SettleDelay() time.Duration {
	return time.Duration(t.SettleDelayMs) * time.Millisecond
}

func (t Tuning) DefaultManualTimeout() time.Duration {
	return time.Duration(t.DefaultManualTimeoutS) * time.Second
}
