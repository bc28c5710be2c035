// Package config loads and validates the orchestration core's TOML configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the orchestration core's full runtime configuration (spec §6's enumerated
// configuration keys), grouped by the component each section feeds.
type Config struct {
	General    General    `toml:"general"`
	Deadlines  Deadlines  `toml:"deadlines"`
	Strategy   Strategy   `toml:"strategy"`
	Classifier Classifier `toml:"classifier"`
	Models     Models     `toml:"models"`
	Outbox     Outbox     `toml:"outbox"`
	Reaper     Reaper     `toml:"reaper"`
	Temporal   Temporal   `toml:"temporal"`
	NATS       NATS       `toml:"nats"`
	API        API        `toml:"api"`
}

// General holds process-wide settings with no more specific home.
type General struct {
	LogLevel string `toml:"log_level"`
	StateDB  string `toml:"state_db"` // sqlite file backing the task store
}

// Deadlines configures the per-complexity wall-clock budget (spec §4.9/§6).
type Deadlines struct {
	SimpleSec  int `toml:"simple_sec"`
	MediumSec  int `toml:"medium_sec"`
	ComplexSec int `toml:"complex_sec"`
}

// Strategy configures the worker pool bound and the iteration budgets that bound
// Iterative and MultiAgent control loops (spec §4.6/§4.7).
//
// IterativeMaxIterations, IterativeWallClockSec and MultiAgentWallClockSec are read and
// validated here but, as of this build, the strategy package still fixes their
// values as its own constants rather than accepting them as Deps fields — see
// DESIGN.md for the open item tracking that wiring gap.
type Strategy struct {
	WorkerPoolSize         int64 `toml:"worker_pool_size"`
	IterativeMaxIterations int   `toml:"iterative_max_iterations"`
	IterativeWallClockSec  int   `toml:"iterative_wall_clock_sec"`
	MultiAgentWallClockSec int   `toml:"multiagent_wall_clock_sec"`
}

// Classifier configures the Classifier Adapter's external-call envelope (spec §4.4/§6).
type Classifier struct {
	Endpoint         string `toml:"endpoint"`
	TimeoutMs        int    `toml:"timeout_ms"`
	Retries          int    `toml:"retries"`
	RetryDelayMs     int    `toml:"retry_delay_ms"`
	CircuitThreshold int    `toml:"cb_threshold"`
	CircuitResetSec  int    `toml:"cb_reset_sec"`
}

// Models maps a strategy.ModelTier name ("small", "mid", "large") to a provider model
// id (spec §6: llm-model-map). Keys and values are operator-supplied; the defaults here
// intentionally use placeholder ids rather than a real vendor model string, since the
// actual id is an operational secret/config concern, not something to bake into code.
type Models struct {
	Map      map[string]string `toml:"map"`
	Endpoint string            `toml:"endpoint"` // LLM provider HTTP endpoint shared across tiers
}

// Outbox configures the Event Publisher pump (spec §4.11/§6).
type Outbox struct {
	PollIntervalMs int    `toml:"poll_interval_ms"`
	BatchSize      int    `toml:"batch_size"`
	LeaseTTLSec    int    `toml:"lease_ttl_sec"`
	OwnerID        string `toml:"owner_id"`
}

// Reaper configures the staleness sweep (spec §7/§6).
type Reaper struct {
	IntervalSec    int `toml:"interval_sec"`
	StaleWindowSec int `toml:"stale_window_sec"`
}

// Temporal configures the workflow engine connection backing the executor.
type Temporal struct {
	HostPort  string `toml:"host_port"`
	TaskQueue string `toml:"task_queue"`
}

// NATS configures the JetStream connection the publisher uses.
type NATS struct {
	URL string `toml:"url"`
}

// API configures the Intake Service's HTTP surface and its auth layer.
type API struct {
	Bind     string   `toml:"bind"`
	Security Security `toml:"security"`
}

// Security configures bearer-token auth and audit logging for write endpoints.
type Security struct {
	Enabled          bool     `toml:"enabled"`
	AllowedTokens    []string `toml:"allowed_tokens"`
	RequireLocalOnly bool     `toml:"require_local_only"`
	AuditLog         string   `toml:"audit_log"`
}

// Load reads, defaults, and validates a TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Reload re-reads and re-validates the configuration file at path. Named distinctly
// from Load to mark call sites that are a runtime refresh rather than startup.
func Reload(path string) (*Config, error) {
	return Load(path)
}

// LoadManager reads config from path and returns a thread-safe manager over it.
func LoadManager(path string) (ConfigManager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewRWMutexManager(cfg), nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.StateDB == "" {
		cfg.General.StateDB = "orchestrator.db"
	}

	if cfg.Deadlines.SimpleSec == 0 {
		cfg.Deadlines.SimpleSec = 90
	}
	if cfg.Deadlines.MediumSec == 0 {
		cfg.Deadlines.MediumSec = 180
	}
	if cfg.Deadlines.ComplexSec == 0 {
		cfg.Deadlines.ComplexSec = 600
	}

	if cfg.Strategy.WorkerPoolSize == 0 {
		cfg.Strategy.WorkerPoolSize = 16
	}
	if cfg.Strategy.IterativeMaxIterations == 0 {
		cfg.Strategy.IterativeMaxIterations = 3
	}
	if cfg.Strategy.IterativeWallClockSec == 0 {
		cfg.Strategy.IterativeWallClockSec = 60
	}
	if cfg.Strategy.MultiAgentWallClockSec == 0 {
		cfg.Strategy.MultiAgentWallClockSec = 180
	}

	if cfg.Classifier.TimeoutMs == 0 {
		cfg.Classifier.TimeoutMs = 100
	}
	if cfg.Classifier.Retries == 0 {
		cfg.Classifier.Retries = 2
	}
	if cfg.Classifier.RetryDelayMs == 0 {
		cfg.Classifier.RetryDelayMs = 50
	}
	if cfg.Classifier.CircuitThreshold == 0 {
		cfg.Classifier.CircuitThreshold = 3
	}
	if cfg.Classifier.CircuitResetSec == 0 {
		cfg.Classifier.CircuitResetSec = 30
	}

	if cfg.Models.Map == nil {
		cfg.Models.Map = map[string]string{}
	}
	if _, ok := cfg.Models.Map["small"]; !ok {
		cfg.Models.Map["small"] = "tier-small-default"
	}
	if _, ok := cfg.Models.Map["mid"]; !ok {
		cfg.Models.Map["mid"] = "tier-mid-default"
	}
	if _, ok := cfg.Models.Map["large"]; !ok {
		cfg.Models.Map["large"] = "tier-large-default"
	}

	if cfg.Outbox.PollIntervalMs == 0 {
		cfg.Outbox.PollIntervalMs = 200
	}
	if cfg.Outbox.BatchSize == 0 {
		cfg.Outbox.BatchSize = 32
	}
	if cfg.Outbox.LeaseTTLSec == 0 {
		cfg.Outbox.LeaseTTLSec = 10
	}
	if cfg.Outbox.OwnerID == "" {
		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "orchestrator"
		}
		cfg.Outbox.OwnerID = hostname
	}

	if cfg.Reaper.IntervalSec == 0 {
		cfg.Reaper.IntervalSec = 30
	}
	if cfg.Reaper.StaleWindowSec == 0 {
		cfg.Reaper.StaleWindowSec = 300
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://127.0.0.1:4222"
	}

	if cfg.Temporal.HostPort == "" {
		cfg.Temporal.HostPort = "127.0.0.1:7233"
	}
	if cfg.Temporal.TaskQueue == "" {
		cfg.Temporal.TaskQueue = "orchestrator-task-queue"
	}

	if cfg.API.Bind == "" {
		cfg.API.Bind = "127.0.0.1:8080"
	}
}

func validate(cfg *Config) error {
	if cfg.Strategy.WorkerPoolSize <= 0 {
		return fmt.Errorf("strategy.worker_pool_size must be positive, got %d", cfg.Strategy.WorkerPoolSize)
	}
	if cfg.Deadlines.SimpleSec <= 0 || cfg.Deadlines.MediumSec <= 0 || cfg.Deadlines.ComplexSec <= 0 {
		return fmt.Errorf("deadlines.*_sec must all be positive")
	}
	if cfg.Classifier.Retries < 0 {
		return fmt.Errorf("classifier.retries must not be negative")
	}
	if cfg.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox.batch_size must be positive")
	}
	if cfg.Reaper.StaleWindowSec <= 0 {
		return fmt.Errorf("reaper.stale_window_sec must be positive")
	}
	if cfg.API.Security.Enabled && len(cfg.API.Security.AllowedTokens) == 0 {
		return fmt.Errorf("api.security.allowed_tokens must be non-empty when api.security.enabled is true")
	}
	return nil
}

// DeadlinesDuration converts the configured second counts to time.Duration values, the
// shape internal/executor.Deadlines expects.
func (c Config) DeadlinesDuration() (simple, medium, complex time.Duration) {
	return time.Duration(c.Deadlines.SimpleSec) * time.Second,
		time.Duration(c.Deadlines.MediumSec) * time.Second,
		time.Duration(c.Deadlines.ComplexSec) * time.Second
}

// Clone returns a deep copy so callers (notably RWMutexManager) never share mutable
// map/slice state across readers.
func (cfg *Config) Clone() *Config {
	if cfg == nil {
		return nil
	}
	out := *cfg

	if cfg.Models.Map != nil {
		out.Models.Map = make(map[string]string, len(cfg.Models.Map))
		for k, v := range cfg.Models.Map {
			out.Models.Map[k] = v
		}
	}
	if cfg.API.Security.AllowedTokens != nil {
		out.API.Security.AllowedTokens = append([]string(nil), cfg.API.Security.AllowedTokens...)
	}
	return &out
}
