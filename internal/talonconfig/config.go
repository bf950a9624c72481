// Package talonconfig loads and validates Talon's configuration: the
// static config.toml (tick interval, heal script, worker/escalation/
// agent/probe tuning) and the dynamically reloaded services.toml
// (per-service HTTP and launchd probes).
package talonconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is Talon's top-level configuration, decoded from config.toml.
type Config struct {
	CheckIntervalSecs int    `toml:"check_interval_secs"`
	HealScript        string `toml:"heal_script"`
	HealTimeoutSecs   int    `toml:"heal_timeout_secs"`
	ServicesFile      string `toml:"services_file"`

	Worker     WorkerConfig     `toml:"worker"`
	Escalation EscalationConfig `toml:"escalation"`
	Agent      AgentConfig      `toml:"agent"`
	Probes     ProbesConfig     `toml:"probes"`
	Health     HealthConfig     `toml:"health"`

	// HTTPServiceProbes and LaunchdServiceProbes are populated from
	// ServicesFile after load, not decoded from config.toml itself.
	HTTPServiceProbes    []HTTPServiceProbe    `toml:"-"`
	LaunchdServiceProbes []LaunchdServiceProbe `toml:"-"`
}

// WorkerConfig tunes the worker supervisor (spec.md §4.5).
type WorkerConfig struct {
	Dir                      string `toml:"dir"`
	Command                  string `toml:"command"`
	ExternalLaunchdLabel     string `toml:"external_launchd_label"`
	Port                     int    `toml:"port"`
	HealthEndpoint           string `toml:"health_endpoint"`
	SyncEndpoint             string `toml:"sync_endpoint"`
	LogStdout                string `toml:"log_stdout"`
	LogStderr                string `toml:"log_stderr"`
	EnvFile                  string `toml:"env_file"`
	DrainTimeoutSecs         int    `toml:"drain_timeout_secs"`
	HealthIntervalSecs       int    `toml:"health_interval_secs"`
	HealthFailuresBeforeRestart int `toml:"health_failures_before_restart"`
	RestartBackoffMaxSecs    int    `toml:"restart_backoff_max_secs"`
	StartupSyncDelaySecs     int    `toml:"startup_sync_delay_secs"`
	HTTPTimeoutSecs          int    `toml:"http_timeout_secs"`
}

// EscalationConfig tunes the heal/agents/SOS ladder (spec.md §4.4).
type EscalationConfig struct {
	AgentCooldownSecs    int    `toml:"agent_cooldown_secs"`
	SOSCooldownSecs      int    `toml:"sos_cooldown_secs"`
	SOSRecipient         string `toml:"sos_recipient"`
	SOSTelegramChatID    string `toml:"sos_telegram_chat_id"`
	SOSTelegramSecretName string `toml:"sos_telegram_secret_name"`
	CriticalThresholdSecs int   `toml:"critical_threshold_secs"`
}

// AgentConfig configures the cloud/local agent commands invoked at the
// agents tier.
type AgentConfig struct {
	CloudCommand string `toml:"cloud_command"`
	LocalCommand string `toml:"local_command"`
	TimeoutSecs  int    `toml:"timeout_secs"`
}

// ProbesConfig tunes probe timeouts and the escalation trigger.
type ProbesConfig struct {
	ColimaTimeoutSecs                int  `toml:"colima_timeout_secs"`
	K8sTimeoutSecs                   int  `toml:"k8s_timeout_secs"`
	ServiceTimeoutSecs               int  `toml:"service_timeout_secs"`
	ConsecutiveFailuresBeforeEscalate int `toml:"consecutive_failures_before_escalate"`
	EnableFlannelProbe               bool `toml:"enable_flannel_probe"`
}

// HealthConfig configures the local status endpoint.
type HealthConfig struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// HTTPServiceProbe is a dynamically registered HTTP probe entry from
// services.toml's [http.<name>] sections.
type HTTPServiceProbe struct {
	Name       string `toml:"-"`
	URL        string `toml:"url"`
	TimeoutSecs int   `toml:"timeout_secs"`
	Critical   bool   `toml:"critical"`
}

// LaunchdServiceProbe is a dynamically registered launchd probe entry
// from services.toml's [launchd.<name>] sections.
type LaunchdServiceProbe struct {
	Name       string `toml:"-"`
	Label      string `toml:"label"`
	TimeoutSecs int   `toml:"timeout_secs"`
	Critical   bool   `toml:"critical"`
}

// ErrInvalidConfig wraps a configuration-invalid condition per
// spec.md §7's error taxonomy.
type ErrInvalidConfig struct {
	Reason string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config: %s", e.Reason)
}

// Load reads path, writing the documented default document first if it
// doesn't exist, decodes it over Default(), resolves the services file,
// and validates the result.
func Load(path string) (*Config, error) {
	if err := EnsureDefaultConfigFile(path); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, &ErrInvalidConfig{Reason: fmt.Sprintf("parsing %s: %v", path, err)}
	}

	if cfg.ServicesFile == "" {
		cfg.ServicesFile = DefaultServicesPath()
	}
	if err := EnsureDefaultServicesFile(cfg.ServicesFile); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpProbes, launchdProbes, err := ParseServicesFile(cfg.ServicesFile)
	if err != nil {
		return nil, err
	}
	cfg.HTTPServiceProbes = httpProbes
	cfg.LaunchdServiceProbes = launchdProbes

	return cfg, nil
}

// Validate enforces the invariants spec.md §7 names as
// configuration-invalid.
func (c *Config) Validate() error {
	if c.Worker.Command == "" {
		return &ErrInvalidConfig{Reason: "worker.command must not be empty"}
	}
	return nil
}

// IsCriticalProbe reports whether a probe name is treated as critical.
// Static names are always critical; http:<name>/launchd:<name> fall
// back to the matching dynamic probe's Critical flag, defaulting to
// false when no such probe is currently registered (Open Question #2:
// kubelet_proxy_rbac is accepted here with no emitted probe).
func (c *Config) IsCriticalProbe(name string) bool {
	switch name {
	case "colima", "docker", "talos_container", "k8s_api", "node_ready",
		"node_schedulable", "redis", "kubelet_proxy_rbac":
		return true
	}

	if svc, ok := cutPrefix(name, "http:"); ok {
		for _, p := range c.HTTPServiceProbes {
			if p.Name == svc {
				return p.Critical
			}
		}
		return false
	}
	if svc, ok := cutPrefix(name, "launchd:"); ok {
		for _, p := range c.LaunchdServiceProbes {
			if p.Name == svc {
				return p.Critical
			}
		}
		return false
	}

	return false
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}

// DefaultConfigPath returns ~/.config/talon/config.toml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "talon", "config.toml")
}

// DefaultServicesPath returns ~/.config/talon/services.toml.
func DefaultServicesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "services.toml"
	}
	return filepath.Join(home, ".config", "talon", "services.toml")
}

// EnsureDefaultConfigFile writes the documented default config.toml at
// path if nothing exists there yet.
func EnsureDefaultConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigTOML), 0o644)
}

// EnsureDefaultServicesFile writes the documented default services.toml
// at path if nothing exists there yet.
func EnsureDefaultServicesFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(defaultServicesTOML), 0o644)
}

// ValidationSummary is the JSON shape printed by the `validate` CLI
// subcommand.
type ValidationSummary struct {
	ConfigPath        string `json:"config_path"`
	ServicesPath      string `json:"services_path"`
	CheckIntervalSecs int    `json:"check_interval_secs"`
	HTTPProbeCount    int    `json:"http_probe_count"`
	LaunchdProbeCount int    `json:"launchd_probe_count"`
}

// ValidateConfigFiles loads configPath (materializing defaults as
// needed) and returns a ValidationSummary, or an error describing what
// is wrong.
func ValidateConfigFiles(configPath string) (*ValidationSummary, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	return &ValidationSummary{
		ConfigPath:        configPath,
		ServicesPath:      cfg.ServicesFile,
		CheckIntervalSecs: cfg.CheckIntervalSecs,
		HTTPProbeCount:    len(cfg.HTTPServiceProbes),
		LaunchdProbeCount: len(cfg.LaunchdServiceProbes),
	}, nil
}
