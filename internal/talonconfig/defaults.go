package talonconfig

// Default returns the documented field-for-field defaults, matching
// original_source/infra/talon/src/config.rs's Default impls.
func Default() *Config {
	return &Config{
		CheckIntervalSecs: 60,
		HealScript:        "",
		HealTimeoutSecs:   300,
		ServicesFile:      DefaultServicesPath(),
		Worker: WorkerConfig{
			Port:                        3111,
			DrainTimeoutSecs:            5,
			HealthIntervalSecs:          30,
			HealthFailuresBeforeRestart: 3,
			RestartBackoffMaxSecs:       30,
			StartupSyncDelaySecs:        5,
			HTTPTimeoutSecs:             5,
			HealthEndpoint:              "/api/health",
			SyncEndpoint:                "/api/sync",
		},
		Escalation: EscalationConfig{
			AgentCooldownSecs:     600,
			SOSCooldownSecs:       1800,
			SOSTelegramChatID:     "7718912466",
			SOSTelegramSecretName: "telegram_bot_token",
			CriticalThresholdSecs: 900,
		},
		Agent: AgentConfig{
			TimeoutSecs: 120,
		},
		Probes: ProbesConfig{
			ColimaTimeoutSecs:                 5,
			K8sTimeoutSecs:                    10,
			ServiceTimeoutSecs:                5,
			ConsecutiveFailuresBeforeEscalate: 3,
			EnableFlannelProbe:                false,
		},
		Health: HealthConfig{
			Enabled: true,
			Bind:    "127.0.0.1:9999",
		},
	}
}

// BuiltinHTTPServiceProbes returns the three HTTP probes Talon always
// seeds into the dynamic registry before applying services.toml,
// matching original_source's builtin_http_service_probes().
func BuiltinHTTPServiceProbes() []HTTPServiceProbe {
	return []HTTPServiceProbe{
		{Name: "inngest", URL: "http://localhost:8288/health", TimeoutSecs: 5, Critical: false},
		{Name: "typesense", URL: "http://localhost:8108/health", TimeoutSecs: 5, Critical: false},
		{Name: "worker", URL: "http://localhost:3111/api/inngest", TimeoutSecs: 5, Critical: false},
	}
}

const defaultConfigTOML = `# Talon configuration. Generated on first run; edit freely.

check_interval_secs = 60
heal_script = ""
heal_timeout_secs = 300
services_file = ""

[worker]
dir = ""
command = ""
external_launchd_label = ""
port = 3111
health_endpoint = "/api/health"
sync_endpoint = "/api/sync"
log_stdout = ""
log_stderr = ""
env_file = ""
drain_timeout_secs = 5
health_interval_secs = 30
health_failures_before_restart = 3
restart_backoff_max_secs = 30
startup_sync_delay_secs = 5
http_timeout_secs = 5

[escalation]
agent_cooldown_secs = 600
sos_cooldown_secs = 1800
sos_recipient = ""
sos_telegram_chat_id = "7718912466"
sos_telegram_secret_name = "telegram_bot_token"
critical_threshold_secs = 900

[agent]
cloud_command = ""
local_command = ""
timeout_secs = 120

[probes]
colima_timeout_secs = 5
k8s_timeout_secs = 10
service_timeout_secs = 5
consecutive_failures_before_escalate = 3
enable_flannel_probe = false

[health]
enabled = true
bind = "127.0.0.1:9999"
`

const defaultServicesTOML = `# Talon dynamic service probes. Reloaded whenever this file's mtime
# changes; the built-in inngest/typesense/worker HTTP probes are always
# seeded ahead of whatever is declared below.

[launchd.voice_agent]
label = "com.joel.voice-agent"
critical = true
timeout_secs = 5

[http.voice_agent]
url = "http://127.0.0.1:8081/"
critical = true
timeout_secs = 5
`
