// Package worker implements Talon's worker supervisor: it reclaims the
// worker's port, assembles its environment (including leased secrets),
// spawns and monitors the process, and restarts it with backoff on
// repeated health-check failures.
package worker

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joelhooks/talon/internal/procrun"
	"github.com/joelhooks/talon/internal/talonlog"
)

// secretMapping pairs a secret name leased via `secrets lease` with the
// environment variable the worker process expects it under, matching
// worker.rs's SECRET_MAPPINGS table exactly.
type secretMapping struct {
	secretName string
	envVar     string
}

var secretMappings = []secretMapping{
	{"claude_oauth_token", "CLAUDE_CODE_OAUTH_TOKEN"},
	{"todoist_client_secret", "TODOIST_CLIENT_SECRET"},
	{"todoist_api_token", "TODOIST_API_TOKEN"},
	{"front_rules_webhook_secret", "FRONT_WEBHOOK_SECRET"},
	{"front_api_token", "FRONT_API_TOKEN"},
	{"vercel_webhook_secret", "VERCEL_WEBHOOK_SECRET"},
}

// LoadChildEnv assembles the worker's environment: a fixed PATH
// baseline, WORKER_ROLE=host, the env file overlay (if envFile is set),
// and the leased-secret overlay last, so a successful lease always
// wins over a stale value in the env file.
func LoadChildEnv(ctx context.Context, envFile string) []string {
	env := []string{
		"PATH=/usr/bin:/bin:/usr/sbin:/sbin:/opt/homebrew/bin:/usr/local/bin",
		"WORKER_ROLE=host",
	}

	if envFile != "" {
		overlay, err := parseEnvFile(envFile)
		if err != nil {
			talonlog.WithComponent("worker").Warn().Err(err).Str("env_file", envFile).Msg("failed to read worker env file")
		} else {
			env = append(env, overlay...)
		}
	}

	for _, m := range secretMappings {
		value, err := leaseSecret(ctx, m.secretName)
		if err != nil {
			talonlog.WithComponent("worker").Warn().Err(err).Str("secret", m.secretName).Msg("failed to lease secret")
			continue
		}
		env = append(env, m.envVar+"="+value)
	}

	return env
}

// parseEnvFile reads a shell-style env file: blank lines and
// #-comments are skipped, a leading "export " is stripped, and values
// may be wrapped in matching single or double quotes.
func parseEnvFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out = append(out, strings.TrimSpace(key)+"="+stripWrappingQuotes(strings.TrimSpace(value)))
	}
	return out, nil
}

func stripWrappingQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// leaseSecret shells out to `secrets lease <name> --ttl 24h` and
// returns its trimmed stdout, or an error if the lease failed or
// returned nothing.
func leaseSecret(ctx context.Context, name string) (string, error) {
	res := procrun.Run(ctx, "secrets", []string{"lease", name, "--ttl", "24h"}, nil, 10*time.Second, nil)
	if !res.Success {
		return "", fmt.Errorf("secrets lease %s failed: %s", name, res.Output)
	}
	value := strings.TrimSpace(res.Output)
	if value == "" || value == "ok" {
		return "", fmt.Errorf("secrets lease %s returned empty output", name)
	}
	return value, nil
}
