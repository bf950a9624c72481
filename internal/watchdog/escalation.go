package watchdog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joelhooks/talon/internal/probe"
	"github.com/joelhooks/talon/internal/procrun"
	"github.com/joelhooks/talon/internal/talonconfig"
	"github.com/joelhooks/talon/internal/talonlog"
)

// TierOutcome is the result of running one rung of the escalation
// ladder.
type TierOutcome int

const (
	Fixed TierOutcome = iota
	Failed
	Cooldown
)

// RunHeal executes cfg.HealScript, the generic recovery action run
// when not every failing probe is a dynamic service probe. dry_run
// reports Cooldown without running anything, matching
// original_source/infra/talon/src/escalation.rs's dry_run branches.
func RunHeal(ctx context.Context, cfg *talonconfig.Config, st *PersistentState, dryRun bool) (TierOutcome, string) {
	if dryRun {
		return Cooldown, "dry-run: heal script skipped"
	}

	now := time.Now()
	st.LastHealTime = &now

	if cfg.HealScript == "" {
		return Failed, "no heal_script configured"
	}

	res := procrun.Run(ctx, cfg.HealScript, nil, nil, time.Duration(cfg.HealTimeoutSecs)*time.Second, nil)
	if res.Success {
		return Fixed, res.Output
	}
	return Failed, res.Output
}

// RunServiceHeal kickstarts the launchd labels implicated by the
// current failed-probe set via `launchctl kickstart -k gui/<uid>/<label>`,
// succeeding only if every targeted label restarts cleanly.
func RunServiceHeal(ctx context.Context, cfg *talonconfig.Config, st *PersistentState, failed []probe.Result, dryRun bool) (TierOutcome, string) {
	if dryRun {
		return Cooldown, "dry-run: service heal skipped"
	}

	now := time.Now()
	st.LastHealTime = &now

	targets := RestartTargetsForFailedServices(cfg, failed)
	if len(targets) == 0 {
		return Failed, "no restart targets for failed services"
	}

	uid, err := CurrentUID(ctx)
	if err != nil {
		return Failed, fmt.Sprintf("could not resolve uid: %v", err)
	}

	var outputs []string
	allOK := true
	for _, label := range targets {
		target := fmt.Sprintf("gui/%s/%s", uid, label)
		res := procrun.Run(ctx, "launchctl", []string{"kickstart", "-k", target}, nil, 20*time.Second, nil)
		outputs = append(outputs, fmt.Sprintf("%s: %s", label, res.Output))
		if !res.Success {
			allOK = false
		}
	}

	joined := strings.Join(outputs, "\n")
	if allOK {
		return Fixed, joined
	}
	return Failed, joined
}

// RestartTargetsForFailedServices extracts the deduped, sorted set of
// launchd labels implicated by the failed-probe set: launchd:<name>
// failures map directly to their configured label; http:<name>
// failures map to the same-named launchd probe's label, EXCLUDING the
// built-in inngest/typesense/worker HTTP probes (those have no
// corresponding launchd job to kickstart).
func RestartTargetsForFailedServices(cfg *talonconfig.Config, failed []probe.Result) []string {
	labelByName := make(map[string]string, len(cfg.LaunchdServiceProbes))
	for _, p := range cfg.LaunchdServiceProbes {
		labelByName[p.Name] = p.Label
	}

	builtins := map[string]struct{}{"inngest": {}, "typesense": {}, "worker": {}}

	targets := make(map[string]struct{})
	for _, r := range failed {
		switch {
		case strings.HasPrefix(r.Name, "launchd:"):
			name := strings.TrimPrefix(r.Name, "launchd:")
			if label, ok := labelByName[name]; ok {
				targets[label] = struct{}{}
			}
		case strings.HasPrefix(r.Name, "http:"):
			name := strings.TrimPrefix(r.Name, "http:")
			if _, isBuiltin := builtins[name]; isBuiltin {
				continue
			}
			if label, ok := labelByName[name]; ok {
				targets[label] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(targets))
	for label := range targets {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// CurrentUID resolves the numeric console user id: the UID environment
// variable first, else `id -u`.
func CurrentUID(ctx context.Context) (string, error) {
	if v := os.Getenv("UID"); v != "" {
		return v, nil
	}
	res := procrun.Run(ctx, "id", []string{"-u"}, nil, 5*time.Second, nil)
	if !res.Success {
		return "", fmt.Errorf("id -u failed: %s", res.Output)
	}
	out := strings.TrimSpace(res.Output)
	if _, err := strconv.Atoi(out); err != nil {
		return "", fmt.Errorf("id -u returned non-numeric output: %q", out)
	}
	return out, nil
}

// RunAgents invokes the cloud agent command, falling back to the local
// command if the cloud one fails, subject to agent_cooldown_secs.
func RunAgents(ctx context.Context, cfg *talonconfig.Config, st *PersistentState, failed []probe.Result, healOutput string, dryRun bool) (TierOutcome, string) {
	if dryRun {
		return Cooldown, "dry-run: agent invocation skipped"
	}

	if st.LastAgentTime != nil {
		elapsed := time.Since(*st.LastAgentTime)
		if elapsed < time.Duration(cfg.Escalation.AgentCooldownSecs)*time.Second {
			return Cooldown, fmt.Sprintf("agent cooldown active, %s remaining", (time.Duration(cfg.Escalation.AgentCooldownSecs)*time.Second - elapsed).Round(time.Second))
		}
	}

	now := time.Now()
	st.LastAgentTime = &now

	incidentID := uuid.New().String()
	prompt := BuildDiagnosticPrompt(cfg, failed, healOutput)

	log := talonlog.WithIncident(incidentID)
	log.Info().Msg("running agents tier")

	timeout := time.Duration(cfg.Agent.TimeoutSecs) * time.Second

	if cfg.Agent.CloudCommand != "" {
		res := runShellWithStdin(ctx, cfg.Agent.CloudCommand, prompt, timeout)
		if res.Success {
			return Fixed, res.Output
		}
		log.Warn().Str("output", res.Output).Msg("cloud agent command failed, falling back to local")
	}

	if cfg.Agent.LocalCommand != "" {
		res := runShellWithStdin(ctx, cfg.Agent.LocalCommand, prompt, timeout)
		if res.Success {
			return Fixed, res.Output
		}
		return Failed, res.Output
	}

	return Failed, "no agent command succeeded"
}

func runShellWithStdin(ctx context.Context, commandLine, stdin string, timeout time.Duration) procrun.Result {
	return procrun.Run(ctx, "/bin/zsh", []string{"-lc", commandLine}, nil, timeout, strings.NewReader(stdin))
}
