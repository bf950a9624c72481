package watchdog

import (
	"context"
	"strings"

	"github.com/joelhooks/talon/internal/probe"
	"github.com/joelhooks/talon/internal/talonconfig"
	"github.com/joelhooks/talon/internal/talonlog"
)

// TickResult is everything one watchdog tick decided and did, used by
// tests asserting the tick scenarios; the status publisher reads the
// PersistentState instead.
type TickResult struct {
	Results       []probe.Result
	Failed        []probe.Result
	Critical      []probe.Result
	Escalated     bool
	HealOutcome   *TierOutcome
	AgentsOutcome *TierOutcome
	SOSOutcome    *TierOutcome
}

// Tick runs one full cycle over catalog: execute every probe, classify
// failures, decide whether to escalate, and walk the
// Healthy -> Degraded -> Failed -> Investigating -> Critical -> SOS
// ladder accordingly. The caller builds catalog (typically
// probe.BuildAll(cfg, dockerHost), rebuilt whenever the dynamic probe
// registry reloads) so this function stays testable against a fixed
// fake catalog. Open Question #1 is resolved here: escalation is gated
// on critical_failures non-empty OR consecutive_failures >= threshold,
// and once triggered the FULL failed set (not just the critical
// subset) is what heal/agents/SOS target — overriding
// original_source/infra/talon/src/main.rs's older critical-only gate.
func Tick(ctx context.Context, cfg *talonconfig.Config, st *PersistentState, catalog []probe.Probe, dryRun bool) TickResult {
	results := probe.RunAll(ctx, catalog)

	var failed, critical []probe.Result
	for _, r := range results {
		if r.Passed {
			continue
		}
		failed = append(failed, r)
		if cfg.IsCriticalProbe(r.Name) {
			critical = append(critical, r)
		}
	}

	st.LastProbeResults = results

	tickResult := TickResult{Results: results, Failed: failed, Critical: critical}

	log := talonlog.WithComponent("watchdog")

	if len(failed) == 0 {
		st.ConsecutiveFailures = 0
		Transition(st, StateHealthy)
		return tickResult
	}

	st.ConsecutiveFailures++

	shouldEscalate := len(critical) > 0 || st.ConsecutiveFailures >= cfg.Probes.ConsecutiveFailuresBeforeEscalate
	tickResult.Escalated = shouldEscalate

	if !shouldEscalate {
		Transition(st, StateDegraded)
		return tickResult
	}

	if st.CurrentState == StateHealthy || st.CurrentState == StateDegraded {
		Transition(st, StateFailed)
	}
	Transition(st, StateInvestigating)

	// Heal tier selection (spec.md §4.4): the service-heal path runs
	// iff every currently-failing probe is a dynamic service probe
	// (http:* or launchd:*); otherwise a static/critical probe is
	// failing and the generic heal script runs instead.
	var healOutcome TierOutcome
	var healOutput string
	if allFailuresAreServiceProbes(cfg, failed) {
		if !dryRun {
			PreRestartCleanup(ctx, cfg, RestartTargetsForFailedServices(cfg, failed))
		}
		healOutcome, healOutput = RunServiceHeal(ctx, cfg, st, failed, dryRun)
	} else {
		healOutcome, healOutput = RunHeal(ctx, cfg, st, dryRun)
	}
	tickResult.HealOutcome = &healOutcome
	log.Info().Str("heal_outcome", healOutcomeLabel(healOutcome)).Msg("heal tier complete")

	if healOutcome == Fixed {
		Transition(st, StateHealthy)
		st.ConsecutiveFailures = 0
		return tickResult
	}

	Transition(st, StateCritical)

	agentsOutcome, _ := RunAgents(ctx, cfg, st, failed, healOutput, dryRun)
	tickResult.AgentsOutcome = &agentsOutcome
	log.Info().Str("agents_outcome", healOutcomeLabel(agentsOutcome)).Msg("agents tier complete")

	if agentsOutcome == Fixed {
		Transition(st, StateHealthy)
		st.ConsecutiveFailures = 0
		return tickResult
	}

	sosOutcome, _ := RunSOS(ctx, cfg, st, failed, dryRun)
	tickResult.SOSOutcome = &sosOutcome
	log.Info().Str("sos_outcome", healOutcomeLabel(sosOutcome)).Msg("sos tier complete")

	if sosOutcome == Fixed {
		Transition(st, StateSOS)
	}

	return tickResult
}

// allFailuresAreServiceProbes reports whether every failed probe is a
// "dynamic service probe" per spec.md §4.4: a launchd:* whose name is
// registered in the dynamic launchd probes, or an http:* whose name is
// registered in the dynamic HTTP probes AND is not one of the builtin
// {inngest, typesense, worker} probes. This is the predicate that
// picks the service-heal tier over the generic heal script.
func allFailuresAreServiceProbes(cfg *talonconfig.Config, failed []probe.Result) bool {
	if len(failed) == 0 {
		return false
	}

	launchdNames := make(map[string]struct{}, len(cfg.LaunchdServiceProbes))
	for _, p := range cfg.LaunchdServiceProbes {
		launchdNames[p.Name] = struct{}{}
	}
	httpNames := make(map[string]struct{}, len(cfg.HTTPServiceProbes))
	for _, p := range cfg.HTTPServiceProbes {
		httpNames[p.Name] = struct{}{}
	}
	builtins := map[string]struct{}{"inngest": {}, "typesense": {}, "worker": {}}

	for _, r := range failed {
		switch {
		case strings.HasPrefix(r.Name, "launchd:"):
			name := strings.TrimPrefix(r.Name, "launchd:")
			if _, ok := launchdNames[name]; !ok {
				return false
			}
		case strings.HasPrefix(r.Name, "http:"):
			name := strings.TrimPrefix(r.Name, "http:")
			if _, isBuiltin := builtins[name]; isBuiltin {
				return false
			}
			if _, ok := httpNames[name]; !ok {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func healOutcomeLabel(o TierOutcome) string {
	switch o {
	case Fixed:
		return "fixed"
	case Cooldown:
		return "cooldown"
	default:
		return "failed"
	}
}
