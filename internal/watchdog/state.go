// Package watchdog implements Talon's state machine and escalation
// ladder: the tick procedure that runs every probe, classifies the
// result, and walks Healthy -> Degraded -> Failed -> Investigating ->
// Critical -> SOS as failures persist.
package watchdog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/joelhooks/talon/internal/probe"
	"github.com/joelhooks/talon/internal/talonlog"
)

// State names, matching spec.md §4.4's state graph exactly.
const (
	StateHealthy       = "Healthy"
	StateDegraded      = "Degraded"
	StateFailed        = "Failed"
	StateInvestigating = "Investigating"
	StateCritical      = "Critical"
	StateSOS           = "SOS"
)

// PersistentState is Talon's on-disk tick-to-tick memory, persisted as
// JSON under the state directory (spec.md §3, §6).
type PersistentState struct {
	CurrentState        string         `json:"current_state"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	LastHealTime        *time.Time     `json:"last_heal_time"`
	LastAgentTime       *time.Time     `json:"last_agent_time"`
	LastSOSTime         *time.Time     `json:"last_sos_time"`
	CriticalSince       *time.Time     `json:"critical_since"`
	LastProbeResults    []probe.Result `json:"last_probe_results"`
	WorkerRestarts      int            `json:"worker_restarts"`
}

// DefaultState returns the zero-value starting state: Healthy, no
// failures, no escalation timestamps.
func DefaultState() *PersistentState {
	return &PersistentState{CurrentState: StateHealthy}
}

// StateDir returns ~/.local/state/talon.
func StateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state", "talon")
}

func statePath() string       { return filepath.Join(StateDir(), "state.json") }
func lastProbePath() string   { return filepath.Join(StateDir(), "last-probe.json") }

// LoadState reads state.json, defaulting to a fresh Healthy state if
// it doesn't exist. If LastProbeResults comes back empty, it falls
// back to last-probe.json, matching original_source's state.rs
// load_state fallback so a crash between writing last-probe.json and
// state.json doesn't lose the most recent probe snapshot.
func LoadState() (*PersistentState, error) {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(statePath())
	if os.IsNotExist(err) {
		return DefaultState(), nil
	}
	if err != nil {
		return nil, err
	}

	st := DefaultState()
	if err := json.Unmarshal(raw, st); err != nil {
		talonlog.Logger.Warn().Err(err).Msg("state file corrupt, starting fresh")
		return DefaultState(), nil
	}

	if len(st.LastProbeResults) == 0 {
		if fallback, err := loadLastProbeResults(); err == nil && len(fallback) > 0 {
			st.LastProbeResults = fallback
		}
	}

	return st, nil
}

// SaveState writes state.json and a standalone last-probe.json
// snapshot of LastProbeResults, matching write_last_probe in
// original_source's state.rs.
func SaveState(st *PersistentState) error {
	if err := os.MkdirAll(StateDir(), 0o755); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(statePath(), raw, 0o644); err != nil {
		return err
	}

	return writeLastProbe(st.LastProbeResults)
}

func writeLastProbe(results []probe.Result) error {
	raw, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(lastProbePath(), raw, 0o644)
}

func loadLastProbeResults() ([]probe.Result, error) {
	raw, err := os.ReadFile(lastProbePath())
	if err != nil {
		return nil, err
	}
	var results []probe.Result
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Transition moves st to next, logging the change as a structured
// event. A no-op transition (from == to) is silent.
func Transition(st *PersistentState, next string) {
	if st.CurrentState == next {
		return
	}

	talonlog.WithComponent("watchdog").Info().
		Str("from", st.CurrentState).
		Str("to", next).
		Msg("state transition")

	if next == StateCritical && st.CriticalSince == nil {
		now := time.Now()
		st.CriticalSince = &now
	}
	if next != StateCritical && next != StateSOS {
		st.CriticalSince = nil
	}

	st.CurrentState = next
}
