package watchdog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joelhooks/talon/internal/probe"
	"github.com/joelhooks/talon/internal/talonlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempStateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	require.NoError(t, talonlog.Init(talonlog.Config{Path: filepath.Join(dir, "talon.log")}))
	return filepath.Join(dir, ".local", "state", "talon")
}

func TestLoadStateDefaultsWhenMissing(t *testing.T) {
	withTempStateDir(t)

	st, err := LoadState()
	require.NoError(t, err)
	assert.Equal(t, StateHealthy, st.CurrentState)
	assert.Equal(t, 0, st.ConsecutiveFailures)
	assert.Empty(t, st.LastProbeResults)
}

func TestSaveAndLoadStateRoundTrips(t *testing.T) {
	withTempStateDir(t)

	now := time.Now().Truncate(time.Second)
	st := &PersistentState{
		CurrentState:        StateDegraded,
		ConsecutiveFailures: 2,
		LastHealTime:        &now,
		LastProbeResults: []probe.Result{
			{Name: "colima", Passed: true, Output: "ok", DurationMs: 12},
		},
		WorkerRestarts: 3,
	}

	require.NoError(t, SaveState(st))

	loaded, err := LoadState()
	require.NoError(t, err)
	assert.Equal(t, st.CurrentState, loaded.CurrentState)
	assert.Equal(t, st.ConsecutiveFailures, loaded.ConsecutiveFailures)
	assert.Equal(t, st.WorkerRestarts, loaded.WorkerRestarts)
	assert.Equal(t, st.LastProbeResults, loaded.LastProbeResults)
	require.NotNil(t, loaded.LastHealTime)
	assert.True(t, st.LastHealTime.Equal(*loaded.LastHealTime))
}

func TestLoadStateFallsBackToLastProbeFileWhenStateHasNone(t *testing.T) {
	dir := withTempStateDir(t)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	require.NoError(t, SaveState(&PersistentState{
		CurrentState: StateHealthy,
		LastProbeResults: []probe.Result{
			{Name: "docker", Passed: true, Output: "ok", DurationMs: 5},
		},
	}))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte(`{"current_state":"Healthy","consecutive_failures":0,"last_probe_results":[]}`), 0o644))

	loaded, err := LoadState()
	require.NoError(t, err)
	require.Len(t, loaded.LastProbeResults, 1)
	assert.Equal(t, "docker", loaded.LastProbeResults[0].Name)
}

func TestTransitionIsNoopWhenStateUnchanged(t *testing.T) {
	st := DefaultState()
	Transition(st, StateHealthy)
	assert.Equal(t, StateHealthy, st.CurrentState)
	assert.Nil(t, st.CriticalSince)
}

func TestTransitionToCriticalStampsCriticalSinceOnce(t *testing.T) {
	st := DefaultState()
	Transition(st, StateCritical)
	require.NotNil(t, st.CriticalSince)
	first := *st.CriticalSince

	Transition(st, StateCritical)
	assert.Equal(t, first, *st.CriticalSince)
}

func TestTransitionOutOfCriticalClearsCriticalSince(t *testing.T) {
	st := DefaultState()
	Transition(st, StateCritical)
	require.NotNil(t, st.CriticalSince)

	Transition(st, StateHealthy)
	assert.Nil(t, st.CriticalSince)
}
