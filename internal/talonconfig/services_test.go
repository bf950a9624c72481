package talonconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServicesFileRequiresURLAndLabel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "services.toml")

	require.NoError(t, os.WriteFile(path, []byte(`
[http.broken]
critical = true
`), 0o644))

	_, _, err := ParseServicesFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.broken is missing required key: url")
}

func TestParseServicesFileSeedsBuiltinsAheadOfDeclared(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "services.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[http.extra_service]
url = "http://localhost:9000/health"
`), 0o644))

	httpProbes, _, err := ParseServicesFile(path)
	require.NoError(t, err)
	require.Len(t, httpProbes, 4)
	assert.Equal(t, "inngest", httpProbes[0].Name)
	assert.Equal(t, "extra_service", httpProbes[3].Name)
}

func TestServiceProbeTrackerReloadsOnlyWhenMtimeChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "services.toml")

	tracker := NewServiceProbeTracker(path)

	_, _, changed, err := tracker.Reload()
	require.NoError(t, err)
	assert.True(t, changed, "first reload should always load the materialized defaults")

	_, _, changed, err = tracker.Reload()
	require.NoError(t, err)
	assert.False(t, changed, "second reload with unchanged mtime should skip")

	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	_, launchdProbes, changed, err := tracker.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, launchdProbes, 1)
	assert.Equal(t, "voice_agent", launchdProbes[0].Name)
}
