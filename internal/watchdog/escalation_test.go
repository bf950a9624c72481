package watchdog

import (
	"testing"

	"github.com/joelhooks/talon/internal/probe"
	"github.com/joelhooks/talon/internal/talonconfig"
	"github.com/stretchr/testify/assert"
)

func configWithLaunchdProbes() *talonconfig.Config {
	cfg := talonconfig.Default()
	cfg.LaunchdServiceProbes = []talonconfig.LaunchdServiceProbe{
		{Name: "voice_agent", Label: "com.joel.voice-agent", Critical: true},
		{Name: "typesense_launchd", Label: "com.joel.typesense", Critical: false},
	}
	return cfg
}

func TestRestartTargetsIncludeMatchingLaunchdLabelsOnce(t *testing.T) {
	cfg := configWithLaunchdProbes()
	failed := []probe.Result{
		{Name: "launchd:voice_agent"},
		{Name: "http:voice_agent"},
	}

	targets := RestartTargetsForFailedServices(cfg, failed)
	assert.Equal(t, []string{"com.joel.voice-agent"}, targets)
}

func TestRestartTargetsSkipBuiltinHTTPProbes(t *testing.T) {
	cfg := configWithLaunchdProbes()
	failed := []probe.Result{
		{Name: "http:inngest"},
		{Name: "http:typesense"},
		{Name: "http:worker"},
	}

	targets := RestartTargetsForFailedServices(cfg, failed)
	assert.Empty(t, targets)
}

func TestRestartTargetsSortedAndDeduped(t *testing.T) {
	cfg := configWithLaunchdProbes()
	failed := []probe.Result{
		{Name: "launchd:typesense_launchd"},
		{Name: "launchd:voice_agent"},
		{Name: "http:voice_agent"},
	}

	targets := RestartTargetsForFailedServices(cfg, failed)
	assert.Equal(t, []string{"com.joel.typesense", "com.joel.voice-agent"}, targets)
}

func TestFailedProbeNamesJoinsOrReportsNone(t *testing.T) {
	assert.Equal(t, "none", failedProbeNames(nil))
	assert.Equal(t, "colima, docker", failedProbeNames([]probe.Result{{Name: "colima"}, {Name: "docker"}}))
}

func TestTruncateAppendsEllipsisOnlyWhenCut(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "he...", truncate("hello", 2))
}

func TestEscapeAppleScriptEscapesBackslashesBeforeQuotes(t *testing.T) {
	assert.Equal(t, `say \"hi\" to \\bob`, escapeAppleScript(`say "hi" to \bob`))
}
