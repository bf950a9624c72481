package watchdog

import (
	"fmt"
	"strings"

	"github.com/joelhooks/talon/internal/probe"
	"github.com/joelhooks/talon/internal/talonconfig"
	"github.com/joelhooks/talon/internal/talonlog"
)

// BuildDiagnosticPrompt assembles the text handed to the cloud/local
// agent at the agents tier, matching original_source's
// build_diagnostic_prompt layout exactly: role/environment/goal
// header, failed-probe block, heal-output block, talon log tail,
// worker stderr tail, constraint list, closing instruction.
func BuildDiagnosticPrompt(cfg *talonconfig.Config, failed []probe.Result, healOutput string) string {
	var b strings.Builder

	b.WriteString("You are an autonomous infrastructure agent for a local\n")
	b.WriteString("Kubernetes-on-Colima development environment.\n")
	b.WriteString("Goal: restore the cluster and worker process to a healthy state using the least destructive fix available.\n\n")

	b.WriteString("Failed probes:\n")
	for _, r := range failed {
		b.WriteString(fmt.Sprintf("- %s (duration_ms=%d): %s\n", r.Name, r.DurationMs, truncate(r.Output, 800)))
	}

	b.WriteString("\nHeal script output:\n")
	b.WriteString(truncate(healOutput, 4000))

	b.WriteString("\n\nRecent talon log tail:\n")
	b.WriteString(truncate(talonlog.TailTalonLog(120), 4000))

	b.WriteString("\n\nRecent worker stderr tail:\n")
	stderrPath := cfg.Worker.LogStderr
	b.WriteString(truncate(talonlog.TailFile(stderrPath, 120), 4000))

	b.WriteString("\n\nConstraints:\n")
	b.WriteString("- Never destroy or recreate the Colima/Lima cluster.\n")
	b.WriteString("- Never delete a PersistentVolumeClaim.\n")
	b.WriteString("- Never kill the Lima SSH multiplexer socket.\n")
	b.WriteString("- Prefer the least destructive fix that restores health.\n")
	b.WriteString("- If a destructive action seems required, stop and report instead of taking it.\n")

	b.WriteString("\nTake action now using the tools available to you, then summarize what you changed.\n")

	return b.String()
}
