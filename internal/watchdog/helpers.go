package watchdog

import (
	"strings"

	"github.com/joelhooks/talon/internal/probe"
)

// failedProbeNames comma-joins failed probe names, or "none" if empty.
func failedProbeNames(failed []probe.Result) string {
	if len(failed) == 0 {
		return "none"
	}
	names := make([]string, len(failed))
	for i, r := range failed {
		names[i] = r.Name
	}
	return strings.Join(names, ", ")
}

// truncate trims s to at most n runes, appending "..." when it had to
// cut, matching the original's char-count truncate helper.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// escapeAppleScript backslash-escapes backslashes then double quotes,
// matching the original's escape_applescript.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
