package probe

import (
	"strconv"
	"strings"
)

// Validate classifies a probe's captured output as passing or failing.
// Names without a specific validator default to "subprocess exited
// zero is enough" (accept), matching probes.rs's validate_probe_output
// dispatch table.
func Validate(name, output string) bool {
	switch {
	case name == "talos_container":
		return strings.EqualFold(trimQuotes(output), "running")
	case name == "node_ready":
		return trimQuotes(output) == "True"
	case name == "node_schedulable":
		return isNodeSchedulable(output)
	case name == "flannel":
		return isFlannelReady(output)
	case name == "redis":
		return strings.Contains(output, "PONG")
	case strings.HasPrefix(name, "http:"):
		return strings.Contains(output, "200")
	case strings.HasPrefix(name, "launchd:"):
		return launchdListRunning(output)
	default:
		return true
	}
}

// isNodeSchedulable rejects a node spec reporting unschedulable=true
// (with or without the space JSON pretty-printers sometimes add) or a
// literal NoSchedule taint effect.
func isNodeSchedulable(output string) bool {
	lower := strings.ToLower(output)
	if strings.Contains(lower, `"unschedulable":true`) || strings.Contains(lower, `"unschedulable": true`) {
		return false
	}
	if strings.Contains(output, "NoSchedule") {
		return false
	}
	return true
}

// isFlannelReady parses "available/desired" and passes iff desired > 0
// and available == desired.
func isFlannelReady(output string) bool {
	parts := strings.SplitN(strings.TrimSpace(output), "/", 2)
	if len(parts) != 2 {
		return false
	}
	available, errA := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
	desired, errB := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
	if errA != nil || errB != nil {
		return false
	}
	return desired > 0 && available == desired
}

// launchdListRunning finds the line reporting the job's PID and fails
// if that PID is 0 (job registered but not running).
func launchdListRunning(output string) bool {
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, `"PID" =`) {
			continue
		}
		if strings.Contains(line, `"PID" = 0`) {
			return false
		}
		return true
	}
	return false
}

// trimQuotes strips surrounding whitespace and then every leading and
// trailing single quote, matching probes.rs:264's trim before equality
// checks.
func trimQuotes(output string) string {
	trimmed := strings.TrimSpace(output)
	return strings.Trim(trimmed, "'")
}
