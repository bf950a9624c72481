package watchdog

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joelhooks/talon/internal/procrun"
	"github.com/joelhooks/talon/internal/talonconfig"
	"github.com/joelhooks/talon/internal/talonlog"
)

// voiceAgentServiceName is the only service this pre-restart cleanup
// step applies to; voice_agent's process occasionally orphans a
// listener on its port without releasing it on SIGTERM, which then
// blocks the freshly kickstarted instance from binding.
const voiceAgentServiceName = "voice_agent"

// voiceAgentDefaultPort is used when the voice_agent HTTP entry is
// missing or its URL can't be parsed at all (spec.md §4.4 step 1).
const voiceAgentDefaultPort = 8081

// voiceAgentCommandPatterns are the substrings a listening process's
// command line must contain for it to be treated as the voice-agent's
// own process rather than a foreign occupant of its port.
var voiceAgentCommandPatterns = []string{"infra/voice-agent", "main.py start"}

// PreRestartCleanup runs before RunServiceHeal kicks voice_agent. It
// inspects whatever is listening on voice_agent's configured port and,
// if every listener looks like the voice-agent binary, pattern-kills
// them; if any listener does NOT look like voice-agent, it aborts and
// only reports the foreign listeners, never killing them. It is
// narrowly scoped to voice_agent: no other service probe in spec.md
// needs this, and broadening it risks killing an unrelated process
// that happens to share a port.
func PreRestartCleanup(ctx context.Context, cfg *talonconfig.Config, targets []string) {
	if !restartTargetsIncludeVoiceAgent(cfg, targets) {
		return
	}

	var endpoint string
	for _, p := range cfg.HTTPServiceProbes {
		if p.Name == voiceAgentServiceName {
			endpoint = p.URL
			break
		}
	}

	port, ok := portFromEndpoint(endpoint)
	if !ok {
		port = voiceAgentDefaultPort
	}

	cleanVoiceAgentListeners(ctx, port)
}

func restartTargetsIncludeVoiceAgent(cfg *talonconfig.Config, targets []string) bool {
	var voiceAgentLabel string
	for _, p := range cfg.LaunchdServiceProbes {
		if p.Name == voiceAgentServiceName {
			voiceAgentLabel = p.Label
			break
		}
	}
	if voiceAgentLabel == "" {
		return false
	}
	for _, t := range targets {
		if t == voiceAgentLabel {
			return true
		}
	}
	return false
}

// portFromEndpoint parses an http(s)://host[:port]/path URL, including
// bracketed IPv6 authorities, defaulting to 80 for http and 443 for
// https when no port is present.
func portFromEndpoint(endpoint string) (int, bool) {
	if strings.TrimSpace(endpoint) == "" {
		return 0, false
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return 0, false
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return 0, false
		}
		return port, true
	}

	switch u.Scheme {
	case "https":
		return 443, true
	case "http", "":
		return 80, true
	default:
		return 0, false
	}
}

// cleanVoiceAgentListeners lists the PIDs listening on port and
// inspects each one's command line before touching anything. If any
// listener's command line doesn't look like the voice-agent binary,
// the whole cleanup aborts and only logs the foreign listeners
// (spec.md §4.4 step 2) — killing is reserved for step 3, reached only
// when every listener passed the check.
func cleanVoiceAgentListeners(ctx context.Context, port int) {
	pids := listeningPIDs(ctx, port)
	if len(pids) == 0 {
		return
	}

	log := talonlog.WithComponent("precleanup")

	var foreign []string
	selfPID := os.Getpid()
	for _, pid := range pids {
		if pid == selfPID {
			continue
		}
		cmdline := commandLineForPID(ctx, pid)
		if !looksLikeVoiceAgent(cmdline) {
			foreign = append(foreign, fmt.Sprintf("pid=%d cmd=%q", pid, cmdline))
		}
	}

	if len(foreign) > 0 {
		log.Warn().Strs("foreign_listeners", foreign).Int("port", port).
			Msg("voice_agent pre-restart cleanup aborted: foreign process listening on port")
		return
	}

	for _, pid := range pids {
		if pid == selfPID {
			continue
		}
		if proc, err := os.FindProcess(pid); err == nil {
			proc.Kill()
		}
	}

	time.Sleep(1 * time.Second)

	remaining := listeningPIDs(ctx, port)
	if len(remaining) == 0 {
		log.Info().Int("port", port).Msg("voice_agent pre-restart cleanup cleared all listeners")
	} else {
		log.Warn().Int("port", port).Int("remaining", len(remaining)).
			Msg("voice_agent pre-restart cleanup left listeners behind")
	}
}

// listeningPIDs runs `lsof -ti :<port>` and parses the PID list.
func listeningPIDs(ctx context.Context, port int) []int {
	res := procrun.Run(ctx, "/usr/sbin/lsof", []string{"-ti", fmt.Sprintf(":%d", port)}, nil, 5*time.Second, nil)
	if !res.Success || res.Output == "ok" {
		return nil
	}

	var pids []int
	for _, line := range strings.Split(res.Output, "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}

// commandLineForPID fetches a process's full command line via `ps`,
// returning "" if it can't be read (the process may have already
// exited).
func commandLineForPID(ctx context.Context, pid int) string {
	res := procrun.Run(ctx, "/bin/ps", []string{"-p", strconv.Itoa(pid), "-o", "command="}, nil, 5*time.Second, nil)
	if !res.Success {
		return ""
	}
	return strings.TrimSpace(res.Output)
}

// looksLikeVoiceAgent reports whether cmdline matches one of the
// voice-agent binary's known invocation patterns.
func looksLikeVoiceAgent(cmdline string) bool {
	for _, pattern := range voiceAgentCommandPatterns {
		if strings.Contains(cmdline, pattern) {
			return true
		}
	}
	return false
}
