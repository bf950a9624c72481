package watchdog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/joelhooks/talon/internal/probe"
	"github.com/joelhooks/talon/internal/procrun"
	"github.com/joelhooks/talon/internal/talonconfig"
)

// RunSOS pages a human once the cluster has been unhealthy long enough
// to warrant it. Two cooldowns gate the page: the cluster must have
// been continuously Critical for at least critical_threshold_secs
// (anchored at CriticalSince), and the last successful SOS must be at
// least sos_cooldown_secs ago. Delivery tries Telegram first, then
// imsg, then AppleScript Messages automation; any single success marks
// the tier Fixed.
func RunSOS(ctx context.Context, cfg *talonconfig.Config, st *PersistentState, failed []probe.Result, dryRun bool) (TierOutcome, string) {
	if dryRun {
		return Cooldown, "dry-run: SOS skipped"
	}

	if st.CriticalSince != nil {
		sinceCritical := time.Since(*st.CriticalSince)
		threshold := time.Duration(cfg.Escalation.CriticalThresholdSecs) * time.Second
		if sinceCritical < threshold {
			return Cooldown, fmt.Sprintf("critical threshold not yet reached, %s remaining", (threshold - sinceCritical).Round(time.Second))
		}
	}

	if st.LastSOSTime != nil {
		elapsed := time.Since(*st.LastSOSTime)
		cooldown := time.Duration(cfg.Escalation.SOSCooldownSecs) * time.Second
		if elapsed < cooldown {
			return Cooldown, fmt.Sprintf("sos cooldown active, %s remaining", (cooldown - elapsed).Round(time.Second))
		}
	}

	message := fmt.Sprintf("\U0001F6A8 Talon SOS: cluster unhealthy. Failed probes: %s", failedProbeNames(failed))

	var attempts []string
	ok := false

	if sendTelegram(ctx, cfg, message) {
		ok = true
		attempts = append(attempts, "telegram: sent")
	} else {
		attempts = append(attempts, "telegram: failed")
	}

	if !ok {
		res := procrun.Run(ctx, "imsg", []string{"send", "--to", cfg.Escalation.SOSRecipient, "--text", message}, nil, 20*time.Second, nil)
		attempts = append(attempts, "imsg: "+res.Output)
		if res.Success {
			ok = true
		}
	}

	if !ok {
		script := fmt.Sprintf(`tell application "Messages" to send "%s" to buddy "%s"`,
			escapeAppleScript(message), escapeAppleScript(cfg.Escalation.SOSRecipient))
		res := procrun.Run(ctx, "osascript", []string{"-e", script}, nil, 20*time.Second, nil)
		attempts = append(attempts, "osascript: "+res.Output)
		if res.Success {
			ok = true
		}
	}

	joined := strings.Join(attempts, "\n")
	if ok {
		now := time.Now()
		st.LastSOSTime = &now
		return Fixed, joined
	}
	return Failed, joined
}

type telegramResponse struct {
	OK bool `json:"ok"`
}

// sendTelegram leases the bot token secret and posts message to the
// Telegram Bot API sendMessage endpoint, the delivery channel Talon
// adds ahead of the original_source's imsg/AppleScript fallbacks.
func sendTelegram(ctx context.Context, cfg *talonconfig.Config, message string) bool {
	if cfg.Escalation.SOSTelegramChatID == "" {
		return false
	}

	token := leaseSecret(ctx, cfg.Escalation.SOSTelegramSecretName)
	if token == "" {
		return false
	}

	body, err := json.Marshal(map[string]any{
		"chat_id":              cfg.Escalation.SOSTelegramChatID,
		"text":                 message,
		"disable_notification": false,
	})
	if err != nil {
		return false
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", token)
	httpCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(httpCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	var parsed telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false
	}
	return parsed.OK
}

// leaseSecret shells out to `secrets lease <name> --ttl 30m --raw`,
// the same mechanism internal/worker uses for the worker's secret
// environment, returning "" on any failure.
func leaseSecret(ctx context.Context, name string) string {
	if name == "" {
		return ""
	}
	res := procrun.Run(ctx, "secrets", []string{"lease", name, "--ttl", "30m", "--raw"}, nil, 10*time.Second, nil)
	if !res.Success {
		return ""
	}
	token := strings.TrimSpace(res.Output)
	if token == "" || token == "ok" {
		return ""
	}
	return token
}
