// Package probe implements Talon's probe engine: the static Colima/K8s
// catalog plus the dynamically registered HTTP and launchd service
// probes, each executed through internal/procrun and classified by a
// per-name validator.
package probe

import (
	"context"
	"strings"
	"time"

	"github.com/joelhooks/talon/internal/procrun"
)

// Kind distinguishes the three probe shapes spec.md §9 recommends
// modeling as a tagged variant rather than three parallel structs.
type Kind int

const (
	KindStatic Kind = iota
	KindHTTP
	KindLaunchd
)

// Probe is a single check to execute: a subprocess invocation, a
// timeout, and whether a failure is load-bearing for escalation.
type Probe struct {
	Name        string
	Kind        Kind
	Program     string
	Args        []string
	Env         []string
	TimeoutSecs int
	Critical    bool
}

// Result is the outcome of executing a Probe. JSON tags match the
// persisted last_probe_results schema in spec.md §3.
type Result struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	Output     string `json:"output"`
	DurationMs int64  `json:"duration_ms"`
}

// Run executes a single probe through the shared subprocess runner and
// classifies its output with the per-name validator. A critical probe
// that fails has " [critical]" appended to its trimmed output, matching
// original_source/infra/talon/src/probes.rs:171-173.
func Run(ctx context.Context, p Probe) Result {
	res := procrun.Run(ctx, p.Program, p.Args, p.Env, time.Duration(p.TimeoutSecs)*time.Second, nil)
	passed := res.Success && Validate(p.Name, res.Output)

	output := res.Output
	if p.Critical && !passed {
		output = strings.TrimSpace(output) + " [critical]"
	}

	return Result{
		Name:       p.Name,
		Passed:     passed,
		Output:     output,
		DurationMs: res.DurationMs,
	}
}

// RunAll executes every probe in catalog and returns results in the
// same order.
func RunAll(ctx context.Context, catalog []Probe) []Result {
	results := make([]Result, len(catalog))
	for i, p := range catalog {
		results[i] = Run(ctx, p)
	}
	return results
}
