// Package status publishes Talon's HealthSnapshot and serves it over a
// minimal local HTTP endpoint, the single status surface spec.md §1
// permits (no broader metrics exporter).
package status

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/joelhooks/talon/internal/probe"
)

// Snapshot is the JSON shape served at GET /health, matching spec.md
// §3's HealthSnapshot.
type Snapshot struct {
	OK                  bool     `json:"ok"`
	State               string   `json:"state"`
	ConsecutiveFailures int      `json:"consecutive_failures"`
	ProbeCount          int      `json:"probe_count"`
	FailedProbeCount    int      `json:"failed_probe_count"`
	FailedProbes        []string `json:"failed_probes"`
	WorkerRestarts      int      `json:"worker_restarts"`
	UpdatedAtUnix       int64    `json:"updated_at_unix"`
}

var (
	mu      sync.Mutex
	current = Snapshot{State: "Starting"}
)

// Publish updates the single global snapshot slot. ok is true iff
// state is Healthy and there are no failed probes.
func Publish(state string, consecutiveFailures int, results []probe.Result, workerRestarts int, nowUnix int64) {
	var failedNames []string
	for _, r := range results {
		if !r.Passed {
			failedNames = append(failedNames, r.Name)
		}
	}

	snap := Snapshot{
		OK:                  state == "Healthy" && len(failedNames) == 0,
		State:               state,
		ConsecutiveFailures: consecutiveFailures,
		ProbeCount:          len(results),
		FailedProbeCount:    len(failedNames),
		FailedProbes:        failedNames,
		WorkerRestarts:      workerRestarts,
		UpdatedAtUnix:       nowUnix,
	}

	mu.Lock()
	current = snap
	mu.Unlock()
}

// Current returns the most recently published snapshot.
func Current() Snapshot {
	mu.Lock()
	defer mu.Unlock()
	return current
}

// Handler returns the http.Handler serving GET /health with the
// current snapshot and 200, and a 404 JSON body for anything else,
// matching the documented contract in spec.md §6 exactly (the
// original_source health.rs's extra bare-"/" 200 response has no
// corresponding spec.md requirement and is not carried over).
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			notFound(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(Current())
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		notFound(w)
	})
	return mux
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "not_found"})
}

// Serve starts the status HTTP server on bind. It blocks until the
// server stops (ListenAndServe's standard contract) and should
// typically be run in its own goroutine.
func Serve(bind string) error {
	return http.ListenAndServe(bind, Handler())
}
