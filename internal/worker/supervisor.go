package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joelhooks/talon/internal/procrun"
	"github.com/joelhooks/talon/internal/talonconfig"
	"github.com/joelhooks/talon/internal/talonlog"
	"github.com/rs/zerolog"
)

// Supervisor runs the worker process outer loop: reclaim its port,
// assemble its environment, spawn it, monitor it, and restart with
// exponential backoff when it exits or fails its health checks.
type Supervisor struct {
	cfg         talonconfig.WorkerConfig
	restarts    atomic.Uint32
	backoffSecs int
}

// NewSupervisor returns a Supervisor for cfg.
func NewSupervisor(cfg talonconfig.WorkerConfig) *Supervisor {
	return &Supervisor{cfg: cfg, backoffSecs: 1}
}

// Restarts reports how many times the worker process has been spawned
// beyond the first, for the persisted worker_restarts field.
func (s *Supervisor) Restarts() int {
	return int(s.restarts.Load())
}

// Run drives the outer loop until ctx is canceled. It returns the last
// fatal error, if any; a clean shutdown via ctx cancellation returns
// nil.
func (s *Supervisor) Run(ctx context.Context) error {
	log := talonlog.WithComponent("worker")

	for {
		if ctx.Err() != nil {
			return nil
		}

		killProcessesOnPort(ctx, s.cfg.Port)

		env := LoadChildEnv(ctx, s.cfg.EnvFile)

		cmd, err := spawnWorker(s.cfg, env)
		if err != nil {
			log.Error().Err(err).Msg("failed to spawn worker")
			if !sleepWithCancel(ctx, time.Duration(s.backoffSecs)*time.Second) {
				return nil
			}
			s.advanceBackoff()
			continue
		}

		log.Info().Int("pid", cmd.Process.Pid).Msg("worker spawned")

		exitErr := s.monitorChild(ctx, cmd)
		s.restarts.Add(1)
		logExitStatus(log, exitErr)

		if ctx.Err() != nil {
			return nil
		}

		if !sleepWithCancel(ctx, time.Duration(s.backoffSecs)*time.Second) {
			return nil
		}
		s.advanceBackoff()
	}
}

func (s *Supervisor) advanceBackoff() {
	s.backoffSecs *= 2
	if s.backoffSecs > s.cfg.RestartBackoffMaxSecs {
		s.backoffSecs = s.cfg.RestartBackoffMaxSecs
	}
}

func (s *Supervisor) resetBackoff() {
	s.backoffSecs = 1
}

// spawnWorker launches the worker command with stdout/stderr
// redirected to their configured log files, stdin attached to
// /dev/null, and env overlaid onto the process's environment.
func spawnWorker(cfg talonconfig.WorkerConfig, env []string) (*exec.Cmd, error) {
	parts := strings.Fields(cfg.Command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("worker.command is empty")
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	if cfg.Dir != "" {
		cmd.Dir = cfg.Dir
	}
	cmd.Env = env

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return nil, err
	}
	cmd.Stdin = devNull

	if cfg.LogStdout != "" {
		out, err := openAppendLog(cfg.LogStdout)
		if err != nil {
			return nil, err
		}
		cmd.Stdout = out
	}
	if cfg.LogStderr != "" {
		errFile, err := openAppendLog(cfg.LogStderr)
		if err != nil {
			return nil, err
		}
		cmd.Stderr = errFile
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func openAppendLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// monitorChild runs the per-child sub-loop: forwards shutdown signals
// with a drain timeout, fires a one-shot startup sync after
// startup_sync_delay_secs, and polls the health endpoint every
// health_interval_secs, restarting the child once
// health_failures_before_restart consecutive checks fail.
func (s *Supervisor) monitorChild(ctx context.Context, cmd *exec.Cmd) error {
	log := talonlog.WithComponent("worker")

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	startTime := time.Now()
	syncSent := false
	consecutiveFailures := 0

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	healthTimeout := time.Duration(s.cfg.HTTPTimeoutSecs) * time.Second

	for {
		select {
		case err := <-exited:
			return err

		case <-ctx.Done():
			return s.shutdownChild(cmd, exited)

		case <-ticker.C:
			if !syncSent && time.Since(startTime) >= time.Duration(s.cfg.StartupSyncDelaySecs)*time.Second {
				syncSent = true
				if httpRequestOK("PUT", s.cfg.SyncEndpoint, s.cfg.Port, healthTimeout) {
					log.Info().Msg("startup sync succeeded")
				} else {
					log.Warn().Msg("startup sync failed")
				}
			}

			if time.Since(startTime) < time.Duration(s.cfg.HealthIntervalSecs)*time.Second {
				continue
			}

			if httpRequestOK("GET", s.cfg.HealthEndpoint, s.cfg.Port, healthTimeout) {
				consecutiveFailures = 0
				s.resetBackoff()
				startTime = time.Now()
				continue
			}

			consecutiveFailures++
			log.Warn().Int("consecutive_failures", consecutiveFailures).Msg("worker health check failed")
			if consecutiveFailures >= s.cfg.HealthFailuresBeforeRestart {
				log.Warn().Msg("worker health checks exhausted, restarting")
				return s.shutdownChild(cmd, exited)
			}
			startTime = time.Now()
		}
	}
}

// shutdownChild sends SIGTERM, waits up to drain_timeout_secs for a
// clean exit, and escalates to SIGKILL if the child hasn't gone by
// then.
func (s *Supervisor) shutdownChild(cmd *exec.Cmd, exited chan error) error {
	if cmd.Process != nil {
		cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case err := <-exited:
		return err
	case <-time.After(time.Duration(s.cfg.DrainTimeoutSecs) * time.Second):
		if cmd.Process != nil {
			cmd.Process.Signal(syscall.SIGKILL)
		}
		return <-exited
	}
}

func logExitStatus(log zerolog.Logger, err error) {
	if err == nil {
		log.Info().Msg("worker exited cleanly")
		return
	}
	log.Warn().Err(err).Msg("worker exited")
}

// killProcessesOnPort finds processes listening on port via lsof and
// SIGKILLs every one that isn't this process, matching worker.rs's
// kill_processes_on_port.
func killProcessesOnPort(ctx context.Context, port int) {
	res := procrun.Run(ctx, "/usr/sbin/lsof", []string{"-ti", fmt.Sprintf(":%d", port)}, nil, 5*time.Second, nil)
	if !res.Success || res.Output == "ok" {
		return
	}

	selfPID := os.Getpid()
	for _, line := range strings.Split(res.Output, "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || pid == selfPID {
			continue
		}
		proc, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		proc.Signal(syscall.SIGKILL)
	}

	time.Sleep(1 * time.Second)
}

// sleepWithCancel sleeps for d but wakes as soon as ctx is canceled
// instead of blocking the full duration, the role of the original's
// sleep_with_shutdown helper (spec.md §9 design note). Returns false if
// ctx was canceled before d elapsed.
func sleepWithCancel(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
