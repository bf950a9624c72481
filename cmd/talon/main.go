// Command talon is the entrypoint for Talon, a host-resident watchdog
// that keeps a local Kubernetes-via-Colima stack and its companion
// worker process healthy.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joelhooks/talon/internal/colima"
	"github.com/joelhooks/talon/internal/probe"
	"github.com/joelhooks/talon/internal/status"
	"github.com/joelhooks/talon/internal/talonconfig"
	"github.com/joelhooks/talon/internal/talonlog"
	"github.com/joelhooks/talon/internal/watchdog"
	"github.com/joelhooks/talon/internal/worker"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "talon: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "talon",
	Short:   "Talon keeps a local Kubernetes-via-Colima stack and its worker alive",
	Version: Version,
	RunE:    runRoot,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("talon version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("config", talonconfig.DefaultConfigPath(), "path to config.toml")
	rootCmd.PersistentFlags().Bool("check", false, "run one probe cycle and exit")
	rootCmd.PersistentFlags().Bool("status", false, "print the running daemon's health snapshot and exit")
	rootCmd.PersistentFlags().Bool("worker-only", false, "supervise the worker process only, skip cluster probes")
	rootCmd.PersistentFlags().Bool("dry-run", false, "run the escalation ladder without taking any real action")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(validateCmd)
}

func initLogging() {
	if err := talonlog.Init(talonlog.Config{Level: talonlog.InfoLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "talon: failed to initialize logging: %v\n", err)
	}
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "validate config.toml and services.toml without starting the watchdog",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := rootCmd.PersistentFlags().GetString("config")
		summary, err := talonconfig.ValidateConfigFiles(configPath)
		if err != nil {
			return err
		}
		raw, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	},
}

func runRoot(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	checkOnly, _ := cmd.Flags().GetBool("check")
	statusOnly, _ := cmd.Flags().GetBool("status")
	workerOnly, _ := cmd.Flags().GetBool("worker-only")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := talonconfig.Load(configPath)
	if err != nil {
		return err
	}

	if statusOnly {
		return printRemoteStatus(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloadCh := make(chan os.Signal, 1)
	signal.Notify(reloadCh, syscall.SIGHUP)
	go func() {
		for range reloadCh {
			talonlog.Info("SIGHUP received, reload requested")
		}
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-shutdownCh
		talonlog.Info("shutdown signal received")
		cancel()
	}()

	st, err := watchdog.LoadState()
	if err != nil {
		return err
	}

	if cfg.Health.Enabled && !checkOnly {
		go func() {
			if err := status.Serve(cfg.Health.Bind); err != nil && err != http.ErrServerClosed {
				talonlog.Errorf("status server stopped", err)
			}
		}()
	}

	var workerErrCh chan error
	var sup *worker.Supervisor
	if !checkOnly {
		sup = worker.NewSupervisor(cfg.Worker)
		workerErrCh = make(chan error, 1)
		go func() {
			workerErrCh <- sup.Run(ctx)
		}()
	}

	if workerOnly {
		return <-workerErrCh
	}

	tracker := talonconfig.NewServiceProbeTracker(cfg.ServicesFile)

	if checkOnly {
		runTick(ctx, cfg, st, dryRun)
		return watchdog.SaveState(st)
	}

	ticker := time.NewTicker(time.Duration(cfg.CheckIntervalSecs) * time.Second)
	defer ticker.Stop()

	for {
		if httpProbes, launchdProbes, changed, err := tracker.Reload(); err != nil {
			talonlog.Errorf("failed to reload services.toml", err)
		} else if changed {
			cfg.HTTPServiceProbes = httpProbes
			cfg.LaunchdServiceProbes = launchdProbes
			talonlog.Info("services.toml reloaded")
		}

		runTick(ctx, cfg, st, dryRun)
		if sup != nil {
			st.WorkerRestarts = sup.Restarts()
		}
		if err := watchdog.SaveState(st); err != nil {
			talonlog.Errorf("failed to persist state", err)
		}

		status.Publish(st.CurrentState, st.ConsecutiveFailures, st.LastProbeResults, st.WorkerRestarts, time.Now().Unix())

		select {
		case <-ctx.Done():
			if workerErrCh != nil {
				return <-workerErrCh
			}
			return nil
		case <-ticker.C:
		}
	}
}

func runTick(ctx context.Context, cfg *talonconfig.Config, st *watchdog.PersistentState, dryRun bool) watchdog.TickResult {
	dockerHost := colima.ResolveDockerHost()
	catalog := probe.BuildAll(cfg, dockerHost)
	return watchdog.Tick(ctx, cfg, st, catalog, dryRun)
}

func printRemoteStatus(cfg *talonconfig.Config) error {
	url := fmt.Sprintf("http://%s/health", cfg.Health.Bind)
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("could not reach status endpoint at %s: %w", url, err)
	}
	defer resp.Body.Close()

	var snap status.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
