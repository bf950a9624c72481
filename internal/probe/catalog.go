package probe

import (
	"fmt"

	"github.com/joelhooks/talon/internal/talonconfig"
)

// BuildStaticCatalog returns the fixed Colima/Kubernetes probe set,
// ordered exactly as original_source/infra/talon/src/probes.rs's
// run_all_probes: colima, docker, talos_container, k8s_api, node_ready,
// node_schedulable, flannel (gated behind probes.enable_flannel_probe,
// Open Question #3), redis. dockerHost is the resolved
// unix:///.../docker.sock URL from internal/colima.
func BuildStaticCatalog(cfg *talonconfig.Config, dockerHost string) []Probe {
	dockerEnv := []string{"DOCKER_HOST=" + dockerHost}

	catalog := []Probe{
		{
			Name:        "colima",
			Kind:        KindStatic,
			Program:     "colima",
			Args:        []string{"status"},
			TimeoutSecs: cfg.Probes.ColimaTimeoutSecs,
			Critical:    true,
		},
		{
			Name:        "docker",
			Kind:        KindStatic,
			Program:     "docker",
			Args:        []string{"ps", "--format", "{{.Names}}"},
			Env:         dockerEnv,
			TimeoutSecs: cfg.Probes.K8sTimeoutSecs,
			Critical:    true,
		},
		{
			Name:    "talos_container",
			Kind:    KindStatic,
			Program: "docker",
			Args: []string{
				"inspect",
				"--format", "{{.State.Status}}",
				"joelclaw-controlplane-1",
			},
			Env:         dockerEnv,
			TimeoutSecs: cfg.Probes.K8sTimeoutSecs,
			Critical:    true,
		},
		{
			Name:        "k8s_api",
			Kind:        KindStatic,
			Program:     "kubectl",
			Args:        []string{"get", "nodes", "--no-headers"},
			TimeoutSecs: cfg.Probes.K8sTimeoutSecs,
			Critical:    true,
		},
		{
			Name:    "node_ready",
			Kind:    KindStatic,
			Program: "kubectl",
			Args: []string{
				"get", "nodes", "-o",
				`jsonpath={.items[0].status.conditions[?(@.type=="Ready")].status}`,
			},
			TimeoutSecs: cfg.Probes.K8sTimeoutSecs,
			Critical:    true,
		},
		{
			Name:        "node_schedulable",
			Kind:        KindStatic,
			Program:     "kubectl",
			Args:        []string{"get", "nodes", "-o", "jsonpath={.items[0].spec}"},
			TimeoutSecs: cfg.Probes.K8sTimeoutSecs,
			Critical:    true,
		},
	}

	if cfg.Probes.EnableFlannelProbe {
		catalog = append(catalog, Probe{
			Name:    "flannel",
			Kind:    KindStatic,
			Program: "kubectl",
			Args: []string{
				"-n", "kube-system", "get", "daemonset", "kube-flannel",
				"-o", "jsonpath={.status.numberAvailable}/{.status.desiredNumberScheduled}",
			},
			TimeoutSecs: cfg.Probes.K8sTimeoutSecs,
			Critical:    false,
		})
	}

	catalog = append(catalog, Probe{
		Name:        "redis",
		Kind:        KindStatic,
		Program:     "kubectl",
		Args:        []string{"exec", "-n", "joelclaw", "redis-0", "--", "redis-cli", "ping"},
		TimeoutSecs: cfg.Probes.ServiceTimeoutSecs,
		Critical:    true,
	})

	return catalog
}

// BuildHTTPProbes turns the dynamically registered HTTP service probes
// into curl-backed Probe entries, matching probes.rs's http:<name>
// probes.
func BuildHTTPProbes(probes []talonconfig.HTTPServiceProbe) []Probe {
	out := make([]Probe, 0, len(probes))
	for _, p := range probes {
		timeout := p.TimeoutSecs
		if timeout == 0 {
			timeout = 5
		}
		out = append(out, Probe{
			Name:        "http:" + p.Name,
			Kind:        KindHTTP,
			Program:     "curl",
			Args:        []string{"-s", "-o", "/dev/null", "-w", "%{http_code}", p.URL},
			TimeoutSecs: timeout,
			Critical:    p.Critical,
		})
	}
	return out
}

// BuildLaunchdProbes turns the dynamically registered launchd service
// probes into launchctl-backed Probe entries, matching probes.rs's
// launchd:<name> probes.
func BuildLaunchdProbes(probes []talonconfig.LaunchdServiceProbe) []Probe {
	out := make([]Probe, 0, len(probes))
	for _, p := range probes {
		timeout := p.TimeoutSecs
		if timeout == 0 {
			timeout = 5
		}
		out = append(out, Probe{
			Name:        "launchd:" + p.Name,
			Kind:        KindLaunchd,
			Program:     "launchctl",
			Args:        []string{"list", p.Label},
			TimeoutSecs: timeout,
			Critical:    p.Critical,
		})
	}
	return out
}

// BuildAll composes the static catalog with the currently registered
// dynamic HTTP and launchd probes into a single execution order.
func BuildAll(cfg *talonconfig.Config, dockerHost string) []Probe {
	catalog := BuildStaticCatalog(cfg, dockerHost)
	catalog = append(catalog, BuildLaunchdProbes(cfg.LaunchdServiceProbes)...)
	catalog = append(catalog, BuildHTTPProbes(cfg.HTTPServiceProbes)...)
	return catalog
}

// Describe returns a human-readable one-liner for logging, e.g. during
// catalog rebuilds after a services.toml reload.
func Describe(p Probe) string {
	return fmt.Sprintf("%s (%s %v, critical=%v)", p.Name, p.Program, p.Args, p.Critical)
}
