//go:build darwin

package colima

import (
	"os"
	"path/filepath"

	"github.com/lima-vm/lima/pkg/store"
)

// ResolveDockerHost inspects the running "colima" Lima instance and
// returns its docker socket as a DOCKER_HOST-compatible unix:// URL,
// matching pkg/embedded/lima.go's GetSocketPath fallback chain: Lima
// instance directory -> $LIMA_HOME -> ~/.lima. When the instance can't
// be inspected at all (Colima not initialized), FallbackDockerHost is
// returned rather than an error, since probing a dead Colima is itself
// a legitimate failed-probe outcome, not a Talon configuration error.
func ResolveDockerHost() string {
	inst, err := store.Inspect(InstanceName)
	if err != nil {
		return FallbackDockerHost
	}

	limaHome := os.Getenv("LIMA_HOME")
	if limaHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return FallbackDockerHost
		}
		limaHome = filepath.Join(home, ".lima")
	}

	dir := inst.Dir
	if dir == "" {
		dir = filepath.Join(limaHome, InstanceName)
	}

	socketPath := filepath.Join(dir, "sock", "docker.sock")
	if _, err := os.Stat(socketPath); err != nil {
		return FallbackDockerHost
	}

	return "unix://" + socketPath
}
