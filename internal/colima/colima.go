// Package colima resolves the docker socket path for a running Colima
// Lima instance, replacing original_source's hardcoded
// unix:///Users/joel/.colima/default/docker.sock with a lookup that
// works on any machine.
package colima

// InstanceName is the Lima instance Colima registers by default.
const InstanceName = "colima"

// FallbackDockerHost is used when the Lima store can't resolve the
// instance (non-darwin build, or Colima never started), preserving the
// original_source behavior of always producing *some* DOCKER_HOST.
const FallbackDockerHost = "unix:///Users/joel/.colima/default/docker.sock"
