//go:build !darwin

package colima

// ResolveDockerHost always returns FallbackDockerHost on non-darwin
// builds: Colima and lima-vm/lima/pkg/store are macOS-only concerns,
// matching the teacher's own +build darwin convention for Lima code
// (pkg/embedded/lima.go).
func ResolveDockerHost() string {
	return FallbackDockerHost
}
