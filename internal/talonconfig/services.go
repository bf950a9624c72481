package talonconfig

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type servicesDocument struct {
	HTTP    map[string]HTTPServiceProbe    `toml:"http"`
	Launchd map[string]LaunchdServiceProbe `toml:"launchd"`
}

// ParseServicesFile decodes services.toml's [http.<name>] and
// [launchd.<name>] sections into sorted-by-name probe slices, seeded
// ahead with the three built-in HTTP probes. A section missing its
// required key (url for http, label for launchd) is a parse error
// naming the offending section, matching original_source's
// parse_services_toml.
func ParseServicesFile(path string) ([]HTTPServiceProbe, []LaunchdServiceProbe, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var doc servicesDocument
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, nil, &ErrInvalidConfig{Reason: fmt.Sprintf("parsing %s: %v", path, err)}
	}

	httpProbes := append([]HTTPServiceProbe{}, BuiltinHTTPServiceProbes()...)
	names := sortedKeys(doc.HTTP)
	for _, name := range names {
		p := doc.HTTP[name]
		if p.URL == "" {
			return nil, nil, &ErrInvalidConfig{Reason: fmt.Sprintf("http.%s is missing required key: url", name)}
		}
		p.Name = name
		if p.TimeoutSecs == 0 {
			p.TimeoutSecs = 5
		}
		httpProbes = append(httpProbes, p)
	}

	var launchdProbes []LaunchdServiceProbe
	for _, name := range sortedKeys(doc.Launchd) {
		p := doc.Launchd[name]
		if p.Label == "" {
			return nil, nil, &ErrInvalidConfig{Reason: fmt.Sprintf("launchd.%s is missing required key: label", name)}
		}
		p.Name = name
		if p.TimeoutSecs == 0 {
			p.TimeoutSecs = 5
		}
		launchdProbes = append(launchdProbes, p)
	}

	return httpProbes, launchdProbes, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ServiceProbeTracker hot-reloads services.toml whenever its mtime
// changes, matching spec.md §4.3.
type ServiceProbeTracker struct {
	ServicesPath string
	lastModified time.Time
}

// NewServiceProbeTracker returns a tracker bound to servicesPath with no
// prior modification time recorded, so the first Reload call always
// loads.
func NewServiceProbeTracker(servicesPath string) *ServiceProbeTracker {
	return &ServiceProbeTracker{ServicesPath: servicesPath}
}

// Reload checks the tracked file's mtime and, if it has changed since
// the last successful load, re-parses it and returns the new probe
// sets with changed=true. On parse failure the tracker's previously
// loaded set is left untouched by the caller (Reload just surfaces the
// error; it does not mutate lastModified so the next tick retries).
func (t *ServiceProbeTracker) Reload() (httpProbes []HTTPServiceProbe, launchdProbes []LaunchdServiceProbe, changed bool, err error) {
	if err := EnsureDefaultServicesFile(t.ServicesPath); err != nil {
		return nil, nil, false, err
	}

	info, err := os.Stat(t.ServicesPath)
	if err != nil {
		return nil, nil, false, err
	}

	if !info.ModTime().After(t.lastModified) {
		return nil, nil, false, nil
	}

	httpProbes, launchdProbes, err = ParseServicesFile(t.ServicesPath)
	if err != nil {
		return nil, nil, false, err
	}

	t.lastModified = info.ModTime()
	return httpProbes, launchdProbes, true, nil
}
