package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"m4bsweep/internal/config"
	"m4bsweep/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Root checks are only run when a root has been configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Available {
			result.Detail = status.Path
		}
		results = append(results, result)
	}

	if binaryAvailable(results, "FFmpeg") {
		status := CheckEncoder(ctx, cfg)
		results = append(results, Result{Name: status.Name, Passed: status.Available, Detail: status.Detail})
	}

	if root := strings.TrimSpace(cfg.Sweep.Root); root != "" {
		access := CheckDirectoryAccess("Library root", root)
		results = append(results, access)
		if access.Passed && !cfg.Sweep.DryRun {
			results = append(results, CheckFreeSpace("Free space", root, cfg.MinFreeBytes()))
		}
	}

	return results
}

// Failed joins every failed result into a configuration error, or returns nil.
func Failed(results []Result) error {
	var failures []string
	for _, r := range results {
		if !r.Passed {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "check", strings.Join(failures, "; "), errors.New("preflight failed"))
}

func binaryAvailable(results []Result, name string) bool {
	for _, r := range results {
		if r.Name == name {
			return r.Passed
		}
	}
	return false
}
