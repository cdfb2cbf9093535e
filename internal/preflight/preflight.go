package preflight

import (
	"context"

	"lockersync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks the state and log directories and then the locker endpoint.
// The locker probe is skipped when a directory check already failed, since an
// upload could not record its history anyway.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if len(Failures(results)) > 0 {
		return append(results, Result{Name: "Locker", Detail: "skipped (fix directory access first)"})
	}
	return append(results, CheckLocker(ctx, cfg.Locker.BaseURL, cfg.Locker.OAuthToken))
}

// Failures returns the results that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
