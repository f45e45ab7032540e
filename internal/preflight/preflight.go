package preflight

import (
	"context"
	"strings"

	"capturesync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckReadableDirectory("Notes directory", cfg.Paths.NotesDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckCredentials(cfg),
	}
	if strings.TrimSpace(cfg.Remote.Backend) != config.BackendGCS {
		results = append(results, CheckToken(cfg.Remote.TokenFile))
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}
	return results
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
