package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"capturesync/internal/api"
	"capturesync/internal/config"
	"capturesync/internal/ipc"
	"capturesync/internal/preflight"
	"capturesync/internal/queue"
)

// statusSnapshot is what `capturesync status` renders, whether or not the
// daemon is reachable.
type statusSnapshot struct {
	Running      bool                   `json:"running"`
	Daemon       *api.DaemonStatus      `json:"daemon,omitempty"`
	Preflight    []api.CheckStatus      `json:"preflight"`
	Dependencies []api.DependencyStatus `json:"dependencies"`
	QueueStats   map[string]int         `json:"queueStats"`
	UploadStats  map[string]int         `json:"uploadStats,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, preflight, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := buildStatusSnapshot(cmd.Context(), ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snapshot)
			}
			renderStatus(cmd.OutOrStdout(), snapshot, ctx.configValue(), shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON instead of text")
	return cmd
}

func buildStatusSnapshot(cmdCtx context.Context, ctx *commandContext) (statusSnapshot, error) {
	if client, err := ipc.Dial(ctx.socketPath()); err == nil {
		defer client.Close()
		resp, err := client.Status()
		if err != nil {
			return statusSnapshot{}, err
		}
		st := resp.Status
		return statusSnapshot{
			Running:      st.Running,
			Daemon:       &st,
			Preflight:    st.Preflight,
			Dependencies: st.Dependencies,
			QueueStats:   st.Workflow.QueueStats,
			UploadStats:  st.Workflow.UploadStats,
		}, nil
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return statusSnapshot{}, err
	}
	checkCtx, cancel := context.WithTimeout(cmdCtx, 10*time.Second)
	defer cancel()

	snapshot := statusSnapshot{}
	for _, r := range preflight.RunAll(checkCtx, cfg) {
		snapshot.Preflight = append(snapshot.Preflight, api.CheckStatus{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		snapshot.Dependencies = append(snapshot.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return snapshot, fmt.Errorf("open queue database: %w", err)
	}
	defer store.Close()
	stats, err := store.Stats(cmdCtx)
	if err != nil {
		return snapshot, err
	}
	snapshot.QueueStats = api.MergeQueueStats(stats)
	uploads, err := store.UploadStatusCounts(cmdCtx)
	if err != nil {
		return snapshot, err
	}
	snapshot.UploadStats = api.MergeUploadStats(uploads)
	return snapshot, nil
}

func renderStatus(out io.Writer, s statusSnapshot, cfg *config.Config, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if s.Daemon == nil {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	} else {
		d := s.Daemon
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running (pid "+strconv.Itoa(d.PID)+")", colorize))
		fmt.Fprintln(out, renderStatusLine("Backend", statusInfo, d.Backend, colorize))
		fmt.Fprintln(out, renderStatusLine("Watcher", statusInfo, enabledLabel(d.WatchEnabled), colorize))
		wf := d.Workflow
		workerKind, workerMsg := statusOK, "idle"
		if wf.Draining {
			workerMsg = "draining"
		}
		if wf.LastDrain.AuthHalted {
			workerKind, workerMsg = statusError, "halted: re-link with `capturesync auth login`"
		}
		fmt.Fprintln(out, renderStatusLine("Worker", workerKind, workerMsg, colorize))
		if wf.LastError != "" {
			fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, truncate(wf.LastError, 80), colorize))
		}
		if last := wf.LastDrain; last.FinishedAt != "" {
			msg := fmt.Sprintf("%s: %d completed, %d no content, %d retried, %d deferred, %d failed",
				relativeTime(last.FinishedAt), last.Completed, last.NoContent, last.Retried, last.Deferred, last.Failed)
			fmt.Fprintln(out, renderStatusLine("Last drain", statusInfo, msg, colorize))
		}
		if wf.DroppedEvents > 0 {
			fmt.Fprintln(out, renderStatusLine("Dropped events", statusWarn, strconv.FormatInt(wf.DroppedEvents, 10), colorize))
		}
	}
	if cfg != nil {
		fmt.Fprintln(out, renderStatusLine("Root folder", statusInfo, cfg.Remote.RootFolder, colorize))
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Preflight", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, check := range s.Preflight {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	fmt.Fprintln(out)

	if len(s.Dependencies) > 0 {
		for _, line := range renderSectionHeader("Dependencies", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, dep := range s.Dependencies {
			kind, msg := statusOK, "available"
			if !dep.Available {
				kind, msg = statusError, dep.Detail
				if dep.Optional {
					kind = statusWarn
				}
			}
			fmt.Fprintln(out, renderStatusLine(dep.Name, kind, msg, colorize))
		}
		fmt.Fprintln(out)
	}

	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, buildQueueStatsRows(s.QueueStats), []columnAlignment{alignLeft, alignRight}))
	if len(s.UploadStats) > 0 {
		rows := make([][]string, 0, len(s.UploadStats))
		for _, status := range uploadStatusOrder {
			rows = append(rows, []string{status, strconv.Itoa(s.UploadStats[status])})
		}
		fmt.Fprint(out, renderTable([]string{"Record status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
}

var uploadStatusOrder = []string{
	string(queue.UploadPending),
	string(queue.UploadUploading),
	string(queue.UploadCompleted),
	string(queue.UploadPartial),
	string(queue.UploadNoContent),
	string(queue.UploadFailed),
}

func enabledLabel(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}
