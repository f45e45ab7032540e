package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"capturesync/internal/api"
	"capturesync/internal/ipc"
	"capturesync/internal/queue"
	"capturesync/internal/queueaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the upload queue",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueDrainCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range statuses {
				if _, ok := queue.ParseStatus(s); !ok {
					return fmt.Errorf("unknown queue status %q", s)
				}
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				items, err := q.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				items = api.SortQueueItemsNewestFirst(items)
				if asJSON {
					return writeJSON(cmd, api.QueueListResponse{Items: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Item", "Record", "Title", "Status", "Upload", "Attempts", "Updated", "Last Error"},
					buildQueueListRows(items),
					[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by queue status (pending, processing, completed, failed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON instead of a table")
	return cmd
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			strconv.FormatInt(item.RecordID, 10),
			truncate(item.RecordTitle, 40),
			item.Status,
			item.UploadStatus,
			strconv.Itoa(item.Attempts),
			relativeTime(item.UpdatedAt),
			truncate(item.LastError, 48),
		})
	}
	return rows
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show item counts per queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(q queueaccess.Access) error {
				counts, err := q.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.QueueStatsResponse{Counts: counts})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Status", "Count"},
					buildQueueStatsRows(counts),
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON instead of a table")
	return cmd
}

// buildQueueStatsRows lists statuses in lifecycle order, followed by any
// unknown keys alphabetically.
func buildQueueStatsRows(counts map[string]int) [][]string {
	rows := make([][]string, 0, len(counts))
	seen := make(map[string]struct{}, len(counts))
	for _, status := range queue.AllStatuses() {
		key := string(status)
		seen[key] = struct{}{}
		rows = append(rows, []string{key, strconv.Itoa(counts[key])})
	}
	var extra []string
	for key := range counts {
		if _, ok := seen[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		rows = append(rows, []string{key, strconv.Itoa(counts[key])})
	}
	return rows
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [record-id...]",
		Short: "Move failed uploads back to pending (all failed when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseRecordIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				result, err := q.Retry(cmd.Context(), ids)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, item := range result.Items {
					switch item.Outcome {
					case api.RetryUpdated:
						fmt.Fprintf(out, "Record %d requeued\n", item.RecordID)
					case api.RetryNotFound:
						fmt.Fprintf(out, "Record %d not found\n", item.RecordID)
					case api.RetryNotFailed:
						fmt.Fprintf(out, "Record %d is not in a failed state\n", item.RecordID)
					}
				}
				if len(ids) == 0 {
					fmt.Fprintf(out, "Requeued %s failed %s\n", humanize.Comma(result.UpdatedCount), plural(result.UpdatedCount, "upload", "uploads"))
				}
				if !q.Online() && result.UpdatedCount > 0 {
					fmt.Fprintln(out, "Daemon is not running; items will upload on its next start")
				}
				return nil
			})
		},
	}
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <record-id>...",
		Short: "Schedule records for upload",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseRecordIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				results, err := q.Enqueue(cmd.Context(), ids)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, res := range results {
					if res.Error != "" {
						fmt.Fprintf(out, "Record %d: %s\n", res.RecordID, res.Error)
						continue
					}
					fmt.Fprintf(out, "Record %d: %s\n", res.RecordID, describeEnqueueOutcome(res.Outcome))
				}
				return nil
			})
		},
	}
}

func describeEnqueueOutcome(outcome queue.EnqueueOutcome) string {
	switch outcome {
	case queue.EnqueueInserted:
		return "queued"
	case queue.EnqueueRevived:
		return "requeued"
	case queue.EnqueueAlreadyQueued:
		return "already queued"
	case queue.EnqueueSkipped:
		return "already uploaded, skipped"
	default:
		return string(outcome)
	}
}

func newQueueDrainCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Ask the daemon to process pending uploads now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Drain(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Drain requested")
				return nil
			})
		},
	}
}
