package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"capturesync/internal/ipc"
	"capturesync/internal/notifications"
)

const eventsPollInterval = time.Second

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var (
		since  int64
		limit  int
		follow bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent record status events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				cursor := since
				first := true
				for {
					n := limit
					if !first {
						n = 0
					}
					resp, err := client.Events(cursor, n)
					if err != nil {
						return err
					}
					for _, ev := range resp.Events {
						if err := printEvent(cmd, out, ev, asJSON); err != nil {
							return err
						}
						if ev.Seq > cursor {
							cursor = ev.Seq
						}
					}
					if !follow {
						if len(resp.Events) == 0 && !asJSON {
							fmt.Fprintln(out, "No events recorded")
						}
						return nil
					}
					first = false
					select {
					case <-cmd.Context().Done():
						return nil
					case <-time.After(eventsPollInterval):
					}
				}
			})
		},
	}

	cmd.Flags().Int64Var(&since, "since", 0, "Only show events after this sequence number")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of events to show initially (0 for all)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep polling for new events")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write one JSON object per event")
	return cmd
}

func printEvent(cmd *cobra.Command, out io.Writer, ev notifications.StatusEvent, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, ev)
	}
	line := fmt.Sprintf("%6d %s %-23s record %d", ev.Seq, ev.Timestamp.Local().Format(time.DateTime), ev.Type, ev.RecordID)
	if ev.Status != "" {
		line += " -> " + string(ev.Status)
	}
	if ev.Title != "" {
		line += fmt.Sprintf(" %q", ev.Title)
	}
	if ev.Error != "" {
		line += " error=" + ev.Error
	}
	_, err := fmt.Fprintln(out, line)
	return err
}
