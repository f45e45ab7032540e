package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"capturesync/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		filter logs.Filter
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon's current run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, "capturesync.log")
			out := cmd.OutOrStdout()
			emit := func(line string) error {
				if !filter.Match(line) {
					return nil
				}
				_, err := fmt.Fprintln(out, line)
				return err
			}

			// Filters apply after the tail is read.
			limit := lines
			if filter != (logs.Filter{}) && limit > 0 {
				limit *= 20
			}
			tail, offset, err := logs.Last(path, limit)
			if err != nil {
				return err
			}
			shown := tail[:0]
			for _, line := range tail {
				if filter.Match(line) {
					shown = append(shown, line)
				}
			}
			if len(shown) > lines {
				shown = shown[len(shown)-lines:]
			}
			for _, line := range shown {
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, emit)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	cmd.Flags().Int64Var(&filter.RecordID, "record", 0, "Only lines for this record id")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}
