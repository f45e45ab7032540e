package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"capturesync/internal/api"
	"capturesync/internal/content"
	"capturesync/internal/ipc"
	"capturesync/internal/queueaccess"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:     "records",
		Aliases: []string{"record"},
		Short:   "Register and inspect capture records",
	}
	recordsCmd.AddCommand(newRecordsAddCommand(ctx))
	recordsCmd.AddCommand(newRecordsShowCommand(ctx))
	recordsCmd.AddCommand(newRecordsCheckCommand(ctx))
	return recordsCmd
}

func newRecordsAddCommand(ctx *commandContext) *cobra.Command {
	var (
		req      ipc.AddRecordRequest
		noteFile string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a capture record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(req.Title) == "" {
				return fmt.Errorf("--title is required")
			}
			if req.DateBucket == "" {
				req.DateBucket = time.Now().Format(time.DateOnly)
			}
			if _, err := time.Parse(time.DateOnly, req.DateBucket); err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}
			if noteFile != "" {
				text, err := readNoteFile(cmd, noteFile)
				if err != nil {
					return err
				}
				req.NoteText = text
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				rec, err := q.AddRecord(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Record %d registered (%s/%s, %s)\n", rec.ID, rec.DateBucket, rec.Slug, rec.UploadStatus)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&req.Title, "title", "t", "", "Meeting title")
	cmd.Flags().StringVar(&req.DateBucket, "date", "", "Date bucket (YYYY-MM-DD, defaults to today)")
	cmd.Flags().StringVar(&req.FolderName, "folder", "", "Folder name under the date bucket (defaults to the slugified title)")
	cmd.Flags().StringVar(&req.SessionID, "session", "", "Recording session id")
	cmd.Flags().StringVar(&req.NoteText, "note", "", "Inline note text")
	cmd.Flags().StringVar(&noteFile, "note-file", "", "Read inline note text from a file (- for stdin)")
	cmd.Flags().StringArrayVarP(&req.Recordings, "recording", "r", nil, "Recording file path (repeatable)")
	cmd.Flags().BoolVar(&req.Enqueue, "enqueue", true, "Queue the record for upload")
	return cmd
}

func readNoteFile(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read note file: %w", err)
	}
	return string(data), nil
}

func newRecordsShowCommand(ctx *commandContext) *cobra.Command {
	var inspect bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <record-id>",
		Short: "Show a record, its queue state, and optionally its local content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseRecordIDs(args)
			if err != nil {
				return err
			}
			return ctx.withQueue(func(q queueaccess.Access) error {
				detail, report, err := q.Record(cmd.Context(), ids[0], inspect)
				if err != nil {
					return err
				}
				if detail == nil {
					return fmt.Errorf("record %d not found", ids[0])
				}
				if asJSON {
					return writeJSON(cmd, ipc.RecordResponse{Detail: *detail, Report: report})
				}
				out := cmd.OutOrStdout()
				renderRecordDetail(out, *detail, shouldColorize(out))
				if report != nil {
					renderContentReport(out, *report)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&inspect, "inspect", "i", false, "Validate local notes and recordings")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON instead of text")
	return cmd
}

func renderRecordDetail(out io.Writer, detail api.RecordDetail, colorize bool) {
	rec := detail.Record
	for _, line := range renderSectionHeader(fmt.Sprintf("Record %d", rec.ID), colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Upload", uploadStatusKind(rec.UploadStatus), rec.UploadStatus, colorize))
	fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Title:", rec.Title)
	fmt.Fprintf(out, "%s%-*s %s/%s\n", statusIndent, statusLabelWidth, "Folder:", rec.DateBucket, rec.Slug)
	if rec.SessionID != "" {
		fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Session:", rec.SessionID)
	}
	fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Inline note:", yesNo(rec.HasNoteText))
	if rec.RemoteFolderID != "" {
		fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Remote folder:", rec.RemoteFolderID)
	}
	if rec.UploadedAt != "" {
		fmt.Fprintf(out, "%s%-*s %s (%s)\n", statusIndent, statusLabelWidth, "Uploaded:", rec.UploadedAt, relativeTime(rec.UploadedAt))
	}
	if item := detail.Item; item != nil {
		msg := fmt.Sprintf("item %d, %d %s", item.ID, item.Attempts, plural(int64(item.Attempts), "attempt", "attempts"))
		fmt.Fprintf(out, "%s%-*s %s (%s)\n", statusIndent, statusLabelWidth, "Queue:", item.Status, msg)
		if item.LastError != "" {
			fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Last error:", item.LastError)
		}
	} else {
		fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, "Queue:", "not queued")
	}
	if len(detail.Recordings) > 0 {
		rows := make([][]string, 0, len(detail.Recordings))
		for _, r := range detail.Recordings {
			rows = append(rows, []string{r.Path, r.SessionID, formatDuration(r.DurationSeconds)})
		}
		fmt.Fprint(out, renderTable([]string{"Recording", "Session", "Duration"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
	}
}

func renderContentReport(out io.Writer, report content.Report) {
	files := report.Files()
	fmt.Fprintf(out, "\nLocal content: %d %s, %s\n", len(files), plural(int64(len(files)), "file", "files"), humanize.Bytes(uint64(report.TotalBytes())))
	if len(files) > 0 {
		rows := make([][]string, 0, len(files))
		for _, f := range files {
			source := f.Path
			if f.IsInline() {
				source = "(database)"
			}
			rows = append(rows, []string{string(f.Kind), f.Name, humanize.Bytes(uint64(f.Size)), formatDuration(f.Duration), source})
		}
		fmt.Fprint(out, renderTable(
			[]string{"Kind", "Name", "Size", "Duration", "Source"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		))
	}
	for _, issue := range report.Issues {
		fmt.Fprintf(out, "  ! %s\n", issue)
	}
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	return (time.Duration(seconds * float64(time.Second))).Round(time.Second).String()
}

func newRecordsCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run the integrity pass and repair contradictory record states",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CheckIntegrity()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Anomalies) == 0 {
					fmt.Fprintln(out, "No integrity anomalies found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Anomalies))
				for _, a := range resp.Anomalies {
					rows = append(rows, []string{strconv.FormatInt(a.RecordID, 10), string(a.Kind), a.Detail})
				}
				fmt.Fprint(out, renderTable([]string{"Record", "Anomaly", "Detail"}, rows, []columnAlignment{alignRight}))
				fmt.Fprintf(out, "Repaired %d %s\n", len(rows), plural(int64(len(rows)), "record", "records"))
				return nil
			})
		},
	}
}
