package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"herdscreen/internal/api"
	"herdscreen/internal/client"
)

const deleteConcurrency = 4

func newFilesCommand(ctx *commandContext) *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Inspect and remove uploaded files",
	}
	filesCmd.AddCommand(newFilesListCommand(ctx))
	filesCmd.AddCommand(newFilesDeleteCommand(ctx))
	return filesCmd
}

func newFilesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(cl *client.Client) error {
				files, err := cl.ListFiles(bindContext(cmd))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, files)
				}
				out := cmd.OutOrStdout()
				if len(files) == 0 {
					fmt.Fprintln(out, "No files uploaded")
					return nil
				}
				fmt.Fprintln(out, renderFilesTable(files, time.Now()))
				return nil
			})
		},
	}
}

func renderFilesTable(files []api.FileInfo, now time.Time) string {
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.FileID, f.Filename, uploadedAgo(f.UploadTime, now), f.DetectedDate, rowCount(f.RowCount)})
	}
	return renderTable([]string{"ID", "File", "Uploaded", "Detected date", "Rows"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight})
}

// uploadedAgo renders a server timestamp relative to now, or verbatim when
// it is not in a known layout.
func uploadedAgo(value string, now time.Time) string {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return humanize.RelTime(ts, now, "ago", "from now")
		}
	}
	return value
}

func rowCount(v *int) string {
	if v == nil {
		return ""
	}
	return humanize.Comma(int64(*v))
}

type deleteOutcome struct {
	ID      string `json:"file_id"`
	Deleted bool   `json:"deleted"`
	Message string `json:"message,omitempty"`
}

func newFilesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete uploaded files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(cl *client.Client) error {
				outcomes := deleteFiles(cmd, cl, args)
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, outcomes); err != nil {
						return err
					}
				} else {
					out := cmd.OutOrStdout()
					colorize := shouldColorize(out)
					for _, o := range outcomes {
						kind := statusOK
						if !o.Deleted {
							kind = statusError
						}
						fmt.Fprintln(out, renderStatusLine(o.ID, kind, o.Message, colorize))
					}
				}
				failed := 0
				for _, o := range outcomes {
					if !o.Deleted {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d deletions failed", failed, len(outcomes))
				}
				return nil
			})
		},
	}
}

// deleteFiles removes ids in parallel and reports every outcome in input
// order. One failure does not cancel the others.
func deleteFiles(cmd *cobra.Command, cl *client.Client, ids []string) []deleteOutcome {
	outcomes := make([]deleteOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(deleteConcurrency)
	ctx := bindContext(cmd)
	for i, id := range ids {
		g.Go(func() error {
			id = strings.TrimSpace(id)
			outcome := deleteOutcome{ID: id}
			resp, err := cl.DeleteFile(ctx, id)
			if err != nil {
				outcome.Message = describeError(err)
			} else {
				outcome.Deleted = true
				outcome.Message = resp.Message
			}
			outcomes[i] = outcome
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
