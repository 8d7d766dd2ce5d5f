package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"herdscreen/internal/api"
	"herdscreen/internal/client"
	"herdscreen/internal/config"
	"herdscreen/internal/journal"
	"herdscreen/internal/services"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload herd workbooks (.xlsx or .zip)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				path, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				paths = append(paths, path)
			}
			return ctx.withBackend(cmd, func(cl *client.Client) error {
				return ctx.withJournal(func(store *journal.Store) error {
					if len(paths) == 1 {
						return uploadOne(cmd, ctx, cl, store, paths[0])
					}
					return uploadMany(cmd, ctx, cl, store, paths)
				})
			})
		},
	}
}

func uploadOne(cmd *cobra.Command, ctx *commandContext, cl *client.Client, store *journal.Store, path string) error {
	coord := ctx.newCoordinator(cmd, cl, store)
	resp, err := coord.Upload(bindContext(cmd), path)
	if err != nil {
		return err
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderStatusLine("Upload", statusOK, resp.Message, shouldColorize(out)))
	pairs := [][2]string{{"File ID", resp.FileID}}
	if resp.DetectedDate != "" {
		pairs = append(pairs, [2]string{"Detected date", resp.DetectedDate})
	}
	if resp.RowCount != nil {
		pairs = append(pairs, [2]string{"Rows", strconv.Itoa(*resp.RowCount)})
	}
	fmt.Fprintln(out, renderKeyValues(pairs))
	return nil
}

func uploadMany(cmd *cobra.Command, ctx *commandContext, cl *client.Client, store *journal.Store, paths []string) error {
	defer ctx.attachLifecycle(cl)()
	coord := ctx.newCoordinator(cmd, cl, store)
	resp, err := coord.UploadBatch(bindContext(cmd), paths)

	var partial *services.PartialBatchFailure
	if err != nil && !errors.As(err, &partial) {
		return err
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, resp)
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	kind, summary := statusOK, fmt.Sprintf("%d file(s) uploaded", len(resp.SuccessFiles))
	if partial != nil {
		kind, summary = statusWarn, partial.Error()
	}
	fmt.Fprintln(out, renderStatusLine("Batch upload", kind, summary, colorize))
	fmt.Fprintln(out, renderUploadTable(resp))
	return nil
}

func renderUploadTable(resp api.BatchUploadResponse) string {
	rows := make([][]string, 0, len(resp.SuccessFiles)+len(resp.FailedFiles))
	for _, f := range resp.SuccessFiles {
		dates := ""
		if f.DateRange != nil {
			dates = f.DateRange.Lower() + " .. " + f.DateRange.Upper()
		}
		rows = append(rows, []string{f.Filename, "uploaded", strconv.Itoa(f.RowCount), dates})
	}
	for _, f := range resp.FailedFiles {
		rows = append(rows, []string{f.Filename, "failed", "", f.Error})
	}
	return renderTable([]string{"File", "Result", "Rows", "Detail"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft})
}
