package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"herdscreen/internal/client"
	"herdscreen/internal/config"
	"herdscreen/internal/fileutil"
	"herdscreen/internal/workbook"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var output string
	var preview int

	cmd := &cobra.Command{
		Use:   "download URL",
		Short: "Download a filtered result workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				target := strings.TrimSpace(output)
				if target == "" {
					target = defaultDownloadPath(ctx.config.Paths.DownloadDir, args[0])
				} else {
					expanded, err := config.ExpandPath(target)
					if err != nil {
						return err
					}
					target = expanded
				}

				written, err := downloadTo(bindContext(cmd), cl, args[0], target)
				if err != nil {
					return err
				}
				saved := written.Path

				var pv *workbook.Preview
				if preview > 0 {
					p, err := workbook.Open(saved, preview)
					if err != nil {
						return fmt.Errorf("preview %s: %w", saved, err)
					}
					pv = &p
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd, struct {
						fileutil.Written
						Preview *workbook.Preview `json:"preview,omitempty"`
					}{Written: written, Preview: pv})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Saved %s to %s\n", humanize.IBytes(uint64(written.Bytes)), saved)
				fmt.Fprintf(out, "sha256 %s\n", written.SHA256)
				if pv != nil {
					printPreview(cmd, *pv)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default: download directory)")
	cmd.Flags().IntVar(&preview, "preview", 0, "Print the first N rows of each sheet")
	return cmd
}

// downloadTo streams ref into dst. A failed transfer never leaves a partial
// workbook behind.
func downloadTo(ctx context.Context, cl *client.Client, ref, dst string) (fileutil.Written, error) {
	return fileutil.WriteAtomic(dst, func(w io.Writer) (int64, error) {
		return cl.Download(ctx, ref, w)
	})
}

func printPreview(cmd *cobra.Command, pv workbook.Preview) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, sheet := range pv.Sheets {
		fmt.Fprintln(out, renderSectionHeader(sheet.Name, colorize))
		if len(sheet.Headers) == 0 {
			fmt.Fprintln(out, "(empty sheet)")
			continue
		}
		numeric := make(map[string]bool, len(sheet.NumericColumns))
		for _, name := range sheet.NumericColumns {
			numeric[name] = true
		}
		aligns := make([]columnAlignment, len(sheet.Headers))
		for i, h := range sheet.Headers {
			if numeric[h] {
				aligns[i] = alignRight
			}
		}
		fmt.Fprintln(out, renderTable(sheet.Headers, sheet.Rows, aligns))
		fmt.Fprintf(out, "Showing %s of %s rows\n", strconv.Itoa(len(sheet.Rows)), humanize.Comma(int64(sheet.TotalRows)))
	}
}
