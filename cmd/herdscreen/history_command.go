package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"herdscreen/internal/journal"
	"herdscreen/internal/result"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent submissions recorded in the local journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(store *journal.Store) error {
				entries, err := store.List(bindContext(cmd), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No submissions recorded")
					return nil
				}
				fmt.Fprintln(out, renderHistory(entries, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

func renderHistory(entries []*journal.Entry, now time.Time) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		counts := ""
		if e.TotalCount != nil && e.MatchedCount != nil {
			counts = result.Count(*e.MatchedCount) + " / " + result.Count(*e.TotalCount)
		}
		duration := ""
		if d := e.Duration(); d > 0 {
			duration = d.Round(time.Millisecond).String()
		}
		id := e.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows = append(rows, []string{
			id,
			string(e.Kind),
			string(e.Status),
			strconv.Itoa(len(e.Files)),
			counts,
			e.FilterRate,
			humanize.RelTime(e.CreatedAt, now, "ago", "from now"),
			duration,
		})
	}
	return renderTable(
		[]string{"ID", "Kind", "Status", "Files", "Matched", "Rate", "Started", "Took"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight},
	)
}
