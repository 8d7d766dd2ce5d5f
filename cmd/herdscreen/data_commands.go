package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"herdscreen/internal/api"
	"herdscreen/internal/client"
	"herdscreen/internal/filterspec"
)

func newFarmIDsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "farm-ids",
		Short: "List farm ids found in the uploaded data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(cl *client.Client) error {
				ids, err := cl.FarmIDs(bindContext(cmd))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, ids)
				}
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					fmt.Fprintln(out, "No farm ids found")
					return nil
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			})
		},
	}
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show date, protein and parity ranges of the uploaded data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(cl *client.Client) error {
				stats, err := cl.DataStatistics(bindContext(cmd))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues(statisticsPairs(stats)))
				return nil
			})
		},
	}
}

func statisticsPairs(stats api.DataStatistics) [][2]string {
	pairs := [][2]string{}
	if stats.DateRange != nil {
		pairs = append(pairs, [2]string{"Sample dates", stats.DateRange.Lower() + " .. " + stats.DateRange.Upper()})
	}
	if stats.ProteinRange != nil {
		pairs = append(pairs, [2]string{"Protein %", numberRange(stats.ProteinRange)})
	}
	if stats.ParityRange != nil {
		pairs = append(pairs, [2]string{"Parity", numberRange(stats.ParityRange)})
	}
	pairs = append(pairs, [2]string{"Farms", strconv.Itoa(len(stats.FarmIDs))})
	return pairs
}

func numberRange(r *api.NumberRange) string {
	return formatOptionalFloat(r.Min) + " .. " + formatOptionalFloat(r.Max)
}

func newFiltersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List the optional filters the backend declares",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd, func(cl *client.Client) error {
				defs, err := cl.Filters(bindContext(cmd))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, defs)
				}
				out := cmd.OutOrStdout()
				if len(defs) == 0 {
					fmt.Fprintln(out, "No filters declared")
					return nil
				}
				fmt.Fprintln(out, renderFilterDefinitions(defs))
				return nil
			})
		},
	}
}

func renderFilterDefinitions(defs map[string]api.FilterDefinition) string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		def := defs[name]
		field := filterspec.FieldOf(name, def)
		kind := "optional"
		if filterspec.IsMandatory(field) {
			kind = "mandatory"
		}
		rows = append(rows, []string{
			name,
			field,
			def.Label,
			kind,
			yesNo(def.Enabled),
			formatOptionalFloat(def.Min),
			formatOptionalFloat(def.Max),
			strings.Join(def.Allowed, ", "),
		})
	}
	return renderTable([]string{"Name", "Field", "Label", "Kind", "Enabled", "Min", "Max", "Allowed"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft})
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
