package main

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"herdscreen/internal/api"
	"herdscreen/internal/batch"
	"herdscreen/internal/client"
	"herdscreen/internal/fileutil"
	"herdscreen/internal/filterspec"
	"herdscreen/internal/journal"
	"herdscreen/internal/logging"
	"herdscreen/internal/result"
)

type filterFlags struct {
	files          []string
	startDate      string
	endDate        string
	farms          []string
	parityMin      string
	parityMax      string
	proteinMin     string
	proteinMax     string
	includeNull    bool
	enable         []string
	disable        []string
	displayFields  []string
	minMatchMonths int
	legacy         bool
	download       bool
	noDefaults     bool
}

func newFilterCommand(ctx *commandContext) *cobra.Command {
	var flags filterFlags

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Run a filter job over uploaded files",
		Long: `Run a filter job over uploaded files.

The form starts from the ranges reported by the backend (all farms, the full
date, protein and parity ranges) and the filters it declares as enabled.
Flags override individual inputs. Optional filters are toggled with
--enable field=min:max (either bound may be empty) and --disable field.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(flags.files) == 0 {
				return fmt.Errorf("at least one --file is required")
			}
			if flags.legacy && len(flags.files) != 1 {
				return fmt.Errorf("--legacy takes exactly one --file")
			}
			return ctx.withBackend(cmd, func(cl *client.Client) error {
				return ctx.withJournal(func(store *journal.Store) error {
					return runFilter(cmd, ctx, cl, store, flags)
				})
			})
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&flags.files, "file", "f", nil, "Uploaded file id to include (repeatable)")
	f.StringVar(&flags.startDate, "start", "", "First sample date (YYYY-MM-DD)")
	f.StringVar(&flags.endDate, "end", "", "Last sample date (YYYY-MM-DD)")
	f.StringSliceVar(&flags.farms, "farm", nil, "Farm id to include (repeatable; default all)")
	f.StringVar(&flags.parityMin, "parity-min", "", "Minimum parity")
	f.StringVar(&flags.parityMax, "parity-max", "", "Maximum parity")
	f.StringVar(&flags.proteinMin, "protein-min", "", "Minimum protein percentage")
	f.StringVar(&flags.proteinMax, "protein-max", "", "Maximum protein percentage")
	f.BoolVar(&flags.includeNull, "include-null", false, "Treat missing protein values as matches")
	f.StringArrayVar(&flags.enable, "enable", nil, "Enable an optional filter as field=min:max (repeatable)")
	f.StringSliceVar(&flags.disable, "disable", nil, "Disable an optional filter (repeatable)")
	f.StringSliceVar(&flags.displayFields, "display-field", nil, "Column to include in the result (default from config)")
	f.IntVar(&flags.minMatchMonths, "min-match-months", 0, "Months a cow must match (default from config)")
	f.BoolVar(&flags.legacy, "legacy", false, "Use the single-file filter endpoint")
	f.BoolVar(&flags.download, "download", false, "Download the result workbook when one is produced")
	f.BoolVar(&flags.noDefaults, "no-defaults", false, "Do not seed the form from backend statistics and filter declarations")
	return cmd
}

func runFilter(cmd *cobra.Command, ctx *commandContext, cl *client.Client, store *journal.Store, flags filterFlags) error {
	cfg := ctx.config
	logger := logging.NewComponentLogger(ctx.log(), "cli")
	runCtx := bindContext(cmd)

	form, defs, err := filterForm(runCtx, cmd, cl, flags, logger.Warn)
	if err != nil {
		return err
	}
	spec := filterspec.Build(form, defs)

	defer ctx.attachLifecycle(cl)()

	coord := ctx.newCoordinator(cmd, cl, store)
	var res api.JobResult
	if flags.legacy {
		res, err = coord.SubmitSingle(runCtx, flags.files[0], spec)
	} else {
		displayFields := flags.displayFields
		if len(displayFields) == 0 {
			displayFields = cfg.Filter.DisplayFields
		}
		months := flags.minMatchMonths
		if months <= 0 {
			months = cfg.Filter.MinMatchMonths
		}
		res, err = coord.SubmitBatch(runCtx, batch.Submission{
			Files:          flags.files,
			Spec:           spec,
			DisplayFields:  displayFields,
			MinMatchMonths: months,
		})
	}
	if err != nil {
		return err
	}

	fragment := result.Render(res)
	var saved string
	if flags.download && fragment.DownloadEnabled() {
		written, err := downloadTo(runCtx, cl, fragment.Download, defaultDownloadPath(cfg.Paths.DownloadDir, fragment.Download))
		if err != nil {
			return err
		}
		saved = written.Path
	}

	if ctx.jsonOutput() {
		return writeJSON(cmd, struct {
			result.Fragment
			Filters filterspec.Spec `json:"filters"`
			Saved   string          `json:"saved_to,omitempty"`
		}{Fragment: fragment, Filters: spec, Saved: saved})
	}
	printFragment(cmd, fragment)
	if saved != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s\n", saved)
	}
	return nil
}

// filterForm seeds the form from the backend unless disabled and applies
// the flag overrides. Seeding failures are reported through warn and do not
// stop the job.
func filterForm(ctx context.Context, cmd *cobra.Command, cl *client.Client, flags filterFlags, warn func(string, ...any)) (filterspec.Form, map[string]api.FilterDefinition, error) {
	var form filterspec.Form
	defs := map[string]api.FilterDefinition{}

	if !flags.noDefaults {
		if stats, err := cl.DataStatistics(ctx); err != nil {
			warn("data statistics unavailable; form starts empty", logging.Args(logging.Error(err))...)
		} else {
			form = filterspec.FormFromStatistics(stats)
		}
	}
	if fetched, err := cl.Filters(ctx); err != nil {
		warn("filter declarations unavailable; optional filters skipped", logging.Args(logging.Error(err))...)
	} else if fetched != nil {
		defs = fetched
	}

	form.Toggles = map[string]filterspec.Toggle{}
	if !flags.noDefaults {
		form.Toggles = filterspec.DefaultToggles(defs)
	}

	changed := cmd.Flags().Changed
	if changed("start") {
		form.StartDate = flags.startDate
	}
	if changed("end") {
		form.EndDate = flags.endDate
	}
	if changed("farm") {
		form.FarmIDs = flags.farms
	}
	if changed("parity-min") {
		form.ParityMin = flags.parityMin
	}
	if changed("parity-max") {
		form.ParityMax = flags.parityMax
	}
	if changed("protein-min") {
		form.ProteinMin = flags.proteinMin
	}
	if changed("protein-max") {
		form.ProteinMax = flags.proteinMax
	}
	form.IncludeNullAsMatch = flags.includeNull

	for _, raw := range flags.enable {
		field, toggle, err := parseToggle(raw)
		if err != nil {
			return form, nil, err
		}
		form.Toggles[field] = toggle
	}
	for _, field := range flags.disable {
		field = strings.TrimSpace(field)
		toggle := form.Toggles[field]
		toggle.Enabled = false
		form.Toggles[field] = toggle
	}
	return form, defs, nil
}

// parseToggle reads field=min:max. Either bound may be empty; a bare field
// enables the filter without bounds.
func parseToggle(raw string) (string, filterspec.Toggle, error) {
	field, bounds, _ := strings.Cut(strings.TrimSpace(raw), "=")
	field = strings.TrimSpace(field)
	if field == "" {
		return "", filterspec.Toggle{}, fmt.Errorf("invalid --enable %q: want field=min:max", raw)
	}
	if filterspec.IsMandatory(field) {
		return "", filterspec.Toggle{}, fmt.Errorf("invalid --enable %q: %s is always applied", raw, field)
	}
	lo, hi, _ := strings.Cut(bounds, ":")
	return field, filterspec.Toggle{Enabled: true, Min: strings.TrimSpace(lo), Max: strings.TrimSpace(hi)}, nil
}

func printFragment(cmd *cobra.Command, fragment result.Fragment) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	if fragment.Message != "" {
		fmt.Fprintln(out, renderStatusLine("Filter", statusOK, fragment.Message, colorize))
	}
	rows := make([][]string, 0, len(fragment.Stats))
	for _, s := range fragment.Stats {
		rows = append(rows, []string{s.Label, s.Value, s.Caption})
	}
	fmt.Fprintln(out, renderTable([]string{"Metric", "Value", "Meaning"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft}))
	if fragment.Note != "" {
		fmt.Fprintln(out, fragment.Note)
	}
	if fragment.DownloadEnabled() {
		fmt.Fprintf(out, "Download: %s (herdscreen download %s)\n", fragment.Download, fragment.Download)
	}
}

// defaultDownloadPath places a download under dir named after the last URL
// path segment.
func defaultDownloadPath(dir, ref string) string {
	name := path.Base(strings.SplitN(ref, "?", 2)[0])
	return filepath.Join(dir, fileutil.SafeName(name, "result.xlsx"))
}
