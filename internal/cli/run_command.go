package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sheetbatch/internal/batch"
	"sheetbatch/internal/history"
	"sheetbatch/internal/host"
	"sheetbatch/internal/model"
	"sheetbatch/internal/profile"
	"sheetbatch/internal/report"
)

type runOptions struct {
	profile     string
	register    string
	formats     string
	outputDir   string
	sheets      string
	report      string
	renderer    string
	settleDelay time.Duration
	progress    bool
	noHistory   bool
}

func newRunCommand(g *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Export the register's sheets with a profile",
		Long: `Export every selected sheet in each format the profile enables. Each
sheet is rendered, the new file is found in the output directory and renamed
to the name built from the profile's naming template. A failed sheet is
recorded and the batch continues; Ctrl-C stops between sheets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, g, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.profile, "profile", model.DefaultProfileName, "profile name")
	f.StringVar(&opts.register, "register", "", "sheet register (.json or .xlsx)")
	f.StringVar(&opts.formats, "formats", "", "comma-separated formats overriding the profile (pdf,dwg,ifc,nwc)")
	f.StringVar(&opts.outputDir, "output-dir", "", "output folder overriding the profile")
	f.StringVar(&opts.sheets, "sheets", "", "comma-separated sheet numbers overriding the profile selection")
	f.StringVar(&opts.report, "report", "", "write an xlsx batch report to this path")
	f.StringVar(&opts.renderer, "renderer", "", "renderer command overriding config")
	f.DurationVar(&opts.settleDelay, "settle-delay", 0, "wait after each render before scanning the output directory; 0 disables it (default from config)")
	f.BoolVar(&opts.progress, "progress", true, "show the live progress view when stdout is a terminal")
	f.BoolVar(&opts.noHistory, "no-history", false, "do not record the batch in the history database")
	_ = cmd.MarkFlagRequired("register")
	return cmd
}

func runBatch(cmd *cobra.Command, g *globalOptions, opts *runOptions) error {
	s, err := g.open()
	if err != nil {
		return err
	}
	defer s.Close()
	out := cmd.OutOrStdout()

	store := profile.NewStore(s.cfg.ProfilesDir, s.cfg.ProfilesDefaultsDir, s.log)
	if _, err := store.Load(); err != nil {
		return err
	}
	settings, err := store.Get(firstNonEmpty(opts.profile, model.DefaultProfileName))
	if err != nil {
		return err
	}
	formats, err := applyRunOverrides(&settings, opts)
	if err != nil {
		return err
	}

	reg, err := host.LoadRegister(opts.register)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := host.NewCommandHost(ctx, reg, host.CommandOptions{
		Command: firstNonEmpty(opts.renderer, s.cfg.RendererCommand),
		Logger:  s.log,
	})

	var sinks []batch.Sink
	if !opts.noHistory && strings.TrimSpace(s.cfg.HistoryPath) != "" {
		hist, err := history.Open(s.cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer hist.Close()
		sinks = append(sinks, hist)
	}
	if path := strings.TrimSpace(opts.report); path != "" {
		sinks = append(sinks, batch.SinkFunc(func(_ context.Context, result model.ExportResult) error {
			return report.WriteXLSX(path, result)
		}))
	}

	settle, err := resolveSettleDelay(s.cfg.SettleDelay, opts.settleDelay, cmd.Flags().Changed("settle-delay"))
	if err != nil {
		return err
	}
	orch, err := batch.New(batch.Options{
		Host:        h,
		RunsDir:     s.cfg.RunsDir,
		SettleDelay: settle,
		Logger:      s.log,
		Sinks:       sinks,
	})
	if err != nil {
		return err
	}

	sheets := reg.Sheets()
	var result model.ExportResult
	var runErr error
	switch {
	case g.jsonOut:
		result, runErr = orch.RunBatch(ctx, sheets, formats, settings, nil, nil)
	case opts.progress && writerIsTTY(out):
		result, runErr = runWithProgressView(ctx, out, orch, sheets, formats, settings)
	default:
		result, runErr = orch.RunBatch(ctx, sheets, formats, settings, plainProgress(out), nil)
	}

	if g.jsonOut {
		if err := printJSON(out, result); err != nil {
			return err
		}
	} else {
		printRunSummary(out, result)
	}

	if runErr != nil {
		return runErr
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", errBatchFailed, result.Message)
	}
	return nil
}

// applyRunOverrides layers command-line choices over the stored profile and
// returns the format set to request.
func applyRunOverrides(settings *model.ExportSettings, opts *runOptions) (model.FormatSet, error) {
	var formats model.FormatSet
	if raw := strings.TrimSpace(opts.formats); raw != "" {
		set, err := model.ParseFormatSet(raw)
		if err != nil {
			return 0, err
		}
		if set.Empty() {
			return 0, errors.New("--formats selects no format")
		}
		settings.Formats = set
		formats = set
	}
	if dir := strings.TrimSpace(opts.outputDir); dir != "" {
		settings.OutputFolder = dir
	}
	if numbers := splitCSV(opts.sheets); len(numbers) > 0 {
		settings.Selection = model.SelectionFilter{Numbers: numbers}
	}
	return formats, nil
}

// resolveSettleDelay prefers an explicitly set flag, including 0, over the
// config value.
func resolveSettleDelay(configured, flag time.Duration, flagSet bool) (time.Duration, error) {
	if !flagSet {
		return configured, nil
	}
	if flag < 0 {
		return 0, fmt.Errorf("invalid --settle-delay %s: must not be negative", flag)
	}
	return flag, nil
}

func plainProgress(w io.Writer) batch.ProgressFunc {
	return func(current, total int, label string, complete bool) {
		state := "start"
		if complete {
			state = "done "
		}
		fprintf(w, "[%d/%d] %s %s\n", current, total, state, label)
	}
}

func printRunSummary(w io.Writer, result model.ExportResult) {
	for _, j := range result.Jobs {
		switch {
		case j.Succeeded():
			line := fmt.Sprintf("ok    %-4s %s", j.Format, j.FinalPath)
			if j.Diagnostic != "" && !strings.HasPrefix(j.Diagnostic, "ok") {
				line += " (" + j.Diagnostic + ")"
			}
			fprintf(w, "%s\n", line)
		case j.Status == model.StatusCancelled:
			fprintf(w, "skip  %-4s %s\n", j.Format, j.Label())
		default:
			fprintf(w, "fail  %-4s %s: %s\n", j.Format, j.Label(), j.Message)
		}
	}
	fprintf(w, "batch: %s\n", result.BatchID)
	fprintf(w, "%s\n", result.Message)
}
