package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sheetbatch/internal/config"
	"sheetbatch/internal/logging"
)

// Run executes the sheetbatch command line with args (without the program name).
func Run(args []string) error {
	return RunContext(context.Background(), args, nil, nil)
}

// RunContext is Run with explicit output streams; nil streams keep the
// process defaults.
func RunContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand()
	root.SetArgs(args)
	if stdout != nil {
		root.SetOut(stdout)
	}
	if stderr != nil {
		root.SetErr(stderr)
	}
	return root.ExecuteContext(ctx)
}

type globalOptions struct {
	configPath string
	jsonOut    bool
	logLevel   string
	logFormat  string
	logOutput  string
}

// session is the per-invocation state shared by subcommands.
type session struct {
	cfg     config.Config
	log     *logrus.Logger
	cleanup func()
}

func (s *session) Close() {
	if s != nil && s.cleanup != nil {
		s.cleanup()
	}
}

func (g *globalOptions) open() (*session, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	log, cleanup, err := logging.New(logging.Options{
		Level:  firstNonEmpty(g.logLevel, cfg.Log.Level),
		Format: firstNonEmpty(g.logFormat, cfg.Log.Format),
		Output: firstNonEmpty(g.logOutput, cfg.Log.Output),
	})
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		log.WithField("path", cfg.File).Debug("loaded config file")
	}
	return &session{cfg: cfg, log: log, cleanup: cleanup}, nil
}

func NewRootCommand() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "sheetbatch",
		Short: "Batch-export drawing sheets and reconcile the files the renderer writes",
		Long: `sheetbatch exports every selected sheet of a sheet register in each enabled
format (pdf, dwg, ifc, nwc), finds the file the renderer actually wrote and
renames it to the name built from the profile's naming template.

Quick Start:
  sheetbatch init
  sheetbatch profiles import exports.xml
  sheetbatch run --profile "Issue Set" --register sheets.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "config file path (default "+config.DefaultPath+" when present)")
	pf.BoolVar(&g.jsonOut, "json", false, "print machine-readable JSON output")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&g.logOutput, "log-output", "", "log output: stderr, stdout, discard, or a file path")

	root.AddCommand(
		newRunCommand(g),
		newProfilesCommand(g),
		newHistoryCommand(g),
		newDoctorCommand(g),
		newInitCommand(g),
	)
	return root
}

var errBatchFailed = errors.New("batch failed")

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fprintf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
