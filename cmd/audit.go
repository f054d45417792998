package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/user/hostcomply/pkg/benchmark"
	"github.com/user/hostcomply/pkg/catalog"
	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/engine"
	"github.com/user/hostcomply/pkg/hostctx"
	"github.com/user/hostcomply/pkg/logging"
	"github.com/user/hostcomply/pkg/metrics"
	"github.com/user/hostcomply/pkg/procedures"
	"github.com/user/hostcomply/pkg/report"
	"github.com/user/hostcomply/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	exitCompliant    = 0
	exitNonCompliant = 1
	exitError        = 2
)

// exitCode is set by audit and remediate and returned by Execute.
var exitCode = exitCompliant

type runOptions struct {
	action        compliance.Action
	catalog       string
	catalogFormat string
	format        string
	section       string
	root          string
	params        []string
	baseline      string
	saveSnapshot  string
	metricsFile   string
	watch         bool
}

// withConfig fills options the user left empty from the config file.
func (o runOptions) withConfig() runOptions {
	if o.catalog == "" {
		o.catalog = cfg.Catalog
	}
	if o.catalogFormat == "" {
		o.catalogFormat = cfg.CatalogFormat
	}
	if o.format == "" {
		o.format = cfg.Format
	}
	if o.section == "" {
		o.section = cfg.Section
	}
	if o.root == "" {
		o.root = cfg.Root
	}
	if o.metricsFile == "" {
		o.metricsFile = cfg.MetricsFile
	}
	return o
}

func newRunCommand(action compliance.Action) *cobra.Command {
	opts := runOptions{action: action}
	cmd := &cobra.Command{
		Use:   action.String(),
		Short: "Audit the host against a rule catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			o := opts.withConfig()
			run := func() error {
				code, err := runCatalog(ctx, o, cmd.OutOrStdout(), cmd.ErrOrStderr())
				exitCode = code
				return err
			}
			if !o.watch {
				return run()
			}
			return watchCatalog(ctx, o.catalog, func() error {
				err := run()
				if ctx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}
	if action == compliance.Remediation {
		cmd.Short = "Remediate the host against a rule catalog"
	}

	f := cmd.Flags()
	f.StringVarP(&opts.catalog, "catalog", "c", "", "Rule catalog file or directory")
	f.StringVar(&opts.catalogFormat, "catalog-format", "", "Catalog format: auto, yaml, mof")
	f.StringVarP(&opts.format, "format", "f", "", "Report format: auto, compact, nested, json, verbose")
	f.StringVarP(&opts.section, "section", "s", "", "Only evaluate this benchmark section and its subsections")
	f.StringVar(&opts.root, "root", "", "Audit the filesystem mounted at this directory")
	f.StringArrayVarP(&opts.params, "param", "p", nil, "Override a rule parameter (key=value, repeatable)")
	f.StringVar(&opts.baseline, "baseline", "", "Compare failures with a saved snapshot")
	f.StringVar(&opts.saveSnapshot, "save-snapshot", "", "Save this run's verdicts as a snapshot")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "Write prometheus metrics in textfile format")
	f.BoolVarP(&opts.watch, "watch", "w", false, "Re-run whenever the catalog changes")
	return cmd
}

// runCatalog performs one audit or remediation pass and returns the exit
// code for it.
func runCatalog(ctx context.Context, o runOptions, stdout, stderr io.Writer) (int, error) {
	log := logging.L()
	if o.catalog == "" {
		return exitError, fmt.Errorf("no catalog given: use --catalog or set 'catalog' in the config file")
	}
	kind, err := reportKind(o.format, stdout)
	if err != nil {
		return exitError, err
	}
	format, err := catalog.ParseFormat(o.catalogFormat)
	if err != nil {
		return exitError, err
	}
	params, err := parseParams(cfg.Parameters, o.params)
	if err != nil {
		return exitError, err
	}

	host := hostctx.New(
		hostctx.WithRoot(o.root),
		hostctx.WithCommandTimeout(cfg.CommandTimeout),
		hostctx.WithScannerTTL(cfg.ScannerTTL),
		hostctx.WithLogger(log),
		hostctx.WithTracer(tracer()),
	)
	dist, err := benchmark.Detect(host)
	if err != nil {
		return exitError, fmt.Errorf("failed to detect distribution: %w", err)
	}
	log.Infof("Detected %s", dist)

	reader, closer, err := catalog.Open(o.catalog, format)
	if err != nil {
		return exitError, err
	}
	defer closer.Close()

	recorder := metrics.NewRecorder()
	session := &engine.Session{
		Evaluator: engine.NewEvaluator(procedures.NewRegistry(), host, dist, engine.WithParameters(params)),
		Action:    o.action,
		Section:   o.section,
		Metrics:   recorder,
		Log:       log,
	}
	summary, err := session.Run(ctx, reader, report.New(kind))
	if err != nil {
		return exitError, err
	}
	fmt.Fprint(stdout, summary.Report)

	if err := snapshotRun(o, summary, stderr); err != nil {
		return exitError, err
	}
	if o.metricsFile != "" {
		if err := recorder.WriteTextfile(o.metricsFile); err != nil {
			return exitError, fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	printVerdict(stderr, summary)
	switch {
	case summary.HasErrors():
		return exitError, nil
	case summary.Overall == compliance.NonCompliant:
		return exitNonCompliant, nil
	}
	return exitCompliant, nil
}

// tracer is the tracer of the provider installed at startup.
func tracer() trace.Tracer {
	if tracing == nil {
		return otel.Tracer(telemetry.InstrumentationName)
	}
	return tracing.Tracer()
}

func snapshotRun(o runOptions, summary *engine.Summary, w io.Writer) error {
	if o.saveSnapshot == "" && o.baseline == "" {
		return nil
	}
	current := engine.NewSnapshot(o.action)
	current.AddOutcomes(summary.Outcomes)

	if o.baseline != "" {
		baseline := engine.NewSnapshot(o.action)
		if err := baseline.LoadSnapshot(o.baseline); err != nil {
			return fmt.Errorf("failed to load baseline: %w", err)
		}
		fmt.Fprint(w, current.CompareSnapshot(baseline).GetReport(o.baseline))
	}
	if o.saveSnapshot != "" {
		if err := current.SaveSnapshot(o.saveSnapshot); err != nil {
			return err
		}
		logging.Infof("Snapshot saved to %s", o.saveSnapshot)
	}
	return nil
}

// reportKind resolves "auto" to nested on a terminal and json otherwise.
func reportKind(format string, out io.Writer) (report.Kind, error) {
	if format != "" && format != "auto" {
		return report.ParseKind(format)
	}
	if f, ok := out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return report.Nested, nil
	}
	return report.JSON, nil
}

// parseParams merges key=value overrides on top of the configured ones.
func parseParams(base map[string]string, overrides []string) (map[string]string, error) {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for _, kv := range overrides {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", kv)
		}
		out[k] = v
	}
	return out, nil
}

func printVerdict(w io.Writer, s *engine.Summary) {
	counts := fmt.Sprintf("%d compliant, %d non-compliant, %d errors, %d skipped",
		s.Compliant, s.NonCompliant, s.Errors+len(s.ParseErrors), s.Skipped)
	switch {
	case s.HasErrors():
		color.New(color.FgYellow, color.Bold).Fprintf(w, "ERRORS: %s\n", counts)
	case s.Overall == compliance.NonCompliant:
		color.New(color.FgRed, color.Bold).Fprintf(w, "NON-COMPLIANT: %s\n", counts)
	default:
		color.New(color.FgGreen, color.Bold).Fprintf(w, "COMPLIANT: %s\n", counts)
	}
}

func init() {
	rootCmd.AddCommand(newRunCommand(compliance.Audit))
	rootCmd.AddCommand(newRunCommand(compliance.Remediation))
}
