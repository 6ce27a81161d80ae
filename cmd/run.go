// File: cmd/run.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tripwire-cli/api/schemas"
	"github.com/xkilldash9x/tripwire-cli/internal/config"
	"github.com/xkilldash9x/tripwire-cli/internal/definition"
	"github.com/xkilldash9x/tripwire-cli/internal/metrics"
	"github.com/xkilldash9x/tripwire-cli/internal/observability"
	"github.com/xkilldash9x/tripwire-cli/internal/reporting"
	"github.com/xkilldash9x/tripwire-cli/internal/runner"
)

// runFlags holds the flags of the run command.
type runFlags struct {
	baseURL   string
	outputDir string
	formats   []string
	headless  bool
	noConsole bool

	ignoreHTTPErrors      bool
	ignoreConsoleErrors   bool
	ignorePageErrors      bool
	ignoreRequestFailures bool
}

func newRunCmd(deps *dependencies) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <definition>",
		Short: "Run a flow definition in a fresh browser and report the verdict",
		Long: `Run drives one browser session through the steps of a YAML or JSON flow
definition, records console errors, uncaught exceptions, HTTP errors and
failed requests, and applies the definition's tolerance policy.

The command exits with status 1 when a step fails or an untolerated signal
was seen, and with status 2 when the run could not start because of a
configuration problem.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if err := applyRunFlagOverrides(cmd, cfg, flags); err != nil {
				return &runner.ConfigError{Err: err}
			}
			return runFlow(cmd, cfg, deps, args[0], flags.baseURL)
		},
	}

	cmd.Flags().StringVar(&flags.baseURL, "base-url", "", "base URL for relative navigations (overrides the definition)")
	cmd.Flags().StringVarP(&flags.outputDir, "output", "o", "", "directory for report files (overrides report.output_dir)")
	cmd.Flags().StringSliceVarP(&flags.formats, "format", "f", nil, "report formats to write: json, junit (overrides report.formats)")
	cmd.Flags().BoolVar(&flags.headless, "headless", true, "run the browser without a window")
	cmd.Flags().BoolVar(&flags.noConsole, "no-console", false, "do not print the console summary")
	cmd.Flags().BoolVar(&flags.ignoreHTTPErrors, "ignore-http-errors", false, "never fail the run on HTTP errors")
	cmd.Flags().BoolVar(&flags.ignoreConsoleErrors, "ignore-console-errors", false, "never fail the run on console errors")
	cmd.Flags().BoolVar(&flags.ignorePageErrors, "ignore-page-errors", false, "never fail the run on uncaught page errors")
	cmd.Flags().BoolVar(&flags.ignoreRequestFailures, "ignore-request-failures", false, "never fail the run on failed requests")
	return cmd
}

// applyRunFlagOverrides copies explicitly set flags into cfg and validates
// the result.
func applyRunFlagOverrides(cmd *cobra.Command, cfg *config.Config, flags *runFlags) error {
	if cmd.Flags().Changed("headless") {
		cfg.SetBrowserHeadless(flags.headless)
	}
	if cmd.Flags().Changed("output") {
		cfg.SetReportOutputDir(flags.outputDir)
	}
	if cmd.Flags().Changed("format") {
		formats := make([]string, 0, len(flags.formats))
		for _, f := range flags.formats {
			if f = strings.TrimSpace(f); f != "" {
				formats = append(formats, strings.ToLower(f))
			}
		}
		cfg.SetReportFormats(formats)
	}
	if flags.noConsole {
		cfg.ReportCfg.Console = false
	}

	// Flags only ever switch an override on; the environment may already have.
	ov := cfg.Overrides()
	ov.IgnoreHTTPErrors = ov.IgnoreHTTPErrors || flags.ignoreHTTPErrors
	ov.IgnoreConsoleErrors = ov.IgnoreConsoleErrors || flags.ignoreConsoleErrors
	ov.IgnorePageErrors = ov.IgnorePageErrors || flags.ignorePageErrors
	ov.IgnoreRequestFailures = ov.IgnoreRequestFailures || flags.ignoreRequestFailures
	cfg.SetOverrides(ov)

	return cfg.Validate()
}

// runFlow loads the definition, runs it and writes the reports. It returns
// ErrRunFailed when the verdict is failure.
func runFlow(cmd *cobra.Command, cfg *config.Config, deps *dependencies, path, baseURL string) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	def, err := definition.Load(path)
	if err != nil {
		return &runner.ConfigError{Err: err}
	}

	var opts []runner.Option
	if cfg.Store().Enabled {
		s, cleanup, err := deps.stores.Create(ctx, cfg, logger)
		if err != nil {
			return &runner.ConfigError{Err: fmt.Errorf("failed to open run history store: %w", err)}
		}
		defer cleanup()
		if err := s.EnsureSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, runner.WithStore(s))
	}

	var m *metrics.Metrics
	if cfg.Metrics().TextfilePath != "" {
		m = metrics.New()
		opts = append(opts, runner.WithObserver(m))
	}

	r, err := runner.New(cfg, deps.sessionFactory(cfg, logger), logger, opts...)
	if err != nil {
		return err
	}

	summary, err := r.Run(ctx, def, baseURL)
	if err != nil {
		return err
	}

	paths, err := reporting.WriteAll(summary, cfg.Report(), cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("failed to write reports: %w", err)
	}
	for _, p := range paths {
		logger.Info("Report written.", zap.String("path", p))
	}

	if m != nil {
		if err := m.WriteTextfile(cfg.Metrics().TextfilePath); err != nil {
			logger.Error("Failed to export metrics.", zap.Error(err))
		}
	}

	if !summary.Success {
		return fmt.Errorf("%w: %s (%d failed step(s), %s)", ErrRunFailed, displayName(def), summary.FailedSteps(), failedCategories(summary))
	}
	return nil
}

func displayName(def *schemas.TestDefinition) string {
	if def.Name != "" {
		return def.Name
	}
	return "unnamed flow"
}

func failedCategories(s *schemas.RunSummary) string {
	var failed []string
	for _, c := range schemas.Categories {
		if !s.CategoryOK[c] {
			failed = append(failed, string(c))
		}
	}
	if len(failed) == 0 {
		return "no signal failures"
	}
	return "signal failures: " + strings.Join(failed, ", ")
}
