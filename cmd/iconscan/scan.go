package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/iconscan/internal/config"
	"github.com/nao1215/iconscan/internal/database"
	ilog "github.com/nao1215/iconscan/internal/log"
	"github.com/nao1215/iconscan/internal/model"
	"github.com/nao1215/iconscan/internal/pipeline"
	"github.com/nao1215/iconscan/internal/plugin"
	"github.com/nao1215/iconscan/internal/probe"
	"github.com/nao1215/iconscan/internal/report"
	"github.com/nao1215/iconscan/internal/tor"
	"github.com/spf13/cobra"
)

// errOnionWithoutTor is returned when an onion target is given without a
// way to reach the Tor network.
var errOnionWithoutTor = errors.New("onion targets require --proxy or --tor")

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url...]",
		Short: "Check the icon declarations of one or more sites",
		Long: `Scan fetches each target page and checks its icon declarations.

Reported issues:
  ICON-0  only Apple touch icons are declared
  ICON-1  touch icons are served from the site root without <link> tags
  ICON-2  no icons are declared
  ICON-3  an icon declares a type other than image/png
  ICON-4  a declared icon cannot be fetched
  ICON-5  the served content type differs from the declared type
  ICON-6  a PNG icon has a different size than declared
  ICON-7  an icon has no type attribute

Examples:
  # Check a single site
  iconscan scan https://example.com

  # Check several sites, four at a time
  iconscan scan -b 4 https://example.com https://example.org

  # Check an onion service through a running Tor daemon
  iconscan scan --proxy 127.0.0.1:9050 http://<address>.onion

  # Check an onion service with an embedded Tor daemon
  iconscan scan --tor http://<address>.onion

  # Write a Markdown report to a file
  iconscan scan --markdown -o report.md https://example.com

  # Only check sites not checked during the last day
  iconscan scan --skip-recent 24h https://example.com https://example.org`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Transport flags
	cmd.Flags().StringP("proxy", "x", "",
		"Route requests through a Tor SOCKS5 proxy (e.g., "+config.DefaultTorProxyAddress+")")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Request flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Total timeout for the target page fetch")
	cmd.Flags().Duration("connect-timeout", config.DefaultConnectTimeout,
		"Connection setup timeout for every request")
	cmd.Flags().Duration("probe-timeout", config.DefaultProbeTimeout,
		"Timeout for each icon probe (0 means no limit)")
	cmd.Flags().StringP("user-agent", "A", "",
		"User-Agent header to send instead of the default")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of bytes read from each response")
	cmd.Flags().Bool("skip-undeclared-type", false,
		"Do not report a type mismatch for icons without a type attribute")

	// Batch flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of sites checked concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .iconscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// History flags
	cmd.Flags().Bool("no-save", false,
		"Do not save reports to the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	cmd.Flags().Duration("skip-recent", 0,
		"Skip targets saved to the history within this duration (e.g., 24h)")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseEmbeddedTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout, err = flags.GetDuration("connect-timeout"); err != nil {
		return nil, err
	}
	if cfg.ProbeTimeout, err = flags.GetDuration("probe-timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.SkipUndeclaredTypeMismatch, err = flags.GetBool("skip-undeclared-type"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}
	if cfg.SkipRecent, err = flags.GetDuration("skip-recent"); err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)

	// An explicitly named config file must exist; a discovered one is optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Targets = args
	cfg.NormalizeTargets()

	return cfg, nil
}

// setupLogger creates a secure structured logger. Without --verbose only
// warnings and errors are shown.
func setupLogger(w io.Writer, verbose bool) *slog.Logger {
	return ilog.NewSecureLogger(w, verbose)
}

// runScan checks every configured target and writes the reports.
// It returns an error when a target could not be checked.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	if len(cfg.Targets) == 0 {
		return config.ErrNoTarget
	}

	if err := checkOnionTargets(cfg); err != nil {
		return err
	}

	logger.Info("starting scan",
		"targets", cfg.Targets,
		"proxy", cfg.ProxyAddress,
		"embeddedTor", cfg.UseEmbeddedTor,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.HistoryDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	targets, err := skipRecentTargets(ctx, db, cfg.Targets, cfg.SkipRecent, logger)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		logger.Warn("every target was checked recently; nothing to do", "skipRecent", cfg.SkipRecent)
		return nil
	}

	dialer, cleanup, err := setupDialer(ctx, cfg, logger, out)
	if err != nil {
		return err
	}
	defer cleanup()

	reports, err := checkTargets(ctx, cfg, targets, dialer, db, logger)
	if err != nil {
		return err
	}

	if err := outputReports(cfg, out, reports); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return failedTargets(reports)
}

// skipRecentTargets drops the targets that have a saved report younger
// than within. A zero duration or a nil db keeps every target.
func skipRecentTargets(ctx context.Context, db *database.HistoryDB, targets []string, within time.Duration, logger *slog.Logger) ([]string, error) {
	if db == nil || within <= 0 {
		return targets, nil
	}

	remaining := make([]string, 0, len(targets))
	for _, target := range targets {
		recent, err := db.HasRecentScan(ctx, target, within)
		if err != nil {
			return nil, fmt.Errorf("failed to check scan history: %w", err)
		}
		if recent {
			logger.Info("skipping recently checked target", "target", target, "within", within)
			continue
		}
		remaining = append(remaining, target)
	}
	return remaining, nil
}

// checkOnionTargets rejects onion targets that cannot be reached or are malformed.
func checkOnionTargets(cfg *config.Config) error {
	for _, target := range cfg.Targets {
		if !tor.IsOnionTarget(target) {
			continue
		}
		if !cfg.UsesTor() {
			return fmt.Errorf("%w: %s", errOnionWithoutTor, target)
		}
		if err := tor.ValidateOnionTarget(target); err != nil {
			return fmt.Errorf("invalid onion target %q: %w", target, err)
		}
	}
	return nil
}

// setupDialer returns the dialer every request goes through, or nil for
// direct connections. The cleanup function must always be called.
func setupDialer(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (probe.Dialer, func(), error) {
	noop := func() {}

	switch {
	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create Tor client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, noop, fmt.Errorf("tor proxy check failed: %w (make sure Tor is running at %s)",
				status.Error(), cfg.ProxyAddress)
		}
		logger.Info("Tor proxy connection verified", "address", client.ProxyAddress())
		return client, noop, nil

	case cfg.UseEmbeddedTor:
		client, embedded, err := startEmbeddedTor(ctx, cfg, logger, out)
		if err != nil {
			return nil, noop, err
		}
		return client, func() {
			logger.Info("stopping embedded Tor daemon")
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}, nil

	default:
		return nil, noop, nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon and verifies its proxy.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*tor.Client, *tor.EmbeddedTor, error) {
	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embedded := tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embedded.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", embedded.SocksAddr(),
		"controlAddr", embedded.ControlAddr(),
	)

	client, err := embedded.NewClient()
	if err != nil {
		_ = embedded.Stop() //nolint:errcheck // best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}

	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		_ = embedded.Stop() //nolint:errcheck // best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %s", status)
	}

	return client, embedded, nil
}

// checkTargets runs one pipeline per target through a BatchProcessor.
// Each report is saved to db as soon as its run completes, so an
// interrupted batch keeps the results of the finished targets.
func checkTargets(
	ctx context.Context,
	cfg *config.Config,
	targets []string,
	dialer probe.Dialer,
	db *database.HistoryDB,
	logger *slog.Logger,
) ([]*model.IconScanReport, error) {
	ip := plugin.New(plugin.WithLogger(logger))
	reporter := findingLogger(logger)

	bp := pipeline.NewBatchProcessor(
		func(target string) *pipeline.Pipeline {
			return ip.Pipeline(pluginOptions(cfg, target, dialer), reporter)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	// Each run writes only its own slot.
	reports := make([]*model.IconScanReport, len(targets))
	startTime := time.Now()
	err := bp.ProcessBatchWithCallback(ctx, targets, func(r *model.IconScanReport, index int) {
		reports[index] = r
		if err := saveScanReport(ctx, db, r, logger); err != nil {
			logger.Error("failed to save scan report", "target", r.Target, "error", err)
		}
	})
	logger.Info("scan finished", "elapsed", time.Since(startTime).Round(time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("scan interrupted: %w", err)
	}
	return reports, nil
}

// pluginOptions builds the run options for target from the global flags
// and the matching site configuration.
func pluginOptions(cfg *config.Config, target string, dialer probe.Dialer) plugin.Options {
	site := cfg.SiteConfigFor(target)

	headers := make(map[string]string, len(site.Headers)+1)
	if cfg.UserAgent != "" {
		headers["User-Agent"] = cfg.UserAgent
	}
	// Site headers win over the --user-agent flag.
	for k, v := range site.Headers {
		headers[k] = v
	}

	return plugin.Options{
		Target:                     target,
		ConnectTimeout:             cfg.ConnectTimeout,
		PageTimeout:                cfg.Timeout,
		ProbeTimeout:               cfg.ProbeTimeout,
		Headers:                    headers,
		Cookie:                     site.Cookie,
		Dialer:                     dialer,
		MaxBodySize:                cfg.MaxBodySize,
		SkipUndeclaredTypeMismatch: cfg.SkipUndeclaredTypeMismatch,
	}
}

// findingLogger returns a reporter that logs findings as they are emitted.
func findingLogger(logger *slog.Logger) plugin.Reporter {
	return plugin.ReporterFunc(func(_ context.Context, findings []model.Finding) error {
		for _, f := range findings {
			logger.Info("finding",
				"code", f.Code,
				"severity", f.SeverityText,
				"description", f.Description,
			)
		}
		return nil
	})
}

// newReportWriter returns the writer for the configured output format.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// outputReports writes the reports to the report file or to out.
func outputReports(cfg *config.Config, out io.Writer, reports []*model.IconScanReport) error {
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports may contain request URLs with tokens; keep them private.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	w := newReportWriter(cfg, out)
	if len(reports) == 1 {
		_, err := w.Write(reports[0])
		return err
	}
	_, err := w.WriteBatch(reports)
	return err
}

// saveScanReport saves the report to the database. A nil db is a no-op.
func saveScanReport(ctx context.Context, db *database.HistoryDB, r *model.IconScanReport, logger *slog.Logger) error {
	if db == nil || r == nil {
		return nil
	}

	id, err := db.SaveScanReport(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}

	logger.Info("scan report saved to database", "target", r.Target, "id", id)
	return nil
}

// failedTargets returns an error naming how many targets could not be checked.
func failedTargets(reports []*model.IconScanReport) error {
	failed := 0
	for _, r := range reports {
		if r == nil || r.Failed() {
			failed++
		}
	}
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d targets could not be checked", failed, len(reports))
}
