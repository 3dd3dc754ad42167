package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/iconscan/internal/config"
	"github.com/nao1215/iconscan/internal/database"
	"github.com/nao1215/iconscan/internal/model"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
)

// Constants for risk direction and summary messages.
const (
	riskDirectionWorsened  = "worsened"
	riskDirectionImproved  = "improved"
	riskDirectionUnchanged = "unchanged"
	noFindingsMessage      = "No findings"
)

// errUnknownFindingCode is returned when --code names no catalog issue.
var errUnknownFindingCode = errors.New("unknown finding code")

// NewCompareCmd creates the compare command.
// This command compares scan results with historical data stored in the database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [url]",
		Short: "Compare scan results with historical data",
		Long: `Compare displays differences between the latest and an earlier scan of a site.

This command retrieves historical scan data from the database and shows:
- New findings that appeared since the earlier scan
- Resolved findings that are no longer present
- Changes in the number of findings per severity

The comparison requires at least two scans in the database for the specified
site. Use 'iconscan scan' to perform scans and save results.

Examples:
  # Compare latest two scans for a site
  iconscan compare https://example.com

  # List all scan history for a site
  iconscan compare --list https://example.com

  # Compare with a specific historical scan by ID
  iconscan compare --with-scan-id 5 https://example.com

  # Compare scans since a specific date
  iconscan compare --since "2026-01-01" https://example.com

  # Output comparison in JSON format
  iconscan compare --json https://example.com

  # Show every recorded ICON-3 finding for a site
  iconscan compare --code ICON-3 https://example.com

  # List all scanned sites in the database
  iconscan compare --list-targets`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List scan history for the specified site")
	cmd.Flags().BoolP("list-targets", "L", false,
		"List all scanned sites in the database")
	cmd.Flags().String("code", "",
		"List the recorded findings with this code for the specified site (e.g., ICON-3)")

	// Comparison target flags
	cmd.Flags().Int64P("with-scan-id", "i", 0,
		"Compare with a specific scan by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first scan after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	return cmd
}

// compareOptions selects the earlier scan and the output format.
type compareOptions struct {
	withScanID     int64
	sinceDate      string
	jsonOutput     bool
	markdownOutput bool
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	out := cmd.OutOrStdout()

	listTargets, err := flags.GetBool("list-targets")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database so a bad argument
	// never creates an empty database file.
	var target string
	if !listTargets {
		if len(args) == 0 {
			return errors.New("target URL is required (use --list-targets to see available sites)")
		}
		target = config.NormalizeTarget(args[0])
		if err := config.ValidateTarget(target); err != nil {
			return err
		}
	}

	code, err := flags.GetString("code")
	if err != nil {
		return err
	}
	if code != "" {
		if code, err = normalizeFindingCode(code); err != nil {
			return err
		}
	}

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if listTargets {
		return listScannedTargets(ctx, db, out)
	}

	listHistory, err := flags.GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listScanHistory(ctx, db, out, target)
	}

	if code != "" {
		return listFindingHistory(ctx, db, out, target, code)
	}

	var opts compareOptions
	if opts.jsonOutput, err = flags.GetBool("json"); err != nil {
		return err
	}
	if opts.markdownOutput, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if opts.jsonOutput && opts.markdownOutput {
		return config.ErrConflictingReportFormats
	}
	if opts.withScanID, err = flags.GetInt64("with-scan-id"); err != nil {
		return err
	}
	if opts.sinceDate, err = flags.GetString("since"); err != nil {
		return err
	}

	return runComparison(ctx, db, out, target, opts)
}

// listScannedTargets lists all sites that have scan records in the database.
func listScannedTargets(ctx context.Context, db *database.HistoryDB, out io.Writer) error {
	targets, err := db.ListScannedTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Fprintln(out, "No scanned sites found in the database.")
		fmt.Fprintln(out, "\nUse 'iconscan scan <url>' to check a site.")
		return nil
	}

	fmt.Fprintf(out, "Scanned sites (%d):\n\n", len(targets))
	for _, target := range targets {
		fmt.Fprintf(out, "  • %s\n", target)
	}
	fmt.Fprintln(out, "\nUse 'iconscan compare --list <url>' to see scan history for a site.")

	return nil
}

// listScanHistory lists all scan records for a specific site.
func listScanHistory(ctx context.Context, db *database.HistoryDB, out io.Writer, target string) error {
	reports, err := db.GetScanHistoryWithMetadata(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		fmt.Fprintf(out, "No scan history found for %s\n", target)
		fmt.Fprintln(out, "\nUse 'iconscan scan' to check this site.")
		return nil
	}

	fmt.Fprintf(out, "Scan history for %s (%d scans):\n\n", target, len(reports))
	fmt.Fprintf(out, "  %-6s  %-20s  %-12s  %s\n", "ID", "Date", "Branch", "Risk Summary")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 64))

	for _, meta := range reports {
		branch := string(meta.Branch)
		if meta.State == model.StateFailed {
			branch = string(model.StateFailed)
		}
		if branch == "" {
			branch = "-"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-12s  %s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			branch,
			formatRiskSummary(meta.RiskSummary),
		)
	}

	fmt.Fprintln(out, "\nUse 'iconscan compare <url>' to compare the latest two scans.")
	fmt.Fprintln(out, "Use 'iconscan compare --with-scan-id <id> <url>' to compare with a specific scan.")

	return nil
}

// findingCodes returns the code of every catalog issue in code order.
func findingCodes() []string {
	issues := model.Issues()
	codes := make([]string, 0, len(issues))
	for _, issue := range issues {
		if tmpl, ok := model.LookupTemplate(issue); ok {
			codes = append(codes, tmpl.Code)
		}
	}
	return codes
}

// normalizeFindingCode upper-cases code and checks it against the catalog.
func normalizeFindingCode(code string) (string, error) {
	codes := findingCodes()
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !slices.Contains(codes, normalized) {
		return "", fmt.Errorf("%w: %q (known codes: %s)", errUnknownFindingCode, code, strings.Join(codes, ", "))
	}
	return normalized, nil
}

// listFindingHistory lists every recorded finding with code for a site,
// newest first.
func listFindingHistory(ctx context.Context, db *database.HistoryDB, out io.Writer, target, code string) error {
	records, err := db.QueryFindings(ctx, target, code)
	if err != nil {
		return fmt.Errorf("failed to query findings: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No %s findings recorded for %s\n", code, target)
		return nil
	}

	fmt.Fprintf(out, "%s findings for %s (%d):\n\n", code, target, len(records))
	fmt.Fprintf(out, "  %-6s  %-20s  %s\n", "Scan", "Date", "Description")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 64))

	for _, rec := range records {
		fmt.Fprintf(out, "  %-6d  %-20s  %s\n",
			rec.ReportID,
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.Description,
		)
	}

	fmt.Fprintln(out, "\nUse 'iconscan compare --with-scan-id <id> <url>' to compare with one of these scans.")

	return nil
}

// formatRiskSummary formats the severity counts into a compact string.
func formatRiskSummary(summary model.SeveritySummary) string {
	var parts []string
	if summary.Critical > 0 {
		parts = append(parts, fmt.Sprintf("C:%d", summary.Critical))
	}
	if summary.High > 0 {
		parts = append(parts, fmt.Sprintf("H:%d", summary.High))
	}
	if summary.Medium > 0 {
		parts = append(parts, fmt.Sprintf("M:%d", summary.Medium))
	}
	if summary.Low > 0 {
		parts = append(parts, fmt.Sprintf("L:%d", summary.Low))
	}
	if summary.Info > 0 {
		parts = append(parts, fmt.Sprintf("I:%d", summary.Info))
	}

	if len(parts) == 0 {
		return noFindingsMessage
	}
	return strings.Join(parts, " ")
}

// runComparison compares the latest scan of target with an earlier one.
func runComparison(ctx context.Context, db *database.HistoryDB, out io.Writer, target string, opts compareOptions) error {
	reports, err := db.GetScanHistory(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		return fmt.Errorf("no scan history found for %s", target)
	}

	if len(reports) < 2 && opts.withScanID == 0 && opts.sinceDate == "" {
		return fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(reports))
	}

	current := reports[0]
	previous, err := selectPreviousReport(ctx, db, reports, target, opts)
	if err != nil {
		return err
	}

	comparison := compareReports(previous, current)

	switch {
	case opts.jsonOutput:
		return outputComparisonJSON(out, comparison)
	case opts.markdownOutput:
		return outputComparisonMarkdown(out, comparison)
	default:
		return outputComparisonText(out, comparison)
	}
}

// selectPreviousReport picks the report the latest scan is compared with.
// reports is sorted newest first.
func selectPreviousReport(ctx context.Context, db *database.HistoryDB, reports []*model.IconScanReport, target string, opts compareOptions) (*model.IconScanReport, error) {
	current := reports[0]

	switch {
	case opts.withScanID > 0:
		previous, err := db.GetScanReportByID(ctx, opts.withScanID)
		if err != nil {
			return nil, fmt.Errorf("failed to get scan with ID %d: %w", opts.withScanID, err)
		}
		if previous == nil {
			return nil, fmt.Errorf("scan with ID %d not found", opts.withScanID)
		}
		if previous.Target != target {
			return nil, fmt.Errorf("scan ID %d belongs to %s, not %s", opts.withScanID, previous.Target, target)
		}
		return previous, nil

	case opts.sinceDate != "":
		since, err := time.ParseInLocation("2006-01-02", opts.sinceDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Walk from the oldest report to find the first one on or after since.
		for i := len(reports) - 1; i >= 0; i-- {
			r := reports[i]
			if r.DateScanned.Before(since) {
				continue
			}
			if r == current {
				return nil, fmt.Errorf("only one scan found since %s; at least 2 scans are required for comparison", opts.sinceDate)
			}
			return r, nil
		}
		return nil, fmt.Errorf("no scans found since %s", opts.sinceDate)

	default:
		return reports[1], nil
	}
}

// ComparisonResult holds the result of comparing two scan reports.
type ComparisonResult struct {
	// Target is the compared site.
	Target string `json:"target"`

	// PreviousScan contains metadata about the earlier scan.
	PreviousScan ScanMetadata `json:"previous_scan"`

	// CurrentScan contains metadata about the latest scan.
	CurrentScan ScanMetadata `json:"current_scan"`

	// NewFindings contains findings that are new in the latest scan.
	NewFindings []model.Finding `json:"new_findings,omitempty"`

	// ResolvedFindings contains findings of the earlier scan that are gone.
	ResolvedFindings []model.Finding `json:"resolved_findings,omitempty"`

	// UnchangedCount is the number of findings present in both scans.
	UnchangedCount int `json:"unchanged_count"`

	// RiskChange describes the overall change in risk level.
	RiskChange RiskChange `json:"risk_change"`
}

// ScanMetadata contains metadata about a scan for comparison display.
type ScanMetadata struct {
	// DateScanned is when the scan was performed.
	DateScanned time.Time `json:"date_scanned"`

	// Branch is the branch the run took.
	Branch model.State `json:"branch,omitempty"`

	// TotalFindings is the total number of findings in this scan.
	TotalFindings int `json:"total_findings"`

	// Summary holds the finding counts per severity.
	Summary model.SeveritySummary `json:"summary"`
}

// RiskChange describes the change in risk level between scans.
type RiskChange struct {
	// Direction is "improved", "worsened", or "unchanged".
	Direction string `json:"direction"`

	CriticalDelta int `json:"critical_delta"`
	HighDelta     int `json:"high_delta"`
	MediumDelta   int `json:"medium_delta"`
	LowDelta      int `json:"low_delta"`
	InfoDelta     int `json:"info_delta"`
}

func newScanMetadata(r *model.IconScanReport) ScanMetadata {
	return ScanMetadata{
		DateScanned:   r.DateScanned,
		Branch:        r.Branch,
		TotalFindings: len(r.Findings),
		Summary:       r.Summary(),
	}
}

// compareReports compares two scan reports. Findings are matched by
// Finding.Key, occurrence by occurrence, and listed in key order.
func compareReports(previous, current *model.IconScanReport) *ComparisonResult {
	result := &ComparisonResult{
		Target:       current.Target,
		PreviousScan: newScanMetadata(previous),
		CurrentScan:  newScanMetadata(current),
	}

	// A key repeats when several icons share an issue, so copies are
	// matched one to one and only the surplus is new or resolved.
	previousCounts := countFindings(previous.Findings)
	currentCounts := countFindings(current.Findings)

	for _, f := range current.Findings {
		key := f.Key()
		if previousCounts[key] > 0 {
			previousCounts[key]--
			result.UnchangedCount++
			continue
		}
		result.NewFindings = append(result.NewFindings, f)
	}

	for _, f := range previous.Findings {
		key := f.Key()
		if currentCounts[key] > 0 {
			currentCounts[key]--
			continue
		}
		result.ResolvedFindings = append(result.ResolvedFindings, f)
	}

	sortFindings(result.NewFindings)
	sortFindings(result.ResolvedFindings)

	result.RiskChange = calculateRiskChange(result.PreviousScan.Summary, result.CurrentScan.Summary)

	return result
}

// countFindings counts the occurrences of each finding key.
func countFindings(findings []model.Finding) map[string]int {
	counts := make(map[string]int, len(findings))
	for _, f := range findings {
		counts[f.Key()]++
	}
	return counts
}

// sortFindings orders findings by key so output is stable across runs.
func sortFindings(findings []model.Finding) {
	sort.Slice(findings, func(i, j int) bool {
		return findings[i].Key() < findings[j].Key()
	})
}

// riskScore weights higher severities more heavily.
func riskScore(s model.SeveritySummary) int {
	return s.Critical*100 + s.High*50 + s.Medium*10 + s.Low*5 + s.Info
}

// calculateRiskChange calculates the change in risk between two scans.
func calculateRiskChange(previous, current model.SeveritySummary) RiskChange {
	change := RiskChange{
		CriticalDelta: current.Critical - previous.Critical,
		HighDelta:     current.High - previous.High,
		MediumDelta:   current.Medium - previous.Medium,
		LowDelta:      current.Low - previous.Low,
		InfoDelta:     current.Info - previous.Info,
	}

	previousScore := riskScore(previous)
	currentScore := riskScore(current)

	switch {
	case currentScore < previousScore:
		change.Direction = riskDirectionImproved
	case currentScore > previousScore:
		change.Direction = riskDirectionWorsened
	default:
		change.Direction = riskDirectionUnchanged
	}

	return change
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// severityRows returns one row per severity plus a total row.
func severityRows(result *ComparisonResult) [][]string {
	prev, cur, delta := result.PreviousScan.Summary, result.CurrentScan.Summary, result.RiskChange
	return [][]string{
		{"Critical", strconv.Itoa(prev.Critical), strconv.Itoa(cur.Critical), formatDelta(delta.CriticalDelta)},
		{"High", strconv.Itoa(prev.High), strconv.Itoa(cur.High), formatDelta(delta.HighDelta)},
		{"Medium", strconv.Itoa(prev.Medium), strconv.Itoa(cur.Medium), formatDelta(delta.MediumDelta)},
		{"Low", strconv.Itoa(prev.Low), strconv.Itoa(cur.Low), formatDelta(delta.LowDelta)},
		{"Info", strconv.Itoa(prev.Info), strconv.Itoa(cur.Info), formatDelta(delta.InfoDelta)},
		{"Total",
			strconv.Itoa(result.PreviousScan.TotalFindings),
			strconv.Itoa(result.CurrentScan.TotalFindings),
			formatDelta(result.CurrentScan.TotalFindings - result.PreviousScan.TotalFindings)},
	}
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1f("Scan Comparison: %s", result.Target)
	md.PlainText("")
	md.H2("Summary")
	md.PlainText("")
	md.PlainTextf("%s %s", markdown.Bold("Risk Status:"), formatRiskDirection(result.RiskChange.Direction))
	md.PlainText("")

	rows := [][]string{{
		"Date",
		result.PreviousScan.DateScanned.Format("2006-01-02 15:04"),
		result.CurrentScan.DateScanned.Format("2006-01-02 15:04"),
		"-",
	}}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows:   append(rows, severityRows(result)...),
	})

	if len(result.NewFindings) > 0 {
		md.PlainText("")
		md.H2f("New Findings (%d)", len(result.NewFindings))
		md.PlainText("")
		items := make([]string, 0, len(result.NewFindings))
		for _, f := range result.NewFindings {
			items = append(items, fmt.Sprintf("%s %s: %s", markdown.Bold("["+f.SeverityText+"]"), f.Code, f.Description))
		}
		md.BulletList(items...)
	}

	if len(result.ResolvedFindings) > 0 {
		md.PlainText("")
		md.H2f("Resolved Findings (%d)", len(result.ResolvedFindings))
		md.PlainText("")
		items := make([]string, 0, len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			items = append(items, markdown.Strikethrough(fmt.Sprintf("[%s] %s: %s", f.SeverityText, f.Code, f.Description)))
		}
		md.BulletList(items...)
	}

	if result.UnchangedCount > 0 {
		md.PlainText("")
		md.HorizontalRule()
		md.PlainText("")
		md.PlainText(markdown.Italic(fmt.Sprintf("%d findings unchanged", result.UnchangedCount)))
	}

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Scan Comparison: %s\n", result.Target)
	sb.WriteString(strings.Repeat("=", 60) + "\n")

	fmt.Fprintf(&sb, "\nRisk Status: %s\n", formatRiskDirection(result.RiskChange.Direction))

	fmt.Fprintf(&sb, "\nPrevious scan: %s\n", result.PreviousScan.DateScanned.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Current scan:  %s\n", result.CurrentScan.DateScanned.Format("2006-01-02 15:04:05"))

	sb.WriteString("\nFindings Summary:\n")
	fmt.Fprintf(&sb, "  %-10s  %-10s  %-10s  %-10s\n", "Severity", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 45) + "\n")
	rows := severityRows(result)
	for i, row := range rows {
		if i == len(rows)-1 {
			sb.WriteString("  " + strings.Repeat("-", 45) + "\n")
		}
		fmt.Fprintf(&sb, "  %-10s  %-10s  %-10s  %-10s\n", row[0], row[1], row[2], row[3])
	}

	if len(result.NewFindings) > 0 {
		fmt.Fprintf(&sb, "\nNew Findings (%d):\n", len(result.NewFindings))
		for _, f := range result.NewFindings {
			fmt.Fprintf(&sb, "  [+] [%s] %s: %s\n", f.SeverityText, f.Code, f.Description)
		}
	}

	if len(result.ResolvedFindings) > 0 {
		fmt.Fprintf(&sb, "\nResolved Findings (%d):\n", len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			fmt.Fprintf(&sb, "  [-] [%s] %s: %s\n", f.SeverityText, f.Code, f.Description)
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d findings\n", result.UnchangedCount)
	}

	_, err := io.WriteString(out, sb.String())
	return err
}

// formatRiskDirection formats the risk change direction for display.
func formatRiskDirection(direction string) string {
	switch direction {
	case riskDirectionImproved:
		return "IMPROVED (risk decreased)"
	case riskDirectionWorsened:
		return "WORSENED (risk increased)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
