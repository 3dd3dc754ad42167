package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/iconscan/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "iconscan.db"

// ErrNilReport is returned when a nil report is saved.
var ErrNilReport = errors.New("report is nil")

// HistoryDB provides SQLite-based storage for scan reports.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in the specified directory.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the path of the database file.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- Scan reports store complete scan results as JSON
	CREATE TABLE IF NOT EXISTS scan_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		state TEXT NOT NULL,
		branch TEXT,
		report_json TEXT NOT NULL,
		risk_summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reports_target ON scan_reports(target);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON scan_reports(timestamp);

	-- Findings index the codes each scan reported
	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id INTEGER NOT NULL REFERENCES scan_reports(id) ON DELETE CASCADE,
		target TEXT NOT NULL,
		code TEXT NOT NULL,
		description TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_findings_target ON findings(target);
	CREATE INDEX IF NOT EXISTS idx_findings_code ON findings(code);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveScanReport saves a complete scan report and indexes its findings.
// It returns the ID of the stored report.
func (hdb *HistoryDB) SaveScanReport(ctx context.Context, report *model.IconScanReport) (int64, error) {
	if report == nil {
		return 0, ErrNilReport
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	riskJSON, err := json.Marshal(report.Summary())
	if err != nil {
		return 0, fmt.Errorf("failed to serialize risk summary: %w", err)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO scan_reports (target, state, branch, report_json, risk_summary)
	VALUES (?, ?, ?, ?, ?)
	`,
		report.Target,
		string(report.State),
		string(report.Branch),
		string(reportJSON),
		string(riskJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save scan report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read report id: %w", err)
	}

	for _, f := range report.Findings {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO findings (report_id, target, code, description)
		VALUES (?, ?, ?, ?)
		`, id, report.Target, f.Code, f.Description); err != nil {
			return 0, fmt.Errorf("failed to index finding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scan report: %w", err)
	}
	return id, nil
}

// GetLatestScanReport retrieves the most recent scan report for a target.
// It returns nil when the target has never been scanned.
func (hdb *HistoryDB) GetLatestScanReport(ctx context.Context, target string) (*model.IconScanReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE target = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, query, target).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	return decodeReport(reportJSON)
}

// ListScannedTargets returns all targets that have stored reports.
func (hdb *HistoryDB) ListScannedTargets(ctx context.Context) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT DISTINCT target FROM scan_reports
	ORDER BY target
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}

// GetScanHistory retrieves all scan reports for a target, newest first.
// Malformed rows are skipped.
func (hdb *HistoryDB) GetScanHistory(ctx context.Context, target string) ([]*model.IconScanReport, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT report_json FROM scan_reports
	WHERE target = ?
	ORDER BY timestamp DESC, id DESC
	`, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var reports []*model.IconScanReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		report, err := decodeReport(reportJSON)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// ScanReportMetadata contains summary information about a stored report.
// This is used for displaying scan history without loading the full report.
type ScanReportMetadata struct {
	// ID is the unique identifier of the scan report in the database.
	ID int64

	// Target is the scanned base URL.
	Target string

	// Timestamp is when the report was stored.
	Timestamp time.Time

	// State is the final state of the run.
	State model.State

	// Branch is the branch the run took.
	Branch model.State

	// RiskSummary contains counts of findings by severity level.
	RiskSummary model.SeveritySummary
}

// GetScanHistoryWithMetadata retrieves scan report metadata for a target, newest first.
func (hdb *HistoryDB) GetScanHistoryWithMetadata(ctx context.Context, target string) ([]ScanReportMetadata, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT id, target, timestamp, state, branch, risk_summary
	FROM scan_reports
	WHERE target = ?
	ORDER BY timestamp DESC, id DESC
	`, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var results []ScanReportMetadata
	for rows.Next() {
		var meta ScanReportMetadata
		var timestamp, state string
		var branch, riskJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.Target, &timestamp, &state, &branch, &riskJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		meta.State = model.State(state)
		meta.Branch = model.State(branch.String)

		// An unreadable summary is shown as zero counts.
		if riskJSON.Valid && riskJSON.String != "" {
			_ = json.Unmarshal([]byte(riskJSON.String), &meta.RiskSummary) //nolint:errcheck
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// GetScanReportByID retrieves a scan report by its database ID.
// It returns nil when no report has that ID.
func (hdb *HistoryDB) GetScanReportByID(ctx context.Context, id int64) (*model.IconScanReport, error) {
	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, `
	SELECT report_json FROM scan_reports
	WHERE id = ?
	`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	return decodeReport(reportJSON)
}

// FindingRecord is one indexed finding.
type FindingRecord struct {
	ReportID    int64
	Target      string
	Code        string
	Description string
	Timestamp   time.Time
}

// QueryFindings queries indexed findings with optional target and code filters.
func (hdb *HistoryDB) QueryFindings(ctx context.Context, target, code string) ([]FindingRecord, error) {
	query := `
	SELECT report_id, target, code, description, timestamp
	FROM findings
	WHERE 1=1
	`
	args := make([]any, 0, 2)

	if target != "" {
		query += " AND target = ?"
		args = append(args, target)
	}
	if code != "" {
		query += " AND code = ?"
		args = append(args, code)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var results []FindingRecord
	for rows.Next() {
		var rec FindingRecord
		var description sql.NullString
		var timestamp string

		if err := rows.Scan(&rec.ReportID, &rec.Target, &rec.Code, &description, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}

		rec.Description = description.String
		rec.Timestamp = parseTimestamp(timestamp)
		results = append(results, rec)
	}

	return results, rows.Err()
}

// HasRecentScan checks if a target was scanned within the specified duration.
func (hdb *HistoryDB) HasRecentScan(ctx context.Context, target string, duration time.Duration) (bool, error) {
	modifier := fmt.Sprintf("-%d seconds", int(duration.Seconds()))

	var count int
	err := hdb.db.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM scan_reports
	WHERE target = ? AND timestamp > datetime('now', ?)
	`, target, modifier).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recent scan: %w", err)
	}

	return count > 0, nil
}

func decodeReport(reportJSON string) (*model.IconScanReport, error) {
	var report model.IconScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// It returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
