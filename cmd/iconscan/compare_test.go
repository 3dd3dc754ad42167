package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/iconscan/internal/database"
	"github.com/nao1215/iconscan/internal/model"
)

const compareTarget = "https://example.com"

// scanAt builds a finished report dated at the given time.
func scanAt(date time.Time, findings ...model.Finding) *model.IconScanReport {
	r := model.NewIconScanReport(compareTarget)
	r.DateScanned = date
	for _, f := range findings {
		r.AddFinding(f)
	}
	r.Advance(model.StateFullChecks)
	r.Advance(model.StateDone)
	return r
}

// seedHistory stores reports oldest first and returns the database directory
// with the stored IDs.
func seedHistory(t *testing.T, reports ...*model.IconScanReport) (string, []int64) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ids := make([]int64, 0, len(reports))
	for _, r := range reports {
		id, err := db.SaveScanReport(context.Background(), r)
		if err != nil {
			t.Fatalf("failed to save report: %v", err)
		}
		ids = append(ids, id)
	}
	return dir, ids
}

// runCompare executes the compare command and returns its output.
func runCompare(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"compare"}, args...))
	err := root.Execute()
	return out.String(), err
}

// catalogFinding builds a finding for an issue that is known to be in the catalog.
func catalogFinding(issue model.Issue, values map[string]string) model.Finding {
	f, err := model.NewFinding(issue, values)
	if err != nil {
		panic(err)
	}
	return f
}

func badType(typ string) model.Finding {
	return catalogFinding(model.IssueBadIconType, map[string]string{model.PlaceholderIconType: typ})
}

func notFound(url string) model.Finding {
	return catalogFinding(model.IssueIconNotFound, map[string]string{model.PlaceholderIconURL: url})
}

func TestNewCompareCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCompareCmd()

	if cmd.Use != "compare [url]" {
		t.Errorf("unexpected Use: got %q", cmd.Use)
	}

	flagsWithShort := map[string]string{
		"list":         "l",
		"list-targets": "L",
		"code":         "",
		"with-scan-id": "i",
		"since":        "s",
		"json":         "j",
		"markdown":     "m",
		"db-dir":       "",
	}
	for flag, shorthand := range flagsWithShort {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			t.Errorf("expected flag %q to exist", flag)
			continue
		}
		if f.Shorthand != shorthand {
			t.Errorf("flag %q: expected shorthand %q, got %q", flag, shorthand, f.Shorthand)
		}
	}
}

func TestCompareReports(t *testing.T) {
	t.Parallel()

	now := time.Now()
	previous := scanAt(now.Add(-time.Hour), badType("image/x-icon"), notFound("https://example.com/a.png"))
	current := scanAt(now, badType("image/x-icon"), notFound("https://example.com/b.png"), notFound("https://example.com/c.png"))

	result := compareReports(previous, current)

	if result.Target != compareTarget {
		t.Errorf("unexpected target %q", result.Target)
	}
	if len(result.NewFindings) != 2 {
		t.Fatalf("expected 2 new findings, got %d", len(result.NewFindings))
	}
	if !strings.Contains(result.NewFindings[0].Description, "b.png") ||
		!strings.Contains(result.NewFindings[1].Description, "c.png") {
		t.Errorf("expected new findings in key order, got %+v", result.NewFindings)
	}
	if len(result.ResolvedFindings) != 1 || !strings.Contains(result.ResolvedFindings[0].Description, "a.png") {
		t.Errorf("unexpected resolved findings: %+v", result.ResolvedFindings)
	}
	if result.UnchangedCount != 1 {
		t.Errorf("expected 1 unchanged finding, got %d", result.UnchangedCount)
	}
	if result.RiskChange.Direction != riskDirectionWorsened {
		t.Errorf("expected worsened, got %q", result.RiskChange.Direction)
	}
	if result.RiskChange.LowDelta != 1 {
		t.Errorf("expected low delta +1, got %d", result.RiskChange.LowDelta)
	}
	if result.PreviousScan.TotalFindings != 2 || result.CurrentScan.TotalFindings != 3 {
		t.Errorf("unexpected totals: %+v %+v", result.PreviousScan, result.CurrentScan)
	}
}

func TestCompareReportsDuplicateFindings(t *testing.T) {
	t.Parallel()

	missingType := func() model.Finding {
		return catalogFinding(model.IssueMissingIconType, nil)
	}
	now := time.Now()

	tests := []struct {
		name          string
		previous      []model.Finding
		current       []model.Finding
		wantNew       int
		wantResolved  int
		wantUnchanged int
	}{
		{
			name:          "three copies shrink to one",
			previous:      []model.Finding{missingType(), missingType(), missingType()},
			current:       []model.Finding{missingType()},
			wantNew:       0,
			wantResolved:  2,
			wantUnchanged: 1,
		},
		{
			name:          "one copy grows to three",
			previous:      []model.Finding{missingType()},
			current:       []model.Finding{missingType(), missingType(), missingType()},
			wantNew:       2,
			wantResolved:  0,
			wantUnchanged: 1,
		},
		{
			name:          "copies of different keys",
			previous:      []model.Finding{missingType(), missingType(), badType("image/gif")},
			current:       []model.Finding{missingType(), badType("image/gif"), badType("image/gif")},
			wantNew:       1,
			wantResolved:  1,
			wantUnchanged: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			previous := scanAt(now.Add(-time.Hour), tt.previous...)
			current := scanAt(now, tt.current...)
			result := compareReports(previous, current)

			if len(result.NewFindings) != tt.wantNew {
				t.Errorf("expected %d new findings, got %d", tt.wantNew, len(result.NewFindings))
			}
			if len(result.ResolvedFindings) != tt.wantResolved {
				t.Errorf("expected %d resolved findings, got %d", tt.wantResolved, len(result.ResolvedFindings))
			}
			if result.UnchangedCount != tt.wantUnchanged {
				t.Errorf("expected %d unchanged findings, got %d", tt.wantUnchanged, result.UnchangedCount)
			}

			// Every finding is accounted for exactly once on each side.
			if got := result.UnchangedCount + len(result.NewFindings); got != len(tt.current) {
				t.Errorf("unchanged + new = %d, expected %d", got, len(tt.current))
			}
			if got := result.UnchangedCount + len(result.ResolvedFindings); got != len(tt.previous) {
				t.Errorf("unchanged + resolved = %d, expected %d", got, len(tt.previous))
			}
			if delta := len(tt.current) - len(tt.previous); result.RiskChange.LowDelta != delta {
				t.Errorf("expected low delta %d, got %d", delta, result.RiskChange.LowDelta)
			}
		})
	}
}

func TestNormalizeFindingCode(t *testing.T) {
	t.Parallel()

	codes := findingCodes()
	if len(codes) != 8 || codes[0] != "ICON-0" || codes[7] != "ICON-7" {
		t.Errorf("unexpected catalog codes: %v", codes)
	}

	got, err := normalizeFindingCode(" icon-3 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ICON-3" {
		t.Errorf("expected ICON-3, got %q", got)
	}

	if _, err := normalizeFindingCode("ICON-8"); !errors.Is(err, errUnknownFindingCode) {
		t.Errorf("expected errUnknownFindingCode, got %v", err)
	}
}

func TestCalculateRiskChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		previous model.SeveritySummary
		current  model.SeveritySummary
		want     string
	}{
		{"fewer findings", model.SeveritySummary{Low: 3}, model.SeveritySummary{Low: 1}, riskDirectionImproved},
		{"more findings", model.SeveritySummary{Low: 1}, model.SeveritySummary{Low: 2}, riskDirectionWorsened},
		{"same findings", model.SeveritySummary{Low: 2}, model.SeveritySummary{Low: 2}, riskDirectionUnchanged},
		{"higher severity weighs more", model.SeveritySummary{Low: 5}, model.SeveritySummary{High: 1}, riskDirectionWorsened},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := calculateRiskChange(tt.previous, tt.current).Direction; got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	t.Parallel()

	t.Run("formatDelta", func(t *testing.T) {
		t.Parallel()
		for delta, want := range map[int]string{3: "+3", -2: "-2", 0: "0"} {
			if got := formatDelta(delta); got != want {
				t.Errorf("formatDelta(%d) = %q, want %q", delta, got, want)
			}
		}
	})

	t.Run("formatRiskSummary", func(t *testing.T) {
		t.Parallel()
		if got := formatRiskSummary(model.SeveritySummary{}); got != noFindingsMessage {
			t.Errorf("expected %q, got %q", noFindingsMessage, got)
		}
		if got := formatRiskSummary(model.SeveritySummary{High: 1, Low: 2}); got != "H:1 L:2" {
			t.Errorf("expected %q, got %q", "H:1 L:2", got)
		}
	})

	t.Run("formatRiskDirection", func(t *testing.T) {
		t.Parallel()
		if got := formatRiskDirection(riskDirectionImproved); !strings.HasPrefix(got, "IMPROVED") {
			t.Errorf("unexpected %q", got)
		}
		if got := formatRiskDirection("other"); got != "UNCHANGED" {
			t.Errorf("unexpected %q", got)
		}
	})
}

func TestRunCompareCmd(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)

	t.Run("requires target", func(t *testing.T) {
		t.Parallel()
		_, err := runCompare(t, "--db-dir", t.TempDir())
		if err == nil || !strings.Contains(err.Error(), "target URL is required") {
			t.Errorf("expected missing target error, got %v", err)
		}
	})

	t.Run("rejects invalid target", func(t *testing.T) {
		t.Parallel()
		if _, err := runCompare(t, "--db-dir", t.TempDir(), "not a url"); err == nil {
			t.Error("expected error for invalid target")
		}
	})

	t.Run("lists targets", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t, scanAt(base))
		out, err := runCompare(t, "--db-dir", dir, "--list-targets")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Scanned sites (1)") || !strings.Contains(out, compareTarget) {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("lists empty database", func(t *testing.T) {
		t.Parallel()
		out, err := runCompare(t, "--db-dir", t.TempDir(), "--list-targets")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No scanned sites found") {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("lists history", func(t *testing.T) {
		t.Parallel()
		dir, ids := seedHistory(t, scanAt(base), scanAt(base.Add(time.Hour), badType("image/gif")))
		out, err := runCompare(t, "--db-dir", dir, "--list", compareTarget+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "2 scans") {
			t.Errorf("expected two scans, got %s", out)
		}
		if !strings.Contains(out, "L:1") || !strings.Contains(out, noFindingsMessage) {
			t.Errorf("expected risk summaries, got %s", out)
		}
		if len(ids) != 2 {
			t.Fatalf("expected 2 ids, got %d", len(ids))
		}
	})

	t.Run("needs two scans", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t, scanAt(base))
		_, err := runCompare(t, "--db-dir", dir, compareTarget)
		if err == nil || !strings.Contains(err.Error(), "at least 2 scans") {
			t.Errorf("expected not enough scans error, got %v", err)
		}
	})

	t.Run("no history", func(t *testing.T) {
		t.Parallel()
		_, err := runCompare(t, "--db-dir", t.TempDir(), compareTarget)
		if err == nil || !strings.Contains(err.Error(), "no scan history") {
			t.Errorf("expected no history error, got %v", err)
		}
	})

	t.Run("compares latest two scans as text", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t,
			scanAt(base, badType("image/gif")),
			scanAt(base.Add(time.Hour), notFound("https://example.com/favicon.png")),
		)
		out, err := runCompare(t, "--db-dir", dir, compareTarget)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"Scan Comparison: " + compareTarget, "UNCHANGED", "[+] [Low] ICON-4", "[-] [Low] ICON-3"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("compares as JSON", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t,
			scanAt(base),
			scanAt(base.Add(time.Hour), badType("image/gif")),
		)
		out, err := runCompare(t, "--db-dir", dir, "--json", compareTarget)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var result ComparisonResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(result.NewFindings) != 1 || result.NewFindings[0].Code != "ICON-3" {
			t.Errorf("unexpected new findings: %+v", result.NewFindings)
		}
		if result.RiskChange.Direction != riskDirectionWorsened {
			t.Errorf("expected worsened, got %q", result.RiskChange.Direction)
		}
	})

	t.Run("compares as markdown", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t,
			scanAt(base, badType("image/gif")),
			scanAt(base.Add(time.Hour)),
		)
		out, err := runCompare(t, "--db-dir", dir, "--markdown", compareTarget)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"# Scan Comparison: " + compareTarget, "Critical", "Resolved Findings (1)", "IMPROVED"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, out)
			}
		}
	})

	t.Run("rejects conflicting formats", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t, scanAt(base), scanAt(base.Add(time.Hour)))
		if _, err := runCompare(t, "--db-dir", dir, "--json", "--markdown", compareTarget); err == nil {
			t.Error("expected error for conflicting formats")
		}
	})

	t.Run("compares with scan ID", func(t *testing.T) {
		t.Parallel()
		dir, ids := seedHistory(t,
			scanAt(base, badType("image/gif")),
			scanAt(base.Add(time.Hour)),
			scanAt(base.Add(2*time.Hour)),
		)
		out, err := runCompare(t, "--db-dir", dir, "--json", "--with-scan-id", itoa(ids[0]), compareTarget)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var result ComparisonResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(result.ResolvedFindings) != 1 {
			t.Errorf("expected 1 resolved finding, got %+v", result.ResolvedFindings)
		}
	})

	t.Run("rejects unknown scan ID", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t, scanAt(base), scanAt(base.Add(time.Hour)))
		_, err := runCompare(t, "--db-dir", dir, "--with-scan-id", "999", compareTarget)
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("rejects scan ID of another target", func(t *testing.T) {
		t.Parallel()
		other := model.NewIconScanReport("https://other.example")
		dir, ids := seedHistory(t, scanAt(base), scanAt(base.Add(time.Hour)), other)
		_, err := runCompare(t, "--db-dir", dir, "--with-scan-id", itoa(ids[2]), compareTarget)
		if err == nil || !strings.Contains(err.Error(), "belongs to") {
			t.Errorf("expected ownership error, got %v", err)
		}
	})

	t.Run("compares since date", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t,
			scanAt(base.AddDate(0, 0, -10), badType("image/gif"), notFound("https://example.com/x.png")),
			scanAt(base.AddDate(0, 0, -1), badType("image/gif")),
			scanAt(base),
		)
		since := base.AddDate(0, 0, -2).Format("2006-01-02")
		out, err := runCompare(t, "--db-dir", dir, "--json", "--since", since, compareTarget)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var result ComparisonResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		// The scan from ten days ago is before the date and must be skipped.
		if result.PreviousScan.TotalFindings != 1 {
			t.Errorf("expected previous scan with 1 finding, got %+v", result.PreviousScan)
		}
	})

	t.Run("since date with only latest scan", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t, scanAt(base.AddDate(0, 0, -10)), scanAt(base))
		_, err := runCompare(t, "--db-dir", dir, "--since", base.Format("2006-01-02"), compareTarget)
		if err == nil || !strings.Contains(err.Error(), "only one scan") {
			t.Errorf("expected only one scan error, got %v", err)
		}
	})

	t.Run("invalid since date", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t, scanAt(base), scanAt(base.Add(time.Hour)))
		_, err := runCompare(t, "--db-dir", dir, "--since", "01/02/2026", compareTarget)
		if err == nil || !strings.Contains(err.Error(), "invalid date format") {
			t.Errorf("expected date format error, got %v", err)
		}
	})

	t.Run("lists findings by code", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t,
			scanAt(base, badType("image/gif")),
			scanAt(base.Add(time.Hour), badType("image/x-icon"), notFound("https://example.com/favicon.png")),
		)
		out, err := runCompare(t, "--db-dir", dir, "--code", "icon-3", compareTarget)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "ICON-3 findings for "+compareTarget+" (2)") {
			t.Errorf("expected two ICON-3 findings, got:\n%s", out)
		}
		if strings.Contains(out, "cannot be found") {
			t.Errorf("expected only ICON-3 findings, got:\n%s", out)
		}
		newest, oldest := strings.Index(out, "image/x-icon"), strings.Index(out, "image/gif")
		if newest < 0 || oldest < 0 || newest > oldest {
			t.Errorf("expected newest finding first, got:\n%s", out)
		}
	})

	t.Run("code without findings", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t, scanAt(base, badType("image/gif")))
		out, err := runCompare(t, "--db-dir", dir, "--code", "ICON-6", compareTarget)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "No ICON-6 findings recorded") {
			t.Errorf("unexpected output: %s", out)
		}
	})

	t.Run("rejects unknown code before opening the database", func(t *testing.T) {
		t.Parallel()
		dir := filepath.Join(t.TempDir(), "db")
		_, err := runCompare(t, "--db-dir", dir, "--code", "ICON-9", compareTarget)
		if !errors.Is(err, errUnknownFindingCode) {
			t.Errorf("expected errUnknownFindingCode, got %v", err)
		}
		if _, statErr := os.Stat(dir); !os.IsNotExist(statErr) {
			t.Errorf("expected no database directory, got %v", statErr)
		}
	})
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
