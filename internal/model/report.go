package model

import "time"

// State is a position in the check run state machine:
//
//	start -> page-fetched -> {no-icons | touch-only | full-checks} -> done
//
// Any fatal error moves the run to failed.
type State string

const (
	// StateStart is the state of a freshly created report.
	StateStart State = "start"

	// StatePageFetched means the target page was fetched successfully.
	StatePageFetched State = "page-fetched"

	// StateNoIcons is the terminal branch taken when no icon links exist.
	StateNoIcons State = "no-icons"

	// StateTouchOnly is the terminal branch taken when only touch icons exist.
	StateTouchOnly State = "touch-only"

	// StateFullChecks means type and live checks are running.
	StateFullChecks State = "full-checks"

	// StateDone means the run finished without a fatal error.
	StateDone State = "done"

	// StateFailed means the run aborted with a fatal error.
	StateFailed State = "failed"
)

// Terminal reports whether no further checks may run in this state.
func (s State) Terminal() bool {
	switch s {
	case StateNoIcons, StateTouchOnly, StateDone, StateFailed:
		return true
	default:
		return false
	}
}

// IsBranch reports whether s is one of the three branches of a run.
func (s State) IsBranch() bool {
	return s == StateNoIcons || s == StateTouchOnly || s == StateFullChecks
}

// IconScanReport is the result of checking one target.
//
// Design decision: The pipeline fills one report per run. Nothing is
// shared between reports, so separate targets can be checked concurrently
// while a single run stays sequential.
type IconScanReport struct {
	// Target is the base URL under test.
	Target string `json:"target"`

	// DateScanned is the timestamp when the run started.
	DateScanned time.Time `json:"date_scanned"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`

	// PageStatus is the HTTP status of the target page fetch.
	PageStatus int `json:"page_status,omitempty"`

	// Page is the raw page body. It is consumed by the extraction step
	// and never serialized.
	Page []byte `json:"-"`

	// Icons are the icon links extracted from the page, in document order.
	Icons []IconLink `json:"icons"`

	// Findings are the findings emitted so far, in emission order.
	Findings []Finding `json:"findings"`

	// State is the current state of the run.
	State State `json:"state"`

	// Branch is the branch the run took (no-icons, touch-only or full-checks).
	Branch State `json:"branch,omitempty"`

	// PerformedSteps lists the names of steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error is the fatal error that aborted the run, if any.
	Error error `json:"-"`

	// ErrorMessage is the serializable form of Error.
	ErrorMessage string `json:"error,omitempty"`
}

// NewIconScanReport creates a new report for the given target.
func NewIconScanReport(target string) *IconScanReport {
	return &IconScanReport{
		Target:      target,
		DateScanned: time.Now(),
		Icons:       make([]IconLink, 0),
		Findings:    make([]Finding, 0),
		State:       StateStart,
	}
}

// AddFinding appends a finding. Findings are never removed or reordered.
func (r *IconScanReport) AddFinding(finding Finding) {
	r.Findings = append(r.Findings, finding)
}

// Advance moves the run to state. Branch states are also recorded in Branch.
func (r *IconScanReport) Advance(state State) {
	r.State = state
	if state.IsBranch() {
		r.Branch = state
	}
}

// Fail records a fatal error and moves the run to the failed state.
func (r *IconScanReport) Fail(err error) {
	r.State = StateFailed
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Failed reports whether the run aborted.
func (r *IconScanReport) Failed() bool {
	return r.State == StateFailed
}

// HasFindings returns true if the report contains any findings.
func (r *IconScanReport) HasFindings() bool {
	return len(r.Findings) > 0
}

// FindingsBySeverity returns findings of the given severity in emission order.
func (r *IconScanReport) FindingsBySeverity(severity Severity) []Finding {
	out := make([]Finding, 0)
	for _, f := range r.Findings {
		if f.Severity == severity {
			out = append(out, f)
		}
	}
	return out
}

// Codes returns the finding codes in emission order.
func (r *IconScanReport) Codes() []string {
	codes := make([]string, len(r.Findings))
	for i, f := range r.Findings {
		codes[i] = f.Code
	}
	return codes
}
