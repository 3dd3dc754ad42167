package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Severity represents the risk level of a finding.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons and sorting. The String() method provides
// human-readable output when needed.
type Severity int

const (
	// SeverityInfo indicates informational findings with no direct impact.
	SeverityInfo Severity = iota

	// SeverityLow indicates minor issues with limited impact.
	// Every icon finding in the catalog is Low.
	SeverityLow

	// SeverityMedium indicates moderate issues that warrant attention.
	SeverityMedium

	// SeverityHigh indicates serious issues.
	SeverityHigh

	// SeverityCritical indicates severe issues that require immediate attention.
	SeverityCritical
)

// String returns the upper-case name of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Label returns the severity tier as it appears in findings ("Low", "High", ...).
// A Caser is stateful, so one is created per call.
func (s Severity) Label() string {
	return cases.Title(language.English).String(strings.ToLower(s.String()))
}
