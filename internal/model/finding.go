package model

// Reference is a further-reading link attached to a finding.
type Reference struct {
	// URL is the address of the document.
	URL string `json:"url"`

	// Title is a human-readable name for the document.
	Title string `json:"title"`
}

// Finding represents one reported icon compliance issue.
// Findings are created from the catalog via NewFinding and are never
// modified after they have been handed to a reporter.
type Finding struct {
	// Issue is the stable catalog key (e.g. "icon-not-found").
	Issue Issue `json:"issue"`

	// Code is the stable report code (e.g. "ICON-4").
	Code string `json:"code"`

	// Severity is the risk level.
	Severity Severity `json:"severity"`

	// SeverityText is the human-readable severity tier ("Low").
	SeverityText string `json:"severity_text"`

	// Summary is a one-line description of the issue.
	Summary string `json:"summary"`

	// Description is the templated description with runtime values filled in.
	Description string `json:"description,omitempty"`

	// URLs lists URLs affected by the finding.
	URLs []string `json:"urls"`

	// FurtherInfo contains reading material about the issue.
	FurtherInfo []Reference `json:"further_info,omitempty"` //nolint:tagliatelle // matches report field name
}

// Key returns the identity used to compare findings across scans.
func (f Finding) Key() string {
	return f.Code + "|" + f.Description
}
