package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownIssue is returned when a finding is requested for an issue
// that is not in the catalog.
var ErrUnknownIssue = errors.New("unknown issue")

// Issue is the catalog key of a finding.
type Issue string

// Catalog keys. The string values are the keys used in reports.
const (
	IssueOnlyTouchIcons   Issue = "only-touch-icons"
	IssueTouchIconsInRoot Issue = "touch-icons-in-root"
	IssueNoIcons          Issue = "no-icons"
	IssueBadIconType      Issue = "bad-icon-type"
	IssueIconNotFound     Issue = "icon-not-found"
	IssueIconTypeMismatch Issue = "icon-type-mismatch"
	IssueIconSizeMismatch Issue = "icon-size-mismatch"
	IssueMissingIconType  Issue = "missing-icon-type"
)

// Template placeholder names used in descriptions.
const (
	PlaceholderIconType      = "icon_type"
	PlaceholderIconURL       = "icon_url"
	PlaceholderSpecifiedType = "specified_type"
	PlaceholderActualType    = "actual_type"
	PlaceholderSpecifiedSize = "specified_size"
	PlaceholderActualSize    = "actual_size"
)

// Template is the static description of one catalog entry.
// Description may contain {name} placeholders.
type Template struct {
	Code        string
	Summary     string
	Description string
	Severity    Severity
}

// furtherInfo is attached to every icon finding.
var furtherInfo = [...]Reference{
	{
		URL:   "http://www.w3.org/TR/html5/links.html#rel-icon",
		Title: "W3C - Link type 'icon' documentation",
	},
	{
		URL:   "http://www.w3.org/2005/10/howto-favicon",
		Title: "How to Add a Favicon to your Site",
	},
}

// issueOrder lists catalog keys in code order.
var issueOrder = [...]Issue{
	IssueOnlyTouchIcons,
	IssueTouchIconsInRoot,
	IssueNoIcons,
	IssueBadIconType,
	IssueIconNotFound,
	IssueIconTypeMismatch,
	IssueIconSizeMismatch,
	IssueMissingIconType,
}

// catalog maps issues to their templates. It is built once and only read.
var catalog = map[Issue]Template{
	IssueOnlyTouchIcons: {
		Code:        "ICON-0",
		Summary:     "The site only provides an iOS compatible icon",
		Description: "The site only provides an iOS compatible icon",
		Severity:    SeverityLow,
	},
	IssueTouchIconsInRoot: {
		Code:     "ICON-1",
		Summary:  "The site provides iOS compatible icons in the root but not with <link> tags.",
		Severity: SeverityLow,
	},
	IssueNoIcons: {
		Code:        "ICON-2",
		Summary:     "The site does not provide any icons through <link> tags",
		Description: "The site does not provide any icons through <link> tags",
		Severity:    SeverityLow,
	},
	IssueBadIconType: {
		Code:        "ICON-3",
		Summary:     "The site is providing an icon with a type that is not recommended.",
		Description: "The site is providing an icon with type {icon_type}",
		Severity:    SeverityLow,
	},
	IssueIconNotFound: {
		Code:        "ICON-4",
		Summary:     "The site links to an icon that cannot be found",
		Description: "The site links to an icon that cannot be found ({icon_url})",
		Severity:    SeverityLow,
	},
	IssueIconTypeMismatch: {
		Code:    "ICON-5",
		Summary: "The site links to an icon that returns a different content type as specified",
		Description: "The site links to an icon that returns a different content type as specified. " +
			"The site specified {specified_type} but we got {actual_type}",
		Severity: SeverityLow,
	},
	IssueIconSizeMismatch: {
		Code:    "ICON-6",
		Summary: "The site links to an icon that has a different size as specified",
		Description: "The site links to an icon that returns a different size as specified. " +
			"The site specified {specified_size} but we got {actual_size}",
		Severity: SeverityLow,
	},
	IssueMissingIconType: {
		Code:        "ICON-7",
		Summary:     "The site links to an icon without a type attribute",
		Description: "The site links to an icon without a type attribute",
		Severity:    SeverityLow,
	},
}

// Issues returns all catalog keys in code order.
func Issues() []Issue {
	out := make([]Issue, len(issueOrder))
	copy(out, issueOrder[:])
	return out
}

// LookupTemplate returns the template registered for issue.
func LookupTemplate(issue Issue) (Template, bool) {
	t, ok := catalog[issue]
	return t, ok
}

// FurtherInfo returns the reading list attached to icon findings.
func FurtherInfo() []Reference {
	out := make([]Reference, len(furtherInfo))
	copy(out, furtherInfo[:])
	return out
}

// NewFinding builds a finding for issue, filling description placeholders
// from values. Placeholders without a value are left untouched.
func NewFinding(issue Issue, values map[string]string) (Finding, error) {
	t, ok := LookupTemplate(issue)
	if !ok {
		return Finding{}, fmt.Errorf("%w: %q", ErrUnknownIssue, issue)
	}

	return Finding{
		Issue:        issue,
		Code:         t.Code,
		Severity:     t.Severity,
		SeverityText: t.Severity.Label(),
		Summary:      t.Summary,
		Description:  formatDescription(t.Description, values),
		URLs:         []string{},
		FurtherInfo:  FurtherInfo(),
	}, nil
}

// formatDescription substitutes {name} placeholders.
func formatDescription(description string, values map[string]string) string {
	if description == "" || len(values) == 0 {
		return description
	}

	pairs := make([]string, 0, len(values)*2)
	for name, value := range values {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(description)
}
