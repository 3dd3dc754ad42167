// Package model defines the core data structures used throughout IconScan.
//
// This package contains the following main types:
//   - IconLink: An icon-relevant <link> element extracted from a page
//   - Finding: One reported icon compliance issue
//   - IconScanReport: The result of checking one target
//   - SeveritySummary: Finding counts per severity for quick review
//
// The finding catalog (Issue -> Template) also lives here so that the
// pipeline, report writers, and database agree on codes and wording.
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The icon, pipeline, report, and database packages all need
// these types.
package model
