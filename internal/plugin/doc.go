// Package plugin exposes the icon checks to a scanning host.
//
// The host supplies a target URL and a Reporter. The plugin runs the
// checks for that target once and hands every finding to the Reporter as
// soon as it is found, one finding per call. A run error (an unreachable
// or failing target page, an undecodable PNG icon) is returned from Run
// and is never reported as a finding.
package plugin
