package model

// SeveritySummary counts findings per severity.
type SeveritySummary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Total returns the number of counted findings.
func (s SeveritySummary) Total() int {
	return s.Critical + s.High + s.Medium + s.Low + s.Info
}

// Summarize counts the findings of a report by severity.
func Summarize(findings []Finding) SeveritySummary {
	var s SeveritySummary
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		case SeverityInfo:
			s.Info++
		}
	}
	return s
}

// Summary returns the severity counts of the report's findings.
func (r *IconScanReport) Summary() SeveritySummary {
	return Summarize(r.Findings)
}
