// Package report renders icon scan reports.
//
// Writers for three formats implement the Writer interface:
//   - SimpleWriter: plain text for terminals
//   - JSONWriter: JSON for tool integration
//   - MarkdownWriter: GitHub Flavored Markdown for sharing
//
// Report data lives in the model package; this package only formats it.
package report
