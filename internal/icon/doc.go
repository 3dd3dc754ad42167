// Package icon discovers and classifies icon declarations in HTML documents.
//
// It has three parts:
//   - ParseIcons extracts icon-relevant <link> elements from a page
//   - IsAppleTouchIcon, IsHTML5Icon, IsShortcutIcon and NormalizeURL
//     classify links and resolve their href against a target
//   - ImageSize reports the pixel dimensions of a fetched icon
//
// Everything in this package is free of network I/O; fetching is done by
// the pipeline through the probe package.
package icon
