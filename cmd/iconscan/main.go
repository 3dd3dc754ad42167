// Package main provides the entry point for the iconscan CLI.
//
// iconscan checks the favicon and touch icon declarations of web sites,
// including Tor onion services, and reports compliance issues.
//
// Usage:
//
//	iconscan scan <url> [url...]
//	iconscan compare <url>
//
// See --help for all available options.
package main

// main is the entry point for iconscan.
func main() {
	Execute()
}
