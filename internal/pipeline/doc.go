// Package pipeline runs the icon checks for a target as a sequence of steps.
//
// A run walks a small state machine:
//
//	start -> page-fetched -> {no-icons | touch-only | full-checks} -> done
//
// Each step receives the report of the run and may advance its state.
// When a step moves the run into a terminal branch the remaining steps are
// skipped. A step error is fatal: the report is marked failed and the
// error is returned to the caller.
//
// A single run is strictly sequential and issues one HTTP request at a
// time. BatchProcessor checks several targets concurrently, one pipeline
// per target, using errgroup.
package pipeline
