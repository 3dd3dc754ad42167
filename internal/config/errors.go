package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when no target URL is specified.
	ErrNoTarget = errors.New("no target specified: provide at least one URL")

	// ErrInvalidTarget is returned when a target is not an absolute http(s) URL.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrInvalidTimeout is returned when the page timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConnectTimeout is returned when the connect timeout is not positive.
	ErrInvalidConnectTimeout = errors.New("invalid connect timeout: must be positive")

	// ErrInvalidProbeTimeout is returned when the probe timeout is negative.
	// Use 0 to disable the probe timeout.
	ErrInvalidProbeTimeout = errors.New("invalid probe timeout: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingTransports is returned when both --proxy and --tor are specified.
	ErrConflictingTransports = errors.New("conflicting transports: --proxy and --tor cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidSkipRecent is returned when --skip-recent is negative.
	ErrInvalidSkipRecent = errors.New("invalid skip-recent duration: must be non-negative")

	// ErrSkipRecentWithoutHistory is returned when --skip-recent is combined with --no-save.
	ErrSkipRecentWithoutHistory = errors.New("conflicting history options: --skip-recent needs the history database and cannot be used with --no-save")
)
