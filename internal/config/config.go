package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultConnectTimeout bounds connection setup for every request.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultTimeout bounds the target page fetch, body included.
	DefaultTimeout = 15 * time.Second

	// DefaultProbeTimeout is zero: root and icon probes rely on the
	// transport and the connect timeout only.
	DefaultProbeTimeout time.Duration = 0

	// DefaultBatchSize checks targets one after another.
	DefaultBatchSize = 1

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultMaxBodySize limits the response body size read per request.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// AppName is the application name used for XDG directory paths.
	AppName = "iconscan"
)

// Config holds all configuration options for iconscan.
// It is populated from CLI flags and passed down explicitly.
type Config struct {
	// Targets are the base URLs to check, e.g. "https://example.com".
	// Trailing slashes are removed by NormalizeTargets.
	Targets []string

	// ConnectTimeout bounds connection setup for every request.
	ConnectTimeout time.Duration

	// Timeout bounds the target page fetch.
	Timeout time.Duration

	// ProbeTimeout bounds each root and icon probe. Zero disables it.
	ProbeTimeout time.Duration

	// UserAgent overrides the default mobile browser User-Agent when set.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// SkipUndeclaredTypeMismatch suppresses icon-type-mismatch findings
	// for icons without a type attribute.
	SkipUndeclaredTypeMismatch bool

	// Verbose enables debug logging.
	Verbose bool

	// BatchSize is the number of targets checked concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, .iconscan is searched in the current directory and then
	// in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configuration loaded from the
	// configuration file. Nil when no file was found.
	SiteConfigs *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report. Stdout when empty.
	ReportFile string

	// ProxyAddress routes every request through a SOCKS5 proxy in
	// "host:port" format, typically a Tor daemon.
	ProxyAddress string

	// UseEmbeddedTor starts an embedded Tor daemon and routes every
	// request through it. Mutually exclusive with ProxyAddress.
	UseEmbeddedTor bool

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap.
	TorStartupTimeout time.Duration

	// DBDir is the directory holding the scan history database.
	DBDir string

	// SaveToDB stores each report in the history database.
	SaveToDB bool

	// SkipRecent skips targets with a saved report younger than this
	// duration. Zero checks every target. Requires SaveToDB.
	SkipRecent time.Duration
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		ConnectTimeout:    DefaultConnectTimeout,
		Timeout:           DefaultTimeout,
		ProbeTimeout:      DefaultProbeTimeout,
		MaxBodySize:       DefaultMaxBodySize,
		BatchSize:         DefaultBatchSize,
		TorStartupTimeout: DefaultTorStartupTimeout,
	}
}

// XDGDataDir returns the XDG data directory for iconscan.
// On Linux: ~/.local/share/iconscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for iconscan.
// On Linux: ~/.config/iconscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// NormalizeTarget trims whitespace and trailing slashes from a target so
// that root-relative paths can be appended directly.
func NormalizeTarget(target string) string {
	return strings.TrimRight(strings.TrimSpace(target), "/")
}

// NormalizeTargets applies NormalizeTarget to every target, dropping
// empty entries.
func (c *Config) NormalizeTargets() {
	out := make([]string, 0, len(c.Targets))
	for _, t := range c.Targets {
		if n := NormalizeTarget(t); n != "" {
			out = append(out, n)
		}
	}
	c.Targets = out
}

// ValidateTarget checks that target is an absolute http or https URL
// with a host.
func ValidateTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidTarget, target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %s: scheme must be http or https", ErrInvalidTarget, target)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %s: missing host", ErrInvalidTarget, target)
	}
	return nil
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	for _, target := range c.Targets {
		if err := ValidateTarget(target); err != nil {
			return err
		}
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.ConnectTimeout <= 0 {
		return ErrInvalidConnectTimeout
	}

	if c.ProbeTimeout < 0 {
		return ErrInvalidProbeTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.ProxyAddress != "" && c.UseEmbeddedTor {
		return ErrConflictingTransports
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.SkipRecent < 0 {
		return ErrInvalidSkipRecent
	}

	if c.SkipRecent > 0 && !c.SaveToDB {
		return ErrSkipRecentWithoutHistory
	}

	return nil
}

// UsesTor reports whether requests are routed through a proxy or the
// embedded Tor daemon.
func (c *Config) UsesTor() bool {
	return c.ProxyAddress != "" || c.UseEmbeddedTor
}

// SiteConfigFor returns the merged site configuration for target, or the
// zero SiteConfig when no configuration file was loaded.
func (c *Config) SiteConfigFor(target string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(target)
}
