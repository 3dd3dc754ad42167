package plugin

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/iconscan/internal/model"
	"github.com/nao1215/iconscan/internal/pipeline"
	"github.com/nao1215/iconscan/internal/probe"
)

const (
	// Name is the plugin name shown by the host.
	Name = "Icon"

	// Weight tells the host how expensive a run is.
	Weight = "light"
)

// ErrNoTarget is returned when Options has no target.
var ErrNoTarget = errors.New("target is required")

// Reporter receives findings from a run.
// Implementations shared across concurrent runs must be safe for
// concurrent use.
type Reporter = pipeline.Sink

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc = pipeline.SinkFunc

// Options configures one run.
type Options struct {
	// Target is the base URL under test, without a trailing slash.
	Target string

	// ConnectTimeout bounds connection setup for every request.
	ConnectTimeout time.Duration

	// PageTimeout bounds the target page fetch.
	PageTimeout time.Duration

	// ProbeTimeout bounds each root and icon probe. Zero means no
	// per-probe timeout.
	ProbeTimeout time.Duration

	// Headers are sent on top of the default browser headers.
	Headers map[string]string

	// Cookie is a raw cookie string sent with every request.
	Cookie string

	// Dialer, when set, carries every connection (for example Tor).
	Dialer probe.Dialer

	// MaxBodySize limits how many bytes are read from each response.
	// Zero keeps probe.DefaultMaxBodySize.
	MaxBodySize int64

	// SkipUndeclaredTypeMismatch suppresses icon-type-mismatch for icons
	// without a type attribute.
	SkipUndeclaredTypeMismatch bool
}

// DefaultOptions returns the options used when the host only supplies a
// target.
func DefaultOptions(target string) Options {
	return Options{
		Target:         target,
		ConnectTimeout: probe.DefaultConnectTimeout,
		PageTimeout:    pipeline.DefaultPageTimeout,
	}
}

// IconPlugin checks favicon and touch icon declarations of a site.
type IconPlugin struct {
	logger *slog.Logger
}

// Option configures an IconPlugin.
type Option func(*IconPlugin)

// WithLogger sets the logger used by runs.
func WithLogger(logger *slog.Logger) Option {
	return func(p *IconPlugin) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates an IconPlugin.
func New(opts ...Option) *IconPlugin {
	p := &IconPlugin{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the plugin name.
func (p *IconPlugin) Name() string {
	return Name
}

// Weight returns the plugin weight.
func (p *IconPlugin) Weight() string {
	return Weight
}

// Pipeline builds the check pipeline for one run. Every call returns a
// fresh pipeline with its own HTTP client.
func (p *IconPlugin) Pipeline(opts Options, reporter Reporter) *pipeline.Pipeline {
	client := probe.NewClient(
		probe.WithConnectTimeout(opts.ConnectTimeout),
		probe.WithHeaders(opts.Headers),
		probe.WithCookie(opts.Cookie),
		probe.WithDialer(opts.Dialer),
		probe.WithMaxBodySize(opts.MaxBodySize),
		probe.WithLogger(p.logger),
	)

	return pipeline.NewIconCheckPipeline(pipeline.StepConfig{
		Client:                     client,
		Sink:                       reporter,
		PageTimeout:                opts.PageTimeout,
		ProbeTimeout:               opts.ProbeTimeout,
		SkipUndeclaredTypeMismatch: opts.SkipUndeclaredTypeMismatch,
		Logger:                     p.logger,
	}, pipeline.WithLogger(p.logger))
}

// Run checks opts.Target once.
//
// Findings go to reporter as they are found and are also collected in the
// returned report. The report is returned even when the run fails; its
// State is then model.StateFailed and the error is also returned.
func (p *IconPlugin) Run(ctx context.Context, opts Options, reporter Reporter) (*model.IconScanReport, error) {
	if strings.TrimSpace(opts.Target) == "" {
		return nil, ErrNoTarget
	}

	report := model.NewIconScanReport(opts.Target)
	err := p.Pipeline(opts, reporter).Execute(ctx, report)
	return report, err
}
