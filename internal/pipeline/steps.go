package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/iconscan/internal/icon"
	"github.com/nao1215/iconscan/internal/model"
	"github.com/nao1215/iconscan/internal/probe"
)

// DefaultPageTimeout bounds the whole target page fetch.
const DefaultPageTimeout = 15 * time.Second

// RootTouchIconPaths are probed, in order, when a page links no icons.
var RootTouchIconPaths = []string{
	"/apple-touch-icon.png",
	"/apple-touch-icon-76x76.png",
}

// undeclared renders an absent type or content type in finding text.
const undeclared = "none"

// StepConfig holds what the icon check steps share.
type StepConfig struct {
	// Client issues every HTTP request of the run.
	Client *probe.Client

	// Sink receives each finding as it is emitted. It may be nil.
	Sink Sink

	// PageTimeout bounds the target page fetch. Zero disables it.
	PageTimeout time.Duration

	// ProbeTimeout bounds each root and icon probe. Zero leaves them
	// bounded only by the transport.
	ProbeTimeout time.Duration

	// SkipUndeclaredTypeMismatch suppresses icon-type-mismatch for icons
	// that declare no type.
	SkipUndeclaredTypeMismatch bool

	// Logger is used by the steps. Defaults to slog.Default.
	Logger *slog.Logger
}

// IconCheckSteps returns the icon check steps in execution order.
func IconCheckSteps(cfg StepConfig) []Step {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		cfg.Client = probe.NewClient(probe.WithLogger(cfg.Logger))
	}
	return []Step{
		&FetchPageStep{cfg: cfg},
		&ExtractIconsStep{cfg: cfg},
		&NoIconsStep{cfg: cfg},
		&TouchOnlyStep{cfg: cfg},
		&TypeAttributeStep{cfg: cfg},
		&LiveVerifyStep{cfg: cfg},
	}
}

// NewIconCheckPipeline returns a pipeline running IconCheckSteps.
func NewIconCheckPipeline(cfg StepConfig, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(IconCheckSteps(cfg)...)
	return p
}

// emit appends a finding to the report and hands it to the sink on its own.
func emit(ctx context.Context, cfg StepConfig, report *model.IconScanReport, issue model.Issue, values map[string]string) error {
	finding, err := model.NewFinding(issue, values)
	if err != nil {
		return err
	}
	report.AddFinding(finding)

	cfg.Logger.Debug("finding emitted",
		"target", report.Target,
		"code", finding.Code,
		"description", finding.Description,
	)

	if cfg.Sink == nil {
		return nil
	}
	if err := cfg.Sink.ReportIssues(ctx, []model.Finding{finding}); err != nil {
		return fmt.Errorf("failed to report %s: %w", finding.Code, err)
	}
	return nil
}

// FetchPageStep downloads the target page with the site headers only; the
// mobile default headers are kept for the root and icon probes.
// Any status outside 2xx, and any transport failure, aborts the run.
type FetchPageStep struct {
	cfg StepConfig
}

// Name returns the step name.
func (s *FetchPageStep) Name() string {
	return "fetch_page"
}

// Do executes the page fetch.
func (s *FetchPageStep) Do(ctx context.Context, report *model.IconScanReport) error {
	result, err := s.cfg.Client.Get(ctx, report.Target,
		probe.WithTimeout(s.cfg.PageTimeout),
		probe.WithoutDefaultHeaders(),
	)
	if err != nil {
		return err
	}
	report.PageStatus = result.StatusCode

	if !result.Success() {
		return &probe.StatusError{URL: report.Target, StatusCode: result.StatusCode}
	}

	report.Page = result.Body
	report.Advance(model.StatePageFetched)
	return nil
}

// ExtractIconsStep parses icon links out of the fetched page.
type ExtractIconsStep struct {
	cfg StepConfig
}

// Name returns the step name.
func (s *ExtractIconsStep) Name() string {
	return "extract_icons"
}

// Do executes the extraction. The page body is released afterwards.
func (s *ExtractIconsStep) Do(_ context.Context, report *model.IconScanReport) error {
	icons, err := icon.ParseIcons(bytes.NewReader(report.Page))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", report.Target, err)
	}
	report.Icons = icons
	report.Page = nil

	s.cfg.Logger.Debug("icons extracted",
		"target", report.Target,
		"count", len(icons),
	)
	return nil
}

// NoIconsStep handles pages that link no icons. It probes the
// conventional root touch icon locations, reports touch-icons-in-root if
// one exists, then always reports no-icons and ends the run.
type NoIconsStep struct {
	cfg StepConfig
}

// Name returns the step name.
func (s *NoIconsStep) Name() string {
	return "no_icons"
}

// Do executes the no-icons branch when it applies.
func (s *NoIconsStep) Do(ctx context.Context, report *model.IconScanReport) error {
	if len(report.Icons) != 0 {
		return nil
	}
	report.Advance(model.StateNoIcons)

	// Both probes are issued, one after the other, before either is judged.
	found := false
	for _, path := range RootTouchIconPaths {
		result, err := s.cfg.Client.Get(ctx, report.Target+path, probe.WithTimeout(s.cfg.ProbeTimeout))
		if err != nil {
			return err
		}
		if result.OK() {
			found = true
		}
	}

	if found {
		if err := emit(ctx, s.cfg, report, model.IssueTouchIconsInRoot, nil); err != nil {
			return err
		}
	}
	return emit(ctx, s.cfg, report, model.IssueNoIcons, nil)
}

// TouchOnlyStep ends the run with only-touch-icons when the page links
// touch icons but no rel="icon".
type TouchOnlyStep struct {
	cfg StepConfig
}

// Name returns the step name.
func (s *TouchOnlyStep) Name() string {
	return "touch_only"
}

// Do executes the touch-only check.
func (s *TouchOnlyStep) Do(ctx context.Context, report *model.IconScanReport) error {
	touch, html5 := icon.Partition(report.Icons)
	if len(html5) == 0 && len(touch) != 0 {
		report.Advance(model.StateTouchOnly)
		return emit(ctx, s.cfg, report, model.IssueOnlyTouchIcons, nil)
	}
	report.Advance(model.StateFullChecks)
	return nil
}

// TypeAttributeStep checks the type attribute of every rel="icon" link.
// A missing type reports missing-icon-type and a type other than
// image/png reports bad-icon-type.
type TypeAttributeStep struct {
	cfg StepConfig
}

// Name returns the step name.
func (s *TypeAttributeStep) Name() string {
	return "type_attribute"
}

// Do executes the type attribute check.
func (s *TypeAttributeStep) Do(ctx context.Context, report *model.IconScanReport) error {
	for _, link := range report.Icons {
		if !icon.IsHTML5Icon(link) {
			continue
		}

		typ, ok := link.Type.Get()
		switch {
		case !ok:
			if err := emit(ctx, s.cfg, report, model.IssueMissingIconType, nil); err != nil {
				return err
			}
		case typ != "image/png":
			values := map[string]string{model.PlaceholderIconType: typ}
			if err := emit(ctx, s.cfg, report, model.IssueBadIconType, values); err != nil {
				return err
			}
		}
	}
	return nil
}

// LiveVerifyStep fetches every rel="icon" link and checks that it exists,
// that its content type matches the declared type and, for PNG icons that
// declare sizes, that the image dimensions match.
//
// A missing icon is reported and the next icon is checked. A transport
// failure or an undecodable PNG body aborts the run.
type LiveVerifyStep struct {
	cfg StepConfig
}

// Name returns the step name.
func (s *LiveVerifyStep) Name() string {
	return "live_verify"
}

// Do executes live verification.
func (s *LiveVerifyStep) Do(ctx context.Context, report *model.IconScanReport) error {
	for _, link := range report.Icons {
		if !icon.IsHTML5Icon(link) {
			continue
		}
		if err := s.verify(ctx, report, link); err != nil {
			return err
		}
	}
	return nil
}

// verify checks a single icon. The probe result does not outlive it.
func (s *LiveVerifyStep) verify(ctx context.Context, report *model.IconScanReport, link model.IconLink) error {
	iconURL := icon.NormalizeURL(report.Target, link.Href)

	result, err := s.cfg.Client.Get(ctx, iconURL, probe.WithTimeout(s.cfg.ProbeTimeout))
	if err != nil {
		return err
	}
	if !result.OK() {
		return emit(ctx, s.cfg, report, model.IssueIconNotFound, map[string]string{
			model.PlaceholderIconURL: iconURL,
		})
	}

	declared, hasType := link.Type.Get()
	actual := result.ContentType()
	if declared != actual || !hasType {
		if hasType || !s.cfg.SkipUndeclaredTypeMismatch {
			err := emit(ctx, s.cfg, report, model.IssueIconTypeMismatch, map[string]string{
				model.PlaceholderSpecifiedType: orUndeclared(declared, hasType),
				model.PlaceholderActualType:    orUndeclared(actual, actual != ""),
			})
			if err != nil {
				return err
			}
		}
	}

	sizes, hasSizes := link.Sizes.Get()
	if !link.Type.Is("image/png") || !hasSizes {
		return nil
	}

	actualSize, err := icon.ImageSize(result.Body)
	if err != nil {
		return fmt.Errorf("%s: %w", iconURL, err)
	}
	if actualSize != sizes {
		return emit(ctx, s.cfg, report, model.IssueIconSizeMismatch, map[string]string{
			model.PlaceholderSpecifiedSize: sizes,
			model.PlaceholderActualSize:    actualSize,
		})
	}
	return nil
}

// orUndeclared returns v, or "none" when v was not given.
func orUndeclared(v string, present bool) string {
	if !present {
		return undeclared
	}
	return v
}
