package pipeline

import (
	"context"

	"github.com/nao1215/iconscan/internal/model"
)

// Sink receives findings as soon as they are discovered.
// The checks call ReportIssues once per finding, in discovery order.
// A sink shared by a BatchProcessor must be safe for concurrent use.
type Sink interface {
	ReportIssues(ctx context.Context, findings []model.Finding) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, findings []model.Finding) error

// ReportIssues implements Sink.
func (f SinkFunc) ReportIssues(ctx context.Context, findings []model.Finding) error {
	return f(ctx, findings)
}
