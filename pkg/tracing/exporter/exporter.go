// Package exporter ships finished spans to a trace backend. A Reporter owns a
// bounded queue and a single worker goroutine that batches spans and hands
// them to the active Exporter.
package exporter

import (
	"context"

	"github.com/JailtonJunior94/tracekit-go/pkg/tracing/span"
)

// Exporter sends batches of finished spans over a transport. Export is called
// from a single goroutine and must honour ctx's deadline. The batch slice is
// reused after Export returns and must not be retained.
type Exporter interface {
	Export(ctx context.Context, batch []span.FinishedSpan) error
	Shutdown(ctx context.Context) error
}

// ExportFunc adapts a function to the Exporter interface. Its Shutdown does
// nothing.
type ExportFunc func(ctx context.Context, batch []span.FinishedSpan) error

func (f ExportFunc) Export(ctx context.Context, batch []span.FinishedSpan) error {
	return f(ctx, batch)
}

func (f ExportFunc) Shutdown(context.Context) error {
	return nil
}

// Sink receives finished spans from the tracing hot path. Push never blocks
// and reports whether the span was accepted.
type Sink interface {
	Push(s span.FinishedSpan) bool
}
