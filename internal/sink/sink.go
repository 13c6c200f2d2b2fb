// Package sink implements Result Sinks: durable destinations for named
// analysis result sets and for partition export streams.
package sink

import (
	"context"

	"github.com/logmill/logmill/pkg/types"
)

// RecordScan streams one partition's records in ingestion order.
type RecordScan func(ctx context.Context, fn func(rec types.LogRecord) error) error

// Sink accepts a named result set per analysis. Result ordering carries
// rank semantics; implementations must preserve it when rendering.
type Sink interface {
	// WriteResult persists one analysis result set.
	WriteResult(ctx context.Context, res types.Result) error

	// WritePartition re-materializes one status partition as a named
	// output stream.
	WritePartition(ctx context.Context, status int, scan RecordScan) error

	// Close flushes and releases the sink.
	Close() error
}

// Multi fans writes out to several sinks. The first error wins; later
// sinks are still attempted so one broken sink does not starve the rest.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a fan-out sink.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// WriteResult writes the result to every sink.
func (m *Multi) WriteResult(ctx context.Context, res types.Result) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.WriteResult(ctx, res); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WritePartition writes the partition stream to every sink.
func (m *Multi) WritePartition(ctx context.Context, status int, scan RecordScan) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.WritePartition(ctx, status, scan); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every sink.
func (m *Multi) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
