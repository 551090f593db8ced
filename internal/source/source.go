// Package source holds one extraction adapter per external data source.
// Every adapter validates its input before any I/O, converts all internal
// errors into a failed SourceResult, and never returns a Go error to the
// orchestrator.
package source

import (
	"context"
	"time"

	"github.com/sunbase-energy/sitescout/internal/model"
	"github.com/sunbase-energy/sitescout/internal/resilience"
)

// AddressAdapter extracts data keyed by the raw street address.
type AddressAdapter interface {
	Kind() model.Kind
	FetchByAddress(ctx context.Context, req model.ScrapeRequest) model.SourceResult
}

// PointAdapter extracts data keyed by resolved coordinates.
type PointAdapter interface {
	Kind() model.Kind
	FetchByPoint(ctx context.Context, pt model.GeoPoint) model.SourceResult
}

// failFrom converts an adapter error into a failed result, keeping
// timeouts distinguishable in the reported string.
func failFrom(kind model.Kind, op string, err error) model.SourceResult {
	if resilience.IsTimeout(err) {
		return model.Fail(kind, op+" timed out: "+err.Error())
	}
	return model.Fail(kind, op+": "+err.Error())
}

// step bounds one adapter step with its own timeout.
func step(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(stepCtx)
}
