// Package engine holds the collaborators shared by the claim ledger, the split
// workflow and the assignment engine.
package engine

import (
	"context"
	"log/slog"

	"github.com/mmynk/giftwiser/internal/activity"
	"github.com/mmynk/giftwiser/internal/changefeed"
	"github.com/mmynk/giftwiser/internal/metrics"
	"github.com/mmynk/giftwiser/internal/models"
	"github.com/mmynk/giftwiser/internal/resilience"
)

// Deps are the optional collaborators of an engine component. The zero value is
// usable: calls go straight to the store and nothing is emitted.
type Deps struct {
	// Guard wraps every store call.
	Guard *resilience.Guard

	// Sink receives activity for the notification subsystem.
	Sink activity.Sink

	// Feed receives committed changes.
	Feed changefeed.Publisher

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Log returns the configured logger or the default one.
func (d Deps) Log() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Emit posts activity after a committed mutation. The mutation already happened, so a
// failed post is logged rather than returned.
func (d Deps) Emit(ctx context.Context, a models.Activity) {
	if d.Sink == nil {
		return
	}
	if err := d.Sink.Post(ctx, a); err != nil {
		d.Log().Error("Failed to post activity",
			"kind", string(a.Kind),
			"event_id", a.EventID,
			"item_id", a.ItemID,
			"error", err)
	}
}

// Publish forwards a committed change to the feed.
func (d Deps) Publish(c changefeed.Change) {
	if d.Feed == nil {
		return
	}
	d.Feed.Publish(c)
}

// Observe records an operation outcome.
func (d Deps) Observe(operation string, err error) {
	d.Metrics.ObserveOperation(operation, err)
}
