package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/auth"
)

const emitTimeout = 2 * time.Second

// Emitter publishes events on behalf of services. A failed publish is
// logged and counted but never fails the request that caused it. A nil
// Emitter drops everything.
type Emitter struct {
	pub       Publisher
	logger    zerolog.Logger
	onFailure func()
}

// NewEmitter wraps pub. onFailure, when set, is called for each failed
// publish (the metrics counter).
func NewEmitter(pub Publisher, logger zerolog.Logger, onFailure func()) *Emitter {
	return &Emitter{pub: pub, logger: logger, onFailure: onFailure}
}

// Emit stamps the event with the acting user and time, then publishes it.
// It runs after the request's writes are committed, so it detaches from the
// request's cancellation and applies its own short deadline.
func (e *Emitter) Emit(ctx context.Context, evt Event) {
	if e == nil || e.pub == nil {
		return
	}
	if evt.Actor == "" {
		evt.Actor = auth.UserIDFromContext(ctx)
	}
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), emitTimeout)
	defer cancel()
	if err := e.pub.Publish(ctx, evt); err != nil {
		e.logger.Warn().Err(err).Str("event_type", evt.Type).Str("entity_id", evt.EntityID).Msg("failed to publish event")
		if e.onFailure != nil {
			e.onFailure()
		}
	}
}
