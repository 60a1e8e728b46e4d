package reel

import (
	"context"
	"sync"
	"time"

	"github.com/flowbaker/runreel/pkg/domain"

	"github.com/rs/zerolog/log"
)

// ReelObserver fans events out to its handlers. Handler failures are logged and never reach the
// pipeline. An observer without handlers is a no-op.
type ReelObserver struct {
	mu       sync.RWMutex
	handlers []domain.ReelEventHandler
}

func NewReelObserver() *ReelObserver {
	return &ReelObserver{
		handlers: []domain.ReelEventHandler{},
	}
}

func (o *ReelObserver) Subscribe(handler domain.ReelEventHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.handlers = append(o.handlers, handler)
}

func (o *ReelObserver) Notify(ctx context.Context, event domain.ReelEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	o.mu.RLock()
	handlers := o.handlers
	o.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			log.Warn().
				Err(err).
				Str("event_type", string(event.Type)).
				Msg("Reel event handler failed")
		}
	}
}
