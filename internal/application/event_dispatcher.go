package application

import (
	"context"

	"slack-salesforce-link/internal/domain"

	"github.com/rs/zerolog"
)

// EventHandler processes one family of Slack Events API callbacks.
type EventHandler interface {
	// CanHandle returns true if this handler can process the given event type.
	CanHandle(eventType string) bool

	// Handle processes a verified event.
	Handle(ctx context.Context, event *domain.SlackEvent) error
}

// EventDispatcher routes verified Slack events to registered handlers.
type EventDispatcher struct {
	handlers []EventHandler
	logger   zerolog.Logger
}

// NewEventDispatcher creates a new event dispatcher.
func NewEventDispatcher(logger zerolog.Logger) *EventDispatcher {
	return &EventDispatcher{logger: logger}
}

// RegisterHandler adds a handler to the dispatch chain.
func (d *EventDispatcher) RegisterHandler(h EventHandler) {
	d.handlers = append(d.handlers, h)
}

// Dispatch routes an event to every handler that claims its type. Unclaimed
// events are logged and dropped; the first handler error aborts the chain.
func (d *EventDispatcher) Dispatch(ctx context.Context, event *domain.SlackEvent) error {
	handled := false
	for _, h := range d.handlers {
		if !h.CanHandle(event.Type) {
			continue
		}
		handled = true
		if err := h.Handle(ctx, event); err != nil {
			return err
		}
	}

	if !handled {
		d.logger.Debug().
			Str("type", event.Type).
			Str("workspaceId", event.WorkspaceID).
			Msg("No handler for event type")
	}
	return nil
}
