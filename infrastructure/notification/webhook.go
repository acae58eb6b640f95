package notification

import (
	"context"
	"errors"
	"sync"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/decision-ledger/domain/notification"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
)

// WebhookDispatcher fans each notification out to the enabled endpoints
// whose filter accepts it.
type WebhookDispatcher struct {
	sender    *Sender
	logger    *bolt.Logger
	mu        sync.RWMutex
	endpoints []notification.Endpoint
	closed    bool
}

// NewWebhookDispatcher creates a dispatcher over endpoints.
func NewWebhookDispatcher(sender *Sender, logger *bolt.Logger, endpoints ...notification.Endpoint) *WebhookDispatcher {
	if sender == nil {
		sender = NewSender(DefaultSenderConfig())
	}
	return &WebhookDispatcher{
		sender:    sender,
		logger:    logging.OrDefault(logger),
		endpoints: endpoints,
	}
}

// Notify builds the event and posts it to every matching endpoint.
// It fails if any endpoint fails; the others are still attempted.
func (w *WebhookDispatcher) Notify(ctx context.Context, recipientID string, eventType notification.Type, payload any) error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return notification.ErrDispatcherClosed
	}
	endpoints := make([]notification.Endpoint, 0, len(w.endpoints))
	endpoints = append(endpoints, w.endpoints...)
	w.mu.RUnlock()

	event, err := notification.NewEvent(recipientID, eventType, payload)
	if err != nil {
		return err
	}

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(endpoints))
	)
	for i, ep := range endpoints {
		if !ep.Enabled || (ep.Filter != nil && !ep.Filter(event)) {
			continue
		}

		wg.Add(1)
		go func(i int, ep notification.Endpoint) {
			defer wg.Done()

			if err := w.sender.Send(ctx, ep, event); err != nil {
				logging.NewEvent(w.logger.Error()).
					Add(logging.Component("notification.webhook")).
					Add(logging.Str("endpoint", ep.Name)).
					Add(logging.ActorID(recipientID)).
					Add(logging.Str("type", string(eventType))).
					Add(logging.ErrorField(err)).
					Msg("webhook delivery failed")
				errs[i] = err
				return
			}
			logging.NewEvent(w.logger.Debug()).
				Add(logging.Component("notification.webhook")).
				Add(logging.Str("endpoint", ep.Name)).
				Add(logging.Str("event_id", event.ID)).
				Msg("webhook delivered")
		}(i, ep)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// AddEndpoint registers another endpoint.
func (w *WebhookDispatcher) AddEndpoint(ep notification.Endpoint) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.endpoints = append(w.endpoints, ep)
}

// RemoveEndpoint drops every endpoint with url.
func (w *WebhookDispatcher) RemoveEndpoint(url string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.endpoints[:0]
	for _, ep := range w.endpoints {
		if ep.URL != url {
			kept = append(kept, ep)
		}
	}
	w.endpoints = kept
}

// Endpoints returns a copy of the configured endpoints.
func (w *WebhookDispatcher) Endpoints() []notification.Endpoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]notification.Endpoint(nil), w.endpoints...)
}

// Close stops accepting notifications.
func (w *WebhookDispatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

var _ notification.Dispatcher = (*WebhookDispatcher)(nil)
