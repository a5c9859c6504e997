package events

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
)

// Service is the in-process pub/sub bus connecting the pipeline to the
// WebSocket layer. Publish is fire-and-forget; PublishSync runs handlers in
// subscription order and reports their errors.
type Service struct {
	mu          sync.RWMutex
	subscribers map[interfaces.EventType][]interfaces.EventHandler
	inflight    sync.WaitGroup
	closed      bool
	logger      arbor.ILogger
}

// NewService creates the event bus
func NewService(logger arbor.ILogger) interfaces.EventService {
	return &Service{
		subscribers: make(map[interfaces.EventType][]interfaces.EventHandler),
		logger:      logger,
	}
}

// Subscribe registers a handler for an event type
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("event service is closed")
	}
	s.subscribers[eventType] = append(s.subscribers[eventType], handler)

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", len(s.subscribers[eventType])).
		Msg("Event handler subscribed")
	return nil
}

// Unsubscribe removes a previously subscribed handler. Go functions are not
// comparable, so the match is by function pointer: pass the same value that
// was passed to Subscribe.
func (s *Service) Unsubscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := reflect.ValueOf(handler).Pointer()
	for i, h := range s.subscribers[eventType] {
		if reflect.ValueOf(h).Pointer() != target {
			continue
		}
		s.subscribers[eventType] = append(s.subscribers[eventType][:i], s.subscribers[eventType][i+1:]...)
		s.logger.Debug().
			Str("event_type", string(eventType)).
			Msg("Event handler unsubscribed")
		return nil
	}
	return fmt.Errorf("handler not found for event type: %s", eventType)
}

// Publish delivers the event to every subscriber, each on its own goroutine.
// Handler errors are logged, not returned. The inflight count is taken under
// the lock so Close cannot begin waiting between snapshot and launch.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil
	}
	handlers := append([]interfaces.EventHandler(nil), s.subscribers[event.Type]...)
	s.inflight.Add(len(handlers))
	s.mu.RUnlock()

	for _, handler := range handlers {
		go func(h interfaces.EventHandler) {
			defer s.inflight.Done()
			s.invoke(ctx, h, event)
		}(handler)
	}
	return nil
}

// PublishSync runs the handlers one after another in subscription order and
// joins their errors.
func (s *Service) PublishSync(ctx context.Context, event interfaces.Event) error {
	var errs []error
	for _, handler := range s.snapshot(event.Type) {
		if err := s.invoke(ctx, handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting events and waits for in-flight async deliveries
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subscribers = make(map[interfaces.EventType][]interfaces.EventHandler)
	s.mu.Unlock()

	s.inflight.Wait()
	s.logger.Info().Msg("Event service closed")
	return nil
}

// snapshot copies the handler list so delivery never races Subscribe
func (s *Service) snapshot(eventType interfaces.EventType) []interfaces.EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	return append([]interfaces.EventHandler(nil), s.subscribers[eventType]...)
}

// invoke runs one handler with panic containment. A misbehaving WebSocket or
// scheduler callback must not take down the publisher.
func (s *Service) invoke(ctx context.Context, handler interfaces.EventHandler, event interfaces.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panic: %v", r)
			s.logger.Error().
				Str("event_type", string(event.Type)).
				Msgf("Event handler panicked: %v", r)
		}
	}()

	if err = handler(ctx, event); err != nil {
		s.logger.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Msg("Event handler failed")
	}
	return err
}
