package event

import (
	"slices"
	"sync"

	"github.com/medistore/backend/internal/domain/shared"
)

type subscription struct {
	handler shared.EventHandler
	types   []string // empty matches every event
}

func (s subscription) matches(eventType string) bool {
	return len(s.types) == 0 || slices.Contains(s.types, eventType)
}

// HandlerRegistry keeps subscriptions in registration order. A handler
// registered more than once for the same event still runs once per event.
type HandlerRegistry struct {
	mu   sync.RWMutex
	subs []subscription
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{}
}

// Register subscribes handler to eventTypes, or to every event when none are given
func (r *HandlerRegistry) Register(handler shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, subscription{handler: handler, types: slices.Clone(eventTypes)})
}

// Unregister drops every subscription of handler
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = slices.DeleteFunc(r.subs, func(s subscription) bool {
		return s.handler == handler
	})
}

// GetHandlers returns the handlers for eventType in registration order
func (r *HandlerRegistry) GetHandlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []shared.EventHandler
	for _, s := range r.subs {
		if s.matches(eventType) && !slices.Contains(out, s.handler) {
			out = append(out, s.handler)
		}
	}
	return out
}

// Len returns the number of subscriptions
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
