// Package event routes persisted changes to in-process observers.
package event

import (
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rndsolutions/HawkCD/internal/domain"
	"github.com/rndsolutions/HawkCD/internal/logging"
)

// Entity types carried in domain.Change.EntityType.
const (
	PipelineChanged = "pipeline"
	AgentChanged    = "agent"
)

const wildcard = "*"

// Handler receives a published change.
type Handler func(domain.Change)

type subscription struct {
	id      string
	handler Handler
}

// Bus is a synchronous pub-sub bus keyed by entity type. Handlers run on the
// publisher's goroutine.
type Bus struct {
	logger *slog.Logger

	mu            sync.RWMutex
	subscriptions map[string][]subscription
	nextID        atomic.Uint64
}

var _ domain.Notifier = (*Bus)(nil)

// NewBus creates an empty bus. A nil logger discards handler panics.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger:        logging.OrDiscard(logger),
		subscriptions: make(map[string][]subscription),
	}
}

// Subscribe registers handler for one entity type and returns an id for
// Unsubscribe.
func (b *Bus) Subscribe(entityType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := "sub-" + strconv.FormatUint(b.nextID.Add(1), 10)
	b.subscriptions[entityType] = append(b.subscriptions[entityType], subscription{id: id, handler: handler})
	return id
}

// SubscribeAll registers handler for every entity type.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(wildcard, handler)
}

// Unsubscribe removes a subscription. It reports whether the id was known.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for entityType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				b.subscriptions[entityType] = append(subs[:i:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish delivers change to the handlers of its entity type, then to
// wildcard handlers, each group in registration order. A panicking handler
// is logged and skipped.
func (b *Bus) Publish(change domain.Change) {
	b.mu.RLock()
	specific := append([]subscription(nil), b.subscriptions[change.EntityType]...)
	all := append([]subscription(nil), b.subscriptions[wildcard]...)
	b.mu.RUnlock()

	for _, sub := range specific {
		b.safeCall(sub.handler, change)
	}
	for _, sub := range all {
		b.safeCall(sub.handler, change)
	}
}

func (b *Bus) safeCall(handler Handler, change domain.Change) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("change handler panicked",
				"entity_type", change.EntityType,
				"operation", string(change.Operation),
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	handler(change)
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}
