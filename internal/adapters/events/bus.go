// Package events is the in-process pub/sub bus for work-order
// notifications, fanned out per project. It satisfies the narrow
// publish contract the core depends on; distributed transports can
// replace it behind the same port.
package events

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/eleven-am/foreman/internal/domain"
)

type Bus struct {
	logger     *slog.Logger
	bufferSize int

	mu     sync.RWMutex
	subs   map[string]map[string]chan domain.Event
	closed bool
}

func NewBus(bufferSize int, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		logger:     logger.With("component", "event-bus"),
		bufferSize: bufferSize,
		subs:       make(map[string]map[string]chan domain.Event),
	}
}

// Publish delivers event to every subscriber of projectID. A slow
// subscriber whose buffer is full is skipped with a warning; delivery
// is at-least-once overall and duplicates must be tolerated anyway.
func (b *Bus) Publish(projectID string, event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return domain.ErrClosed
	}

	for id, ch := range b.subs[projectID] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("subscriber buffer full, dropping event",
				"project_id", projectID,
				"subscription_id", id,
				"event_type", event.Type)
		}
	}
	return nil
}

func (b *Bus) Subscribe(projectID string) (<-chan domain.Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, domain.ErrClosed
	}

	id := uuid.New().String()
	ch := make(chan domain.Event, b.bufferSize)

	if b.subs[projectID] == nil {
		b.subs[projectID] = make(map[string]chan domain.Event)
	}
	b.subs[projectID][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subs[projectID]; ok {
			if ch, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(b.subs, projectID)
			}
		}
	}

	return ch, cancel, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
	}
	b.subs = make(map[string]map[string]chan domain.Event)
	return nil
}
