package ports

import (
	"github.com/eleven-am/foreman/internal/domain"
)

// EventBus fans work-order notifications out to subscribers scoped by
// project id. Delivery is at-least-once; subscribers must tolerate
// duplicates.
type EventBus interface {
	Publish(projectID string, event domain.Event) error
	Subscribe(projectID string) (<-chan domain.Event, func(), error)
	Close() error
}
