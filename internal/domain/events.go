package domain

import (
	"time"
)

type EventType string

const (
	EventWorkOrderCreated EventType = "work_order_created"
	EventWorkOrderUpdated EventType = "work_order_updated"
	EventAttemptEnqueued  EventType = "attempt_enqueued"
)

// Event is the notification fanned out to subscribers of a project.
// Delivery is at-least-once; subscribers must tolerate duplicates.
type Event struct {
	Type        EventType `json:"type"`
	ProjectID   string    `json:"project_id"`
	WorkOrderID string    `json:"work_order_id"`
	AttemptID   string    `json:"attempt_id,omitempty"`
	State       State     `json:"state,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewWorkOrderCreatedEvent(wo *WorkOrder, attemptID string) Event {
	return Event{
		Type:        EventWorkOrderCreated,
		ProjectID:   wo.ProjectID,
		WorkOrderID: wo.ID,
		AttemptID:   attemptID,
		State:       wo.State,
		Timestamp:   time.Now(),
	}
}

func NewWorkOrderUpdatedEvent(wo *WorkOrder, attemptID string) Event {
	return Event{
		Type:        EventWorkOrderUpdated,
		ProjectID:   wo.ProjectID,
		WorkOrderID: wo.ID,
		AttemptID:   attemptID,
		State:       wo.State,
		Timestamp:   time.Now(),
	}
}

func NewAttemptEnqueuedEvent(projectID string, payload AttemptPayload) Event {
	return Event{
		Type:        EventAttemptEnqueued,
		ProjectID:   projectID,
		WorkOrderID: payload.WorkOrderID,
		AttemptID:   payload.AttemptID,
		Timestamp:   time.Now(),
	}
}
