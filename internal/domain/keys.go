package domain

import "fmt"

const (
	WorkOrderPrefix = "workorder:"
	AttemptPrefix   = "attempt:"
	RunPrefix       = "run:"
	DataclipPrefix  = "dataclip:"

	// UnqueuedPrefix marks attempts committed but not yet confirmed
	// enqueued; the reconciliation sweep scans this prefix.
	UnqueuedPrefix = "enqueue:pending:"
)

// WorkOrderKey builds the canonical key for work-order storage.
func WorkOrderKey(id string) string {
	return fmt.Sprintf("%s%s", WorkOrderPrefix, id)
}

// AttemptKey builds the canonical key for attempt storage.
func AttemptKey(id string) string {
	return fmt.Sprintf("%s%s", AttemptPrefix, id)
}

// RunKey builds the canonical key for run storage.
func RunKey(id string) string {
	return fmt.Sprintf("%s%s", RunPrefix, id)
}

// DataclipKey builds the canonical key for dataclip storage.
func DataclipKey(id string) string {
	return fmt.Sprintf("%s%s", DataclipPrefix, id)
}

// UnqueuedKey builds the pending-enqueue marker key for an attempt.
func UnqueuedKey(attemptID string) string {
	return fmt.Sprintf("%s%s", UnqueuedPrefix, attemptID)
}
