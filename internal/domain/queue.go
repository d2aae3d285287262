package domain

import (
	"time"

	"github.com/eleven-am/foreman/internal/xjson"
)

// AttemptPayload is what the execution queue hands to an external
// worker: enough context to claim and execute an attempt without
// further lookups.
type AttemptPayload struct {
	AttemptID     string   `json:"attempt_id"`
	WorkOrderID   string   `json:"work_order_id"`
	WorkflowID    string   `json:"workflow_id"`
	ProjectID     string   `json:"project_id"`
	StartingJobID string   `json:"starting_job_id,omitempty"`
	DataclipID    string   `json:"dataclip_id"`
	CarriedRunIDs []string `json:"carried_run_ids,omitempty"`
	RunIDs        []string `json:"run_ids"`
}

// QueueItem wraps a payload with its queue bookkeeping.
type QueueItem struct {
	Payload    AttemptPayload `json:"payload"`
	Sequence   int64          `json:"sequence"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

func NewQueueItem(payload AttemptPayload, sequence int64) *QueueItem {
	return &QueueItem{
		Payload:    payload,
		Sequence:   sequence,
		EnqueuedAt: time.Now(),
	}
}

func (q *QueueItem) ToBytes() ([]byte, error) {
	return xjson.Marshal(q)
}

func QueueItemFromBytes(data []byte) (*QueueItem, error) {
	var item QueueItem
	if err := xjson.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}
