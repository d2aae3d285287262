package queue

import "fmt"

const keyPrefixQueue = "queue"

// Pending keys embed a zero-padded sequence so lexical key order is
// enqueue order.
func pendingKey(name string, sequence int64) string {
	return fmt.Sprintf("%s:%s:pending:%019d", keyPrefixQueue, name, sequence)
}

func pendingPrefix(name string) string {
	return fmt.Sprintf("%s:%s:pending:", keyPrefixQueue, name)
}

func claimedKey(name, claimID string) string {
	return fmt.Sprintf("%s:%s:claimed:%s", keyPrefixQueue, name, claimID)
}

// itemKey indexes an attempt id to its queued sequence; its presence is
// what makes Enqueue idempotent.
func itemKey(name, attemptID string) string {
	return fmt.Sprintf("%s:%s:item:%s", keyPrefixQueue, name, attemptID)
}

func sequenceKey(name string) string {
	return fmt.Sprintf("%s:%s:seq", keyPrefixQueue, name)
}
