package domain

import (
	"math"
	"time"
)

// Queue item lifecycle: pending -> processing -> completed | failed.
// failed returns to pending while attempts < the retry cap.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

// Queue priorities: lower number = processed sooner.
const (
	PriorityHigh    = 1 // user-initiated save or refresh
	PriorityDefault = 5 // bulk vectorization
	PriorityLowest  = 10
)

// DefaultRetryCap bounds failed -> pending retries.
const DefaultRetryCap = 3

// QueueItem is one embedding work item, unique per content id. Re-enqueue
// replaces the live item instead of duplicating it.
type QueueItem struct {
	ContentID    int64
	Priority     int
	Status       QueueStatus
	Attempts     int
	ErrorMessage string
	CreatedAt    time.Time
	ProcessedAt  time.Time
}

// QueueCounts is a per-status snapshot of the queue.
type QueueCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// PercentComplete reports completed versus total, 0..100.
func (c QueueCounts) PercentComplete() float64 {
	total := c.Total
	if total < 1 {
		total = 1
	}
	return math.Round(float64(c.Completed)/float64(total)*1000) / 10
}
