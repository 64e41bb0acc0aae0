package queue

import (
	"strconv"
	"time"

	"github.com/kailas-cloud/linkmesh/internal/domain"
)

const (
	fieldContentID   = "content_id"
	fieldPriority    = "priority"
	fieldStatus      = "status"
	fieldAttempts    = "attempts"
	fieldError       = "error_message"
	fieldCreatedAt   = "created_at"
	fieldProcessedAt = "processed_at"
)

func buildHashFields(item *domain.QueueItem) map[string]string {
	m := map[string]string{
		fieldContentID: strconv.FormatInt(item.ContentID, 10),
		fieldPriority:  strconv.Itoa(item.Priority),
		fieldStatus:    string(item.Status),
		fieldAttempts:  strconv.Itoa(item.Attempts),
		fieldCreatedAt: strconv.FormatInt(item.CreatedAt.Unix(), 10),
	}
	if item.ErrorMessage != "" {
		m[fieldError] = item.ErrorMessage
	}
	if !item.ProcessedAt.IsZero() {
		m[fieldProcessedAt] = strconv.FormatInt(item.ProcessedAt.Unix(), 10)
	}
	return m
}

func parseHashFields(contentID int64, m map[string]string) domain.QueueItem {
	priority, _ := strconv.Atoi(m[fieldPriority])
	attempts, _ := strconv.Atoi(m[fieldAttempts])
	return domain.QueueItem{
		ContentID:    contentID,
		Priority:     priority,
		Status:       domain.QueueStatus(m[fieldStatus]),
		Attempts:     attempts,
		ErrorMessage: m[fieldError],
		CreatedAt:    parseUnix(m[fieldCreatedAt]),
		ProcessedAt:  parseUnix(m[fieldProcessedAt]),
	}
}

func parseUnix(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
