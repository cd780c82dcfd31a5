package model

import "time"

// IngestJob is a raw course document queued for ingestion.
type IngestJob struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Content     string    `json:"content"`
	RequestedAt time.Time `json:"requested_at"`
}
