package models

import "time"

// Phase names a checkpointable sync phase.
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseUploading   Phase = "uploading"
	PhaseDeleting    Phase = "deleting"
)

// Checkpoint is the persisted progress of an interrupted sync job.
type Checkpoint struct {
	JobID          string    `json:"jobId"`
	Phase          Phase     `json:"phase"`
	ResumeToken    string    `json:"resumeToken,omitempty"`
	ProcessedItems int       `json:"processedItems"`
	TotalItems     int       `json:"totalItems"`
	FailedItems    []string  `json:"failedItems"`
	Timestamp      time.Time `json:"timestamp"`
}

type LastSuccessfulSync struct {
	Timestamp      time.Time     `json:"timestamp"`
	Duration       time.Duration `json:"duration"`
	ItemsProcessed int           `json:"itemsProcessed"`
}

// ErrorRecord is one entry of the diagnostic sync error log.
type ErrorRecord struct {
	Operation  string    `json:"operation"`
	DocumentID string    `json:"documentId,omitempty"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	JobID      string    `json:"jobId,omitempty"`
}

// SyncStats is returned by a successful sync.
type SyncStats struct {
	JobID          string        `json:"jobId"`
	TotalProcessed int           `json:"totalProcessed"`
	FailedItems    []string      `json:"failedItems"`
	Duration       time.Duration `json:"duration"`
}
