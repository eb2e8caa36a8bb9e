package models

import "time"

// Transcode job states. A job never leaves JobDone or JobFailed.
const (
	JobProcessing = "processing"
	JobDone       = "done"
	JobFailed     = "failed"
)

// TranscodeJob is the status record for one conversion. Records live in
// memory for the lifetime of the process; polling clients are expected
// to be connected while their job runs.
type TranscodeJob struct {
	ID        string    `json:"jobId"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	SourceURL string    `json:"sourceUrl"`
	MP4URL    *string   `json:"mp4Url"`
	Error     *string   `json:"error"`
	CreatedAt time.Time `json:"-"`
}
