package model

import (
	"time"

	"github.com/google/uuid"
)

// StageStatus is one pipeline stage's progress as reported to clients.
type StageStatus struct {
	Stage      JobStage   `json:"stage"`
	State      JobState   `json:"state"`
	Progress   int        `json:"progress"`
	ErrorText  string     `json:"error_text,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// VideoStatus is the polling snapshot for a video: current state plus
// per-stage job progress. It is what the status endpoint returns and
// what the status cache stores.
type VideoStatus struct {
	VideoID   uuid.UUID     `json:"video_id"`
	State     VideoState    `json:"state"`
	ErrorText string        `json:"error_text,omitempty"`
	IndexedAt *time.Time    `json:"indexed_at,omitempty"`
	Stages    []StageStatus `json:"stages"`
}

// NewVideoStatus assembles a status snapshot from a video and its jobs.
// Jobs are assumed to already be in creation order.
func NewVideoStatus(video *Video, jobs []*Job) *VideoStatus {
	status := &VideoStatus{
		VideoID:   video.ID,
		State:     video.State,
		ErrorText: video.ErrorText,
		IndexedAt: video.IndexedAt,
		Stages:    make([]StageStatus, 0, len(jobs)),
	}
	for _, job := range jobs {
		status.Stages = append(status.Stages, StageStatus{
			Stage:      job.Stage,
			State:      job.State,
			Progress:   job.Progress,
			ErrorText:  job.ErrorText,
			StartedAt:  job.StartedAt,
			FinishedAt: job.FinishedAt,
		})
	}
	return status
}
