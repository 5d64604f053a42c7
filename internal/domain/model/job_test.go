package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestJobStage_IsValid(t *testing.T) {
	for _, stage := range PipelineStages {
		if !stage.IsValid() {
			t.Errorf("%s.IsValid() = false, want true", stage)
		}
	}
	for _, stage := range []JobStage{"", "transcode", "ASR"} {
		if stage.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", stage)
		}
	}
}

func TestPipelineStages_Order(t *testing.T) {
	if len(PipelineStages) != 10 {
		t.Fatalf("pipeline has %d stages, want 10", len(PipelineStages))
	}
	if PipelineStages[0] != StageUploadValidate {
		t.Errorf("first stage = %s, want %s", PipelineStages[0], StageUploadValidate)
	}
	if PipelineStages[len(PipelineStages)-1] != StageCommit {
		t.Errorf("last stage = %s, want %s", PipelineStages[len(PipelineStages)-1], StageCommit)
	}
}

func TestJobState_IsActive(t *testing.T) {
	tests := []struct {
		state JobState
		want  bool
	}{
		{JobStatePending, true},
		{JobStateRunning, true},
		{JobStateCompleted, false},
		{JobStateFailed, false},
		{JobStateCancelled, false},
	}

	for _, tt := range tests {
		if got := tt.state.IsActive(); got != tt.want {
			t.Errorf("%s.IsActive() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestNewJob(t *testing.T) {
	videoID := uuid.New()
	job := NewJob(videoID, StageSceneDetect)

	if job.VideoID != videoID {
		t.Errorf("video ID = %v, want %v", job.VideoID, videoID)
	}
	if job.Stage != StageSceneDetect {
		t.Errorf("stage = %v, want %v", job.Stage, StageSceneDetect)
	}
	if job.State != JobStatePending {
		t.Errorf("state = %v, want pending", job.State)
	}
	if job.Progress != 0 {
		t.Errorf("progress = %d, want 0", job.Progress)
	}
	if job.StartedAt != nil || job.FinishedAt != nil {
		t.Error("new job carries timestamps")
	}
}

func TestNewVideoStatus(t *testing.T) {
	video, err := NewVideo(uuid.New(), "clip.mp4", "video/mp4", 1, "", "")
	if err != nil {
		t.Fatalf("NewVideo() error = %v", err)
	}
	video.State = VideoStateProcessing

	started := time.Now().Add(-time.Minute)
	finished := time.Now()

	running := NewJob(video.ID, StageASR)
	running.State = JobStateRunning
	running.Progress = 60
	running.StartedAt = &started
	jobs := []*Job{NewJob(video.ID, StageUploadValidate), running}
	jobs[0].State = JobStateFailed
	jobs[0].Progress = 100
	jobs[0].ErrorText = "ffprobe timed out"
	jobs[0].StartedAt = &started
	jobs[0].FinishedAt = &finished

	status := NewVideoStatus(video, jobs)

	if status.VideoID != video.ID {
		t.Errorf("video ID = %v, want %v", status.VideoID, video.ID)
	}
	if status.State != VideoStateProcessing {
		t.Errorf("state = %v, want processing", status.State)
	}
	if len(status.Stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(status.Stages))
	}
	if status.Stages[0].Stage != StageUploadValidate || status.Stages[0].Progress != 100 {
		t.Errorf("stage[0] = %+v", status.Stages[0])
	}
	if status.Stages[0].ErrorText != "ffprobe timed out" {
		t.Errorf("stage[0] error text = %q", status.Stages[0].ErrorText)
	}
	if status.Stages[0].StartedAt == nil || status.Stages[0].FinishedAt == nil {
		t.Error("stage[0] lost its timestamps")
	}
	if status.Stages[1].Stage != StageASR || status.Stages[1].State != JobStateRunning {
		t.Errorf("stage[1] = %+v", status.Stages[1])
	}
	if status.Stages[1].StartedAt == nil || status.Stages[1].FinishedAt != nil {
		t.Errorf("stage[1] timestamps = (%v, %v)", status.Stages[1].StartedAt, status.Stages[1].FinishedAt)
	}
}
