package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestVideoState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state VideoState
		want  bool
	}{
		{"uploading is valid", VideoStateUploading, true},
		{"validating is valid", VideoStateValidating, true},
		{"processing is valid", VideoStateProcessing, true},
		{"indexed is valid", VideoStateIndexed, true},
		{"failed is valid", VideoStateFailed, true},
		{"deleted is valid", VideoStateDeleted, true},
		{"empty string is invalid", VideoState(""), false},
		{"unknown state is invalid", VideoState("archived"), false},
		{"uppercase is invalid", VideoState("INDEXED"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.want {
				t.Errorf("VideoState.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVideoState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		current VideoState
		next    VideoState
		want    bool
	}{
		// Valid transitions
		{"uploading -> validating", VideoStateUploading, VideoStateValidating, true},
		{"validating -> processing", VideoStateValidating, VideoStateProcessing, true},
		{"validating -> failed", VideoStateValidating, VideoStateFailed, true},
		{"processing -> indexed", VideoStateProcessing, VideoStateIndexed, true},
		{"processing -> failed", VideoStateProcessing, VideoStateFailed, true},
		{"uploading -> deleted", VideoStateUploading, VideoStateDeleted, true},
		{"validating -> deleted", VideoStateValidating, VideoStateDeleted, true},
		{"processing -> deleted", VideoStateProcessing, VideoStateDeleted, true},

		// Invalid transitions
		{"uploading -> processing (skip)", VideoStateUploading, VideoStateProcessing, false},
		{"uploading -> indexed (skip)", VideoStateUploading, VideoStateIndexed, false},
		{"uploading -> failed (skip)", VideoStateUploading, VideoStateFailed, false},
		{"indexed -> processing (terminal)", VideoStateIndexed, VideoStateProcessing, false},
		{"indexed -> deleted (terminal)", VideoStateIndexed, VideoStateDeleted, false},
		{"failed -> validating (terminal)", VideoStateFailed, VideoStateValidating, false},
		{"deleted -> uploading (terminal)", VideoStateDeleted, VideoStateUploading, false},

		// Self transitions
		{"processing -> processing", VideoStateProcessing, VideoStateProcessing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.current.CanTransitionTo(tt.next); got != tt.want {
				t.Errorf("VideoState.CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVideoState_IsTerminal(t *testing.T) {
	terminal := []VideoState{VideoStateIndexed, VideoStateFailed, VideoStateDeleted}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
	}
	for _, s := range []VideoState{VideoStateUploading, VideoStateValidating, VideoStateProcessing} {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
}

func TestNewVideo(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name      string
		userID    uuid.UUID
		filename  string
		mimeType  string
		sizeBytes int64
		wantErr   error
	}{
		{"valid mp4", userID, "clip.mp4", "video/mp4", 1024, nil},
		{"valid webm", userID, "clip.webm", "video/webm", 1024, nil},
		{"valid matroska", userID, "clip.mkv", "video/x-matroska", 1024, nil},
		{"nil user", uuid.Nil, "clip.mp4", "video/mp4", 1024, ErrInvalidUserID},
		{"unsupported mime type", userID, "notes.txt", "text/plain", 1024, ErrInvalidMimeType},
		{"zero size", userID, "clip.mp4", "video/mp4", 0, ErrInvalidSize},
		{"negative size", userID, "clip.mp4", "video/mp4", -1, ErrInvalidSize},
		{"over 1 GiB", userID, "clip.mp4", "video/mp4", MaxVideoSizeBytes + 1, ErrInvalidSize},
		{"at 1 GiB boundary", userID, "clip.mp4", "video/mp4", MaxVideoSizeBytes, nil},
		{"empty filename", userID, "", "video/mp4", 1024, ErrInvalidFilename},
		{"dot filename", userID, ".", "video/mp4", 1024, ErrInvalidFilename},
		{"overlong filename", userID, strings.Repeat("a", 256) + ".mp4", "video/mp4", 1024, ErrInvalidFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			video, err := NewVideo(tt.userID, tt.filename, tt.mimeType, tt.sizeBytes, "Title", "")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewVideo() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewVideo() error = %v", err)
			}
			if video.State != VideoStateUploading {
				t.Errorf("new video state = %v, want uploading", video.State)
			}
			if video.IndexedAt != nil {
				t.Error("new video has indexed_at set")
			}
			if video.DurationS != nil {
				t.Error("new video has duration set")
			}
		})
	}
}

func TestNewVideo_FreshIDPerCall(t *testing.T) {
	a, err := NewVideo(uuid.New(), "clip.mp4", "video/mp4", 1, "", "")
	if err != nil {
		t.Fatalf("NewVideo() error = %v", err)
	}
	b, err := NewVideo(a.UserID, "clip.mp4", "video/mp4", 1, "", "")
	if err != nil {
		t.Fatalf("NewVideo() error = %v", err)
	}
	if a.ID == b.ID {
		t.Error("two inits produced the same video ID")
	}
	if a.StorageKey == b.StorageKey {
		t.Error("two inits produced the same storage key")
	}
}

func TestNewVideo_TitleDefaultsToFilename(t *testing.T) {
	video, err := NewVideo(uuid.New(), "holiday.mp4", "video/mp4", 1, "", "")
	if err != nil {
		t.Fatalf("NewVideo() error = %v", err)
	}
	if video.Title != "holiday.mp4" {
		t.Errorf("title = %q, want the filename", video.Title)
	}
}

func TestVideo_MarkIndexed(t *testing.T) {
	video, err := NewVideo(uuid.New(), "clip.mp4", "video/mp4", 1, "", "")
	if err != nil {
		t.Fatalf("NewVideo() error = %v", err)
	}
	video.State = VideoStateProcessing

	at := time.Now().UTC()
	if err := video.MarkIndexed(at); err != nil {
		t.Fatalf("MarkIndexed() error = %v", err)
	}
	if video.State != VideoStateIndexed {
		t.Errorf("state = %v, want indexed", video.State)
	}
	if video.IndexedAt == nil || !video.IndexedAt.Equal(at) {
		t.Errorf("indexed_at = %v, want %v", video.IndexedAt, at)
	}

	// A second MarkIndexed is an invalid transition.
	if err := video.MarkIndexed(time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second MarkIndexed() error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestVideo_MarkFailed(t *testing.T) {
	video, err := NewVideo(uuid.New(), "clip.mp4", "video/mp4", 1, "", "")
	if err != nil {
		t.Fatalf("NewVideo() error = %v", err)
	}

	// uploading cannot fail directly.
	if err := video.MarkFailed("boom"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("MarkFailed() from uploading error = %v, want %v", err, ErrInvalidTransition)
	}

	video.State = VideoStateValidating
	if err := video.MarkFailed("file is not decodable video"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if video.State != VideoStateFailed {
		t.Errorf("state = %v, want failed", video.State)
	}
	if video.ErrorText != "file is not decodable video" {
		t.Errorf("error text = %q", video.ErrorText)
	}
}

func TestVideo_SetDuration(t *testing.T) {
	video, err := NewVideo(uuid.New(), "clip.mp4", "video/mp4", 1, "", "")
	if err != nil {
		t.Fatalf("NewVideo() error = %v", err)
	}

	if err := video.SetDuration(599.9); err != nil {
		t.Fatalf("SetDuration() error = %v", err)
	}
	if video.DurationS == nil || *video.DurationS != 599.9 {
		t.Errorf("duration = %v", video.DurationS)
	}

	if err := video.SetDuration(MaxVideoDurationSeconds + 0.1); !errors.Is(err, ErrDurationExceeded) {
		t.Errorf("SetDuration() over ceiling error = %v, want %v", err, ErrDurationExceeded)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"clip.mp4", "clip.mp4"},
		{"dir/clip.mp4", "clip.mp4"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\clip.mp4`, "clip.mp4"},
		{"  spaced.mp4  ", "spaced.mp4"},
		{".", ""},
		{"..", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUploadKey(t *testing.T) {
	userID := uuid.New()
	videoID := uuid.New()
	got := UploadKey(userID, videoID, "clip.mp4")
	want := "uploads/" + userID.String() + "/" + videoID.String() + "/clip.mp4"
	if got != want {
		t.Errorf("UploadKey() = %q, want %q", got, want)
	}
}
