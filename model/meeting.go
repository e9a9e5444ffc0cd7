package model

import "time"

// Meeting processing status values. A meeting starts as processing and moves
// to exactly one terminal state.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Meeting represents one uploaded audio session and its derived artifacts.
type Meeting struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Participants string    `json:"participants"`
	AudioObject  string    `json:"-"` // Object name in audio storage, not exposed in API directly
	Status       string    `json:"status"`
	Duration     float32   `json:"duration"` // Seconds; the transcription provider supplies none, so usually 0
	Transcript   string    `json:"transcript,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	KeyOutcomes  []string  `json:"keyOutcomes"`
	PainPoints   []string  `json:"painPoints"`
	Objections   []string  `json:"objections"`
	ErrorNote    string    `json:"errorNote,omitempty"` // Diagnostic for failed meetings
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MeetingAnalysis is the structured result of one analysis pass. The three
// insight lists are never nil.
type MeetingAnalysis struct {
	Summary     string   `json:"summary"`
	KeyOutcomes []string `json:"keyOutcomes"`
	PainPoints  []string `json:"painPoints"`
	Objections  []string `json:"objections"`
}

// MeetingUpdate carries a partial update; nil fields are left untouched.
// Status is deliberately absent: lifecycle transitions go through the
// repository's Complete/Fail operations.
type MeetingUpdate struct {
	Title        *string
	Participants *string
	Duration     *float32
	Transcript   *string
	Summary      *string
	KeyOutcomes  *[]string
	PainPoints   *[]string
	Objections   *[]string
}

// Terminal reports whether the meeting reached completed or failed.
func (m *Meeting) Terminal() bool {
	return m.Status == StatusCompleted || m.Status == StatusFailed
}
