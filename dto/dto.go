package dto

import "time"

// Segment is a confirmed slide-range recording ready for evaluation.
type Segment struct {
	ID         string `json:"id"`
	Audio      []byte `json:"-"`
	MimeType   string `json:"mimeType,omitempty"`
	StartSlide int    `json:"startSlide"`
	EndSlide   int    `json:"endSlide"`
	Audience   string `json:"audience,omitempty"`
}

// WebhookResult is the evaluation webhook body, returned as-is.
type WebhookResult map[string]any

type QueueStatus struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Uploading int `json:"uploading"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
}

// SegmentMessage announces a segment whose audio was already stored in the bucket.
type SegmentMessage struct {
	SegmentId  string `json:"segmentId" validate:"required"`
	ObjectPath string `json:"objectPath" validate:"required"`
	StartSlide int    `json:"startSlide" validate:"min=1"`
	EndSlide   int    `json:"endSlide" validate:"min=1"`
	Audience   string `json:"audience,omitempty"`
}

type EvaluationCompletedMessage struct {
	SegmentId   string    `json:"segmentId"`
	StartSlide  int       `json:"startSlide"`
	EndSlide    int       `json:"endSlide"`
	Audience    string    `json:"audience,omitempty"`
	Input       string    `json:"input"`
	Output      string    `json:"output"`
	AudioObject string    `json:"audioObject,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}
