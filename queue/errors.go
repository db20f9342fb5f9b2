package queue

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateSegment = errors.New("segment already queued")
	ErrQueueClosed      = errors.New("upload queue closed")
)

// TerminalUploadError is delivered to OnError once a segment exhausts its retry budget.
type TerminalUploadError struct {
	SegmentID  string
	MaxRetries int
	LastError  string
}

func (e *TerminalUploadError) Error() string {
	return fmt.Sprintf("Failed after %d retries: %s", e.MaxRetries, e.LastError)
}
