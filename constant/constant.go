package constant

import "time"

type SegmentStatus string

const (
	SegmentStatusPending   SegmentStatus = "pending"
	SegmentStatusUploading SegmentStatus = "uploading"
	SegmentStatusFailed    SegmentStatus = "failed"
	SegmentStatusCompleted SegmentStatus = "completed"
)

type RecordingState string

const (
	RecordingStateIdle      RecordingState = "idle"
	RecordingStateRecording RecordingState = "recording"
	RecordingStatePaused    RecordingState = "paused"
	RecordingStateReviewed  RecordingState = "reviewed"
	RecordingStateUploaded  RecordingState = "uploaded"
	RecordingStateDeleted   RecordingState = "deleted"
)

// Upload queue defaults.
const (
	DefaultMaxRetries           = 3
	DefaultMaxConcurrentUploads = 2
	DefaultBaseRetryDelay       = 1000 * time.Millisecond
	DefaultMaxRetryDelay        = 30000 * time.Millisecond
	DefaultPassDelay            = 10 * time.Millisecond
	DefaultAttemptTimeout       = 60 * time.Second
)

// DefaultTimeslice is how often buffered capture data is flushed.
const DefaultTimeslice = 1000 * time.Millisecond

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

// AMQP topology.
const (
	SegmentExchange             = "segment_exchange"
	SegmentIntakeQueue          = "segment_intake_queue"
	SegmentIntakeRoutingKey     = "segment.intake"
	SegmentDeadLetterExchange   = "segment_exchange_dlx"
	SegmentDeadLetterQueue      = "segment_intake_queue_dlq"
	SegmentDeadLetterRoutingKey = "dlq.segment.intake"

	EvaluationExchange            = "evaluation_exchange"
	EvaluationCompletedRoutingKey = "evaluation.completed"
)
