package queue

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"pitch-recorder/constant"
	"pitch-recorder/dto"
)

// Uploader performs one upload attempt of a segment to url.
type Uploader interface {
	Upload(ctx context.Context, url string, seg dto.Segment) (dto.WebhookResult, error)
}

type Callbacks struct {
	OnComplete func(result dto.WebhookResult)
	OnError    func(err error)
}

type QueuedSegment struct {
	dto.Segment
	Callbacks

	RetryCount int
	MaxRetries int
	Status     constant.SegmentStatus
	LastError  string
	Result     dto.WebhookResult

	backoff       *backoff.ExponentialBackOff
	nextAttemptAt time.Time
}

type Option func(*UploaderQueue)

func WithMaxRetries(n int) Option {
	return func(q *UploaderQueue) { q.maxRetries = n }
}

func WithMaxConcurrentUploads(n int) Option {
	return func(q *UploaderQueue) { q.maxConcurrent = n }
}

func WithRetryDelays(base, maxDelay time.Duration) Option {
	return func(q *UploaderQueue) {
		q.baseRetryDelay = base
		q.maxRetryDelay = maxDelay
	}
}

func WithPassDelay(d time.Duration) Option {
	return func(q *UploaderQueue) { q.passDelay = d }
}

func WithAttemptTimeout(d time.Duration) Option {
	return func(q *UploaderQueue) { q.attemptTimeout = d }
}

// UploaderQueue uploads segments to a single endpoint with bounded
// concurrency and exponential backoff. State is in-memory only.
type UploaderQueue struct {
	mu       sync.Mutex
	segments []*QueuedSegment
	closed   bool

	ctx       context.Context
	cancel    context.CancelFunc
	uploader  Uploader
	uploadURL string

	maxRetries     int
	maxConcurrent  int
	baseRetryDelay time.Duration
	maxRetryDelay  time.Duration
	passDelay      time.Duration
	attemptTimeout time.Duration
}

func New(ctx context.Context, uploader Uploader, uploadURL string, opts ...Option) *UploaderQueue {
	ctx, cancel := context.WithCancel(ctx)
	q := &UploaderQueue{
		ctx:            ctx,
		cancel:         cancel,
		uploader:       uploader,
		uploadURL:      uploadURL,
		maxRetries:     constant.DefaultMaxRetries,
		maxConcurrent:  constant.DefaultMaxConcurrentUploads,
		baseRetryDelay: constant.DefaultBaseRetryDelay,
		maxRetryDelay:  constant.DefaultMaxRetryDelay,
		passDelay:      constant.DefaultPassDelay,
		attemptTimeout: constant.DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.maxRetries < 1 {
		q.maxRetries = 1
	}
	if q.maxConcurrent < 1 {
		q.maxConcurrent = 1
	}
	return q
}

// AddSegment queues seg and returns without waiting for the upload.
func (q *UploaderQueue) AddSegment(seg dto.Segment, cb Callbacks) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	for _, s := range q.segments {
		if s.ID == seg.ID {
			q.mu.Unlock()
			return ErrDuplicateSegment
		}
	}
	q.segments = append(q.segments, &QueuedSegment{
		Segment:    seg,
		Callbacks:  cb,
		MaxRetries: q.maxRetries,
		Status:     constant.SegmentStatusPending,
		backoff:    newRetryBackOff(q.baseRetryDelay, q.maxRetryDelay),
	})
	q.mu.Unlock()

	zerolog.Ctx(q.ctx).Debug().Str("segment_id", seg.ID).Int("start_slide", seg.StartSlide).Int("end_slide", seg.EndSlide).Msg("segment queued")
	q.process()
	return nil
}

// process admits due pending segments into free upload slots and runs them
// as one batch. Segments still waiting out a retry delay are skipped.
func (q *UploaderQueue) process() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	now := time.Now()
	free := q.maxConcurrent - q.countLocked(constant.SegmentStatusUploading)
	var batch []*QueuedSegment
	for _, s := range q.segments {
		if len(batch) >= free {
			break
		}
		if s.readyLocked(now) {
			s.Status = constant.SegmentStatusUploading
			batch = append(batch, s)
		}
	}
	q.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	go func() {
		var g errgroup.Group
		for _, s := range batch {
			g.Go(func() error {
				q.upload(s)
				return nil
			})
		}
		_ = g.Wait()

		if q.hasReady() {
			q.schedule(q.passDelay)
		}
	}()
}

func (q *UploaderQueue) upload(s *QueuedSegment) {
	q.mu.Lock()
	seg := s.Segment
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(q.ctx, q.attemptTimeout)
	result, err := q.uploader.Upload(ctx, q.uploadURL, seg)
	cancel()

	q.mu.Lock()
	if err == nil {
		s.Status = constant.SegmentStatusCompleted
		s.Result = result
		onComplete := s.OnComplete
		q.mu.Unlock()

		zerolog.Ctx(q.ctx).Info().Str("segment_id", seg.ID).Msg("segment uploaded")
		if onComplete != nil {
			onComplete(result)
		}
		return
	}

	s.RetryCount++
	s.LastError = err.Error()
	retryCount := s.RetryCount

	if s.RetryCount < s.MaxRetries {
		delay := s.backoff.NextBackOff()
		s.Status = constant.SegmentStatusPending
		s.nextAttemptAt = time.Now().Add(delay)
		q.mu.Unlock()

		zerolog.Ctx(q.ctx).Warn().Err(err).Str("segment_id", seg.ID).Int("retry_count", retryCount).Dur("delay", delay).Msg("segment upload failed, retrying")
		q.schedule(delay)
		return
	}

	s.Status = constant.SegmentStatusFailed
	onError := s.OnError
	terminal := &TerminalUploadError{SegmentID: seg.ID, MaxRetries: s.MaxRetries, LastError: s.LastError}
	q.mu.Unlock()

	zerolog.Ctx(q.ctx).Error().Err(terminal).Str("segment_id", seg.ID).Msg("segment upload failed")
	if onError != nil {
		onError(terminal)
	}
}

func (q *UploaderQueue) schedule(delay time.Duration) {
	time.AfterFunc(delay, q.process)
}

// hasReady reports whether a pending segment can be attempted now. Segments
// in backoff have their own timer from upload.
func (q *UploaderQueue) hasReady() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	for _, s := range q.segments {
		if s.readyLocked(now) {
			return true
		}
	}
	return false
}

func (s *QueuedSegment) readyLocked(now time.Time) bool {
	return s.Status == constant.SegmentStatusPending && !s.nextAttemptAt.After(now)
}

func (q *UploaderQueue) countLocked(status constant.SegmentStatus) int {
	n := 0
	for _, s := range q.segments {
		if s.Status == status {
			n++
		}
	}
	return n
}

// RetryFailedSegments resets every failed segment to a fresh retry budget.
func (q *UploaderQueue) RetryFailedSegments() {
	q.mu.Lock()
	for _, s := range q.segments {
		if s.Status == constant.SegmentStatusFailed {
			s.Status = constant.SegmentStatusPending
			s.RetryCount = 0
			s.nextAttemptAt = time.Time{}
			s.backoff.Reset()
		}
	}
	q.mu.Unlock()

	q.process()
}

// ClearCompletedSegments drops completed segments; others are kept.
func (q *UploaderQueue) ClearCompletedSegments() {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.segments[:0]
	for _, s := range q.segments {
		if s.Status != constant.SegmentStatusCompleted {
			kept = append(kept, s)
		}
	}
	for i := len(kept); i < len(q.segments); i++ {
		q.segments[i] = nil
	}
	q.segments = kept
}

func (q *UploaderQueue) QueueStatus() dto.QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	return dto.QueueStatus{
		Total:     len(q.segments),
		Pending:   q.countLocked(constant.SegmentStatusPending),
		Uploading: q.countLocked(constant.SegmentStatusUploading),
		Failed:    q.countLocked(constant.SegmentStatusFailed),
		Completed: q.countLocked(constant.SegmentStatusCompleted),
	}
}

// SegmentByID returns a copy of the first segment with the given id.
func (q *UploaderQueue) SegmentByID(id string) (QueuedSegment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, s := range q.segments {
		if s.ID == id {
			cp := *s
			cp.backoff = nil
			return cp, true
		}
	}
	return QueuedSegment{}, false
}

// Close stops further passes and cancels in-flight attempts.
func (q *UploaderQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cancel()
}
