package recording

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"pitch-recorder/constant"
	"pitch-recorder/dto"
)

// Microphone hands out exclusive capture handles.
type Microphone interface {
	Open(ctx context.Context) (Capture, error)
	Supports(mimeType string) bool
}

// Capture is an acquired device. Stop must deliver any buffered data
// through onData before it returns.
type Capture interface {
	Start(mimeType string, timeslice time.Duration, onData func([]byte)) error
	Stop() error
	Close() error
}

// Recording is a snapshot of a paused take.
type Recording struct {
	ID        string                  `json:"id"`
	Audio     []byte                  `json:"-"`
	MimeType  string                  `json:"mimeType"`
	Size      int                     `json:"size"`
	Duration  time.Duration           `json:"duration"`
	Timestamp time.Time               `json:"timestamp"`
	State     constant.RecordingState `json:"state"`
}

type Options struct {
	Microphone     Microphone
	Encodings      []string
	Timeslice      time.Duration
	OnSegmentReady func(seg dto.Segment)
	OnError        func(err error)
	OnStateChange  func(state constant.RecordingState)
}

type Controller struct {
	mu         sync.Mutex
	opts       Options
	state      constant.RecordingState
	capture    Capture
	slices     *sliceBuffer
	mimeType   string
	startSlide int
	current    *Recording
}

func NewController(opts Options) *Controller {
	if len(opts.Encodings) == 0 {
		opts.Encodings = PreferredEncodings
	}
	if opts.Timeslice <= 0 {
		opts.Timeslice = constant.DefaultTimeslice
	}
	return &Controller{
		opts:       opts,
		state:      constant.RecordingStateIdle,
		slices:     &sliceBuffer{},
		startSlide: 1,
	}
}

// Start acquires the microphone and begins capturing. A startSlide below 1
// keeps the previous start slide.
func (c *Controller) Start(ctx context.Context, startSlide int) error {
	c.mu.Lock()
	if c.capture != nil {
		c.mu.Unlock()
		return ErrCaptureActive
	}

	capture, err := c.opts.Microphone.Open(ctx)
	if err != nil {
		c.mu.Unlock()
		return c.capabilityFailure(ctx, err)
	}

	mimeType := SelectEncoding(c.opts.Encodings, c.opts.Microphone.Supports, DefaultEncoding)
	c.slices.reset()
	if err := capture.Start(mimeType, c.opts.Timeslice, c.slices.append); err != nil {
		if closeErr := capture.Close(); closeErr != nil {
			zerolog.Ctx(ctx).Warn().Err(closeErr).Msg("failed to release capture device")
		}
		c.mu.Unlock()
		return c.capabilityFailure(ctx, err)
	}

	if startSlide >= 1 {
		c.startSlide = startSlide
	}
	c.capture = capture
	c.mimeType = mimeType
	c.current = nil
	c.state = constant.RecordingStateRecording
	slide := c.startSlide
	c.mu.Unlock()

	zerolog.Ctx(ctx).Info().Int("start_slide", slide).Str("mime_type", mimeType).Msg("recording started")
	c.notifyState(constant.RecordingStateRecording)
	return nil
}

func (c *Controller) capabilityFailure(ctx context.Context, err error) error {
	var capErr *CapabilityError
	if !errors.As(err, &capErr) {
		capErr = &CapabilityError{Err: err}
	}
	zerolog.Ctx(ctx).Error().Err(capErr).Msg("failed to start recording")
	if c.opts.OnError != nil {
		c.opts.OnError(capErr)
	}
	return capErr
}

func (c *Controller) Pause(ctx context.Context, currentSlide int) {
	c.mu.Lock()
	if c.state != constant.RecordingStateRecording {
		c.mu.Unlock()
		return
	}

	c.releaseLocked(ctx)
	audio := c.slices.bytes()
	c.current = &Recording{
		ID:        "seg-" + uuid.NewString(),
		Audio:     audio,
		MimeType:  c.mimeType,
		Size:      len(audio),
		Timestamp: time.Now(),
		State:     constant.RecordingStatePaused,
	}
	c.state = constant.RecordingStatePaused
	id := c.current.ID
	c.mu.Unlock()

	zerolog.Ctx(ctx).Info().Str("recording_id", id).Int("current_slide", currentSlide).Int("size_bytes", len(audio)).Msg("recording paused")
	c.notifyState(constant.RecordingStatePaused)
}

func (c *Controller) Review(ctx context.Context) {
	c.mu.Lock()
	if c.state != constant.RecordingStatePaused || c.current == nil {
		c.mu.Unlock()
		return
	}
	c.state = constant.RecordingStateReviewed
	c.mu.Unlock()

	zerolog.Ctx(ctx).Debug().Msg("recording under review")
	c.notifyState(constant.RecordingStateReviewed)
}

// ConfirmUpload emits the current take as a segment ending at currentSlide.
func (c *Controller) ConfirmUpload(ctx context.Context, currentSlide int, audience string) {
	c.mu.Lock()
	if !c.reviewableLocked() || c.current == nil {
		c.mu.Unlock()
		return
	}

	c.current.State = constant.RecordingStateUploaded
	seg := dto.Segment{
		ID:         c.current.ID,
		Audio:      c.current.Audio,
		MimeType:   c.current.MimeType,
		StartSlide: c.startSlide,
		EndSlide:   currentSlide,
		Audience:   audience,
	}
	c.releaseLocked(ctx)
	c.state = constant.RecordingStateUploaded
	c.current = nil
	c.mu.Unlock()

	zerolog.Ctx(ctx).Info().Str("segment_id", seg.ID).Int("start_slide", seg.StartSlide).Int("end_slide", seg.EndSlide).Msg("recording confirmed")
	if c.opts.OnSegmentReady != nil {
		c.opts.OnSegmentReady(seg)
	}
	c.notifyState(constant.RecordingStateUploaded)
}

func (c *Controller) DeleteRecording(ctx context.Context) {
	c.mu.Lock()
	if !c.reviewableLocked() {
		c.mu.Unlock()
		return
	}

	if c.current != nil {
		c.current.State = constant.RecordingStateDeleted
		zerolog.Ctx(ctx).Info().Str("recording_id", c.current.ID).Msg("recording deleted")
	}
	c.releaseLocked(ctx)
	c.state = constant.RecordingStateDeleted
	c.current = nil
	c.mu.Unlock()

	c.notifyState(constant.RecordingStateDeleted)
}

// Stop halts capture and frees the device without touching the lifecycle state.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked(ctx)
}

func (c *Controller) State() constant.RecordingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentRecording returns a copy of the paused/reviewed take, or nil.
func (c *Controller) CurrentRecording() *Recording {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}

// SetRecordingDuration records playback length once the reviewer knows it.
func (c *Controller) SetRecordingDuration(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.Duration = d
	}
}

func (c *Controller) reviewableLocked() bool {
	return c.state == constant.RecordingStatePaused || c.state == constant.RecordingStateReviewed
}

func (c *Controller) releaseLocked(ctx context.Context) {
	if c.capture == nil {
		return
	}
	if err := c.capture.Stop(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to stop capture")
	}
	if err := c.capture.Close(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to release capture device")
	}
	c.capture = nil
}

func (c *Controller) notifyState(state constant.RecordingState) {
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(state)
	}
}

type sliceBuffer struct {
	mu     sync.Mutex
	slices [][]byte
}

func (b *sliceBuffer) append(p []byte) {
	cp := append([]byte(nil), p...)
	b.mu.Lock()
	b.slices = append(b.slices, cp)
	b.mu.Unlock()
}

func (b *sliceBuffer) reset() {
	b.mu.Lock()
	b.slices = nil
	b.mu.Unlock()
}

func (b *sliceBuffer) bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Join(b.slices, nil)
}
