package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"pitch-recorder/constant"
	"pitch-recorder/dto"
	"pitch-recorder/queue"
	"pitch-recorder/recording"
	"pitch-recorder/repository"
	"pitch-recorder/service"
)

type Recorder interface {
	Start(ctx context.Context, startSlide int) error
	Pause(ctx context.Context, currentSlide int)
	Review(ctx context.Context)
	ConfirmUpload(ctx context.Context, currentSlide int, audience string)
	DeleteRecording(ctx context.Context)
	Stop(ctx context.Context)
	State() constant.RecordingState
	CurrentRecording() *recording.Recording
}

type UploadQueue interface {
	QueueStatus() dto.QueueStatus
	SegmentByID(id string) (queue.QueuedSegment, bool)
	RetryFailedSegments()
	ClearCompletedSegments()
}

// HTTPDependencies are the collaborators behind the HTTP API. Repo may be
// nil when no database is configured.
type HTTPDependencies struct {
	Recorder  Recorder
	Queue     UploadQueue
	Submitter service.SegmentSubmitter
	Repo      repository.EvaluationRepository
}

type startRequest struct {
	StartSlide int `json:"startSlide"`
}

type slideRequest struct {
	CurrentSlide int    `json:"currentSlide" binding:"required,min=1"`
	Audience     string `json:"audience"`
}

type segmentForm struct {
	ID         string `form:"id"`
	StartSlide int    `form:"startSlide" binding:"required,min=1"`
	EndSlide   int    `form:"endSlide" binding:"required,min=1"`
	Audience   string `form:"audience"`
}

type recordingResponse struct {
	State     constant.RecordingState `json:"state"`
	Recording *recording.Recording    `json:"recording"`
}

type queuedSegmentResponse struct {
	ID         string                 `json:"id"`
	StartSlide int                    `json:"startSlide"`
	EndSlide   int                    `json:"endSlide"`
	Audience   string                 `json:"audience,omitempty"`
	Status     constant.SegmentStatus `json:"status"`
	RetryCount int                    `json:"retryCount"`
	MaxRetries int                    `json:"maxRetries"`
	LastError  string                 `json:"lastError,omitempty"`
	Result     dto.WebhookResult      `json:"result,omitempty"`
}

const defaultEvaluationLimit = 50

// RequestLogger attaches the logger carried by base to every request context.
func RequestLogger(base context.Context) gin.HandlerFunc {
	logger := zerolog.Ctx(base)
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

func RegisterRoutes(r gin.IRouter, deps HTTPDependencies) {
	rec := r.Group("/recording")
	rec.GET("", deps.getRecording)
	rec.POST("/start", deps.startRecording)
	rec.POST("/pause", deps.pauseRecording)
	rec.POST("/review", deps.reviewRecording)
	rec.POST("/confirm", deps.confirmRecording)
	rec.POST("/delete", deps.deleteRecording)
	rec.POST("/stop", deps.stopRecording)
	rec.GET("/audio", deps.recordingAudio)

	r.POST("/segments", deps.submitSegment)

	q := r.Group("/queue")
	q.GET("", deps.queueStatus)
	q.GET("/segments/:id", deps.queuedSegment)
	q.POST("/retry", deps.retryFailed)
	q.POST("/clear", deps.clearCompleted)

	r.GET("/evaluations", deps.listEvaluations)
	r.GET("/evaluations/:id", deps.getEvaluation)
}

func abortWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (d HTTPDependencies) recordingState(c *gin.Context, status int) {
	c.JSON(status, recordingResponse{
		State:     d.Recorder.State(),
		Recording: d.Recorder.CurrentRecording(),
	})
}

func (d HTTPDependencies) getRecording(c *gin.Context) {
	d.recordingState(c, http.StatusOK)
}

func (d HTTPDependencies) startRecording(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	// The capture outlives the request.
	ctx := context.WithoutCancel(c.Request.Context())
	err := d.Recorder.Start(ctx, req.StartSlide)
	switch {
	case err == nil:
		d.recordingState(c, http.StatusOK)
	case errors.Is(err, recording.ErrCaptureActive):
		abortWithError(c, http.StatusConflict, err)
	case errors.Is(err, recording.ErrPermissionDenied):
		abortWithError(c, http.StatusForbidden, err)
	default:
		abortWithError(c, http.StatusServiceUnavailable, err)
	}
}

func (d HTTPDependencies) requireState(c *gin.Context, allowed ...constant.RecordingState) bool {
	state := d.Recorder.State()
	for _, s := range allowed {
		if s == state {
			return true
		}
	}
	c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "operation not allowed in state " + string(state)})
	return false
}

func (d HTTPDependencies) pauseRecording(c *gin.Context) {
	var req slideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if !d.requireState(c, constant.RecordingStateRecording) {
		return
	}
	d.Recorder.Pause(c.Request.Context(), req.CurrentSlide)
	d.recordingState(c, http.StatusOK)
}

func (d HTTPDependencies) reviewRecording(c *gin.Context) {
	if !d.requireState(c, constant.RecordingStatePaused) {
		return
	}
	d.Recorder.Review(c.Request.Context())
	d.recordingState(c, http.StatusOK)
}

func (d HTTPDependencies) confirmRecording(c *gin.Context) {
	var req slideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if !d.requireState(c, constant.RecordingStatePaused, constant.RecordingStateReviewed) {
		return
	}
	d.Recorder.ConfirmUpload(c.Request.Context(), req.CurrentSlide, req.Audience)
	d.recordingState(c, http.StatusOK)
}

func (d HTTPDependencies) deleteRecording(c *gin.Context) {
	if !d.requireState(c, constant.RecordingStatePaused, constant.RecordingStateReviewed) {
		return
	}
	d.Recorder.DeleteRecording(c.Request.Context())
	d.recordingState(c, http.StatusOK)
}

func (d HTTPDependencies) stopRecording(c *gin.Context) {
	d.Recorder.Stop(c.Request.Context())
	d.recordingState(c, http.StatusOK)
}

func (d HTTPDependencies) recordingAudio(c *gin.Context) {
	rec := d.Recorder.CurrentRecording()
	if rec == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no recording to review"})
		return
	}
	c.Data(http.StatusOK, rec.MimeType, rec.Audio)
}

func (d HTTPDependencies) submitSegment(c *gin.Context) {
	var form segmentForm
	if err := c.ShouldBind(&form); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	header, err := c.FormFile("audio")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	file, err := header.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if len(audio) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "audio is empty"})
		return
	}

	if form.ID == "" {
		form.ID = "seg-" + uuid.NewString()
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = recording.DefaultEncoding
	}

	err = d.Submitter.Submit(c.Request.Context(), dto.Segment{
		ID:         form.ID,
		Audio:      audio,
		MimeType:   mimeType,
		StartSlide: form.StartSlide,
		EndSlide:   form.EndSlide,
		Audience:   form.Audience,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"id": form.ID})
	case errors.Is(err, queue.ErrDuplicateSegment):
		abortWithError(c, http.StatusConflict, err)
	case errors.Is(err, queue.ErrQueueClosed):
		abortWithError(c, http.StatusServiceUnavailable, err)
	default:
		abortWithError(c, http.StatusInternalServerError, err)
	}
}

func (d HTTPDependencies) queueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, d.Queue.QueueStatus())
}

func (d HTTPDependencies) queuedSegment(c *gin.Context) {
	s, ok := d.Queue.SegmentByID(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "segment not found"})
		return
	}
	c.JSON(http.StatusOK, queuedSegmentResponse{
		ID:         s.ID,
		StartSlide: s.StartSlide,
		EndSlide:   s.EndSlide,
		Audience:   s.Audience,
		Status:     s.Status,
		RetryCount: s.RetryCount,
		MaxRetries: s.MaxRetries,
		LastError:  s.LastError,
		Result:     s.Result,
	})
}

func (d HTTPDependencies) retryFailed(c *gin.Context) {
	d.Queue.RetryFailedSegments()
	c.JSON(http.StatusAccepted, d.Queue.QueueStatus())
}

func (d HTTPDependencies) clearCompleted(c *gin.Context) {
	d.Queue.ClearCompletedSegments()
	c.JSON(http.StatusOK, d.Queue.QueueStatus())
}

func (d HTTPDependencies) requireRepo(c *gin.Context) bool {
	if d.Repo == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "evaluation store not configured"})
		return false
	}
	return true
}

func (d HTTPDependencies) listEvaluations(c *gin.Context) {
	if !d.requireRepo(c) {
		return
	}
	limit := defaultEvaluationLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	evaluations, err := d.Repo.ListEvaluations(c.Request.Context(), limit)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to list evaluations")
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, evaluations)
}

func (d HTTPDependencies) getEvaluation(c *gin.Context) {
	if !d.requireRepo(c) {
		return
	}
	evaluation, err := d.Repo.FindEvaluationById(c.Request.Context(), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "evaluation not found"})
		return
	}
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("failed to find evaluation")
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, evaluation)
}
