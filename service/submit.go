package service

import (
	"context"

	"github.com/rs/zerolog"
	"pitch-recorder/dto"
	"pitch-recorder/queue"
)

// SegmentQueue is the part of the upload queue a submitter needs.
type SegmentQueue interface {
	AddSegment(seg dto.Segment, cb queue.Callbacks) error
}

type SegmentSubmitter interface {
	Submit(ctx context.Context, seg dto.Segment) error
}

type segmentSubmitter struct {
	queue       SegmentQueue
	evaluations EvaluationService
}

func NewSegmentSubmitter(q SegmentQueue, evaluations EvaluationService) SegmentSubmitter {
	return &segmentSubmitter{
		queue:       q,
		evaluations: evaluations,
	}
}

// Submit enqueues seg and returns without waiting for the upload. The
// callbacks outlive ctx's cancellation but keep its logger.
func (s *segmentSubmitter) Submit(ctx context.Context, seg dto.Segment) error {
	log := zerolog.Ctx(ctx).With().Str("segment_id", seg.ID).Logger()
	callbackCtx := log.WithContext(context.WithoutCancel(ctx))

	err := s.queue.AddSegment(seg, queue.Callbacks{
		OnComplete: func(result dto.WebhookResult) {
			if s.evaluations == nil {
				return
			}
			if err := s.evaluations.Record(callbackCtx, seg, result); err != nil {
				log.Error().Err(err).Msg("failed to record evaluation")
			}
		},
		OnError: func(err error) {
			log.Error().Err(err).Msg("segment upload failed")
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("segment rejected by upload queue")
		return err
	}

	log.Info().Int("start_slide", seg.StartSlide).Int("end_slide", seg.EndSlide).Int("bytes", len(seg.Audio)).Msg("segment queued")
	return nil
}
