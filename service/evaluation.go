package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"
	"pitch-recorder/constant"
	"pitch-recorder/dto"
	"pitch-recorder/entities"
	"pitch-recorder/evaluation"
	"pitch-recorder/pkg/rabbitmq"
	"pitch-recorder/recording"
	"pitch-recorder/repository"
)

type EvaluationService interface {
	Record(ctx context.Context, seg dto.Segment, result dto.WebhookResult) error
}

type evaluationService struct {
	repo      repository.EvaluationRepository
	storage   Storage
	publisher rabbitmq.Publisher
	now       func() time.Time
}

// NewEvaluationService wires the optional sinks. A nil sink is skipped.
func NewEvaluationService(repo repository.EvaluationRepository, storage Storage, publisher rabbitmq.Publisher) EvaluationService {
	return &evaluationService{
		repo:      repo,
		storage:   storage,
		publisher: publisher,
		now:       time.Now,
	}
}

func segmentObject(segmentId, name string) string {
	return path.Join("segments", segmentId, name)
}

func (s *evaluationService) Record(ctx context.Context, seg dto.Segment, result dto.WebhookResult) error {
	log := zerolog.Ctx(ctx).With().Str("segment_id", seg.ID).Logger()

	ev, err := evaluation.Parse(result)
	if err != nil {
		log.Warn().Err(err).Msg("discarding invalid evaluation result")
		return err
	}

	var errs []error
	audioObject := ""
	if s.storage != nil {
		audioObject, err = s.archive(ctx, seg, result)
		if err != nil {
			log.Error().Err(err).Msg("failed to archive segment")
			errs = append(errs, err)
		}
	}

	completedAt := s.now().UTC()
	if s.repo != nil {
		err = s.repo.SaveEvaluation(ctx, &entities.Evaluation{
			ID:          seg.ID,
			StartSlide:  seg.StartSlide,
			EndSlide:    seg.EndSlide,
			Audience:    seg.Audience,
			Input:       ev.Input,
			Output:      ev.Output,
			Transcript:  ev.Transcript,
			AudioObject: audioObject,
			CreatedAt:   completedAt,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to save evaluation")
			errs = append(errs, err)
		}
	}

	if s.publisher != nil {
		err = s.publisher.Publish(ctx, constant.EvaluationCompletedRoutingKey, dto.EvaluationCompletedMessage{
			SegmentId:   seg.ID,
			StartSlide:  seg.StartSlide,
			EndSlide:    seg.EndSlide,
			Audience:    seg.Audience,
			Input:       ev.Input,
			Output:      ev.Output,
			AudioObject: audioObject,
			CompletedAt: completedAt,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to publish evaluation")
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Info().Int("start_slide", seg.StartSlide).Int("end_slide", seg.EndSlide).Msg("evaluation recorded")
	return nil
}

// archive stores the audio and the raw webhook result and returns the audio
// object name.
func (s *evaluationService) archive(ctx context.Context, seg dto.Segment, result dto.WebhookResult) (string, error) {
	contentType := seg.MimeType
	if contentType == "" {
		contentType = recording.DefaultEncoding
	}
	audioObject := segmentObject(seg.ID, "audio.webm")
	if err := s.storage.Put(ctx, audioObject, seg.Audio, contentType); err != nil {
		return "", fmt.Errorf("archiving audio: %w", err)
	}

	body, err := json.Marshal(result)
	if err != nil {
		return audioObject, err
	}
	if err := s.storage.Put(ctx, segmentObject(seg.ID, "result.json"), body, "application/json"); err != nil {
		return audioObject, fmt.Errorf("archiving result: %w", err)
	}
	return audioObject, nil
}
