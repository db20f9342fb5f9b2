package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"pitch-recorder/dto"
	"pitch-recorder/queue"
	"pitch-recorder/recording"
)

type IntakeService interface {
	ProcessSegmentMessage(ctx context.Context, message dto.SegmentMessage) error
}

type intakeService struct {
	storage   Storage
	submitter SegmentSubmitter
	validate  *validator.Validate
}

func NewIntakeService(storage Storage, submitter SegmentSubmitter) IntakeService {
	return &intakeService{
		storage:   storage,
		submitter: submitter,
		validate:  validator.New(),
	}
}

func (s *intakeService) ProcessSegmentMessage(ctx context.Context, message dto.SegmentMessage) error {
	log := zerolog.Ctx(ctx).With().Str("segment_id", message.SegmentId).Str("object_path", message.ObjectPath).Logger()
	log.Info().Msg("processing segment intake")

	if err := s.validate.Struct(message); err != nil {
		log.Error().Err(err).Msg("invalid segment message")
		return errors.Join(ErrNonRetryable, err)
	}

	audio, err := s.storage.Get(ctx, message.ObjectPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to download segment audio")
		if errors.Is(err, ErrObjectNotFound) {
			return errors.Join(ErrNonRetryable, err)
		}
		return err
	}
	if len(audio) == 0 {
		err = fmt.Errorf("segment audio %s is empty", message.ObjectPath)
		log.Error().Err(err).Msg("empty segment audio")
		return errors.Join(ErrNonRetryable, err)
	}

	err = s.submitter.Submit(ctx, dto.Segment{
		ID:         message.SegmentId,
		Audio:      audio,
		MimeType:   mimeTypeOf(message.ObjectPath),
		StartSlide: message.StartSlide,
		EndSlide:   message.EndSlide,
		Audience:   message.Audience,
	})
	if errors.Is(err, queue.ErrDuplicateSegment) {
		log.Info().Msg("segment already queued, skipping redelivery")
		return nil
	}
	return err
}

var audioTypes = map[string]string{
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
}

func mimeTypeOf(objectPath string) string {
	if t, ok := audioTypes[strings.ToLower(path.Ext(objectPath))]; ok {
		return t
	}
	return recording.DefaultEncoding
}
