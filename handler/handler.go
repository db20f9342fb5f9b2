package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"pitch-recorder/dto"
	"pitch-recorder/service"
)

type ServiceDependencies struct {
	IntakeService service.IntakeService
}

// SegmentIntakeHandler decodes a segment announcement and hands it to the
// intake service. Errors that can never succeed stop the consumer's retries.
func SegmentIntakeHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var segmentMsg dto.SegmentMessage
	if err := json.Unmarshal(msg.Body, &segmentMsg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal segment message")
		return backoff.Permanent(err)
	}

	zerolog.Ctx(ctx).Info().
		Str("segment_id", segmentMsg.SegmentId).
		Str("object_path", segmentMsg.ObjectPath).
		Msg("received segment message")

	err := deps.IntakeService.ProcessSegmentMessage(ctx, segmentMsg)
	if errors.Is(err, service.ErrNonRetryable) {
		return backoff.Permanent(err)
	}
	return err
}
