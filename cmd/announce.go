package cmd

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"pitch-recorder/config"
	"pitch-recorder/constant"
	"pitch-recorder/dto"
	"pitch-recorder/pkg/rabbitmq"
	"pitch-recorder/service"
)

type announceOptions struct {
	segmentId  string
	startSlide int
	endSlide   int
	audience   string
}

// announce plays the part of a remote recorder: it stores a local audio file
// in the bucket and announces it on the segment intake exchange.
func announce(cfg *config.Config) *cobra.Command {
	opts := announceOptions{}
	cmd := &cobra.Command{
		Use:   "announce <audio-file>",
		Short: "upload an audio file and announce it for evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
			ctx := logger.WithContext(cmd.Context())
			return runAnnounce(ctx, cfg, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.segmentId, "segment-id", "", "segment id (generated when empty)")
	cmd.Flags().IntVar(&opts.startSlide, "start-slide", 1, "first slide covered by the recording")
	cmd.Flags().IntVar(&opts.endSlide, "end-slide", 1, "last slide covered by the recording")
	cmd.Flags().StringVar(&opts.audience, "audience", "", "target audience")
	return cmd
}

func intakeObjectPath(segmentId, file string) string {
	return path.Join("uploads", segmentId+strings.ToLower(filepath.Ext(file)))
}

func runAnnounce(ctx context.Context, cfg *config.Config, file string, opts announceOptions) error {
	if cfg.Storage == nil || cfg.Queue == nil {
		return errors.New("announce needs minio and rabbitmq configured")
	}

	audio, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	if opts.segmentId == "" {
		opts.segmentId = "seg-" + uuid.NewString()
	}
	message := dto.SegmentMessage{
		SegmentId:  opts.segmentId,
		ObjectPath: intakeObjectPath(opts.segmentId, file),
		StartSlide: opts.startSlide,
		EndSlide:   opts.endSlide,
		Audience:   opts.audience,
	}

	storage := service.NewMinIOStorage(cfg.Storage, cfg.MinIOBucket)
	if err := storage.Put(ctx, message.ObjectPath, audio, "application/octet-stream"); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		return err
	}
	publisher, err := rabbitmq.NewPublisher(ctx, conn, cfg.Queue, constant.SegmentExchange)
	if err != nil {
		return err
	}
	if err := publisher.Publish(ctx, constant.SegmentIntakeRoutingKey, message); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("segment_id", message.SegmentId).
		Str("object_path", message.ObjectPath).
		Msg("segment announced")
	return nil
}
