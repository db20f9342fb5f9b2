package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"pitch-recorder/config"
	"pitch-recorder/constant"
	"pitch-recorder/dto"
	"pitch-recorder/handler"
	"pitch-recorder/pkg/rabbitmq"
	"pitch-recorder/queue"
	"pitch-recorder/recording"
	"pitch-recorder/repository"
	"pitch-recorder/service"
	"pitch-recorder/webhook"
)

const shutdownTimeout = 10 * time.Second

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	var repo repository.EvaluationRepository
	if cfg.DB != nil {
		var err error
		repo, err = repository.NewRepo(cfg.DB)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("NewRepo")
		}
	}

	var storage service.Storage
	if cfg.Storage != nil {
		storage = service.NewMinIOStorage(cfg.Storage, cfg.MinIOBucket)
	}

	var conn *amqp.Connection
	var publisher rabbitmq.Publisher
	if cfg.Queue != nil {
		var err error
		conn, err = config.NewRabbitMQConn(ctx, cfg.Queue)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
		} else {
			publisher, err = rabbitmq.NewPublisher(ctx, conn, cfg.Queue, constant.EvaluationExchange)
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("NewPublisher")
			}
		}
	}

	evaluationService := service.NewEvaluationService(repo, storage, publisher)

	uploadQueue := queue.New(ctx, webhook.NewClient(cfg.Webhook.Timeout), cfg.Webhook.URL,
		queue.WithMaxRetries(cfg.Webhook.MaxRetries),
		queue.WithAttemptTimeout(cfg.Webhook.Timeout),
	)
	defer uploadQueue.Close()
	submitter := service.NewSegmentSubmitter(uploadQueue, evaluationService)

	controller := recording.NewController(recording.Options{
		Microphone: &recording.FFmpegMicrophone{
			InputFormat: cfg.Capture.InputFormat,
			Device:      cfg.Capture.Device,
		},
		Timeslice: cfg.Capture.Timeslice,
		OnSegmentReady: func(seg dto.Segment) {
			if err := submitter.Submit(ctx, seg); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("segment_id", seg.ID).Msg("failed to submit confirmed recording")
			}
		},
		OnError: func(err error) {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("recording error")
		},
		OnStateChange: func(state constant.RecordingState) {
			zerolog.Ctx(ctx).Debug().Str("state", string(state)).Msg("recording state changed")
		},
	})

	if conn != nil && storage != nil {
		deps := handler.ServiceDependencies{
			IntakeService: service.NewIntakeService(storage, submitter),
		}
		intakeConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, rabbitmq.Binding{
			Exchange:             constant.SegmentExchange,
			Queue:                constant.SegmentIntakeQueue,
			RoutingKey:           constant.SegmentIntakeRoutingKey,
			DeadLetterExchange:   constant.SegmentDeadLetterExchange,
			DeadLetterQueue:      constant.SegmentDeadLetterQueue,
			DeadLetterRoutingKey: constant.SegmentDeadLetterRoutingKey,
			MaxTries:             5,
			MaxInterval:          10 * time.Second,
		}, cfg.Server.Workers, handler.SegmentIntakeHandler)
		go func() {
			err := intakeConsumer.Consume(ctx, deps)
			if err != nil && !errors.Is(err, context.Canceled) {
				zerolog.Ctx(ctx).Error().Err(err).Msg("Segment intake consumer error")
			}
		}()
	}

	r := gin.Default()
	r.Use(handler.RequestLogger(ctx))
	addHealth(r)
	handler.RegisterRoutes(r, handler.HTTPDependencies{
		Recorder:  controller,
		Queue:     uploadQueue,
		Submitter: submitter,
		Repo:      repo,
	})

	srv := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("port", cfg.Server.HttpPort).Msg("start http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}
	controller.Stop(shutdownCtx)

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Interface("queue", uploadQueue.QueueStatus()).Msg("server shutdown")
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "pitch-recorder").Logger()
	return logger.WithContext(context.Background())
}
