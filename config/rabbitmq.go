package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const rabbitMQDialTries = 5

func (r *RabbitMQ) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(r.User, r.Pass),
		Host:   fmt.Sprintf("%s:%d", r.Host, r.Port),
		Path:   "/",
	}
	return u.String()
}

// NewRabbitMQConn dials the broker with exponential backoff. The connection
// is closed when ctx is done.
func NewRabbitMQConn(ctx context.Context, cfg *RabbitMQ) (*amqp.Connection, error) {
	log := zerolog.Ctx(ctx).With().Str("host", cfg.Host).Int("port", cfg.Port).Logger()

	operation := func() (*amqp.Connection, error) {
		conn, err := amqp.DialConfig(cfg.URL(), amqp.Config{
			Properties: amqp.Table{"connection_name": "pitch-recorder"},
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to RabbitMQ, retrying")
			return nil, err
		}

		return conn, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 10 * time.Second
	conn, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(rabbitMQDialTries))
	if err != nil {
		log.Error().Err(err).Msg("giving up connecting to RabbitMQ")
		return nil, err
	}

	log.Info().Msg("connected to RabbitMQ")
	go func() {
		<-ctx.Done()
		if err := conn.Close(); err != nil && err != amqp.ErrClosed {
			log.Error().Err(err).Msg("failed to close RabbitMQ connection")
			return
		}
		log.Info().Msg("RabbitMQ connection closed")
	}()

	return conn, nil
}
