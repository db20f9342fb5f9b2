package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"pitch-recorder/config"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type publisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

// NewPublisher opens a channel on conn and declares exchange as a durable
// exchange of the configured kind.
func NewPublisher(ctx context.Context, conn *amqp.Connection, cfg *config.RabbitMQ, exchange string) (Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(exchange, cfg.Kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("exchange", exchange).Msg("failed to declare exchange")
		_ = ch.Close()
		return nil, err
	}

	go func() {
		<-ctx.Done()
		_ = ch.Close()
	}()

	return &publisher{ch: ch, exchange: exchange}, nil
}

func (p *publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}
