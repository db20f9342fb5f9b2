package rabbitmq

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"pitch-recorder/config"
)

// Binding describes the exchange/queue pair a consumer reads from and the
// dead-letter pair that receives messages which exhausted their retries.
type Binding struct {
	Exchange             string
	Queue                string
	RoutingKey           string
	DeadLetterExchange   string
	DeadLetterQueue      string
	DeadLetterRoutingKey string
	MaxTries             uint
	InitialInterval      time.Duration
	MaxInterval          time.Duration
}

type Consumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

type Handler[T any] func(ctx context.Context, msg amqp.Delivery, dependencies T) error

type consumer[T any] struct {
	conn       *amqp.Connection
	cfg        *config.RabbitMQ
	binding    Binding
	handler    Handler[T]
	numWorkers int
}

func (c consumer[T]) declare(ctx context.Context, ch *amqp.Channel) error {
	b := c.binding
	log := zerolog.Ctx(ctx)

	err := ch.ExchangeDeclare(b.Exchange, c.cfg.Kind, true, false, false, false, nil)
	if err != nil {
		log.Error().Err(err).Str("exchange", b.Exchange).Msg("failed to declare exchange")
		return err
	}

	var args amqp.Table
	if b.DeadLetterExchange != "" {
		err = ch.ExchangeDeclare(b.DeadLetterExchange, c.cfg.Kind, true, false, false, false, nil)
		if err != nil {
			log.Error().Err(err).Str("exchange", b.DeadLetterExchange).Msg("failed to declare dlx")
			return err
		}

		dlq, err := ch.QueueDeclare(b.DeadLetterQueue, true, false, false, false, nil)
		if err != nil {
			log.Error().Err(err).Str("queue", b.DeadLetterQueue).Msg("failed to declare dlq")
			return err
		}

		err = ch.QueueBind(dlq.Name, b.DeadLetterRoutingKey, b.DeadLetterExchange, false, nil)
		if err != nil {
			log.Error().Err(err).Str("queue", b.DeadLetterQueue).Msg("failed to bind dlq")
			return err
		}

		args = amqp.Table{
			"x-dead-letter-exchange":    b.DeadLetterExchange,
			"x-dead-letter-routing-key": b.DeadLetterRoutingKey,
		}
	}

	q, err := ch.QueueDeclare(b.Queue, true, false, false, false, args)
	if err != nil {
		log.Error().Err(err).Str("queue", b.Queue).Msg("failed to declare queue")
		return err
	}

	err = ch.QueueBind(q.Name, b.RoutingKey, b.Exchange, false, nil)
	if err != nil {
		log.Error().Err(err).Str("queue", b.Queue).Msg("failed to bind queue")
		return err
	}

	err = ch.Qos(c.numWorkers, 0, false)
	if err != nil {
		log.Error().Err(err).Str("queue", b.Queue).Msg("failed to set QoS")
		return err
	}
	return nil
}

func (c consumer[T]) Consume(ctx context.Context, dependencies T) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := c.declare(ctx, ch); err != nil {
		return err
	}

	deliveries, err := ch.Consume(c.binding.Queue, "", false, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("queue", c.binding.Queue).Msg("failed to consume queue")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("queue", c.binding.Queue).
		Str("exchange", c.binding.Exchange).
		Str("routing_key", c.binding.RoutingKey).
		Int("workers", c.numWorkers).
		Msg("consumer started")

	jobs := make(chan amqp.Delivery, c.numWorkers)
	var wg sync.WaitGroup
	for i := 1; i <= c.numWorkers; i++ {
		wg.Add(1)
		go func(workerId int) {
			defer wg.Done()
			for msg := range jobs {
				c.handle(ctx, workerId, msg, dependencies)
			}
		}(i)
	}

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				close(jobs)
				wg.Wait()
				return nil
			}

			jobs <- delivery
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
}

// handle retries the handler with exponential backoff, acking on success and
// nacking without requeue (to the dead-letter queue) otherwise. Handlers stop
// the retries early by returning backoff.Permanent.
func (c consumer[T]) handle(ctx context.Context, workerId int, msg amqp.Delivery, dependencies T) {
	operation := func() (struct{}, error) {
		return struct{}{}, c.handler(ctx, msg, dependencies)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.binding.InitialInterval
	bo.MaxInterval = c.binding.MaxInterval
	bo.Reset()

	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(c.binding.MaxTries))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int("worker_id", workerId).Str("queue", c.binding.Queue).Msg("failed to handle message after all retries")
		if nackErr := msg.Nack(false, false); nackErr != nil {
			zerolog.Ctx(ctx).Error().Err(nackErr).Msg("failed to nack message to send to DLQ")
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		zerolog.Ctx(ctx).Error().Err(ackErr).Msg("failed to acknowledge message")
	}
}

func NewConsumer[T any](
	conn *amqp.Connection,
	cfg *config.RabbitMQ,
	binding Binding,
	numWorkers int,
	handler Handler[T],
) Consumer[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if binding.MaxTries == 0 {
		binding.MaxTries = 5
	}
	if binding.InitialInterval <= 0 {
		binding.InitialInterval = 500 * time.Millisecond
	}
	if binding.MaxInterval <= 0 {
		binding.MaxInterval = 10 * time.Second
	}
	return &consumer[T]{
		conn:       conn,
		cfg:        cfg,
		binding:    binding,
		handler:    handler,
		numWorkers: numWorkers,
	}
}
