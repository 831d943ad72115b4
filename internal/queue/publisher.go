// Package queue publishes dispatch domain events to RabbitMQ. A failed
// publish is logged and returned so callers can treat delivery as best
// effort.
package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
)

const dispatchCompletedQueue = "dispatch.completed"

// Publisher opens a fresh connection per publish. Dispatch happens a
// handful of times a day, so connection reuse buys nothing here.
type Publisher struct {
	URL    string
	Logger zerolog.Logger
}

func NewPublisher(url string, logger zerolog.Logger) *Publisher {
	return &Publisher{URL: url, Logger: logger}
}

// PublishDispatchCompleted puts a persistent JSON message on the
// dispatch.completed queue, declaring the queue first so consumers can
// start in any order.
func (p *Publisher) PublishDispatchCompleted(ctx context.Context, ev models.DispatchCompletedEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Logger.Error().Err(err).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Logger.Error().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		dispatchCompletedQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		p.Logger.Error().Err(err).Msg("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if err := ch.PublishWithContext(ctx,
		"",                     // default exchange
		dispatchCompletedQueue, // routing key = queue name
		false,                  // mandatory
		false,                  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	); err != nil {
		p.Logger.Error().Err(err).Str("date", ev.Date).Msg("rabbitmq: publish failed")
		return err
	}
	p.Logger.Info().Str("date", ev.Date).Int("runs", ev.Runs).Msg("dispatch.completed published")
	return nil
}
