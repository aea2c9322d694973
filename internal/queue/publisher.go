package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// Publisher publishes HistoryEvents to RabbitMQ.  Each call dials the
// broker, declares the queue and publishes one persistent message.  Errors
// are logged and returned so the caller can choose to ignore them.
type Publisher struct {
	URL         string
	Queue       string
	DialTimeout time.Duration
	Log         log.FieldLogger
}

// NewPublisher returns a Publisher for the history queue.
func NewPublisher(url string, logger log.FieldLogger) *Publisher {
	return &Publisher{URL: url, Queue: HistoryQueue, DialTimeout: 2 * time.Second, Log: logger}
}

// Publish sends ev.  It never panics.
func (p *Publisher) Publish(ctx context.Context, ev HistoryEvent) error {
	l := p.Log.WithField("event", ev.Type)

	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.DialTimeout),
	})
	if err != nil {
		l.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		l.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		l.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	pub, err := encode(ev)
	if err != nil {
		l.WithError(err).Warn("rabbitmq: marshal event failed")
		return err
	}

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		l.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}

func encode(ev HistoryEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}, nil
}
