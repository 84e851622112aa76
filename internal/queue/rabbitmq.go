package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/wallseat/payment-transaction-model/internal/domain"
)

// Acknowledger settles one delivery: Ack removes it from the queue, Nack
// with requeue hands it back to the broker for redelivery.
type Acknowledger interface {
	Ack() error
	Nack(requeue bool) error
}

// Delivery is one settlement-intent message as received from the broker.
// The message stays in-flight against the consumer's prefetch budget until
// it is acked or nacked.
type Delivery struct {
	Body []byte
	Acknowledger
}

// Channel is a durable named queue on a RabbitMQ broker. Messages are
// persistent and publishes wait for a broker confirm, so a returned nil
// error from Publish means the broker owns the message.
type Channel struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	queue    string
	prefetch int
}

// Dial connects to the broker, declares the durable queue, puts the channel
// into confirm mode, and caps in-flight deliveries at prefetch.
func Dial(url, queueName string, prefetch int) (*Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broker dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("channel open failed: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue declare failed: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("confirm mode failed: %w", err)
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("qos failed: %w", err)
	}

	return &Channel{conn: conn, ch: ch, queue: queueName, prefetch: prefetch}, nil
}

func (c *Channel) Close() error {
	if err := c.ch.Close(); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}

// Publish sends a settlement intent as a persistent message and waits for
// the broker confirm.
func (c *Channel) Publish(ctx context.Context, intent domain.SettlementIntent) error {
	body, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("intent encode failed: %w", err)
	}

	confirm, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, "", c.queue, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    intent.TransactionID.String(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish confirm failed: %w", err)
	}
	if !acked {
		return fmt.Errorf("publish nacked by broker for transaction %s", intent.TransactionID)
	}
	return nil
}

// Consume starts delivering messages from the queue. Acknowledgment is
// manual; unacked messages are redelivered after the consumer disconnects.
// The returned channel closes when ctx is cancelled or the broker
// connection drops.
func (c *Channel) Consume(ctx context.Context) (<-chan Delivery, error) {
	raw, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume failed: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for d := range raw {
			out <- Delivery{Body: d.Body, Acknowledger: amqpAck{d}}
		}
	}()
	return out, nil
}

type amqpAck struct {
	d amqp.Delivery
}

func (a amqpAck) Ack() error              { return a.d.Ack(false) }
func (a amqpAck) Nack(requeue bool) error { return a.d.Nack(false, requeue) }

// DecodeIntent parses a settlement-intent payload. Amount travels as
// decimal text, never binary floating point, so both halves of the
// pipeline see the exact same value.
func DecodeIntent(body []byte) (domain.SettlementIntent, error) {
	var intent domain.SettlementIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return domain.SettlementIntent{}, fmt.Errorf("intent decode failed: %w", err)
	}
	return intent, nil
}
