// Package amqp carries this service's leg of the messaging boundary:
// inbound subject events are consumed from a queue the transport publishes
// to, outbound prompts and notifications are published for the transport to
// render, and committed transactions emit sync messages for the mirror
// worker.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"financas/internal/gateway"
)

// Queues names the three queues bound to the exchange. Routing keys equal
// queue names (direct exchange).
type Queues struct {
	Events  string
	Prompts string
	Sync    string
}

type Client struct {
	url          string
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queues       Queues
}

func NewClient(url, exchangeName string, queues Queues) (*Client, error) {
	client := &Client{
		url:          url,
		exchangeName: exchangeName,
		queues:       queues,
	}
	if err := client.connect(); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel

	if err := c.setup(); err != nil {
		c.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.queues.Events, c.queues.Prompts, c.queues.Sync} {
		if queue == "" {
			continue
		}
		_, err = c.channel.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := c.channel.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Send publishes an outbound prompt for the transport to deliver. It
// implements gateway.Sender.
func (c *Client) Send(ctx context.Context, p gateway.Prompt) error {
	body, err := NewPromptMessage(p).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal prompt: %w", err)
	}
	if err := c.publish(ctx, c.queues.Prompts, body); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Published prompt",
		"subject_id", p.SubjectID, "choices", len(p.Choices))
	return nil
}

// PublishTransactionSync emits a mirror sync message for a committed
// transaction.
func (c *Client) PublishTransactionSync(ctx context.Context, id int64) error {
	body, err := NewTransactionSyncMessage(id).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal sync message: %w", err)
	}
	if err := c.publish(ctx, c.queues.Sync, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published transaction sync message", "id", id)
	return nil
}

// ConsumeEvents delivers inbound subject events to the handler until ctx
// is cancelled, reconnecting with exponential backoff when the broker
// connection drops. Malformed messages are rejected without requeue;
// handler errors requeue the delivery.
func (c *Client) ConsumeEvents(ctx context.Context, handler func(context.Context, gateway.Event) error) error {
	return c.consumeWithReconnect(ctx, c.queues.Events, func(delivery amqp091.Delivery) error {
		msg, err := EventMessageFromJSON(delivery.Body)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal event", "error", err)
			delivery.Nack(false, false)
			return nil
		}
		ev, err := msg.ToEvent()
		if err != nil {
			slog.ErrorContext(ctx, "Dropping malformed event", "error", err)
			delivery.Nack(false, false)
			return nil
		}
		if err := handler(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "Failed to handle event",
				"subject_id", ev.SubjectID, "error", err)
			delivery.Nack(false, true)
			return nil
		}
		delivery.Ack(false)
		return nil
	})
}

// ConsumeTransactionSync delivers mirror sync messages to the handler
// until ctx is cancelled.
func (c *Client) ConsumeTransactionSync(ctx context.Context, handler func(context.Context, *TransactionSyncMessage) error) error {
	return c.consumeWithReconnect(ctx, c.queues.Sync, func(delivery amqp091.Delivery) error {
		msg, err := TransactionSyncMessageFromJSON(delivery.Body)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal sync message", "error", err)
			delivery.Nack(false, false)
			return nil
		}
		if err := handler(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to handle sync message",
				"id", msg.ID, "error", err)
			delivery.Nack(false, true)
			return nil
		}
		delivery.Ack(false)
		return nil
	})
}

func (c *Client) consumeWithReconnect(ctx context.Context, queue string, handle func(amqp091.Delivery) error) error {
	attempt := 0
	for {
		err := c.consume(ctx, queue, handle)
		if err == nil || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		delay := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "AMQP connection lost, reconnecting",
			"queue", queue, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if err := c.connect(); err != nil {
			slog.ErrorContext(ctx, "Reconnect failed", "error", err)
			continue
		}
		attempt = 0
	}
}

func (c *Client) consume(ctx context.Context, queue string, handle func(amqp091.Delivery) error) error {
	msgs, err := c.channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed: %w", amqp091.ErrClosed)
			}
			if err := handle(delivery); err != nil {
				return err
			}
		}
	}
}

// exponentialBackoff doubles the delay per attempt, capped at 30 seconds.
func exponentialBackoff(attempt int) time.Duration {
	delay := time.Second << uint(attempt)
	if attempt >= 5 || delay > 30*time.Second {
		return 30 * time.Second
	}
	return delay
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	var amqpErr *amqp091.Error
	if errors.As(err, &amqpErr) {
		return amqpErr.Code == amqp091.ConnectionForced || amqpErr.Code == amqp091.ChannelError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
