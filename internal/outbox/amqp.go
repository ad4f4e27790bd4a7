package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// RoutingKey is the topic key delivery tasks are published under.
const RoutingKey = "delivery.message"

// AMQPQueue publishes and consumes delivery tasks over RabbitMQ, using a
// durable topic exchange and persistent JSON payloads.
type AMQPQueue struct {
	conn     *amqp091.Connection
	exchange string
	queue    string
	log      *slog.Logger
}

// DialAMQP connects to the broker and declares the exchange, queue and
// binding used for deliveries.
func DialAMQP(url, exchange, queue string, logger *slog.Logger) (*AMQPQueue, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("outbox: dial %s: %w", url, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("outbox: open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("outbox: declare exchange %s: %w", exchange, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("outbox: declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, RoutingKey, exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("outbox: bind queue %s: %w", queue, err)
	}

	return &AMQPQueue{
		conn:     conn,
		exchange: exchange,
		queue:    queue,
		log:      logger,
	}, nil
}

// Publish enqueues a delivery task.
func (q *AMQPQueue) Publish(ctx context.Context, task Task) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("outbox: open channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("outbox: marshal task: %w", err)
	}

	err = ch.PublishWithContext(
		ctx, q.exchange, RoutingKey, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     task.ID,
			CorrelationId: task.ID,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("outbox: publish task %s: %w", task.ID, err)
	}
	return nil
}

// Consume reads delivery tasks until ctx is cancelled. Delivery is not
// retried: handler failures are logged and the task acknowledged, the
// message simply keeps an empty provider-id list.
func (q *AMQPQueue) Consume(ctx context.Context, handle Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("outbox: open channel: %w", err)
	}
	defer ch.Close()

	deliveries, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("outbox: consume %s: %w", q.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("outbox: delivery channel closed")
			}
			var task Task
			if err := json.Unmarshal(d.Body, &task); err != nil {
				q.log.Error("drop malformed task", "error", err)
				d.Nack(false, false)
				continue
			}
			if err := handle(ctx, task); err != nil {
				q.log.Error("delivery failed", "task_id", task.ID,
					"message_id", task.MessageID, "error", err)
			}
			d.Ack(false)
		}
	}
}

// Close shuts down the broker connection.
func (q *AMQPQueue) Close() error {
	return q.conn.Close()
}
