package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PurchaseCompleted is emitted after a purchase lands in the ledger.
type PurchaseCompleted struct {
	PurchaseID string    `json:"purchaseId"`
	UserID     string    `json:"userId"`
	GuideID    string    `json:"guideId"`
	PaymentID  string    `json:"paymentId,omitempty"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers purchase events to downstream consumers.
type Publisher interface {
	PublishPurchaseCompleted(ctx context.Context, event PurchaseCompleted) error
	Close()
}

// RabbitPublisher publishes events to a durable RabbitMQ queue.
type RabbitPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

// NewRabbitPublisher connects to RabbitMQ and declares the queue.
func NewRabbitPublisher(url, queueName string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitPublisher{conn: conn, channel: ch, queue: q}, nil
}

// PublishPurchaseCompleted emits the event as JSON.
func (p *RabbitPublisher) PublishPurchaseCompleted(ctx context.Context, event PurchaseCompleted) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = p.channel.PublishWithContext(
		publishCtx,
		"",           // exchange
		p.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close shuts down the channel and connection.
func (p *RabbitPublisher) Close() {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			slog.Warn("close rabbitmq channel", "error", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			slog.Warn("close rabbitmq connection", "error", err)
		}
	}
}

// MemoryPublisher records events in-process for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []PurchaseCompleted
}

// NewMemoryPublisher builds an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// PublishPurchaseCompleted records the event.
func (p *MemoryPublisher) PublishPurchaseCompleted(ctx context.Context, event PurchaseCompleted) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	return nil
}

// Events returns a copy of recorded events.
func (p *MemoryPublisher) Events() []PurchaseCompleted {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PurchaseCompleted, len(p.events))
	copy(out, p.events)
	return out
}

// Close is a no-op.
func (p *MemoryPublisher) Close() {}
