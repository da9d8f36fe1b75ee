// Package notify publishes batch lifecycle events for downstream
// consumers (ops dashboards, alerting).
package notify

import (
	"encoding/json"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/riftfi/reactivation-backend/internal/model"
)

// Event types published to the queue.
const (
	EventBatchStarted   = "batch_started"
	EventBatchCompleted = "batch_completed"
	EventBatchFailed    = "batch_failed"
	EventCampaignDone   = "campaign_complete"
)

// BatchEvent is the wire format for one lifecycle event.
type BatchEvent struct {
	Type     string         `json:"type"`
	RunID    string         `json:"run_id,omitempty"`
	Category model.Category `json:"category,omitempty"`
	Sent     int            `json:"sent"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
	Error    string         `json:"error,omitempty"`
	Time     time.Time      `json:"time"`
}

// Publisher pushes events to a durable AMQP queue. A nil *Publisher is a
// valid no-op, so callers don't branch on whether AMQP is configured.
type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger *zap.Logger
}

// NewPublisher connects and declares the queue.
func NewPublisher(amqpURL, queue string, logger *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue, logger: logger}, nil
}

// Publish sends one event. Failures are logged, never fatal: event delivery
// is best-effort and must not disturb a batch in flight.
func (p *Publisher) Publish(evt BatchEvent) {
	if p == nil {
		return
	}
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("marshal batch event", zap.Error(err))
		return
	}
	err = p.ch.Publish(
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		p.logger.Error("publish batch event",
			zap.String("type", evt.Type), zap.Error(err))
	}
}

// Close tears down the channel and connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
