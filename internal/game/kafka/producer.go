package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"bistro-rush/internal/models"
)

// Event types streamed to the analytics pipeline.
const (
	EventOrderCreated = "order_created"
	EventOrderServed  = "order_served"
	EventOrderExpired = "order_expired"
	EventGameOver     = "game_over"
)

type gameEvent struct {
	Type         string        `json:"type"`
	UserID       string        `json:"user_id"`
	Order        *models.Order `json:"order,omitempty"`
	Satisfaction *int          `json:"satisfaction,omitempty"`
	EmittedAt    time.Time     `json:"emitted_at"`
}

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

func (p *Producer) publish(key string, event gameEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

func (p *Producer) PublishOrderCreated(order models.Order) error {
	return p.publish(order.UserID, gameEvent{
		Type:      EventOrderCreated,
		UserID:    order.UserID,
		Order:     &order,
		EmittedAt: time.Now(),
	})
}

func (p *Producer) PublishOrderServed(order models.Order) error {
	return p.publish(order.UserID, gameEvent{
		Type:      EventOrderServed,
		UserID:    order.UserID,
		Order:     &order,
		EmittedAt: time.Now(),
	})
}

func (p *Producer) PublishOrderExpired(order models.Order) error {
	return p.publish(order.UserID, gameEvent{
		Type:      EventOrderExpired,
		UserID:    order.UserID,
		Order:     &order,
		EmittedAt: time.Now(),
	})
}

func (p *Producer) PublishGameOver(userID string, satisfaction int) error {
	return p.publish(userID, gameEvent{
		Type:         EventGameOver,
		UserID:       userID,
		Satisfaction: &satisfaction,
		EmittedAt:    time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NoopPublisher satisfies the publisher interface when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderCreated(models.Order) error { return nil }
func (NoopPublisher) PublishOrderServed(models.Order) error  { return nil }
func (NoopPublisher) PublishOrderExpired(models.Order) error { return nil }
func (NoopPublisher) PublishGameOver(string, int) error      { return nil }
