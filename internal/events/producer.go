package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	UserRegistered = "user_registered"
	UserLoggedIn   = "user_logged_in"
	UserLoggedOut  = "user_logged_out"
	UserUpdated    = "user_updated"
	UserDeleted    = "user_deleted"
)

const writeTimeout = 5 * time.Second

// UserEvent is the payload written to the user events topic. It never
// carries credentials or token material.
type UserEvent struct {
	Type     string    `json:"type"`
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Role     string    `json:"role,omitempty"`
	At       time.Time `json:"at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: w, topic: topic}
}

// PublishEvent keys messages by user id so one user's events stay ordered.
func (p *Producer) PublishEvent(ctx context.Context, ev UserEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(ev.UserID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s failed: %w", ev.Type, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Noop is used when no brokers are configured.
type Noop struct{}

func (Noop) PublishEvent(context.Context, UserEvent) error { return nil }

func (Noop) Close() error { return nil }
