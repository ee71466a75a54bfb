package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/live-bet-tracker/pkg/contracts/events"
)

// MessageWriter é o subconjunto de *kafka.Writer usado aqui
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	Writer MessageWriter
	Topic  string
	now    func() time.Time
}

func NewKafkaPublisher(w MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topic: topic, now: time.Now}
}

// PublishStatusChanged publica a mudança de label com a aposta como chave,
// mantendo a ordem dos eventos de uma mesma aposta na partição
func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, e events.WagerStatusChanged) error {
	if e.Ts.IsZero() {
		e.Ts = p.now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", p.Topic, err)
	}
	msg := kafka.Message{Key: []byte(e.WagerID), Value: b, Time: e.Ts}
	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.Topic, err)
	}
	return nil
}
